package workspace

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"dagger.io/dagger"
	"github.com/google/uuid"
)

// DaggerProvider runs each workspace as a container on a Dagger engine.
//
// Containers are immutable values; the provider remembers the latest state
// of each workspace so later commands and writes build on earlier ones.
// Workspace IDs are only valid for the lifetime of the provider.
type DaggerProvider struct {
	client *dagger.Client
	image  string

	mu         sync.Mutex
	containers map[string]*dagger.Container
}

var _ Provider = (*DaggerProvider)(nil)

// NewDaggerProvider returns a provider that starts containers from image.
func NewDaggerProvider(client *dagger.Client, image string) *DaggerProvider {
	return &DaggerProvider{
		client:     client,
		image:      image,
		containers: make(map[string]*dagger.Container),
	}
}

func (p *DaggerProvider) Create(ctx context.Context) (Handle, error) {
	ctr, err := p.client.Container().
		From(p.image).
		WithWorkdir(HomeDir).
		Sync(ctx)
	if err != nil {
		return nil, fmt.Errorf("start container from %s: %w", p.image, err)
	}
	id := "dg-" + uuid.NewString()
	p.mu.Lock()
	p.containers[id] = ctr
	p.mu.Unlock()
	return &daggerHandle{id: id, provider: p}, nil
}

func (p *DaggerProvider) Connect(_ context.Context, id string) (Handle, error) {
	p.mu.Lock()
	_, ok := p.containers[id]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return &daggerHandle{id: id, provider: p}, nil
}

func (p *DaggerProvider) current(id string) *dagger.Container {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.containers[id]
}

func (p *DaggerProvider) advance(id string, ctr *dagger.Container) {
	p.mu.Lock()
	p.containers[id] = ctr
	p.mu.Unlock()
}

type daggerHandle struct {
	id       string
	provider *DaggerProvider
}

func (h *daggerHandle) ID() string { return h.id }

func (h *daggerHandle) RunCommand(ctx context.Context, cmd string, onStdout, onStderr OutputFunc) (CommandResult, error) {
	ctr := h.provider.current(h.id).WithExec(
		[]string{"sh", "-c", cmd},
		dagger.ContainerWithExecOpts{Expect: dagger.ReturnTypeAny},
	)
	code, err := ctr.ExitCode(ctx)
	if err != nil {
		return CommandResult{ExitCode: -1}, fmt.Errorf("exec: %w", err)
	}
	stdout, err := ctr.Stdout(ctx)
	if err != nil {
		return CommandResult{ExitCode: code}, fmt.Errorf("read stdout: %w", err)
	}
	stderr, err := ctr.Stderr(ctx)
	if err != nil {
		return CommandResult{ExitCode: code, Stdout: stdout}, fmt.Errorf("read stderr: %w", err)
	}
	// Dagger returns output once the command finishes.
	replay(stdout, onStdout)
	replay(stderr, onStderr)

	h.provider.advance(h.id, ctr)
	res := CommandResult{ExitCode: code, Stdout: stdout, Stderr: stderr}
	if code != 0 {
		return res, &ExitError{Code: code}
	}
	return res, nil
}

func replay(out string, fn OutputFunc) {
	if fn == nil || out == "" {
		return
	}
	for _, line := range strings.SplitAfter(out, "\n") {
		if line != "" {
			fn(line)
		}
	}
}

func containerPath(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(HomeDir, p)
}

func (h *daggerHandle) WriteFile(ctx context.Context, p, content string) error {
	ctr, err := h.provider.current(h.id).
		WithNewFile(containerPath(p), content).
		Sync(ctx)
	if err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	h.provider.advance(h.id, ctr)
	return nil
}

func (h *daggerHandle) ReadFile(ctx context.Context, p string) (string, error) {
	content, err := h.provider.current(h.id).File(containerPath(p)).Contents(ctx)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", p, err)
	}
	return content, nil
}

func (h *daggerHandle) Host(ctx context.Context, port int) (string, error) {
	svc := h.provider.current(h.id).WithExposedPort(port).AsService()
	endpoint, err := svc.Endpoint(ctx, dagger.ServiceEndpointOpts{Port: port})
	if err != nil {
		return "", fmt.Errorf("resolve port %d: %w", port, err)
	}
	return endpoint, nil
}
