// Package workspacetest provides an in-memory workspace for tests.
package workspacetest

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/fyrsmithlabs/genetix/internal/workspace"
)

// CommandFunc scripts the outcome of a command.
type CommandFunc func(cmd string) (workspace.CommandResult, error)

// Provider is an in-memory workspace.Provider that counts every call.
type Provider struct {
	mu         sync.Mutex
	workspaces map[string]*Handle
	next       int

	// OnCommand scripts command outcomes. The default succeeds silently.
	OnCommand CommandFunc
	// WriteErr, when set, fails writes to the matching path.
	WriteErr map[string]error
	// CreateErr fails Create.
	CreateErr error

	Creates  int
	Connects int
	Commands []string
	Writes   int
}

var _ workspace.Provider = (*Provider)(nil)

// NewProvider returns an empty fake.
func NewProvider() *Provider {
	return &Provider{workspaces: make(map[string]*Handle)}
}

func (p *Provider) Create(context.Context) (workspace.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CreateErr != nil {
		return nil, p.CreateErr
	}
	p.Creates++
	p.next++
	h := &Handle{id: fmt.Sprintf("fake-%d", p.next), provider: p, files: map[string]string{}}
	p.workspaces[h.id] = h
	return h, nil
}

func (p *Provider) Connect(_ context.Context, id string) (workspace.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Connects++
	h, ok := p.workspaces[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", workspace.ErrNotFound, id)
	}
	return h, nil
}

// Files returns a copy of the files written to workspace id.
func (p *Provider) Files(id string) map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.workspaces[id]; ok {
		return maps.Clone(h.files)
	}
	return nil
}

// Seed writes a file into workspace id without counting it.
func (p *Provider) Seed(id, path, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.workspaces[id]; ok {
		h.files[normalize(path)] = content
	}
}

// Handle is a fake workspace.
type Handle struct {
	id       string
	provider *Provider
	files    map[string]string
}

func (h *Handle) ID() string { return h.id }

func (h *Handle) RunCommand(_ context.Context, cmd string, onStdout, onStderr workspace.OutputFunc) (workspace.CommandResult, error) {
	p := h.provider
	p.mu.Lock()
	p.Commands = append(p.Commands, cmd)
	script := p.OnCommand
	p.mu.Unlock()

	if script == nil {
		return workspace.CommandResult{}, nil
	}
	res, err := script(cmd)
	if onStdout != nil && res.Stdout != "" {
		onStdout(res.Stdout)
	}
	if onStderr != nil && res.Stderr != "" {
		onStderr(res.Stderr)
	}
	return res, err
}

func (h *Handle) WriteFile(_ context.Context, path, content string) error {
	p := h.provider
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.WriteErr[path]; ok {
		return err
	}
	p.Writes++
	h.files[normalize(path)] = content
	return nil
}

func (h *Handle) ReadFile(_ context.Context, path string) (string, error) {
	p := h.provider
	p.mu.Lock()
	defer p.mu.Unlock()
	content, ok := h.files[normalize(path)]
	if !ok {
		return "", fmt.Errorf("open %s: no such file or directory", path)
	}
	return content, nil
}

func (h *Handle) Host(_ context.Context, port int) (string, error) {
	return fmt.Sprintf("%d-%s.sandbox.test", port, h.id), nil
}

func normalize(path string) string {
	return strings.TrimPrefix(path, workspace.HomeDir+"/")
}
