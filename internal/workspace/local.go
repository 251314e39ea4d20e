package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalProvider keeps each workspace in a directory under root and runs
// commands on the host with sh -c.
type LocalProvider struct {
	root string
}

var _ Provider = (*LocalProvider)(nil)

// NewLocalProvider returns a provider rooted at root, creating it if needed.
// An empty root uses a directory under the system temp dir.
func NewLocalProvider(root string) (*LocalProvider, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "genetix-workspaces")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &LocalProvider{root: abs}, nil
}

func (p *LocalProvider) Create(_ context.Context) (Handle, error) {
	id := "ws-" + uuid.NewString()
	dir := filepath.Join(p.root, id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &localHandle{id: id, dir: dir}, nil
}

func (p *LocalProvider) Connect(_ context.Context, id string) (Handle, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	dir := filepath.Join(p.root, id)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return &localHandle{id: id, dir: dir}, nil
}

type localHandle struct {
	id  string
	dir string
}

func (h *localHandle) ID() string { return h.id }

// waitDelay bounds how long RunCommand waits for output pipes held open by
// backgrounded children once sh has exited or the context is done.
var waitDelay = 2 * time.Second

func (h *localHandle) RunCommand(ctx context.Context, command string, onStdout, onStderr OutputFunc) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = h.dir
	// Cancellation kills the whole process group, not only sh.
	setProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	stdout := &lineWriter{fn: onStdout}
	stderr := &lineWriter{fn: onStderr}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return CommandResult{}, fmt.Errorf("start command: %w", err)
	}
	err := cmd.Wait()
	stdout.flush()
	stderr.flush()

	res := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case ctx.Err() != nil:
		// sh may have exited before the deadline while its children lived on.
		_ = killProcessGroup(cmd)
		res.ExitCode = -1
		return res, ctx.Err()
	case err == nil, errors.Is(err, exec.ErrWaitDelay):
		// ErrWaitDelay: sh exited cleanly but a background child kept the
		// pipes open. The child keeps running.
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, &ExitError{Code: res.ExitCode}
	default:
		res.ExitCode = -1
		return res, err
	}
}

// lineWriter accumulates output and forwards it to fn one line at a time.
type lineWriter struct {
	fn      OutputFunc
	mu      sync.Mutex
	buf     strings.Builder
	pending string
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	w.pending += string(p)
	for {
		i := strings.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		if w.fn != nil {
			w.fn(w.pending[:i+1])
		}
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}

// flush forwards a trailing line without a newline.
func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != "" && w.fn != nil {
		w.fn(w.pending)
	}
	w.pending = ""
}

func (w *lineWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

// resolve maps a workspace-relative or absolute-in-workspace path to a host
// path, rejecting anything that escapes the workspace directory.
func (h *localHandle) resolve(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty path")
	}
	path = strings.TrimPrefix(path, HomeDir+"/")
	full := filepath.Join(h.dir, filepath.Clean("/"+path))
	if full != h.dir && !strings.HasPrefix(full, h.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes workspace", path)
	}
	return full, nil
}

func (h *localHandle) WriteFile(_ context.Context, path, content string) error {
	full, err := h.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, []byte(content), 0o644)
}

func (h *localHandle) ReadFile(_ context.Context, path string) (string, error) {
	full, err := h.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (h *localHandle) Host(_ context.Context, port int) (string, error) {
	if port < 1 || port > 65535 {
		return "", fmt.Errorf("invalid port %d", port)
	}
	return "localhost:" + strconv.Itoa(port), nil
}
