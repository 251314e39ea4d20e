// Package workspace provides isolated sandboxes the agent runs commands and
// writes files in.
//
// A workspace is created once per run and then addressed by ID: every
// durable step reconnects through Provider.Connect instead of holding a
// handle across steps, so a replayed run can resume against the same
// sandbox.
package workspace

import (
	"context"
	"errors"
	"fmt"
)

// HomeDir is the working directory commands run in. Paths under it are
// treated as workspace-relative by every backend.
const HomeDir = "/home/user"

// ErrNotFound is returned by Connect for an unknown workspace ID.
var ErrNotFound = errors.New("workspace not found")

// Provider creates and reconnects to workspaces.
type Provider interface {
	Create(ctx context.Context) (Handle, error)
	Connect(ctx context.Context, id string) (Handle, error)
}

// OutputFunc receives one chunk of command output as it is produced.
type OutputFunc func(chunk string)

// Handle is a live connection to one workspace.
type Handle interface {
	ID() string
	// RunCommand runs cmd through a shell. A non-zero exit returns an
	// *ExitError alongside the captured output.
	RunCommand(ctx context.Context, cmd string, onStdout, onStderr OutputFunc) (CommandResult, error)
	WriteFile(ctx context.Context, path, content string) error
	ReadFile(ctx context.Context, path string) (string, error)
	// Host returns the externally reachable host:port for a port served
	// inside the workspace.
	Host(ctx context.Context, port int) (string, error)
}

// CommandResult is the captured output of a command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ExitError reports a command that exited non-zero.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}
