// Package publisher turns the final state of a run into persisted messages
// and the value returned to the caller.
package publisher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/genetix/internal/durable"
	"github.com/fyrsmithlabs/genetix/internal/store"
	"github.com/fyrsmithlabs/genetix/internal/tools"
)

const (
	// FragmentTitle is the title of every persisted fragment.
	FragmentTitle = "Fragment"
	// FailureMessage is the only text persisted for failed runs. Internal
	// errors never reach the user.
	FailureMessage = "Something went wrong. Please try again."
	// DefaultPort is the port the sandbox application serves on.
	DefaultPort = 3000
)

// Outcome is the value returned by a run on both the success and the
// failure path.
type Outcome struct {
	URL     string            `json:"url"`
	Title   string            `json:"title"`
	Files   map[string]string `json:"files"`
	Summary string            `json:"summary,omitempty"`
}

// Publisher persists run results.
type Publisher struct {
	Store store.Store
	// Port is resolved to the sandbox URL. Zero means DefaultPort.
	Port int
}

// Publish resolves the sandbox URL and persists the outcome of the run,
// each as its own durable step. A run without a summary or without files
// is persisted as a failure and gets no fragment; the returned Outcome
// still carries whatever partial state exists.
//
// Workspace and store errors are not recorded, so a retried run publishes
// again instead of replaying the error.
func (p *Publisher) Publish(ctx context.Context, rc *tools.RunContext, projectID string) (*Outcome, error) {
	port := p.Port
	if port == 0 {
		port = DefaultPort
	}

	url, err := durable.Step(ctx, rc.Steps, "get-sandbox-url", func(ctx context.Context) (string, error) {
		h, err := rc.Workspaces.Connect(ctx, rc.WorkspaceID)
		if err != nil {
			return "", durable.Transient(err)
		}
		host, err := h.Host(ctx, port)
		if err != nil {
			return "", durable.Transient(fmt.Errorf("resolve sandbox host: %w", err))
		}
		return "https://" + host, nil
	})
	if err != nil {
		return nil, err
	}

	snap := rc.State.Snapshot()
	_, err = durable.Step(ctx, rc.Steps, "save-result", func(ctx context.Context) (string, error) {
		msg := store.NewMessage{ProjectID: projectID, Role: store.RoleAssistant}
		if snap.IsError() {
			msg.Content = FailureMessage
			msg.Type = store.TypeError
		} else {
			msg.Content = snap.Summary
			msg.Type = store.TypeResult
			msg.Fragment = &store.NewFragment{SandboxURL: url, Title: FragmentTitle, Files: snap.Files}
		}
		saved, err := p.Store.CreateMessage(ctx, msg)
		if err != nil {
			return "", durable.Transient(fmt.Errorf("save result: %w", err))
		}
		return saved.ID, nil
	})
	if err != nil {
		return nil, err
	}

	rc.Log().Info(ctx, "run result published",
		zap.Bool("error", snap.IsError()),
		zap.Int("files", len(snap.Files)),
		zap.String("url", url))

	files := snap.Files
	if files == nil {
		files = map[string]string{}
	}
	return &Outcome{URL: url, Title: FragmentTitle, Files: files, Summary: snap.Summary}, nil
}
