// Package store persists the conversation of a project: user prompts,
// agent outcomes and the fragments (sandbox URL plus generated files) that
// successful runs produce.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/genetix/internal/config"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
)

// MessageType classifies a message.
type MessageType string

const (
	TypeResult MessageType = "RESULT"
	TypeError  MessageType = "ERROR"
)

// Message is one persisted conversation entry.
type Message struct {
	ID        string      `json:"id"`
	ProjectID string      `json:"projectId"`
	Content   string      `json:"content"`
	Role      Role        `json:"role"`
	Type      MessageType `json:"type"`
	Fragment  *Fragment   `json:"fragment,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Fragment is the artifact of a successful run.
type Fragment struct {
	ID         string            `json:"id"`
	MessageID  string            `json:"messageId"`
	SandboxURL string            `json:"sandboxUrl"`
	Title      string            `json:"title"`
	Files      map[string]string `json:"files"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// NewMessage is the input of CreateMessage.
type NewMessage struct {
	ProjectID string
	Content   string
	Role      Role
	Type      MessageType
	// Fragment, when set, is stored with the message atomically.
	Fragment *NewFragment
}

// NewFragment is the input for a message's fragment.
type NewFragment struct {
	SandboxURL string
	Title      string
	Files      map[string]string
}

// ErrInvalid is returned for messages missing required fields.
var ErrInvalid = errors.New("invalid message")

func (m NewMessage) validate() error {
	switch {
	case m.ProjectID == "":
		return fmt.Errorf("%w: project id is required", ErrInvalid)
	case m.Role != RoleUser && m.Role != RoleAssistant:
		return fmt.Errorf("%w: role %q", ErrInvalid, m.Role)
	case m.Type != TypeResult && m.Type != TypeError:
		return fmt.Errorf("%w: type %q", ErrInvalid, m.Type)
	}
	return nil
}

// Store persists messages.
type Store interface {
	CreateMessage(ctx context.Context, msg NewMessage) (*Message, error)
	// ListMessages returns messages oldest-updated first. An empty
	// projectID lists every project.
	ListMessages(ctx context.Context, projectID string) ([]Message, error)
	Close() error
}

// Open returns the backend selected by cfg.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(ctx, cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
