package store

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory keeps messages in process memory.
type Memory struct {
	mu       sync.Mutex
	messages []Message
	now      func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (s *Memory) CreateMessage(_ context.Context, in NewMessage) (*Message, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	msg := Message{
		ID:        uuid.NewString(),
		ProjectID: in.ProjectID,
		Content:   in.Content,
		Role:      in.Role,
		Type:      in.Type,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Fragment != nil {
		msg.Fragment = &Fragment{
			ID:         uuid.NewString(),
			MessageID:  msg.ID,
			SandboxURL: in.Fragment.SandboxURL,
			Title:      in.Fragment.Title,
			Files:      maps.Clone(in.Fragment.Files),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	return cloneMessage(msg), nil
}

func (s *Memory) ListMessages(_ context.Context, projectID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, 0, len(s.messages))
	for _, m := range s.messages {
		if projectID == "" || m.ProjectID == projectID {
			out = append(out, *cloneMessage(m))
		}
	}
	slices.SortStableFunc(out, func(a, b Message) int { return a.UpdatedAt.Compare(b.UpdatedAt) })
	return out, nil
}

func (s *Memory) Close() error { return nil }

func cloneMessage(m Message) *Message {
	if m.Fragment != nil {
		f := *m.Fragment
		f.Files = maps.Clone(f.Files)
		m.Fragment = &f
	}
	return &m
}
