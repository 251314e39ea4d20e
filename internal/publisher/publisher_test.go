package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/genetix/internal/durable"
	"github.com/fyrsmithlabs/genetix/internal/state"
	"github.com/fyrsmithlabs/genetix/internal/store"
	"github.com/fyrsmithlabs/genetix/internal/tools"
	"github.com/fyrsmithlabs/genetix/internal/workspace/workspacetest"
)

func newRunContext(t *testing.T, journal durable.Journal) *tools.RunContext {
	t.Helper()
	ws := workspacetest.NewProvider()
	h, err := ws.Create(context.Background())
	require.NoError(t, err)
	return &tools.RunContext{
		Steps:       durable.New("run-1", journal),
		State:       state.New(),
		Workspaces:  ws,
		WorkspaceID: h.ID(),
	}
}

func TestPublish_Success(t *testing.T) {
	s := store.NewMemory()
	rc := newRunContext(t, durable.NewMemoryJournal())
	rc.State.SetFiles(map[string]string{"app/page.tsx": "page"})
	rc.State.SetSummary("Built calculator")

	out, err := (&Publisher{Store: s}).Publish(context.Background(), rc, "p1")
	require.NoError(t, err)

	assert.Equal(t, "https://3000-fake-1.sandbox.test", out.URL)
	assert.Equal(t, "Fragment", out.Title)
	assert.Equal(t, "Built calculator", out.Summary)
	assert.Len(t, out.Files, 1)

	msgs, err := s.ListMessages(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, store.TypeResult, msgs[0].Type)
	assert.Equal(t, store.RoleAssistant, msgs[0].Role)
	assert.Equal(t, "Built calculator", msgs[0].Content)
	require.NotNil(t, msgs[0].Fragment)
	assert.Equal(t, out.URL, msgs[0].Fragment.SandboxURL)
	assert.Equal(t, map[string]string{"app/page.tsx": "page"}, msgs[0].Fragment.Files)
}

func TestPublish_FailureBranches(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		summary string
	}{
		{"nothing", nil, ""},
		{"files without summary", map[string]string{"a.ts": "a"}, ""},
		{"summary without files", nil, "claimed success"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemory()
			rc := newRunContext(t, durable.NewMemoryJournal())
			if tt.files != nil {
				rc.State.SetFiles(tt.files)
			}
			rc.State.SetSummary(tt.summary)

			out, err := (&Publisher{Store: s}).Publish(context.Background(), rc, "p1")
			require.NoError(t, err)
			assert.Equal(t, tt.summary, out.Summary)
			assert.Len(t, out.Files, len(tt.files))

			msgs, err := s.ListMessages(context.Background(), "p1")
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			assert.Equal(t, store.TypeError, msgs[0].Type)
			assert.Equal(t, FailureMessage, msgs[0].Content)
			assert.Nil(t, msgs[0].Fragment)
		})
	}
}

func TestPublish_ReplayDoesNotPersistTwice(t *testing.T) {
	s := store.NewMemory()
	journal := durable.NewMemoryJournal()
	rc := newRunContext(t, journal)
	rc.State.SetFiles(map[string]string{"a": "b"})
	rc.State.SetSummary("ok")

	p := &Publisher{Store: s}
	_, err := p.Publish(context.Background(), rc, "p1")
	require.NoError(t, err)

	rc.Steps = durable.New("run-1", journal)
	_, err = p.Publish(context.Background(), rc, "p1")
	require.NoError(t, err)

	msgs, err := s.ListMessages(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

type failingStore struct{ store.Store }

func (failingStore) CreateMessage(context.Context, store.NewMessage) (*store.Message, error) {
	return nil, errors.New("database is locked")
}

func TestPublish_StoreErrorFailsRun(t *testing.T) {
	journal := durable.NewMemoryJournal()
	rc := newRunContext(t, journal)
	_, err := (&Publisher{Store: failingStore{}}).Publish(context.Background(), rc, "p1")

	require.ErrorContains(t, err, "database is locked")
	assert.True(t, durable.IsTransient(err))
	assert.Equal(t, []string{"get-sandbox-url"}, journal.Keys("run-1"))
}
