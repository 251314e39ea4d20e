package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/genetix/internal/config"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "genetix.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{"memory": NewMemory(), "sqlite": sqlite}
}

func TestStore_CreateAndList(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			user, err := s.CreateMessage(ctx, NewMessage{ProjectID: "p1", Content: "create a calculator", Role: RoleUser, Type: TypeResult})
			require.NoError(t, err)
			assert.NotEmpty(t, user.ID)
			assert.Nil(t, user.Fragment)

			result, err := s.CreateMessage(ctx, NewMessage{
				ProjectID: "p1",
				Content:   "Built calculator",
				Role:      RoleAssistant,
				Type:      TypeResult,
				Fragment: &NewFragment{
					SandboxURL: "https://3000-sb.example",
					Title:      "Fragment",
					Files:      map[string]string{"app/page.tsx": "page"},
				},
			})
			require.NoError(t, err)
			require.NotNil(t, result.Fragment)
			assert.Equal(t, result.ID, result.Fragment.MessageID)

			_, err = s.CreateMessage(ctx, NewMessage{ProjectID: "p2", Content: "other", Role: RoleUser, Type: TypeResult})
			require.NoError(t, err)

			msgs, err := s.ListMessages(ctx, "p1")
			require.NoError(t, err)
			require.Len(t, msgs, 2)
			assert.Equal(t, "create a calculator", msgs[0].Content)
			assert.Equal(t, "Built calculator", msgs[1].Content)
			require.NotNil(t, msgs[1].Fragment)
			assert.Equal(t, "https://3000-sb.example", msgs[1].Fragment.SandboxURL)
			assert.Equal(t, map[string]string{"app/page.tsx": "page"}, msgs[1].Fragment.Files)

			all, err := s.ListMessages(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestStore_Validation(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.CreateMessage(ctx, NewMessage{Content: "x", Role: RoleUser, Type: TypeResult})
			assert.ErrorIs(t, err, ErrInvalid)
			_, err = s.CreateMessage(ctx, NewMessage{ProjectID: "p", Role: "BOT", Type: TypeResult})
			assert.ErrorIs(t, err, ErrInvalid)
			_, err = s.CreateMessage(ctx, NewMessage{ProjectID: "p", Role: RoleUser, Type: "DRAFT"})
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestMemory_OrdersByUpdatedAt(t *testing.T) {
	s := NewMemory()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	times := []time.Time{base.Add(2 * time.Second), base, base.Add(time.Second)}
	i := 0
	s.now = func() time.Time { ts := times[i]; i++; return ts }

	for _, c := range []string{"c", "a", "b"} {
		_, err := s.CreateMessage(context.Background(), NewMessage{ProjectID: "p", Content: c, Role: RoleUser, Type: TypeResult})
		require.NoError(t, err)
	}
	msgs, err := s.ListMessages(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "a", msgs[0].Content)
	assert.Equal(t, "b", msgs[1].Content)
	assert.Equal(t, "c", msgs[2].Content)
}

func TestSQLite_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "genetix.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	_, err = s.CreateMessage(ctx, NewMessage{ProjectID: "p", Content: "hi", Role: RoleUser, Type: TypeResult})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	msgs, err := s.ListMessages(ctx, "p")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), config.StoreConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	_, err = Open(context.Background(), config.StoreConfig{Backend: "postgres"})
	assert.Error(t, err)
}
