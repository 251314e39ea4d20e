package monitor

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/genetix/internal/events"
	"github.com/fyrsmithlabs/genetix/internal/natstest"
)

func feed(t *testing.T, m Model, evs ...events.Event) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, ev := range evs {
		var next tea.Model
		next, cmd = m.Update(eventMsg(ev))
		m = next.(Model)
	}
	return m, cmd
}

func ev(kind events.Kind, data map[string]any) events.Event {
	return events.Event{RunID: "run-1", Kind: kind, Time: time.Now(), Data: data}
}

func TestModel_Init(t *testing.T) {
	m := NewModel("run-1", 15, make(chan events.Event))
	assert.NotNil(t, m.Init())
	assert.Equal(t, statusWaiting, m.status)
	assert.Contains(t, m.View(), "waiting for events")
}

func TestModel_QuitKey(t *testing.T) {
	m := NewModel("run-1", 15, nil)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	assert.True(t, next.(Model).quitting)
	assert.NotNil(t, cmd)
	assert.Empty(t, next.(Model).View())
}

func TestModel_TracksProgress(t *testing.T) {
	m := NewModel("run-1", 15, make(chan events.Event))
	m, cmd := feed(t, m,
		ev(events.RunStarted, map[string]any{"project_id": "p1"}),
		ev(events.TickStarted, map[string]any{"iteration": float64(1), "agent": "code-agent"}),
		ev(events.ToolOutput, map[string]any{"tool": "terminal", "stream": "stdout", "chunk": "added 12 packages\nready\n"}),
		ev(events.ToolFinished, map[string]any{"tool": "terminal", "failed": false}),
		ev(events.ToolFinished, map[string]any{"tool": "createOrUpdateFiles", "failed": true}),
		ev(events.TickFinished, map[string]any{"iteration": float64(1), "agent": "code-agent", "tool_calls": float64(2)}),
	)
	require.NotNil(t, cmd)

	assert.Equal(t, statusRunning, m.status)
	assert.Equal(t, "p1", m.project)
	assert.Equal(t, 1, m.iteration)
	assert.Equal(t, []float64{2}, m.toolCalls)
	assert.Equal(t, map[string]int{"terminal": 1, "createOrUpdateFiles": 1}, m.toolCounts)
	assert.Equal(t, 1, m.toolFails)
	assert.Equal(t, []string{"added 12 packages", "ready"}, m.output)

	view := m.View()
	assert.Contains(t, view, "RUNNING")
	assert.Contains(t, view, "code-agent")
	assert.Contains(t, view, "1/15")
	assert.Contains(t, view, "1 failed")
	assert.Contains(t, view, "ready")
}

func TestModel_Published(t *testing.T) {
	m := NewModel("run-1", 15, nil)
	m, _ = feed(t, m,
		ev(events.RunStarted, nil),
		ev(events.RunDone, map[string]any{"iterations": float64(3), "summary": true}),
		ev(events.RunPublished, map[string]any{"url": "https://3000-sbx.example", "files": float64(2), "summary": true}),
	)

	assert.Equal(t, statusPublished, m.status)
	assert.False(t, m.Failed())
	view := m.View()
	assert.Contains(t, view, "PUBLISHED")
	assert.Contains(t, view, "https://3000-sbx.example")
	assert.Contains(t, view, "2 files")
}

func TestModel_PublishedWithoutSummary(t *testing.T) {
	m := NewModel("run-1", 15, nil)
	m, _ = feed(t, m, ev(events.RunPublished, map[string]any{"url": "", "files": float64(0), "summary": false}))
	assert.True(t, m.Failed())
	assert.Contains(t, m.View(), "NO RESULT")
}

func TestModel_Failed(t *testing.T) {
	m := NewModel("run-1", 15, nil)
	m, _ = feed(t, m, ev(events.RunFailed, map[string]any{"error": "model: rate limited"}))
	assert.True(t, m.Failed())
	assert.Contains(t, m.View(), "model: rate limited")
}

func TestModel_Disconnected(t *testing.T) {
	m := NewModel("run-1", 15, nil)
	next, cmd := m.Update(closedMsg{})
	assert.NotNil(t, cmd)
	assert.Equal(t, statusDisconnected, next.(Model).status)
	assert.True(t, next.(Model).Failed())
}

func TestAppendLines_KeepsTail(t *testing.T) {
	var lines []string
	for i := 0; i < maxOutputLines+5; i++ {
		lines = appendLines(lines, "line\n")
	}
	assert.Len(t, lines, maxOutputLines)
	assert.Equal(t, lines, appendLines(lines, ""))
}

func TestSubscribe_DeliversUntilTerminal(t *testing.T) {
	nc := natstest.Connect(t)
	sub, err := Subscribe(nc, "run-1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	require.NoError(t, nc.Flush())

	emitter := events.NewNATSEmitter(nc, nil, nil)
	ctx := context.Background()
	emitter.Emit(ctx, ev(events.TickStarted, map[string]any{"iteration": 1}))
	emitter.Emit(ctx, events.Event{RunID: "other", Kind: events.TickStarted})
	emitter.Emit(ctx, ev(events.RunPublished, map[string]any{"summary": true}))
	require.NoError(t, nc.Flush())

	var kinds []events.Kind
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case e, ok := <-sub.Events():
			if !ok {
				done = true
				continue
			}
			assert.Equal(t, "run-1", e.RunID)
			kinds = append(kinds, e.Kind)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
	assert.Equal(t, []events.Kind{events.TickStarted, events.RunPublished}, kinds)
	assert.NoError(t, sub.Close())
}

func TestSubscribe_UnsubscribesAfterTerminal(t *testing.T) {
	nc := natstest.Connect(t)
	sub, err := Subscribe(nc, "run-1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	require.NoError(t, nc.Flush())

	emitter := events.NewNATSEmitter(nc, nil, nil)
	emitter.Emit(context.Background(), ev(events.RunFailed, map[string]any{"error": "boom"}))
	require.NoError(t, nc.Flush())

	select {
	case e := <-sub.Events():
		assert.Equal(t, events.RunFailed, e.Kind)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the terminal event")
	}
	assert.Eventually(t, func() bool { return !sub.sub.IsValid() }, 5*time.Second, 10*time.Millisecond)
	assert.NoError(t, sub.Close())
}

func TestSubscribe_CloseWithoutDraining(t *testing.T) {
	nc := natstest.Connect(t)
	sub, err := Subscribe(nc, "run-1")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	emitter := events.NewNATSEmitter(nc, nil, nil)
	for i := 0; i < bufferSize+10; i++ {
		emitter.Emit(context.Background(), ev(events.ToolOutput, map[string]any{"chunk": "x\n"}))
	}
	require.NoError(t, nc.Flush())

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	closed := make(chan struct{})
	go func() {
		for range sub.Events() {
		}
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("events channel was not closed")
	}
}
