package codeagent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/genetix/internal/config"
	"github.com/fyrsmithlabs/genetix/internal/durable"
	"github.com/fyrsmithlabs/genetix/internal/events"
	"github.com/fyrsmithlabs/genetix/internal/llm"
	"github.com/fyrsmithlabs/genetix/internal/logging"
	"github.com/fyrsmithlabs/genetix/internal/publisher"
	"github.com/fyrsmithlabs/genetix/internal/store"
	"github.com/fyrsmithlabs/genetix/internal/workspace/workspacetest"
)

type harness struct {
	runner   *Runner
	ws       *workspacetest.Provider
	store    *store.Memory
	journal  *durable.MemoryJournal
	recorder *events.Recorder
}

func newHarness(t *testing.T, model llm.Model) *harness {
	t.Helper()
	h := &harness{
		ws:       workspacetest.NewProvider(),
		store:    store.NewMemory(),
		journal:  durable.NewMemoryJournal(),
		recorder: &events.Recorder{},
	}
	h.runner = &Runner{
		Workspaces: h.ws,
		Journal:    h.journal,
		Store:      h.store,
		Model:      model,
		Engine:     config.Default().Engine,
		Events:     h.recorder,
		Logger:     logging.NewNop(),
	}
	return h
}

func calculatorScript() *llm.Scripted {
	return llm.NewScripted(
		llm.Call("call-1", "createOrUpdateFiles", map[string]any{
			"files": []map[string]string{{"path": "app/page.tsx", "content": "export default function Calculator() {}"}},
		}),
		llm.Text("<task_summary>Built calculator</task_summary>"),
	)
}

func TestRun_EndToEndSuccess(t *testing.T) {
	h := newHarness(t, calculatorScript())

	out, err := h.runner.Run(context.Background(), "run-1", NewEvent("create a calculator", "p1"))
	require.NoError(t, err)

	assert.Equal(t, "Built calculator", out.Summary)
	assert.Equal(t, "Fragment", out.Title)
	assert.Equal(t, "https://3000-fake-1.sandbox.test", out.URL)
	assert.Equal(t, map[string]string{"app/page.tsx": "export default function Calculator() {}"}, out.Files)

	msgs, err := h.store.ListMessages(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, store.TypeResult, msgs[0].Type)
	assert.Equal(t, "Built calculator", msgs[0].Content)
	require.NotNil(t, msgs[0].Fragment)
	assert.Equal(t, out.URL, msgs[0].Fragment.SandboxURL)
	assert.Equal(t, out.Files, msgs[0].Fragment.Files)

	kinds := h.recorder.Kinds()
	assert.Equal(t, events.RunStarted, kinds[0])
	assert.Contains(t, kinds, events.RunDone)
	assert.NotContains(t, kinds, events.RunFailed)
	assert.Equal(t, events.RunPublished, kinds[len(kinds)-1])
}

func TestRun_EndToEndFailure(t *testing.T) {
	model := llm.NewScripted(llm.Text("thinking about it"))
	model.Repeat = true
	h := newHarness(t, model)

	out, err := h.runner.Run(context.Background(), "run-1", NewEvent("create a calculator", "p1"))
	require.NoError(t, err)

	assert.Equal(t, 15, model.Calls())
	assert.Empty(t, out.Summary)
	assert.Empty(t, out.Files)

	msgs, err := h.store.ListMessages(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, store.TypeError, msgs[0].Type)
	assert.Equal(t, publisher.FailureMessage, msgs[0].Content)
	assert.Nil(t, msgs[0].Fragment)
}

func TestRun_ReplayDoesNotRepeatSideEffects(t *testing.T) {
	model := calculatorScript()
	h := newHarness(t, model)
	ev := NewEvent("create a calculator", "p1")

	first, err := h.runner.Run(context.Background(), "run-1", ev)
	require.NoError(t, err)
	calls, creates, writes := model.Calls(), h.ws.Creates, h.ws.Writes

	second, err := h.runner.Run(context.Background(), "run-1", ev)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, calls, model.Calls())
	assert.Equal(t, creates, h.ws.Creates)
	assert.Equal(t, writes, h.ws.Writes)

	msgs, err := h.store.ListMessages(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestRun_ResumesAfterProviderFailure(t *testing.T) {
	outage := errors.New("503 service unavailable")
	model := llm.NewScripted(
		llm.Call("call-1", "createOrUpdateFiles", map[string]any{
			"files": []map[string]string{{"path": "app/page.tsx", "content": "x"}},
		}),
		llm.Fail(outage),
		llm.Text("<task_summary>Built it</task_summary>"),
	)
	h := newHarness(t, model)
	ev := NewEvent("build", "p1")

	_, err := h.runner.Run(context.Background(), "run-1", ev)
	require.ErrorIs(t, err, outage)
	assert.Contains(t, h.recorder.Kinds(), events.RunFailed)

	out, err := h.runner.Run(context.Background(), "run-1", ev)
	require.NoError(t, err)
	assert.Equal(t, "Built it", out.Summary)
	assert.Equal(t, 1, h.ws.Creates)
	assert.Equal(t, 1, h.ws.Writes)
}

func TestRun_RunsAreIsolated(t *testing.T) {
	model := llm.NewScripted(
		llm.Call("a", "createOrUpdateFiles", map[string]any{"files": []map[string]string{{"path": "a.ts", "content": "a"}}}),
		llm.Text("<task_summary>a</task_summary>"),
		llm.Call("b", "createOrUpdateFiles", map[string]any{"files": []map[string]string{{"path": "b.ts", "content": "b"}}}),
		llm.Text("<task_summary>b</task_summary>"),
	)
	h := newHarness(t, model)

	a, err := h.runner.Run(context.Background(), "run-a", NewEvent("a", "p1"))
	require.NoError(t, err)
	b, err := h.runner.Run(context.Background(), "run-b", NewEvent("b", "p1"))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"a.ts": "a"}, a.Files)
	assert.Equal(t, map[string]string{"b.ts": "b"}, b.Files)
	assert.NotEqual(t, a.URL, b.URL)
}

func TestRun_IterationCapFromConfig(t *testing.T) {
	model := llm.NewScripted(llm.Text("..."))
	model.Repeat = true
	h := newHarness(t, model)
	h.runner.Engine.MaxIterations = 4

	_, err := h.runner.Run(context.Background(), "run-1", NewEvent("x", "p1"))
	require.NoError(t, err)
	assert.Equal(t, 4, model.Calls())
}

func TestRun_RunTimeout(t *testing.T) {
	blocking := llm.NewScripted(func(*llm.Request) (*llm.Response, error) {
		time.Sleep(50 * time.Millisecond)
		return &llm.Response{Text: "slow"}, nil
	})
	blocking.Repeat = true
	h := newHarness(t, blocking)
	h.runner.Engine.RunTimeout = config.Duration(20 * time.Millisecond)

	_, err := h.runner.Run(context.Background(), "run-1", NewEvent("x", "p1"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRun_SandboxCreateFailure(t *testing.T) {
	h := newHarness(t, calculatorScript())
	h.ws.CreateErr = errors.New("quota")

	_, err := h.runner.Run(context.Background(), "run-1", NewEvent("x", "p1"))
	require.ErrorContains(t, err, "create sandbox")
	assert.Empty(t, h.journal.Keys("run-1"))
}

func TestEvent_Validate(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"valid", NewEvent("create a calculator", "p1"), ""},
		{"wrong name", Event{Name: "test/hello.world", Data: EventData{Value: "x", ProjectID: "p"}}, "unexpected name"},
		{"empty value", NewEvent("", "p1"), "Message is required"},
		{"too long", NewEvent(strings.Repeat("a", MaxValueLength+1), "p1"), "Message is too long"},
		{"max length", NewEvent(strings.Repeat("a", MaxValueLength), "p1"), ""},
		{"no project", NewEvent("x", ""), "Project ID is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ev.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidEvent)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
