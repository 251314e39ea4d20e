package durable

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fyrsmithlabs/genetix/internal/telemetry"
)

type sandboxInfo struct {
	ID   string `json:"id"`
	Port int    `json:"port"`
}

func TestStep_ReplaysRecordedValue(t *testing.T) {
	ctx := context.Background()
	journal := NewMemoryJournal()
	calls := 0
	fn := func(context.Context) (sandboxInfo, error) {
		calls++
		return sandboxInfo{ID: "sbx-1", Port: 3000}, nil
	}

	first, err := Step(ctx, New("run-1", journal), "get-sandbox-id", fn)
	require.NoError(t, err)

	// A fresh executor models a retried attempt of the same run.
	second, err := Step(ctx, New("run-1", journal), "get-sandbox-id", fn)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Equal(t, sandboxInfo{ID: "sbx-1", Port: 3000}, second)
}

func TestStep_ReplaysRecordedFailure(t *testing.T) {
	ctx := context.Background()
	journal := NewMemoryJournal()
	calls := 0
	fn := func(context.Context) (string, error) {
		calls++
		return "", errors.New("sandbox quota exceeded")
	}

	_, err1 := Step(ctx, New("run-1", journal), "get-sandbox-id", fn)
	_, err2 := Step(ctx, New("run-1", journal), "get-sandbox-id", fn)

	var stepErr *StepError
	require.ErrorAs(t, err1, &stepErr)
	assert.Equal(t, "sandbox quota exceeded", stepErr.Message)
	assert.Equal(t, err1.Error(), err2.Error())
	assert.Equal(t, 1, calls)
}

func TestStep_RepeatedLabelsAreOrdered(t *testing.T) {
	ctx := context.Background()
	journal := NewMemoryJournal()

	run := func(ex *Executor, outputs []string) []string {
		var got []string
		for _, out := range outputs {
			out := out
			v, err := Step(ctx, ex, "terminal", func(context.Context) (string, error) { return out, nil })
			require.NoError(t, err)
			got = append(got, v)
		}
		return got
	}

	assert.Equal(t, []string{"a", "b", "c"}, run(New("run-1", journal), []string{"a", "b", "c"}))
	// Replay ignores the new functions and yields the recorded order.
	assert.Equal(t, []string{"a", "b", "c"}, run(New("run-1", journal), []string{"x", "y", "z"}))
	assert.ElementsMatch(t, []string{"terminal", "terminal:1", "terminal:2"}, journal.Keys("run-1"))
}

func TestStep_RunsAreIsolated(t *testing.T) {
	ctx := context.Background()
	journal := NewMemoryJournal()
	calls := 0
	fn := func(context.Context) (int, error) { calls++; return calls, nil }

	a, _ := Step(ctx, New("run-a", journal), "count", fn)
	b, _ := Step(ctx, New("run-b", journal), "count", fn)
	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestStep_TimeoutRecordsFailure(t *testing.T) {
	ctx := context.Background()
	journal := NewMemoryJournal()
	ex := New("run-1", journal, WithStepTimeout(20*time.Millisecond))

	_, err := Step(ctx, ex, "slow", func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Contains(t, stepErr.Message, "timed out")
	rec, ok, _ := journal.Load(ctx, "run-1", "slow")
	require.True(t, ok)
	assert.True(t, rec.Failed())
}

func TestStep_CancellationIsNotRecorded(t *testing.T) {
	journal := NewMemoryJournal()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Step(ctx, New("run-1", journal), "work", func(ctx context.Context) (string, error) {
		return "", ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)

	_, ok, _ := journal.Load(context.Background(), "run-1", "work")
	assert.False(t, ok)
}

func TestStep_FirstRecordWins(t *testing.T) {
	ctx := context.Background()
	journal := NewMemoryJournal()
	require.NoError(t, journal.Save(ctx, "run-1", "work", Record{Label: "work", Value: []byte(`"winner"`)}))

	// Simulate a racing attempt whose Load missed the record.
	racer := &missFirstLoad{Journal: journal}
	v, err := Step(ctx, New("run-1", racer), "work", func(context.Context) (string, error) { return "loser", nil })
	require.NoError(t, err)
	assert.Equal(t, "winner", v)
}

type missFirstLoad struct {
	Journal
	missed bool
}

func (m *missFirstLoad) Load(ctx context.Context, runID, key string) (Record, bool, error) {
	if !m.missed {
		m.missed = true
		return Record{}, false, nil
	}
	return m.Journal.Load(ctx, runID, key)
}

func TestStep_Metrics(t *testing.T) {
	ctx := context.Background()
	tel := telemetry.NewTestTelemetry()
	m, err := NewMetrics(tel.Meter("durable"))
	require.NoError(t, err)
	journal := NewMemoryJournal()
	fn := func(context.Context) (string, error) { return "ok", nil }

	_, _ = Step(ctx, New("run-1", journal, WithMetrics(m)), "readFiles", fn)
	_, _ = Step(ctx, New("run-1", journal, WithMetrics(m)), "readFiles", fn)

	step := attribute.String("step", "readFiles")
	assert.Equal(t, int64(1), tel.CounterValue(t, "genetix.steps.executed", step))
	assert.Equal(t, int64(1), tel.CounterValue(t, "genetix.steps.replayed", step))
	assert.Equal(t, int64(0), tel.CounterValue(t, "genetix.steps.failed", step))
}

func TestStep_TransientErrorsAreRetried(t *testing.T) {
	ctx := context.Background()
	journal := NewMemoryJournal()
	calls := 0
	fn := func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", Transient(errors.New("503 from provider"))
		}
		return "recovered", nil
	}

	_, err := Step(ctx, New("run-1", journal), "code-agent", fn)
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	v, err := Step(ctx, New("run-1", journal), "code-agent", fn)
	require.NoError(t, err)
	assert.Equal(t, "recovered", v)
	assert.Equal(t, 2, calls)
}
