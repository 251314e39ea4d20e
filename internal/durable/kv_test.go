package durable

import (
	"context"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/genetix/internal/natstest"
)

func newKVJournal(t *testing.T) *KVJournal {
	t.Helper()
	nc := natstest.Connect(t)
	js, err := jetstream.New(nc)
	require.NoError(t, err)
	j, err := NewKVJournal(context.Background(), js, "genetix-steps-test")
	require.NoError(t, err)
	return j
}

func TestKVJournal_SaveLoad(t *testing.T) {
	ctx := context.Background()
	j := newKVJournal(t)

	_, ok, err := j.Load(ctx, "code-agent-1", "terminal:1")
	require.NoError(t, err)
	assert.False(t, ok)

	rec := Record{Label: "terminal", Seq: 1, Value: []byte(`"done"`)}
	require.NoError(t, j.Save(ctx, "code-agent-1", "terminal:1", rec))

	got, ok, err := j.Load(ctx, "code-agent-1", "terminal:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "terminal", got.Label)
	assert.JSONEq(t, `"done"`, string(got.Value))
}

func TestKVJournal_FirstWriterWins(t *testing.T) {
	ctx := context.Background()
	j := newKVJournal(t)

	require.NoError(t, j.Save(ctx, "run", "step", Record{Label: "step", Value: []byte(`1`)}))
	err := j.Save(ctx, "run", "step", Record{Label: "step", Value: []byte(`2`)})
	assert.ErrorIs(t, err, ErrAlreadyRecorded)

	got, _, err := j.Load(ctx, "run", "step")
	require.NoError(t, err)
	assert.JSONEq(t, `1`, string(got.Value))
}

func TestKVJournal_ExecutorReplay(t *testing.T) {
	ctx := context.Background()
	j := newKVJournal(t)
	calls := 0
	fn := func(context.Context) (map[string]string, error) {
		calls++
		return map[string]string{"app/page.tsx": "export default 1"}, nil
	}

	a, err := Step(ctx, New("run/with:odd chars", j), "createOrUpdateFiles", fn)
	require.NoError(t, err)
	b, err := Step(ctx, New("run/with:odd chars", j), "createOrUpdateFiles", fn)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, a, b)
}
