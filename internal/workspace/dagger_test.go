package workspace

import (
	"context"
	"os"
	"testing"

	"dagger.io/dagger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a reachable Dagger engine.
func TestDagger_Roundtrip(t *testing.T) {
	if os.Getenv("GENETIX_DAGGER_TESTS") == "" {
		t.Skip("set GENETIX_DAGGER_TESTS=1 to run against a Dagger engine")
	}
	ctx := context.Background()
	client, err := dagger.Connect(ctx)
	require.NoError(t, err)
	defer client.Close()

	p := NewDaggerProvider(client, "alpine:3.20")
	h, err := p.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, h.WriteFile(ctx, "hello.txt", "hi"))
	res, err := h.RunCommand(ctx, "cat hello.txt && echo done > out.txt", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Stdout)

	again, err := p.Connect(ctx, h.ID())
	require.NoError(t, err)
	content, err := again.ReadFile(ctx, "out.txt")
	require.NoError(t, err)
	assert.Equal(t, "done\n", content)

	_, err = h.RunCommand(ctx, "exit 2", nil, nil)
	var exitErr *ExitError
	assert.ErrorAs(t, err, &exitErr)
}

func TestDaggerProvider_ConnectUnknown(t *testing.T) {
	p := NewDaggerProvider(nil, "alpine")
	_, err := p.Connect(context.Background(), "dg-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
