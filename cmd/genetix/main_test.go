package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/genetix/internal/config"
)

func TestRootCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "worker", "run", "watch", "version"} {
		assert.True(t, names[want], "missing command %q", want)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "genetix dev\n", out.String())
}

func TestRunRequiresProject(t *testing.T) {
	flag := runCmd.Flags().Lookup("project")
	require.NotNil(t, flag)
	assert.Equal(t, []string{"true"}, flag.Annotations["cobra_annotation_bash_completion_one_required_flag"])
}

func TestNewAppInProcess(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Provider = "scripted"
	cfg.Workspace.Root = t.TempDir()
	cfg.Logging.Level = "error"
	require.NoError(t, cfg.Validate())

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.close(context.Background()) })

	require.NotNil(t, a.runner)
	assert.NotNil(t, a.store)
	assert.Equal(t, cfg.Engine, a.runner.Engine)
}

func TestAppCloseOrder(t *testing.T) {
	var order []int
	a := &app{}
	for i := 1; i <= 3; i++ {
		a.onClose(func(context.Context) error {
			order = append(order, i)
			return nil
		})
	}
	require.NoError(t, a.close(context.Background()))
	assert.Equal(t, []int{3, 2, 1}, order)

	var nilApp *app
	assert.NoError(t, nilApp.close(context.Background()))
}
