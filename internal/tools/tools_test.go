package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/genetix/internal/durable"
	"github.com/fyrsmithlabs/genetix/internal/events"
	"github.com/fyrsmithlabs/genetix/internal/state"
	"github.com/fyrsmithlabs/genetix/internal/workspace"
	"github.com/fyrsmithlabs/genetix/internal/workspace/workspacetest"
)

type fixture struct {
	rc       *RunContext
	ws       *workspacetest.Provider
	journal  *durable.MemoryJournal
	recorder *events.Recorder
	registry *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ws := workspacetest.NewProvider()
	h, err := ws.Create(context.Background())
	require.NoError(t, err)
	journal := durable.NewMemoryJournal()
	rec := &events.Recorder{}
	reg, err := Default()
	require.NoError(t, err)
	return &fixture{
		rc: &RunContext{
			Steps:       durable.New("run-1", journal),
			State:       state.New(),
			Workspaces:  ws,
			WorkspaceID: h.ID(),
			Events:      rec,
		},
		ws:       ws,
		journal:  journal,
		recorder: rec,
		registry: reg,
	}
}

func (f *fixture) invoke(t *testing.T, name, args string) Result {
	t.Helper()
	tool, ok := f.registry.Get(name)
	require.True(t, ok, "tool %s", name)
	return tool.Invoke(context.Background(), f.rc, json.RawMessage(args))
}

func TestDefault_Specs(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	specs := reg.Specs()
	require.Len(t, specs, 3)
	assert.Equal(t, "terminal", specs[0].Name)
	assert.Equal(t, "Use the terminal to run commands", specs[0].Description)
	assert.Equal(t, "createOrUpdateFiles", specs[1].Name)
	assert.Equal(t, "readFiles", specs[2].Name)
	assert.Contains(t, specs[0].Parameters.Required, "command")
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	term, err := Terminal()
	require.NoError(t, err)
	_, err = NewRegistry(term, term)
	assert.Error(t, err)
}

func TestInvoke_InvalidArguments(t *testing.T) {
	f := newFixture(t)

	res := f.invoke(t, "terminal", `{"command": 42}`)
	assert.True(t, res.Failed)
	assert.Contains(t, res.Text(), "invalid arguments")

	res = f.invoke(t, "readFiles", `not json`)
	assert.True(t, res.Failed)

	assert.Empty(t, f.ws.Commands)
	assert.Empty(t, f.journal.Keys("run-1"))
}

func TestTerminal_Success(t *testing.T) {
	f := newFixture(t)
	f.ws.OnCommand = func(cmd string) (workspace.CommandResult, error) {
		return workspace.CommandResult{Stdout: "added 12 packages\n"}, nil
	}

	res := f.invoke(t, "terminal", `{"command":"npm install"}`)
	assert.False(t, res.Failed)
	assert.Equal(t, "added 12 packages\n", res.Text())
	assert.Equal(t, []string{"npm install"}, f.ws.Commands)
	assert.Contains(t, f.recorder.Kinds(), events.ToolOutput)
}

func TestTerminal_FailureFormat(t *testing.T) {
	f := newFixture(t)
	f.ws.OnCommand = func(string) (workspace.CommandResult, error) {
		return workspace.CommandResult{ExitCode: 1, Stdout: "partial", Stderr: "boom"}, &workspace.ExitError{Code: 1}
	}

	res := f.invoke(t, "terminal", `{"command":"false"}`)
	assert.True(t, res.Failed)
	assert.Equal(t, "Command failed: exit status 1\nstdout: partial\nstderr: boom", res.Text())
}

func TestTerminal_ReplayDoesNotRerun(t *testing.T) {
	f := newFixture(t)
	f.ws.OnCommand = func(string) (workspace.CommandResult, error) {
		return workspace.CommandResult{Stdout: "ok"}, nil
	}
	first := f.invoke(t, "terminal", `{"command":"ls"}`)

	// A fresh executor over the same journal is a replay of the run.
	f.rc.Steps = durable.New("run-1", f.journal)
	second := f.invoke(t, "terminal", `{"command":"ls"}`)

	assert.Equal(t, first, second)
	assert.Len(t, f.ws.Commands, 1)
}

func TestTerminal_UnknownWorkspace(t *testing.T) {
	f := newFixture(t)
	f.rc.WorkspaceID = "missing"

	res := f.invoke(t, "terminal", `{"command":"ls"}`)
	assert.True(t, res.Failed)
	assert.Contains(t, res.Text(), "Command failed: ")
	assert.Contains(t, res.Text(), workspace.ErrNotFound.Error())
}

func TestWriteFiles_MergesIntoState(t *testing.T) {
	f := newFixture(t)
	f.rc.State.SetFiles(map[string]string{"app/layout.tsx": "layout"})

	res := f.invoke(t, "createOrUpdateFiles", `{"files":[{"path":"app/page.tsx","content":"page"},{"path":"lib/util.ts","content":"util"}]}`)
	require.False(t, res.Failed, res.Text())

	want := map[string]string{"app/layout.tsx": "layout", "app/page.tsx": "page", "lib/util.ts": "util"}
	assert.Equal(t, want, f.rc.State.Files())

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(res.Text()), &got))
	assert.Equal(t, want, got)
	assert.Equal(t, "page", f.ws.Files(f.rc.WorkspaceID)["app/page.tsx"])
}

func TestWriteFiles_LastWriteWins(t *testing.T) {
	f := newFixture(t)

	f.invoke(t, "createOrUpdateFiles", `{"files":[{"path":"a.txt","content":"one"}]}`)
	f.invoke(t, "createOrUpdateFiles", `{"files":[{"path":"a.txt","content":"two"}]}`)

	assert.Equal(t, map[string]string{"a.txt": "two"}, f.rc.State.Files())
	assert.ElementsMatch(t, []string{"createOrUpdateFiles", "createOrUpdateFiles:1"}, f.journal.Keys("run-1"))
}

func TestWriteFiles_FailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	f.rc.State.SetFiles(map[string]string{"keep.txt": "kept"})
	f.ws.WriteErr = map[string]error{"bad.txt": errors.New("disk full")}

	res := f.invoke(t, "createOrUpdateFiles", `{"files":[{"path":"good.txt","content":"x"},{"path":"bad.txt","content":"y"}]}`)
	assert.True(t, res.Failed)
	assert.Equal(t, "Error: disk full", res.Text())
	assert.Equal(t, map[string]string{"keep.txt": "kept"}, f.rc.State.Files())
}

func TestWriteFiles_ReplayRestoresState(t *testing.T) {
	f := newFixture(t)
	f.invoke(t, "createOrUpdateFiles", `{"files":[{"path":"a.txt","content":"a"}]}`)
	writes := f.ws.Writes

	f.rc.Steps = durable.New("run-1", f.journal)
	f.rc.State = state.New()
	res := f.invoke(t, "createOrUpdateFiles", `{"files":[{"path":"a.txt","content":"a"}]}`)

	assert.False(t, res.Failed)
	assert.Equal(t, writes, f.ws.Writes)
	assert.Equal(t, map[string]string{"a.txt": "a"}, f.rc.State.Files())
}

func TestReadFiles(t *testing.T) {
	f := newFixture(t)
	f.ws.Seed(f.rc.WorkspaceID, "app/page.tsx", "export default 1")
	f.ws.Seed(f.rc.WorkspaceID, "package.json", "{}")

	res := f.invoke(t, "readFiles", `{"files":["app/page.tsx","/home/user/package.json"]}`)
	require.False(t, res.Failed, res.Text())

	var got []FileContent
	require.NoError(t, json.Unmarshal([]byte(res.Text()), &got))
	assert.Equal(t, []FileContent{
		{Path: "app/page.tsx", Content: "export default 1"},
		{Path: "/home/user/package.json", Content: "{}"},
	}, got)
	assert.Empty(t, f.rc.State.Files())
}

func TestReadFiles_Missing(t *testing.T) {
	f := newFixture(t)

	res := f.invoke(t, "readFiles", `{"files":["nope.txt"]}`)
	assert.True(t, res.Failed)
	assert.Contains(t, res.Text(), "Error: ")
}
