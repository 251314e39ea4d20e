// Package tools implements the operations the agent can invoke inside its
// workspace: running shell commands, writing files and reading files.
//
// Tools never return Go errors to the agent. Every failure becomes a
// Failure result whose text the model reads on its next turn.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/fyrsmithlabs/genetix/internal/durable"
	"github.com/fyrsmithlabs/genetix/internal/events"
	"github.com/fyrsmithlabs/genetix/internal/llm"
	"github.com/fyrsmithlabs/genetix/internal/logging"
	"github.com/fyrsmithlabs/genetix/internal/state"
	"github.com/fyrsmithlabs/genetix/internal/workspace"
)

// Result is the tagged outcome of a tool invocation.
type Result struct {
	Failed  bool   `json:"failed,omitempty"`
	Content string `json:"content"`
}

// Ok is a successful result.
func Ok(content string) Result { return Result{Content: content} }

// Failure is a failed result carrying the text shown to the model.
func Failure(message string) Result { return Result{Failed: true, Content: message} }

// Text renders the result as the plain string handed to the model.
func (r Result) Text() string { return r.Content }

// RunContext is everything a tool may touch during one run. It is passed by
// reference to every invocation.
type RunContext struct {
	Steps       *durable.Executor
	State       *state.State
	Workspaces  workspace.Provider
	WorkspaceID string
	Events      events.Emitter
	Logger      *logging.Logger
}

func (rc *RunContext) connect(ctx context.Context) (workspace.Handle, error) {
	return rc.Workspaces.Connect(ctx, rc.WorkspaceID)
}

// Log returns the run logger, or a no-op logger when none is set.
func (rc *RunContext) Log() *logging.Logger {
	if rc.Logger == nil {
		return logging.NewNop()
	}
	return rc.Logger
}

func (rc *RunContext) emit(ctx context.Context, kind events.Kind, data map[string]any) {
	if rc.Events != nil {
		rc.Events.Emit(ctx, events.Event{RunID: rc.Steps.RunID(), Kind: kind, Data: data})
	}
}

// Tool is one capability advertised to the model.
type Tool interface {
	Name() string
	Description() string
	Schema() *jsonschema.Schema
	// Invoke validates args against Schema and runs the tool.
	Invoke(ctx context.Context, rc *RunContext, args json.RawMessage) Result
}

// typed binds a handler to an argument struct whose schema is inferred.
type typed[A any] struct {
	name        string
	description string
	schema      *jsonschema.Schema
	resolved    *jsonschema.Resolved
	handle      func(ctx context.Context, rc *RunContext, args A) Result
}

func newTyped[A any](name, description string, handle func(context.Context, *RunContext, A) Result) (*typed[A], error) {
	schema, err := jsonschema.For[A](nil)
	if err != nil {
		return nil, fmt.Errorf("%s schema: %w", name, err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("%s schema: %w", name, err)
	}
	return &typed[A]{name: name, description: description, schema: schema, resolved: resolved, handle: handle}, nil
}

func (t *typed[A]) Name() string               { return t.name }
func (t *typed[A]) Description() string        { return t.description }
func (t *typed[A]) Schema() *jsonschema.Schema { return t.schema }

func (t *typed[A]) Invoke(ctx context.Context, rc *RunContext, raw json.RawMessage) Result {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return Failure("Error: invalid arguments: " + err.Error())
	}
	if err := t.resolved.Validate(instance); err != nil {
		return Failure("Error: invalid arguments: " + err.Error())
	}
	var args A
	if err := json.Unmarshal(raw, &args); err != nil {
		return Failure("Error: invalid arguments: " + err.Error())
	}
	return t.handle(ctx, rc, args)
}

// Registry is an ordered set of tools.
type Registry struct {
	tools []Tool
	index map[string]Tool
}

// NewRegistry returns a registry of tools in the given order.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{index: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, dup := r.index[t.Name()]; dup {
			return nil, fmt.Errorf("duplicate tool %q", t.Name())
		}
		r.tools = append(r.tools, t)
		r.index[t.Name()] = t
	}
	return r, nil
}

// Default returns terminal, createOrUpdateFiles and readFiles.
func Default() (*Registry, error) {
	term, err := Terminal()
	if err != nil {
		return nil, err
	}
	write, err := WriteFiles()
	if err != nil {
		return nil, err
	}
	read, err := ReadFiles()
	if err != nil {
		return nil, err
	}
	return NewRegistry(term, write, read)
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.index[name]
	return t, ok
}

// Tools returns the tools in registration order.
func (r *Registry) Tools() []Tool {
	return append([]Tool(nil), r.tools...)
}

// Specs describes the tools for a completion request.
func (r *Registry) Specs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, llm.ToolSpec{Name: t.Name(), Description: t.Description(), Parameters: t.Schema()})
	}
	return specs
}
