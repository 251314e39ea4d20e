// Package agent runs one model turn of a tool-using agent and dispatches the
// tool calls it emits.
package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/genetix/internal/durable"
	"github.com/fyrsmithlabs/genetix/internal/llm"
	"github.com/fyrsmithlabs/genetix/internal/tools"
)

// Hook inspects a model turn after it was produced and before its tool
// calls run.
type Hook func(ctx context.Context, rc *tools.RunContext, res *llm.Response)

// Agent is a system prompt, a tool set and a model.
type Agent struct {
	Name        string
	Description string
	System      string
	Tools       *tools.Registry
	Model       llm.Model
	OnResponse  Hook
}

// TurnResult is what one Run appended to the conversation.
type TurnResult struct {
	Response *llm.Response
	Messages []llm.Message
}

// Run asks the model for one turn given history, then invokes every tool
// call in emission order. The model call is a durable step labelled with
// the agent name: a replayed run reuses the recorded decision.
func (a *Agent) Run(ctx context.Context, rc *tools.RunContext, history []llm.Message) (*TurnResult, error) {
	req := &llm.Request{System: a.System, Messages: history}
	if a.Tools != nil {
		req.Tools = a.Tools.Specs()
	}

	res, err := durable.Step(ctx, rc.Steps, a.Name, func(ctx context.Context) (*llm.Response, error) {
		res, err := a.Model.Complete(ctx, req)
		if err != nil {
			// Provider failures end the run without being recorded, so a
			// retried run asks the model again.
			return nil, durable.Transient(err)
		}
		return res, nil
	})
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", a.Name, err)
	}
	if res == nil {
		res = &llm.Response{}
	}

	if a.OnResponse != nil {
		a.OnResponse(ctx, rc, res)
	}

	turn := &TurnResult{
		Response: res,
		Messages: []llm.Message{{Role: llm.RoleAssistant, Text: res.Text, ToolCalls: res.ToolCalls}},
	}
	for _, call := range res.ToolCalls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result := a.invoke(ctx, rc, call)
		turn.Messages = append(turn.Messages, llm.Message{
			Role:       llm.RoleTool,
			Text:       result.Text(),
			ToolCallID: call.ID,
			ToolName:   call.Name,
		})
	}
	return turn, nil
}

func (a *Agent) invoke(ctx context.Context, rc *tools.RunContext, call llm.ToolCall) tools.Result {
	var tool tools.Tool
	ok := false
	if a.Tools != nil {
		tool, ok = a.Tools.Get(call.Name)
	}
	if !ok {
		rc.Log().Warn(ctx, "model called unknown tool", zap.String("tool", call.Name))
		return tools.Failure(fmt.Sprintf("Error: unknown tool %q", call.Name))
	}
	return tool.Invoke(ctx, rc, call.Arguments)
}

const (
	summaryOpen  = "<task_summary>"
	summaryClose = "</task_summary>"
)

// ExtractSummary returns the trimmed text inside the task summary marker, or
// "" when text carries no marker. An unterminated marker yields everything
// after it. A blank marker yields "" and so does not end the run.
func ExtractSummary(text string) string {
	_, after, found := strings.Cut(text, summaryOpen)
	if !found {
		return ""
	}
	inner, _, _ := strings.Cut(after, summaryClose)
	return strings.TrimSpace(inner)
}

// SummaryHook records the task summary of the turn in the run state. Only
// the first summary of a run is kept.
func SummaryHook(ctx context.Context, rc *tools.RunContext, res *llm.Response) {
	summary := ExtractSummary(res.Text)
	if summary == "" {
		return
	}
	if !rc.State.SetSummary(summary) {
		rc.Log().Debug(ctx, "ignoring repeated task summary")
	}
}

// NewCodeAgent returns the code agent: the code-generation prompt, the given
// tools and the summary hook.
func NewCodeAgent(model llm.Model, registry *tools.Registry) *Agent {
	return &Agent{
		Name:        "code-agent",
		Description: "An expert coding agent",
		System:      CodeAgentPrompt,
		Tools:       registry,
		Model:       model,
		OnResponse:  SummaryHook,
	}
}
