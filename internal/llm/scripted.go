package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
)

// ErrScriptExhausted is returned when a Scripted model has no turns left.
var ErrScriptExhausted = errors.New("scripted model: no more responses")

// Turn produces one scripted response. It may inspect the request.
type Turn func(req *Request) (*Response, error)

// Scripted replays a fixed sequence of turns. When Repeat is set, the last
// turn is reused once the script is exhausted.
type Scripted struct {
	mu       sync.Mutex
	turns    []Turn
	Repeat   bool
	requests []*Request
}

var _ Model = (*Scripted)(nil)

// NewScripted returns a model that answers with turns in order.
func NewScripted(turns ...Turn) *Scripted {
	return &Scripted{turns: turns}
}

// Reply is a Turn that returns resp unchanged.
func Reply(resp *Response) Turn {
	return func(*Request) (*Response, error) { return resp, nil }
}

// Text is a Turn that answers with plain text.
func Text(text string) Turn {
	return Reply(&Response{Text: text})
}

// Call is a Turn that requests a single tool invocation. args is encoded
// with encoding/json.
func Call(id, name string, args any) Turn {
	raw, err := json.Marshal(args)
	return func(*Request) (*Response, error) {
		if err != nil {
			return nil, err
		}
		return &Response{ToolCalls: []ToolCall{{ID: id, Name: name, Arguments: raw}}}, nil
	}
}

// Fail is a Turn that returns err.
func Fail(err error) Turn {
	return func(*Request) (*Response, error) { return nil, err }
}

func (s *Scripted) Complete(_ context.Context, req *Request) (*Response, error) {
	s.mu.Lock()
	n := len(s.requests)
	s.requests = append(s.requests, req)
	var turn Turn
	switch {
	case n < len(s.turns):
		turn = s.turns[n]
	case s.Repeat && len(s.turns) > 0:
		turn = s.turns[len(s.turns)-1]
	}
	s.mu.Unlock()

	if turn == nil {
		return nil, ErrScriptExhausted
	}
	return turn(req)
}

// Calls returns how many completions were requested.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns the requests received, oldest first.
func (s *Scripted) Requests() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Request(nil), s.requests...)
}

// Demo is a stateless offline model for smoke runs: it writes a single page
// derived from the user's request, then reports completion.
type Demo struct{}

func (Demo) Complete(_ context.Context, req *Request) (*Response, error) {
	for _, m := range req.Messages {
		if m.Role == RoleTool {
			return &Response{Text: "<task_summary>Created app/page.tsx for the request.</task_summary>"}, nil
		}
	}

	prompt := "Hello"
	for _, m := range req.Messages {
		if m.Role == RoleUser {
			prompt = m.Text
		}
	}
	page := `"use client";

export default function Page() {
  return <main className="p-8"><h1>` + jsxText(prompt) + `</h1></main>;
}
`
	args, err := json.Marshal(map[string]any{
		"files": []map[string]string{{"path": "app/page.tsx", "content": page}},
	})
	if err != nil {
		return nil, err
	}
	return &Response{ToolCalls: []ToolCall{{ID: "demo-1", Name: "createOrUpdateFiles", Arguments: args}}}, nil
}

func jsxText(s string) string {
	return strings.NewReplacer("{", "&#123;", "}", "&#125;", "<", "&lt;", ">", "&gt;").Replace(s)
}
