package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fyrsmithlabs/genetix/internal/config"
)

// LangChain adapts any langchaingo chat model with tool calling support.
type LangChain struct {
	provider string
	model    llms.Model
}

var _ Model = (*LangChain)(nil)

// NewLangChain wraps model; provider names it in errors.
func NewLangChain(provider string, model llms.Model) *LangChain {
	return &LangChain{provider: provider, model: model}
}

// New builds the model selected by cfg.
func New(ctx context.Context, cfg config.ModelConfig) (Model, error) {
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithModel(cfg.Name)}
		if cfg.APIKey.IsSet() {
			opts = append(opts, openai.WithToken(cfg.APIKey.Value()))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		m, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("openai client: %w", err)
		}
		return NewLangChain("openai", m), nil
	case "googleai":
		m, err := googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey.Value()),
			googleai.WithDefaultModel(cfg.Name),
		)
		if err != nil {
			return nil, fmt.Errorf("googleai client: %w", err)
		}
		return NewLangChain("googleai", m), nil
	case "scripted":
		return Demo{}, nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

func (l *LangChain) Complete(ctx context.Context, req *Request) (*Response, error) {
	tools, err := toLangChainTools(req.Tools)
	if err != nil {
		return nil, err
	}
	resp, err := l.model.GenerateContent(ctx, toLangChainMessages(req), llms.WithTools(tools))
	if err != nil {
		return nil, &ProviderError{Provider: l.provider, Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: l.provider, Err: errors.New("empty response")}
	}

	choice := resp.Choices[0]
	out := &Response{Text: choice.Content}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		args := json.RawMessage(tc.FunctionCall.Arguments)
		if !json.Valid(args) {
			args = json.RawMessage("{}")
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.FunctionCall.Name, Arguments: args})
	}
	return out, nil
}

func toLangChainMessages(req *Request) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, len(req.Messages)+1)
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleUser:
			msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, m.Text))
		case RoleAssistant:
			mc := llms.MessageContent{Role: llms.ChatMessageTypeAI}
			if m.Text != "" {
				mc.Parts = append(mc.Parts, llms.TextContent{Text: m.Text})
			}
			for _, tc := range m.ToolCalls {
				mc.Parts = append(mc.Parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			msgs = append(msgs, mc)
		case RoleTool:
			msgs = append(msgs, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: m.ToolCallID,
					Name:       m.ToolName,
					Content:    m.Text,
				}},
			})
		}
	}
	return msgs
}

func toLangChainTools(specs []ToolSpec) ([]llms.Tool, error) {
	tools := make([]llms.Tool, 0, len(specs))
	for _, s := range specs {
		params, err := schemaMap(s.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %s schema: %w", s.Name, err)
		}
		tools = append(tools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  params,
			},
		})
	}
	return tools, nil
}

// schemaMap renders a schema as a plain map, the form every langchaingo
// backend accepts for function parameters.
func schemaMap(s *jsonschema.Schema) (map[string]any, error) {
	if s == nil {
		return map[string]any{"type": "object"}, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
