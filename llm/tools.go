package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrToolsUnsupported = errors.New("model client does not support tool calling")

// Tool is a function the model may call. Properties and Required form the
// JSON schema of its input object.
type Tool struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type ToolResult struct {
	CallID  string `json:"call_id"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of a tool-calling exchange. A user turn carries
// either text or the results of the previous assistant turn's calls.
type Turn struct {
	Role        string       `json:"role"`
	Text        string       `json:"text,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

type ToolRequest struct {
	System    string
	Turns     []Turn
	Tools     []Tool
	MaxTokens int
}

// ToolResponse is the assistant's reply. No calls means the model answered
// in text.
type ToolResponse struct {
	Text      string
	ToolCalls []ToolCall
}

// Turn is the reply as a transcript entry.
func (r ToolResponse) Turn() Turn {
	return Turn{Role: RoleAssistant, Text: r.Text, ToolCalls: r.ToolCalls}
}

type ToolCaller interface {
	CompleteTools(ctx context.Context, req ToolRequest) (ToolResponse, error)
}

// ToolCallerFunc adapts a function to ToolCaller.
type ToolCallerFunc func(ctx context.Context, req ToolRequest) (ToolResponse, error)

func (f ToolCallerFunc) CompleteTools(ctx context.Context, req ToolRequest) (ToolResponse, error) {
	return f(ctx, req)
}

// schema is the JSON schema object of a tool's input.
func (t Tool) schema() map[string]any {
	s := map[string]any{"type": "object", "properties": t.Properties}
	if len(t.Required) > 0 {
		s["required"] = t.Required
	}
	return s
}

// ToolsOf returns c as a ToolCaller when its client supports tool calling.
func ToolsOf(c Completer) (ToolCaller, error) {
	if g, ok := c.(*Guarded); ok {
		if _, ok := g.next.(ToolCaller); !ok {
			return nil, fmt.Errorf("%w: %T", ErrToolsUnsupported, g.next)
		}
		return g, nil
	}
	if tc, ok := c.(ToolCaller); ok {
		return tc, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrToolsUnsupported, c)
}
