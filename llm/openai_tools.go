package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type toolMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type toolPayload struct {
	Model     string        `json:"model"`
	Messages  []toolMessage `json:"messages"`
	Tools     []wireTool    `json:"tools"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Stream    bool          `json:"stream"`
}

type toolCompletion struct {
	Choices []struct {
		Message toolMessage `json:"message"`
	} `json:"choices"`
}

func chatMessages(system string, turns []Turn) []toolMessage {
	var msgs []toolMessage
	if system != "" {
		msgs = append(msgs, toolMessage{Role: "system", Content: system})
	}
	for _, t := range turns {
		if len(t.ToolResults) > 0 {
			for _, r := range t.ToolResults {
				msgs = append(msgs, toolMessage{Role: "tool", Content: r.Content, ToolCallID: r.CallID})
			}
			if t.Text != "" {
				msgs = append(msgs, toolMessage{Role: RoleUser, Content: t.Text})
			}
			continue
		}
		m := toolMessage{Role: t.Role, Content: t.Text}
		for _, c := range t.ToolCalls {
			var w wireToolCall
			w.ID = c.ID
			w.Type = "function"
			w.Function.Name = c.Name
			w.Function.Arguments = string(c.Input)
			m.ToolCalls = append(m.ToolCalls, w)
		}
		msgs = append(msgs, m)
	}
	return msgs
}

// CompleteTools uses the function calling form of /chat/completions. The
// reply is read in one piece, tool calls do not stream well across servers.
func (c *ChatCompletions) CompleteTools(ctx context.Context, req ToolRequest) (ToolResponse, error) {
	p := toolPayload{
		Model:     c.Model,
		Messages:  chatMessages(req.System, req.Turns),
		MaxTokens: req.MaxTokens,
	}
	for _, t := range req.Tools {
		var w wireTool
		w.Type = "function"
		w.Function.Name = t.Name
		w.Function.Description = t.Description
		w.Function.Parameters = t.schema()
		p.Tools = append(p.Tools, w)
	}

	body, err := json.Marshal(p)
	if err != nil {
		return ToolResponse{}, fmt.Errorf("error marshaling JSON: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return ToolResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return ToolResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return ToolResponse{}, fmt.Errorf("chat completions returned status %d: %s", resp.StatusCode, string(b))
	}

	var out toolCompletion
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ToolResponse{}, fmt.Errorf("error decoding completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return ToolResponse{}, ErrEmptyResponse
	}

	msg := out.Choices[0].Message
	res := ToolResponse{Text: msg.Content}
	for _, w := range msg.ToolCalls {
		args := json.RawMessage(w.Function.Arguments)
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		res.ToolCalls = append(res.ToolCalls, ToolCall{ID: w.ID, Name: w.Function.Name, Input: args})
	}
	return res, nil
}
