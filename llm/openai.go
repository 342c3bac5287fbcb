package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var defaultBaseURLs = map[string]string{
	ProviderOpenAI: "https://api.openai.com/v1",
	ProviderNvidia: "https://integrate.api.nvidia.com/v1",
	ProviderLocal:  "http://localhost:11434/v1",
}

// ChatCompletions talks to any OpenAI compatible /chat/completions endpoint
// and reads the answer as a server-sent event stream.
type ChatCompletions struct {
	Client  *http.Client
	BaseURL string
	APIKey  string
	Model   string
}

func NewChatCompletions(baseURL, apiKey, model string) *ChatCompletions {
	return &ChatCompletions{
		Client:  &http.Client{Timeout: 120 * time.Second},
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type payload struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p"`
	Stream      bool      `json:"stream"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *ChatCompletions) Complete(ctx context.Context, req Request) (string, error) {
	p := payload{
		Model:       c.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        1.0,
		Stream:      true,
	}
	if req.System != "" {
		p.Messages = append(p.Messages, message{Role: "system", Content: req.System})
	}
	p.Messages = append(p.Messages, message{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("error marshaling JSON: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat completions returned status %d: %s", resp.StatusCode, string(b))
	}

	text, err := ReadStream(resp.Body)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrEmptyResponse
	}
	slog.Debug("chat completion", "model", c.Model, "chars", len(text))
	return text, nil
}

// ReadStream concatenates the delta contents of an SSE completion stream.
// Lines that are not JSON data events are skipped.
func ReadStream(r io.Reader) (string, error) {
	var b strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "data: [DONE]" || !strings.HasPrefix(line, "data: {") {
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) > 0 {
			b.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}
	return b.String(), nil
}
