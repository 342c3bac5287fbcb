package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadStream(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"SELECT "}}]}`,
		``,
		`: keep-alive`,
		`data: {"choices":[{"delta":{"content":"1"}}]}`,
		`data: {not json`,
		`data: {"choices":[]}`,
		`data: [DONE]`,
	}, "\n")

	got, err := ReadStream(strings.NewReader(stream))
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", got)
}

func TestChatCompletions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var p payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.True(t, p.Stream)
		require.Len(t, p.Messages, 2)
		assert.Equal(t, "system", p.Messages[0].Role)
		assert.Equal(t, "How many resolutions?", p.Messages[1].Content)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintln(w, `data: {"choices":[{"delta":{"content":"SELECT COUNT(*) "}}]}`)
		fmt.Fprintln(w, `data: {"choices":[{"delta":{"content":"FROM documents"}}]}`)
		fmt.Fprintln(w, `data: [DONE]`)
	}))
	defer srv.Close()

	c := NewChatCompletions(srv.URL+"/v1/", "secret", "meta/llama")
	got, err := c.Complete(context.Background(), Request{System: "be terse", Prompt: "How many resolutions?"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM documents", got)
}

func TestChatCompletionsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewChatCompletions(srv.URL, "", "m").Complete(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestAnthropic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"))
		assert.Equal(t, "key", r.Header.Get("X-Api-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body["model"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "The resolution was adopted."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`)
	}))
	defer srv.Close()

	a := NewAnthropic("key", "claude-test", srv.URL+"/")
	got, err := a.Complete(context.Background(), Request{System: "s", Prompt: "p", Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "The resolution was adopted.", got)
}

func TestGuardedRetries(t *testing.T) {
	var calls int32
	flaky := CompleterFunc(func(context.Context, Request) (string, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return "", errors.New("overloaded")
		}
		return "ok", nil
	})

	g := NewGuarded("test", flaky, 0)
	g.Backoff = time.Millisecond

	got, err := g.Complete(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.EqualValues(t, 3, calls)
}

func TestGuardedOpensBreaker(t *testing.T) {
	var calls int32
	failing := CompleterFunc(func(context.Context, Request) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", errors.New("down")
	})

	g := NewGuarded("test", failing, 0)
	g.Backoff = time.Millisecond
	g.MaxRetries = 10

	_, err := g.Complete(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	// five failures trip the breaker and the open state is not retried
	assert.EqualValues(t, 5, calls)
}

func TestWithBackoffHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WithBackoff(ctx, 3, time.Hour, func() (string, error) {
		return "", errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRequiresKeys(t *testing.T) {
	_, err := New(Config{Provider: ProviderAnthropic})
	assert.Error(t, err)

	_, err = New(Config{Provider: ProviderOpenAI})
	assert.Error(t, err)

	_, err = New(Config{Provider: "bard"})
	assert.Error(t, err)

	c, err := New(Config{Provider: ProviderLocal, Model: "llama3"})
	require.NoError(t, err)
	assert.IsType(t, &Guarded{}, c)
}
