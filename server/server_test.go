package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlohamalainen/un-ga-documents-go/llm"
	"github.com/carlohamalainen/un-ga-documents-go/rag"
	"github.com/carlohamalainen/un-ga-documents-go/search"
	"github.com/carlohamalainen/un-ga-documents-go/store"
)

type fakeSearch struct{}

func (fakeSearch) Search(_ context.Context, q string, size int) (*search.Result, error) {
	if q == "boom" {
		return nil, errors.New("index unavailable")
	}
	return &search.Result{Total: 1, Hits: []search.Hit{{Document: search.Document{Symbol: "A/RES/78/220"}, Score: 1.5}}}, nil
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "unga.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.WithTx(ctx, func(tx *store.Tx) error {
		_, err := tx.UpsertDocument(ctx, store.Document{
			Symbol:   "A/RES/78/220",
			DocType:  "resolution",
			Session:  78,
			Title:    "Emergency humanitarian assistance",
			BodyText: "The General Assembly requests assistance.",
		}, store.Fill{})
		return err
	}))
	return s
}

// model answers SQL prompts with sql and everything else with answer.
func model(sql, answer string) llm.Completer {
	return llm.CompleterFunc(func(_ context.Context, req llm.Request) (string, error) {
		if req.System != "" {
			return "```sql\n" + sql + "\n```", nil
		}
		return answer, nil
	})
}

func newTestServer(t *testing.T, c llm.Completer) (*Server, *httptest.Server) {
	t.Helper()
	s := testStore(t)

	var p *rag.Pipeline
	if c != nil {
		p = rag.NewPipeline(c, s)
	}
	srv := New(s, p, fakeSearch{}, Options{})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return srv, ts
}

func do(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts := newTestServer(t, nil)

	code, body := do(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `unga_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestQuery(t *testing.T) {
	_, ts := newTestServer(t, nil)

	code, body := do(t, http.MethodPost, ts.URL+"/api/query", `{"sql":"SELECT symbol, title FROM documents"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"symbol", "title"}, body["columns"])
	assert.Equal(t, float64(1), body["row_count"])
	assert.Equal(t, false, body["truncated"])
	rows := body["rows"].([]any)
	cell := rows[0].(map[string]any)["symbol"].(map[string]any)
	assert.Equal(t, "A/RES/78/220", cell["full"])
	assert.Equal(t, "A/RES/78/220", cell["display"])

	code, body = do(t, http.MethodPost, ts.URL+"/api/query", `{"sql":"DROP TABLE documents"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Only read-only statements starting with select, with, explain are allowed.", body["error"])

	code, body = do(t, http.MethodPost, ts.URL+"/api/query", `{"sql":""}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "sql failed on required", body["error"])

	code, _ = do(t, http.MethodPost, ts.URL+"/api/query", `{"sql":"SELECT * FROM missing"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, http.MethodPost, ts.URL+"/api/query", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTextToSQL(t *testing.T) {
	_, ts := newTestServer(t, model("SELECT symbol, title FROM documents", "A/RES/78/220 requests assistance."))

	code, body := do(t, http.MethodPost, ts.URL+"/api/text-to-sql", `{"question":"Which resolutions?"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "SELECT symbol, title FROM documents", body["sql"])
	assert.NotContains(t, body, "rows")

	code, body = do(t, http.MethodPost, ts.URL+"/api/text-to-sql", `{"question":"Which resolutions?","execute":true}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["row_count"])
	ans := body["answer"].(map[string]any)
	assert.Equal(t, "A/RES/78/220 requests assistance.", ans["answer"])
	assert.Equal(t, []any{"A/RES/78/220"}, ans["sources"])
}

func TestTextToSQLRejectsWrites(t *testing.T) {
	_, ts := newTestServer(t, model("DELETE FROM documents", ""))

	code, body := do(t, http.MethodPost, ts.URL+"/api/text-to-sql", `{"question":"Remove everything","execute":true}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "DELETE FROM documents", body["sql"])
	assert.True(t, strings.HasPrefix(body["error"].(string), "Generated query not allowed: "))
}

func TestAskRecordsConversation(t *testing.T) {
	srv, ts := newTestServer(t, model("SELECT symbol, title FROM documents", "A/RES/78/220 requests assistance."))

	code, body := do(t, http.MethodPost, ts.URL+"/api/ask", `{"question":"What does 78/220 request?"}`)
	require.Equal(t, http.StatusOK, code)
	id := body["conversation_id"].(string)
	assert.True(t, strings.HasPrefix(id, "conv_"))
	assert.Equal(t, float64(1), body["turn_number"])
	assert.Equal(t, "A/RES/78/220 requests assistance.", body["answer"])

	code, body = do(t, http.MethodPost, ts.URL+"/api/ask", `{"question":"And its title?","conversation_id":"`+id+`"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["turn_number"])

	code, body = do(t, http.MethodGet, ts.URL+"/api/conversations/"+id, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["total_turns"])
	assert.Equal(t, []any{"A/RES/78/220"}, body["active_symbols"])

	code, body = do(t, http.MethodGet, ts.URL+"/api/conversations/stats", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["total_conversations"])
	assert.Equal(t, float64(2), body["average_turns_per_conversation"])

	code, _ = do(t, http.MethodPost, ts.URL+"/api/ask", `{"question":"q","conversation_id":"conv_missing"}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, http.MethodPost, ts.URL+"/api/ask", `{"question":"q","conversation_id":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, http.MethodDelete, ts.URL+"/api/conversations", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["cleared"])
	assert.Equal(t, 0, srv.Conversations().Stats().Total)

	code, _ = do(t, http.MethodGet, ts.URL+"/api/conversations/"+id, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAskFailureLeavesNoConversation(t *testing.T) {
	srv, ts := newTestServer(t, model("DELETE FROM documents", "unused"))

	code, body := do(t, http.MethodPost, ts.URL+"/api/ask", `{"question":"Remove everything"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "DELETE FROM documents", body["sql"])
	assert.Zero(t, srv.Conversations().Stats().Total)

	failing := llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		return "", errors.New("model unavailable")
	})
	srv, ts = newTestServer(t, failing)
	code, _ = do(t, http.MethodPost, ts.URL+"/api/ask", `{"question":"anything"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	code, _ = do(t, http.MethodPost, ts.URL+"/api/ask", `{"question":"anything","rag_type":"multistep"}`)
	assert.Equal(t, http.StatusNotImplemented, code)
	assert.Zero(t, srv.Conversations().Stats().Total)
}

// toolModel is a completer that can also call tools, replying from a queue.
type toolModel struct {
	llm.Completer
	reqs    []llm.ToolRequest
	replies []llm.ToolResponse
}

func (m *toolModel) CompleteTools(_ context.Context, req llm.ToolRequest) (llm.ToolResponse, error) {
	m.reqs = append(m.reqs, req)
	if len(m.replies) == 0 {
		return llm.ToolResponse{}, errors.New("no reply queued")
	}
	out := m.replies[0]
	m.replies = m.replies[1:]
	return out, nil
}

func toolCall(id, name, args string) llm.ToolResponse {
	return llm.ToolResponse{ToolCalls: []llm.ToolCall{{ID: id, Name: name, Input: json.RawMessage(args)}}}
}

func TestAskMultistep(t *testing.T) {
	m := &toolModel{
		Completer: model("", "A/RES/78/220 requests assistance."),
		replies: []llm.ToolResponse{
			toolCall("c1", "get_related_documents", `{"symbol":"A/RES/78/220"}`),
			toolCall("c2", "answer_with_evidence", `{"ready":true}`),
		},
	}
	srv, ts := newTestServer(t, m)

	code, body := do(t, http.MethodPost, ts.URL+"/api/ask", `{"question":"What led to A/RES/78/220?","rag_type":"multistep"}`)
	require.Equal(t, http.StatusOK, code, body)
	id := body["conversation_id"].(string)
	assert.Equal(t, "multistep", body["rag_type"])
	assert.Equal(t, float64(1), body["turn_number"])
	assert.Equal(t, "A/RES/78/220 requests assistance.", body["answer"])
	steps := body["steps"].([]any)
	require.Len(t, steps, 1)
	assert.Equal(t, "get_related_documents", steps[0].(map[string]any)["tool"])
	assert.Contains(t, body["sources"], "A/RES/78/220")

	code, body = do(t, http.MethodPost, ts.URL+"/api/ask", `{"question":"Follow up","conversation_id":"`+id+`","rag_type":"simple"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "is multistep")

	m.replies = []llm.ToolResponse{toolCall("c3", "answer_with_evidence", `{"ready":true}`)}
	code, body = do(t, http.MethodPost, ts.URL+"/api/ask", `{"question":"Follow up","conversation_id":"`+id+`"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, float64(2), body["turn_number"])

	// the follow up carries the first exchange: question, call, result, call, result
	require.Len(t, m.reqs, 3)
	assert.Len(t, m.reqs[2].Turns, 5)
	assert.Equal(t, "Follow up", m.reqs[2].Turns[4].Text)

	conv, err := srv.Conversations().Get(id)
	require.NoError(t, err)
	assert.Equal(t, 2, conv.TotalTurns)
	assert.Len(t, conv.MultistepInput, 7)
	assert.Len(t, conv.AccumulatedEvidence["get_related_documents"], 1)
	assert.Equal(t, []string{"A/RES/78/220"}, conv.ActiveSymbols)

	code, _ = do(t, http.MethodPost, ts.URL+"/api/ask", `{"question":"q","rag_type":"agentic"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSummarize(t *testing.T) {
	_, ts := newTestServer(t, model("", "It requests assistance."))

	code, body := do(t, http.MethodPost, ts.URL+"/api/summarize", `{"question":"Summarize","sql":"SELECT body_text FROM documents"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "It requests assistance.", body["summary"])
}

func TestNoModelConfigured(t *testing.T) {
	_, ts := newTestServer(t, nil)

	code, body := do(t, http.MethodPost, ts.URL+"/api/ask", `{"question":"anything"}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "no language model configured", body["error"])
}

func TestSearch(t *testing.T) {
	_, ts := newTestServer(t, nil)

	code, body := do(t, http.MethodGet, ts.URL+"/api/search?q=assistance", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["total"])

	code, _ = do(t, http.MethodGet, ts.URL+"/api/search", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, http.MethodGet, ts.URL+"/api/search?q=boom", "")
	assert.Equal(t, http.StatusBadGateway, code)
}
