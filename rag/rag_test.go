package rag

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlohamalainen/un-ga-documents-go/llm"
	"github.com/carlohamalainen/un-ga-documents-go/store"
)

type recorder struct {
	reqs    []llm.Request
	replies []string
}

func (r *recorder) Complete(_ context.Context, req llm.Request) (string, error) {
	r.reqs = append(r.reqs, req)
	if len(r.replies) == 0 {
		return "", errors.New("no reply queued")
	}
	out := r.replies[0]
	r.replies = r.replies[1:]
	return out, nil
}

type fakeTexts struct {
	bodies     map[string]string
	utterances map[int64]string
	asked      []string
}

func (f *fakeTexts) BodyText(_ context.Context, symbols []string) (map[string]string, error) {
	f.asked = append(f.asked, symbols...)
	out := map[string]string{}
	for _, s := range symbols {
		if b, ok := f.bodies[s]; ok {
			out[s] = b
		}
	}
	return out, nil
}

func (f *fakeTexts) UtteranceText(_ context.Context, ids []int64) (map[int64]string, error) {
	out := map[int64]string{}
	for _, id := range ids {
		if t, ok := f.utterances[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

func result(rows ...map[string]string) *store.Result {
	res := &store.Result{}
	for _, r := range rows {
		cells := map[string]store.Cell{}
		for k, v := range r {
			cells[k] = store.NewCell(v)
		}
		res.Rows = append(res.Rows, cells)
	}
	res.RowCount = len(res.Rows)
	return res
}

func TestStripSQLFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```sql\nSELECT 1\n```", "SELECT 1"},
		{"Here you go:\n\n```\nSELECT 2;\n```\n\nDone.", "SELECT 2;"},
		{"  SELECT 3  ", "SELECT 3"},
		{"```sql SELECT 4```", "SELECT 4"},
		{"```sql\nSELECT *\nFROM documents\n```", "SELECT *\nFROM documents"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripSQLFences(tt.in), tt.in)
	}
}

func TestSystemPromptDialect(t *testing.T) {
	pg := SystemPrompt(store.DriverPostgres)
	assert.Contains(t, pg, "You are a PostgreSQL expert")
	assert.Contains(t, pg, "3. Use ILIKE for case-insensitive text searches")
	assert.Contains(t, pg, "13. Avoid selecting the large doc_metadata")

	lite := SystemPrompt(store.DriverSQLite)
	assert.Contains(t, lite, "You are a SQLite expert")
	assert.Contains(t, lite, "json_extract")
	assert.NotContains(t, lite, "ILIKE")

	assert.Contains(t, SchemaDescription(store.DriverPostgres), "PostgreSQL database schema")
	assert.Contains(t, SchemaDescription("unknown"), "SQLite database schema")
}

func TestGenerateSQL(t *testing.T) {
	rec := &recorder{replies: []string{"```sql\nSELECT COUNT(*) FROM documents WHERE doc_type = 'resolution'\n```"}}
	g := &SQLGenerator{LLM: rec, Driver: store.DriverSQLite}

	sql, err := g.GenerateSQL(context.Background(), "How many resolutions are there?")
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM documents WHERE doc_type = 'resolution'", sql)

	require.Len(t, rec.reqs, 1)
	assert.Equal(t, 0.3, rec.reqs[0].Temperature)
	assert.Equal(t, SystemPrompt(store.DriverSQLite), rec.reqs[0].System)
	assert.True(t, strings.HasSuffix(rec.reqs[0].Prompt, "Convert this question to SQL: How many resolutions are there?"))

	_, err = g.GenerateSQL(context.Background(), "  ")
	assert.Error(t, err)

	rec.replies = []string{"```\n```"}
	_, err = g.GenerateSQL(context.Background(), "anything")
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestExtractEvidence(t *testing.T) {
	res := result(
		map[string]string{"symbol": "A/RES/78/220", "title": "Assistance", "date": "2023-12-19", "doc_metadata": `{"vote_tallies":{"in_favour":151}}`},
		map[string]string{"name": "KENYA", "vote_type": "in_favour", "vote_context": "plenary"},
		map[string]string{"id": "17", "text": "We support it.", "speaker_affiliation": "Kenya", "meeting_id": "4", "agenda_item_number": "35"},
		map[string]string{"name": "FRANCE", "actor_type": "country"},
		map[string]string{"relationship_type": "draft_of", "source_symbol": "A/78/L.45", "target_symbol": "A/RES/78/220"},
		map[string]string{"count": ""},
	)

	ev := ExtractEvidence(res, 0)
	require.Len(t, ev, 5)

	assert.Equal(t, EvidenceDocument, ev[0].Type)
	assert.Equal(t, "A/RES/78/220", ev[0].Symbol)
	assert.Equal(t, "2023-12-19", ev[0].Data["date"])
	assert.Equal(t, map[string]any{"vote_tallies": map[string]any{"in_favour": float64(151)}}, ev[0].Data["metadata"])

	assert.Equal(t, EvidenceVote, ev[1].Type)
	assert.Equal(t, "KENYA", ev[1].Data["actor"])

	assert.Equal(t, EvidenceUtterance, ev[2].Type)
	assert.Equal(t, int64(17), ev[2].Data["id"])
	assert.Equal(t, "4", ev[2].Data["meeting"])
	assert.Equal(t, "35", ev[2].Data["agenda_item"])
	assert.Equal(t, "We support it.", ev[2].Text)

	assert.Equal(t, EvidenceActor, ev[3].Type)
	assert.Equal(t, "FRANCE", ev[3].Data["name"])

	assert.Equal(t, EvidenceRelationship, ev[4].Type)
	assert.Equal(t, "A/78/L.45", ev[4].Data["source"])

	assert.Len(t, ExtractEvidence(res, 2), 2)
	assert.Empty(t, ExtractEvidence(nil, 0))
}

func TestFormatEvidence(t *testing.T) {
	long := strings.Repeat("é", 1000) + strings.Repeat("x", 1000)
	out := FormatEvidence([]Evidence{
		{Type: EvidenceDocument, Symbol: "A/RES/78/220", Data: map[string]any{"doc_type": "resolution", "session": "78"}, Text: long},
		{Type: EvidenceVote, Symbol: "", Data: map[string]any{"actor": "KENYA", "vote_type": "in_favour"}},
		{Type: EvidenceUtterance, Data: map[string]any{"speaker_affiliation": "Kenya"}, Text: strings.Repeat("y", 1001)},
		{Type: EvidenceUnknown, Data: map[string]any{"x": 1}},
	})

	parts := strings.Split(out, "\n\n---\n\n")
	require.Len(t, parts, 3)
	assert.Equal(t, "Document: A/RES/78/220 | Type: resolution | Session: 78 | Text: "+
		strings.Repeat("é", 1000)+"... [truncated] ..."+strings.Repeat("x", 500), parts[0])
	assert.Equal(t, "Vote on Unknown | Actor: KENYA | Vote: in_favour", parts[1])
	assert.Equal(t, "Statement | Speaker: Kenya | Text: '"+strings.Repeat("y", 800)+"... [truncated]'", parts[2])

	assert.Equal(t, "No evidence found.", FormatEvidence(nil))
	assert.Equal(t, "Statement | Text: 'short'", FormatEvidence([]Evidence{{Type: EvidenceUtterance, Data: map[string]any{}, Text: "short"}}))
}

func TestAnswerWithoutEvidence(t *testing.T) {
	rec := &recorder{}
	a := &Assistant{LLM: rec}

	ans, err := a.Answer(context.Background(), result(), "Who voted?", "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, InsufficientData, ans.Answer)
	assert.Empty(t, ans.Evidence)
	assert.Empty(t, ans.Sources)
	assert.Empty(t, rec.reqs)
}

func TestAnswerFetchesMissingText(t *testing.T) {
	rec := &recorder{replies: []string{"  According to A/RES/78/220, assistance was requested.  "}}
	texts := &fakeTexts{
		bodies:     map[string]string{"A/RES/78/220": strings.Repeat("b", 600)},
		utterances: map[int64]string{17: "Kenya supports the draft."},
	}
	a := &Assistant{LLM: rec, Texts: texts}

	res := result(
		map[string]string{"symbol": "A/RES/78/220", "title": "Assistance"},
		map[string]string{"id": "17", "text": "", "speaker_name": "Kariuki"},
		map[string]string{"relationship_type": "draft_of", "source_symbol": "A/78/L.45", "target_symbol": "A/RES/78/220"},
	)
	ans, err := a.Answer(context.Background(), res, "What was requested?", "SELECT symbol, title FROM documents")
	require.NoError(t, err)

	assert.Equal(t, "According to A/RES/78/220, assistance was requested.", ans.Answer)
	assert.Equal(t, []string{"A/RES/78/220"}, texts.asked)
	assert.Equal(t, []string{"A/RES/78/220", "A/78/L.45"}, ans.Sources)

	require.Len(t, ans.Evidence, 3)
	assert.Len(t, []rune(ans.Evidence[0].TextExcerpt), 500)
	assert.Equal(t, "Kenya supports the draft.", ans.Evidence[1].TextExcerpt)

	require.Len(t, rec.reqs, 1)
	p := rec.reqs[0].Prompt
	assert.Contains(t, p, "Question: What was requested?\n\nSQL Query used: SELECT symbol, title FROM documents\n")
	assert.Contains(t, p, "Statement | Name: Kariuki | Text: 'Kenya supports the draft.'")
	assert.True(t, strings.HasSuffix(p, "Answer:"))
}

func TestSummarize(t *testing.T) {
	rec := &recorder{replies: []string{"Summary text."}}
	a := &Assistant{LLM: rec}

	res := result(
		map[string]string{"body_text": "Body one", "text": "ignored", "title": "T1"},
		map[string]string{"text": "Statement two"},
		map[string]string{"doc_metadata": `{"text":"Metadata three"}`, "title": "T3"},
		map[string]string{"title": "Title four"},
		map[string]string{"symbol": "A/1"},
		map[string]string{"title": "Title six is past the limit"},
	)
	out, err := a.Summarize(context.Background(), res, "What happened?")
	require.NoError(t, err)
	assert.Equal(t, "Summary text.", out)

	p := rec.reqs[0].Prompt
	assert.Contains(t, p, "Original question: What happened?")
	assert.Contains(t, p, "Result 1:\nBody one\n\n---\n\nResult 2:\nStatement two\n\n---\n\nResult 3:\nMetadata three\n\n---\n\nResult 4:\nTitle four\n\nPlease")
	assert.NotContains(t, p, "Title six")

	out, err = a.Summarize(context.Background(), result(map[string]string{"symbol": "A/1"}), "q")
	require.NoError(t, err)
	assert.Equal(t, NoTextToSummarize, out)
}

func TestPipelineAsk(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "unga.db"))
	require.NoError(t, err)
	defer s.Close()

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

	c := llm.CompleterFunc(func(_ context.Context, req llm.Request) (string, error) {
		if req.System != "" {
			return "```sql\nSELECT symbol, title FROM documents WHERE session = 78\n```", nil
		}
		if !strings.Contains(req.Prompt, "Text: The General Assembly requests assistance.") {
			return "", errors.New("body text missing from prompt")
		}
		return "A/RES/78/220 requests assistance.", nil
	})

	p := NewPipeline(c, s)
	out, err := p.Ask(ctx, "What does resolution 78/220 request?")
	require.NoError(t, err)
	assert.Equal(t, "SELECT symbol, title FROM documents WHERE session = 78", out.SQL)
	assert.Equal(t, 1, out.Results.RowCount)
	assert.Equal(t, "A/RES/78/220 requests assistance.", out.Answer.Answer)
	assert.Equal(t, []string{"A/RES/78/220"}, out.Sources)

	p.Generator.LLM = llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		return "DELETE FROM documents", nil
	})
	out, err = p.Ask(ctx, "Delete everything")
	assert.ErrorIs(t, err, store.ErrQueryNotAllowed)
	assert.Equal(t, "DELETE FROM documents", out.SQL)
}

func TestConversationStore(t *testing.T) {
	cs := NewConversationStore()
	now := time.Date(2024, 1, 9, 10, 0, 0, 0, time.UTC)
	cs.now = func() time.Time { return now }

	_, err := cs.Create("agentic")
	assert.ErrorIs(t, err, ErrUnknownRAGType)

	simple, err := cs.Create(RAGSimple)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(simple.ID, "conv_"))
	assert.Len(t, simple.ID, len("conv_")+32)

	require.NoError(t, cs.SaveSimpleTurn(simple.ID, SimpleTurn{Question: "q1", Answer: "a1"}, []string{"A/RES/78/220", "A/78/L.45"}))
	require.NoError(t, cs.SaveSimpleTurn(simple.ID, SimpleTurn{Question: "q2"}, []string{"A/RES/78/220"}))

	got, err := cs.Get(simple.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalTurns)
	assert.Equal(t, []string{"A/RES/78/220", "A/78/L.45"}, got.ActiveSymbols)
	require.Len(t, got.SimpleTurns, 2)
	assert.Equal(t, 2, got.SimpleTurns[1].TurnNumber)
	assert.Equal(t, now, got.SimpleTurns[1].Timestamp)

	err = cs.SaveMultistepState(simple.ID, nil, nil, nil)
	assert.ErrorIs(t, err, ErrNotMultistep)

	now = now.Add(time.Hour)
	multi, err := cs.Create(RAGMultistep)
	require.NoError(t, err)
	require.NoError(t, cs.SaveMultistepState(multi.ID,
		[]llm.Turn{{Role: llm.RoleUser, Text: "q"}},
		map[string][]any{"documents": {"A/RES/78/220"}},
		[]string{"A/RES/78/220"}))

	_, err = cs.Get("conv_missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.ErrorIs(t, cs.SaveSimpleTurn("conv_missing", SimpleTurn{}, nil), ErrConversationNotFound)

	st := cs.Stats()
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.Simple)
	assert.Equal(t, 1, st.Multistep)
	assert.Equal(t, 1.5, st.AverageTurns)
	assert.Equal(t, now.Add(-time.Hour), *st.Oldest)
	assert.Equal(t, now, *st.Newest)

	// the simple conversation was last touched an hour before the multistep one
	now = now.Add(24*time.Hour - time.Minute)
	assert.Equal(t, 1, cs.Cleanup(0))
	_, err = cs.Get(simple.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	assert.Equal(t, 1, cs.ClearAll())
	assert.Equal(t, ConversationStats{}, cs.Stats())
}
