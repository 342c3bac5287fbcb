package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/carlohamalainen/un-ga-documents-go/llm"
	"github.com/carlohamalainen/un-ga-documents-go/store"
)

const (
	InsufficientData  = "Insufficient data: No relevant information found in the database to answer this question."
	NoTextToSummarize = "No results with text content found to summarize."

	MaxSummaryResults = 5
	excerptRunes      = 500
)

// TextSource supplies text the query did not select.
type TextSource interface {
	BodyText(ctx context.Context, symbols []string) (map[string]string, error)
	UtteranceText(ctx context.Context, ids []int64) (map[int64]string, error)
}

// Assistant answers questions from query results.
type Assistant struct {
	LLM   llm.Completer
	Texts TextSource
}

// EvidenceItem is the evidence returned to callers, with a short excerpt
// in place of the full text.
type EvidenceItem struct {
	Type        string         `json:"type"`
	Symbol      string         `json:"symbol,omitempty"`
	Data        map[string]any `json:"data"`
	TextExcerpt string         `json:"text_excerpt,omitempty"`
}

type Answer struct {
	Answer   string         `json:"answer"`
	Evidence []EvidenceItem `json:"evidence"`
	Sources  []string       `json:"sources"`
}

// fillMissingText fetches document bodies and statement texts that the
// query left out.
func (a *Assistant) fillMissingText(ctx context.Context, evidence []Evidence) error {
	if a.Texts == nil {
		return nil
	}

	var (
		symbols []string
		ids     []int64
	)
	for _, ev := range evidence {
		if ev.Type == EvidenceDocument && ev.Symbol != "" && ev.Text == "" {
			symbols = append(symbols, ev.Symbol)
		}
		if id, ok := ev.Data["id"].(int64); ok && ev.Type == EvidenceUtterance {
			ids = append(ids, id)
		}
	}
	if len(symbols) == 0 && len(ids) == 0 {
		return nil
	}

	bodies, err := a.Texts.BodyText(ctx, symbols)
	if err != nil {
		return err
	}
	texts, err := a.Texts.UtteranceText(ctx, ids)
	if err != nil {
		return err
	}
	slog.Info("fetched missing text", "documents", len(bodies), "utterances", len(texts))

	for i := range evidence {
		ev := &evidence[i]
		if body, ok := bodies[ev.Symbol]; ok && ev.Symbol != "" {
			ev.Text = body
		}
		if id, ok := ev.Data["id"].(int64); ok && ev.Type == EvidenceUtterance {
			if t, ok := texts[id]; ok {
				ev.Text = t
			}
		}
	}
	return nil
}

// sources lists evidence symbols and relationship endpoints in first-seen
// order.
func sources(evidence []Evidence) []string {
	seen := map[string]bool{}
	out := []string{}
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, ev := range evidence {
		add(ev.Symbol)
		if ev.Type == EvidenceRelationship {
			add(dataString(ev.Data, "source"))
			add(dataString(ev.Data, "target"))
		}
	}
	return out
}

func answerPrompt(question, sql, evidence string) string {
	var sqlSection string
	if sql != "" {
		sqlSection = "\nSQL Query used: " + sql + "\n"
	}
	return `You are a research assistant analyzing UN General Assembly documents and meeting records.

STRICT RULES:
1. Base answers ONLY on the provided database results. Do not use external knowledge.
2. Cite sources using document symbols (e.g., "According to A/RES/78/220..." or "As stated in A/RES/78/220...")
3. Quote exact text when making specific claims about document content.
4. If data is insufficient to answer the question, explicitly state what's missing.
5. Do NOT speculate, infer beyond what's stated, or use external knowledge.
6. Distinguish between:
   - What the data explicitly states
   - What can be reasonably inferred from the data
   - What is unknown/not in the data

Question: ` + question + `
` + sqlSection + `
Retrieved Data:
` + evidence + `

Provide a direct answer to the question, citing specific document symbols and quoting relevant passages where appropriate. If the data cannot fully answer the question, explain what information is available and what is missing.

Answer:`
}

// Answer answers question from the rows of res and nothing else. sql is
// shown to the model when not empty.
func (a *Assistant) Answer(ctx context.Context, res *store.Result, question, sql string) (Answer, error) {
	evidence := ExtractEvidence(res, MaxEvidence)
	slog.Info("extracted evidence", "items", len(evidence))

	if err := a.fillMissingText(ctx, evidence); err != nil {
		return Answer{}, fmt.Errorf("failed to fetch missing text: %w", err)
	}

	if len(evidence) == 0 {
		return Answer{Answer: InsufficientData, Evidence: []EvidenceItem{}, Sources: []string{}}, nil
	}

	out, err := a.LLM.Complete(ctx, llm.Request{
		Prompt:    answerPrompt(question, sql, FormatEvidence(evidence)),
		MaxTokens: 2048,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("failed to generate answer: %w", err)
	}

	items := make([]EvidenceItem, len(evidence))
	for i, ev := range evidence {
		items[i] = EvidenceItem{Type: ev.Type, Symbol: ev.Symbol, Data: ev.Data}
		if ev.Text != "" {
			r := []rune(ev.Text)
			if len(r) > excerptRunes {
				r = r[:excerptRunes]
			}
			items[i].TextExcerpt = string(r)
		}
	}

	ans := Answer{Answer: strings.TrimSpace(out), Evidence: items, Sources: sources(evidence)}
	slog.Info("generated answer", "length", len(ans.Answer), "sources", len(ans.Sources))
	return ans, nil
}

// summaryTexts picks one text per row from the first MaxSummaryResults
// rows: body_text, then text, then doc_metadata.text, then title.
func summaryTexts(res *store.Result) []string {
	if res == nil {
		return nil
	}
	rows := res.Rows
	if len(rows) > MaxSummaryResults {
		rows = rows[:MaxSummaryResults]
	}

	var out []string
	for _, cells := range rows {
		r := row(cells)
		t := r.first("body_text", "text")
		if t == "" {
			var meta map[string]any
			if err := json.Unmarshal([]byte(r.get("doc_metadata")), &meta); err == nil {
				t, _ = meta["text"].(string)
			}
		}
		if t == "" {
			t = r.get("title")
		}
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Summarize condenses the text content of res with respect to question.
func (a *Assistant) Summarize(ctx context.Context, res *store.Result, question string) (string, error) {
	texts := summaryTexts(res)
	if len(texts) == 0 {
		slog.Warn("no text content to summarize")
		return NoTextToSummarize, nil
	}

	sections := make([]string, len(texts))
	for i, t := range texts {
		sections[i] = fmt.Sprintf("Result %d:\n%s", i+1, t)
	}

	prompt := `You are analyzing UN General Assembly documents and meeting records.

Original question: ` + question + `

The following text content was retrieved from the database query results. Please provide a concise summary that directly addresses the original question.

` + strings.Join(sections, "\n\n---\n\n") + `

Please provide a summary that:
1. Directly answers the original question
2. Highlights key points from the retrieved content
3. Is concise but informative (2-4 sentences)
4. Focuses on the most relevant information to the question

Summary:`

	out, err := a.LLM.Complete(ctx, llm.Request{Prompt: prompt, MaxTokens: 1024})
	if err != nil {
		return "", fmt.Errorf("failed to summarize results: %w", err)
	}
	return strings.TrimSpace(out), nil
}
