package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/carlohamalainen/un-ga-documents-go/llm"
	"github.com/carlohamalainen/un-ga-documents-go/store"
)

const (
	DefaultMaxSteps = 6

	toolSQL        = "execute_sql_query"
	toolRelated    = "get_related_documents"
	toolVotes      = "get_votes"
	toolUtterances = "get_utterances"
	toolAnswer     = "answer_with_evidence"

	toolMaxRows        = 50
	utteranceExcerpt   = 500
	multistepMaxTokens = 2048
)

// ToolStore backs the multistep tools.
type ToolStore interface {
	Querier
	RelatedDocuments(ctx context.Context, symbol string) (*store.Related, error)
	Votes(ctx context.Context, symbol, voteType string) (map[string][]string, error)
	MeetingUtterances(ctx context.Context, meetings, countries []string) ([]store.MeetingUtterance, error)
}

// Orchestrator answers questions that need several lookups. The model picks
// tools until it calls answer_with_evidence, stops calling tools or runs out
// of steps; the gathered evidence is then answered by Assistant.
type Orchestrator struct {
	LLM       llm.ToolCaller
	DB        ToolStore
	Assistant *Assistant
	Driver    string
	MaxSteps  int
}

func NewOrchestrator(tc llm.ToolCaller, c llm.Completer, s *store.Store) *Orchestrator {
	return &Orchestrator{
		LLM:       tc,
		DB:        s,
		Assistant: &Assistant{LLM: c, Texts: s},
		Driver:    s.Driver(),
		MaxSteps:  DefaultMaxSteps,
	}
}

type Step struct {
	Tool          string          `json:"tool"`
	Arguments     json.RawMessage `json:"arguments"`
	Result        any             `json:"result"`
	ExecutionTime float64         `json:"execution_time"`
}

type MultistepResult struct {
	Answer
	Steps    []Step `json:"steps"`
	RowCount int    `json:"row_count"`

	// Transcript is the history passed in plus this question's exchange.
	Transcript []llm.Turn `json:"-"`
	// Evidence holds this question's tool results keyed by tool name.
	Evidence map[string][]any `json:"-"`
}

type toolError struct {
	Error string `json:"error"`
}

type votesResult struct {
	Symbol         string              `json:"symbol"`
	Votes          map[string][]string `json:"votes"`
	TotalCountries int                 `json:"total_countries"`
}

type toolUtterance struct {
	Meeting            string `json:"meeting"`
	SpeakerAffiliation string `json:"speaker_affiliation,omitempty"`
	SpeakerName        string `json:"speaker_name,omitempty"`
	AgendaItem         string `json:"agenda_item,omitempty"`
	Text               string `json:"text"`
	FullText           string `json:"-"`
}

type utterancesResult struct {
	Utterances []toolUtterance `json:"utterances"`
	Count      int             `json:"count"`
}

var multistepTools = []llm.Tool{
	{
		Name:        toolSQL,
		Description: "Run a read-only SQL query (SELECT, WITH or EXPLAIN) against the documents database. Use it for counts, listings and anything the other tools do not cover.",
		Properties: map[string]any{
			"query": map[string]any{"type": "string", "description": "The SQL statement"},
		},
		Required: []string{"query"},
	},
	{
		Name:        toolRelated,
		Description: "Get all documents related to a resolution (drafts, meetings, committee reports, agenda items) by traversing document relationships. Use this to find meetings where a resolution was discussed.",
		Properties: map[string]any{
			"symbol": map[string]any{"type": "string", "description": "Document symbol with slashes, e.g. 'A/RES/78/220' or 'A/78/L.2'"},
		},
		Required: []string{"symbol"},
	},
	{
		Name:        toolVotes,
		Description: "Get voting records showing which countries voted for, against, or abstained on a resolution. Votes are grouped by type: 'in_favour', 'against', 'abstaining'.",
		Properties: map[string]any{
			"symbol": map[string]any{"type": "string", "description": "Resolution symbol with slashes, e.g. 'A/RES/78/220'"},
			"vote_type": map[string]any{
				"type":        "string",
				"enum":        []string{store.InFavour, store.Against, store.Abstaining},
				"description": "Optional filter. Use exact values: 'in_favour' (not 'yes'), 'against' (not 'no'), 'abstaining'",
			},
		},
		Required: []string{"symbol"},
	},
	{
		Name:        toolUtterances,
		Description: "Get statements made in UN meetings, optionally only those of some countries. Returns speaker, text and agenda item.",
		Properties: map[string]any{
			"meeting_symbols": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Meeting symbols with slashes, e.g. ['A/78/PV.80', 'A/78/PV.16']",
			},
			"speaker_countries": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Optional country names to filter speakers by, e.g. ['France', 'United States']",
			},
		},
		Required: []string{"meeting_symbols"},
	},
	{
		Name:        toolAnswer,
		Description: "Call this when you have gathered enough evidence to answer the question.",
		Properties: map[string]any{
			"ready": map[string]any{"type": "boolean", "description": "Set to true when ready to answer"},
		},
		Required: []string{"ready"},
	},
}

// MultistepSystemPrompt tells the model how to use the tools.
func MultistepSystemPrompt(driver string) string {
	return `You are a UN documents research assistant with access to tools.

Available tools:
- get_related_documents: Find related documents (drafts, meetings, committee reports, agenda items) for a resolution
- get_votes: Get voting records showing which countries voted how
- get_utterances: Get statements made in meetings (can filter by country)
- execute_sql_query: Run a read-only SQL query for anything else
- answer_with_evidence: Call when you have enough evidence to answer

Guidelines:
1. For simple questions, use one tool
2. For complex questions, call tools sequentially to gather evidence
3. When you have enough evidence, call answer_with_evidence
4. Don't gather irrelevant information

Examples:

Q: "Which countries voted against A/RES/78/220?"
-> get_votes(symbol="A/RES/78/220", vote_type="against")
-> answer_with_evidence(ready=true)

Q: "Why did countries vote against A/RES/78/220?"
-> get_votes(symbol="A/RES/78/220", vote_type="against")
-> get_related_documents(symbol="A/RES/78/220")
-> get_utterances(meeting_symbols=[meetings from step 2], speaker_countries=[countries from step 1])
-> answer_with_evidence(ready=true)

` + SchemaDescription(driver)
}

// Answer runs the tool loop for question. history is the transcript of
// earlier turns of the same conversation and is not modified.
func (o *Orchestrator) Answer(ctx context.Context, question string, history []llm.Turn) (MultistepResult, error) {
	out := MultistepResult{Evidence: map[string][]any{}, Steps: []Step{}}

	question = strings.TrimSpace(question)
	if question == "" {
		return out, errors.New("empty question")
	}

	turns := slices.Clone(history)
	if n := len(turns); n > 0 && turns[n-1].Role == llm.RoleUser && turns[n-1].Text == "" {
		// the previous exchange ended on tool results
		turns[n-1].Text = question
	} else {
		turns = append(turns, llm.Turn{Role: llm.RoleUser, Text: question})
	}

	maxSteps := o.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	ready := false
	for step := 1; step <= maxSteps && !ready; step++ {
		slog.Info("multistep", "step", step, "max_steps", maxSteps)

		resp, err := o.LLM.CompleteTools(ctx, llm.ToolRequest{
			System:    MultistepSystemPrompt(o.Driver),
			Turns:     turns,
			Tools:     multistepTools,
			MaxTokens: multistepMaxTokens,
		})
		if err != nil {
			return out, fmt.Errorf("tool selection failed at step %d: %w", step, err)
		}
		if resp.Text == "" && len(resp.ToolCalls) == 0 {
			slog.Info("empty model reply, stopping")
			break
		}
		turns = append(turns, resp.Turn())
		if len(resp.ToolCalls) == 0 {
			slog.Info("no tool call, stopping")
			break
		}

		results := make([]llm.ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			if call.Name == toolAnswer {
				ready = true
				results = append(results, llm.ToolResult{CallID: call.ID, Content: `{"ready":true}`})
				continue
			}

			start := time.Now()
			res, err := o.run(ctx, call)
			elapsed := time.Since(start).Seconds()
			if err != nil {
				slog.Warn("tool failed", "tool", call.Name, "error", err, "seconds", elapsed)
				res = toolError{Error: err.Error()}
			} else {
				slog.Info("tool executed", "tool", call.Name, "seconds", elapsed)
			}

			content, merr := json.Marshal(res)
			if merr != nil {
				content = []byte(fmt.Sprintf(`{"error":%q}`, merr.Error()))
			}
			results = append(results, llm.ToolResult{CallID: call.ID, Content: string(content), IsError: err != nil})
			out.Steps = append(out.Steps, Step{Tool: call.Name, Arguments: call.Input, Result: res, ExecutionTime: elapsed})
			out.Evidence[call.Name] = append(out.Evidence[call.Name], res)
		}
		turns = append(turns, llm.Turn{Role: llm.RoleUser, ToolResults: results})
	}
	out.Transcript = turns

	res := EvidenceResult(out.Evidence)
	out.RowCount = res.RowCount
	slog.Info("synthesizing multistep answer", "steps", len(out.Steps), "rows", res.RowCount)

	ans, err := o.Assistant.Answer(ctx, res, question, "")
	if err != nil {
		return out, err
	}
	out.Answer = ans
	return out, nil
}

func decodeArgs(call llm.ToolCall, v any) error {
	if len(call.Input) == 0 {
		return nil
	}
	if err := json.Unmarshal(call.Input, v); err != nil {
		return fmt.Errorf("invalid arguments for %s: %w", call.Name, err)
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, call llm.ToolCall) (any, error) {
	switch call.Name {
	case toolSQL:
		var args struct {
			Query string `json:"query"`
		}
		if err := decodeArgs(call, &args); err != nil {
			return nil, err
		}
		return o.DB.Query(ctx, strings.TrimSpace(args.Query), toolMaxRows)

	case toolRelated:
		var args struct {
			Symbol string `json:"symbol"`
		}
		if err := decodeArgs(call, &args); err != nil {
			return nil, err
		}
		return o.DB.RelatedDocuments(ctx, strings.TrimSpace(args.Symbol))

	case toolVotes:
		var args struct {
			Symbol   string `json:"symbol"`
			VoteType string `json:"vote_type"`
		}
		if err := decodeArgs(call, &args); err != nil {
			return nil, err
		}
		votes, err := o.DB.Votes(ctx, strings.TrimSpace(args.Symbol), args.VoteType)
		if err != nil {
			return nil, err
		}
		out := votesResult{Symbol: strings.TrimSpace(args.Symbol), Votes: votes}
		for _, names := range votes {
			out.TotalCountries += len(names)
		}
		return out, nil

	case toolUtterances:
		var args struct {
			MeetingSymbols   []string `json:"meeting_symbols"`
			SpeakerCountries []string `json:"speaker_countries"`
		}
		if err := decodeArgs(call, &args); err != nil {
			return nil, err
		}
		if len(args.MeetingSymbols) == 0 {
			return nil, errors.New("meeting_symbols is required")
		}
		us, err := o.DB.MeetingUtterances(ctx, args.MeetingSymbols, args.SpeakerCountries)
		if err != nil {
			return nil, err
		}
		out := utterancesResult{Utterances: make([]toolUtterance, len(us)), Count: len(us)}
		for i, u := range us {
			excerpt := []rune(u.Text)
			if len(excerpt) > utteranceExcerpt {
				excerpt = excerpt[:utteranceExcerpt]
			}
			out.Utterances[i] = toolUtterance{
				Meeting:            u.MeetingSymbol,
				SpeakerAffiliation: u.SpeakerAffiliation,
				SpeakerName:        u.SpeakerName,
				AgendaItem:         u.AgendaItemNumber,
				Text:               string(excerpt),
				FullText:           u.Text,
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown tool %q", call.Name)
}

// EvidenceResult flattens tool results into rows that ExtractEvidence
// understands. Failed calls are skipped.
func EvidenceResult(evidence map[string][]any) *store.Result {
	res := &store.Result{Rows: []map[string]store.Cell{}}
	seen := map[string]bool{}
	add := func(r map[string]any) {
		cells := make(map[string]store.Cell, len(r))
		for k, v := range r {
			cells[k] = store.NewCell(v)
		}
		res.Rows = append(res.Rows, cells)
	}

	for _, v := range evidence[toolSQL] {
		if r, ok := v.(*store.Result); ok && r != nil {
			res.Rows = append(res.Rows, r.Rows...)
		}
	}

	for _, v := range evidence[toolVotes] {
		vr, ok := v.(votesResult)
		if !ok {
			continue
		}
		for _, vt := range []string{store.InFavour, store.Against, store.Abstaining} {
			for _, name := range vr.Votes[vt] {
				add(map[string]any{"symbol": vr.Symbol, "vote_type": vt, "actor_name": name, "vote_context": "plenary"})
			}
		}
	}

	for _, v := range evidence[toolUtterances] {
		ur, ok := v.(utterancesResult)
		if !ok {
			continue
		}
		for _, u := range ur.Utterances {
			r := map[string]any{"text": u.FullText, "meeting_symbol": u.Meeting}
			if u.SpeakerAffiliation != "" {
				r["speaker_affiliation"] = u.SpeakerAffiliation
			}
			if u.SpeakerName != "" {
				r["speaker_name"] = u.SpeakerName
			}
			if u.AgendaItem != "" {
				r["agenda_item_number"] = u.AgendaItem
			}
			add(r)
		}
	}

	for _, v := range evidence[toolRelated] {
		rel, ok := v.(*store.Related)
		if !ok || rel == nil {
			continue
		}
		meta, _ := json.Marshal(map[string][]string{
			"meetings":          rel.Meetings,
			"drafts":            rel.Drafts,
			"committee_reports": rel.CommitteeReports,
			"agenda_items":      rel.AgendaItems,
		})
		add(map[string]any{"symbol": rel.Symbol, "title": rel.Title, "doc_type": "resolution", "doc_metadata": string(meta)})

		for _, link := range []struct {
			symbols []string
			docType string
			rel     string
		}{
			{rel.Meetings, "meeting", "meeting_record_for"},
			{rel.Drafts, "draft", "draft_of"},
			{rel.CommitteeReports, "committee_report", "committee_report_for"},
			{rel.AgendaItems, "agenda_item", "agenda_item_for"},
		} {
			for _, sym := range link.symbols {
				add(map[string]any{"symbol": sym, "doc_type": link.docType, "relationship_type": link.rel, "target_symbol": rel.Symbol})
			}
		}
	}

	for _, r := range res.Rows {
		for col := range r {
			if !seen[col] {
				seen[col] = true
				res.Columns = append(res.Columns, col)
			}
		}
	}
	slices.Sort(res.Columns)
	res.RowCount = len(res.Rows)
	return res
}
