package rag

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/carlohamalainen/un-ga-documents-go/store"
)

const MaxEvidence = 20

// Evidence types.
const (
	EvidenceDocument     = "document"
	EvidenceVote         = "vote"
	EvidenceUtterance    = "utterance"
	EvidenceActor        = "actor"
	EvidenceRelationship = "relationship"
	EvidenceUnknown      = "unknown"
)

// Evidence is one result row classified by the columns it carries.
type Evidence struct {
	Type   string         `json:"type"`
	Symbol string         `json:"symbol,omitempty"`
	Data   map[string]any `json:"data"`

	// Text is the full document body or statement, before truncation.
	Text string `json:"-"`
}

// row gives column lookups over a result row. Only the full value of a
// cell is ever used.
type row map[string]store.Cell

func (r row) has(col string) bool {
	_, ok := r[col]
	return ok
}

func (r row) get(col string) string {
	return r[col].Full
}

// first returns the first non-empty value among cols.
func (r row) first(cols ...string) string {
	for _, c := range cols {
		if v := r.get(c); v != "" {
			return v
		}
	}
	return ""
}

// ExtractEvidence classifies at most max rows of res. A row with a symbol
// column is a document; otherwise vote columns make it a vote, a text
// column an utterance, actor_type an actor and relationship_type a
// relationship. Rows with nothing usable are dropped.
func ExtractEvidence(res *store.Result, max int) []Evidence {
	if res == nil || len(res.Rows) == 0 {
		return nil
	}
	if max <= 0 {
		max = MaxEvidence
	}

	rows := res.Rows
	if len(rows) > max {
		rows = rows[:max]
	}

	var out []Evidence
	for _, cells := range rows {
		r := row(cells)
		ev := Evidence{Type: EvidenceUnknown, Data: map[string]any{}}

		if r.has("symbol") {
			ev.Type = EvidenceDocument
			ev.Symbol = r.get("symbol")
			for _, col := range []string{"title", "date", "doc_type", "session"} {
				if v := r.get(col); v != "" {
					ev.Data[col] = v
				}
			}
			ev.Text = r.get("body_text")
		}

		if r.has("vote_type") || r.has("vote_context") {
			if ev.Type == EvidenceUnknown {
				ev.Type = EvidenceVote
			}
			for _, col := range []string{"vote_type", "vote_context"} {
				if r.has(col) {
					ev.Data[col] = r.get(col)
				}
			}
			if actor := r.first("name", "actor_name", "speaker_affiliation", "country"); actor != "" {
				ev.Data["actor"] = actor
			}
		}

		if r.has("text") && ev.Type != EvidenceDocument {
			if ev.Type == EvidenceUnknown {
				ev.Type = EvidenceUtterance
			}
			ev.Text = r.get("text")
			if id, err := strconv.ParseInt(r.get("id"), 10, 64); err == nil {
				ev.Data["id"] = id
			}
			for col, key := range map[string]string{
				"speaker_affiliation": "speaker_affiliation",
				"speaker_name":        "speaker_name",
				"agenda_item_number":  "agenda_item",
			} {
				if r.has(col) {
					ev.Data[key] = r.get(col)
				}
			}
			if m := r.first("meeting_id", "meeting_symbol"); m != "" {
				ev.Data["meeting"] = m
			}
		}

		if r.has("actor_type") && ev.Type == EvidenceUnknown {
			ev.Type = EvidenceActor
			for _, col := range []string{"name", "normalized_name", "actor_type"} {
				if r.has(col) {
					ev.Data[col] = r.get(col)
				}
			}
		}

		if r.has("relationship_type") {
			if ev.Type == EvidenceUnknown {
				ev.Type = EvidenceRelationship
			}
			ev.Data["relationship_type"] = r.get("relationship_type")
			if s := r.first("source_id", "source_symbol"); s != "" {
				ev.Data["source"] = s
			}
			if t := r.first("target_id", "target_symbol"); t != "" {
				ev.Data["target"] = t
			}
		}

		if s := r.get("doc_metadata"); s != "" {
			var meta map[string]any
			if err := json.Unmarshal([]byte(s), &meta); err == nil && meta != nil {
				ev.Data["metadata"] = meta
			}
		}

		if ev.Symbol != "" || ev.Text != "" || len(ev.Data) > 0 {
			out = append(out, ev)
		}
	}
	return out
}

// truncate cuts s to the first head runes, plus the last tail runes when
// tail > 0, once s is longer than limit runes.
func truncate(s string, limit, head, tail int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if tail == 0 {
		return string(r[:head]) + "... [truncated]"
	}
	return string(r[:head]) + "... [truncated] ..." + string(r[len(r)-tail:])
}

func dataString(data map[string]any, key string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// FormatEvidence renders evidence for the answer prompt.
func FormatEvidence(evidence []Evidence) string {
	var out []string
	for _, ev := range evidence {
		var parts []string
		add := func(label, key string) {
			if v := dataString(ev.Data, key); v != "" {
				parts = append(parts, label+": "+v)
			}
		}

		switch ev.Type {
		case EvidenceDocument:
			parts = append(parts, "Document: "+orUnknown(ev.Symbol))
			add("Type", "doc_type")
			add("Date", "date")
			add("Session", "session")
			add("Title", "title")
			// vote and relationship columns selected alongside a symbol
			add("Actor", "actor")
			add("Vote", "vote_type")
			add("Relationship", "relationship_type")
			add("Target", "target")
			if ev.Text != "" {
				parts = append(parts, "Text: "+truncate(ev.Text, 1500, 1000, 500))
			}
		case EvidenceVote:
			parts = append(parts, "Vote on "+orUnknown(ev.Symbol))
			add("Actor", "actor")
			add("Vote", "vote_type")
			add("Context", "vote_context")
		case EvidenceUtterance:
			parts = append(parts, "Statement")
			add("Meeting", "meeting")
			add("Speaker", "speaker_affiliation")
			add("Name", "speaker_name")
			add("Agenda Item", "agenda_item")
			if ev.Text != "" {
				parts = append(parts, "Text: '"+truncate(ev.Text, 1000, 800, 0)+"'")
			}
		case EvidenceRelationship:
			parts = append(parts, "Relationship: "+orUnknown(ev.Symbol))
			add("Type", "relationship_type")
			add("Source", "source")
			add("Target", "target")
		case EvidenceActor:
			parts = append(parts, "Actor: "+orUnknown(ev.Symbol))
			add("Name", "name")
			add("Type", "actor_type")
		default:
			continue
		}
		out = append(out, strings.Join(parts, " | "))
	}

	if len(out) == 0 {
		return "No evidence found."
	}
	return strings.Join(out, "\n\n---\n\n")
}
