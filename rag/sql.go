// Package rag answers natural language questions about the corpus: the
// question is turned into read-only SQL, the rows become evidence, and the
// model answers from that evidence only.
package rag

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/carlohamalainen/un-ga-documents-go/llm"
	"github.com/carlohamalainen/un-ga-documents-go/store"
)

const schemaTables = `Tables:
1. documents
   - id (integer, primary key)
   - symbol (text, unique) - e.g. "A/RES/78/220", "A/C.3/78/L.41"
   - doc_type (text, indexed) - 'resolution', 'draft', 'meeting', 'committee_meeting', 'committee_report', 'agenda_item'
   - session (integer, indexed) - e.g. 78
   - title (text) - document title
   - date (text, YYYY-MM-DD)
   - body_text (text) - full text from the PDFs (resolutions, drafts, committee reports, committee meetings); use for text search and summarization
   - doc_metadata (json) - flexible metadata; resolutions keep vote totals under "vote_tallies"
   - created_at (timestamp)

2. actors
   - id (integer, primary key)
   - name (text, unique) - country or organization name, usually upper case as in the voting records
   - actor_type (text) - 'country'
   - created_at (timestamp)

3. votes
   - id (integer, primary key)
   - document_id (integer, foreign key to documents.id, indexed)
   - actor_id (integer, foreign key to actors.id, indexed)
   - vote_type (text) - 'in_favour', 'against', 'abstaining'
   - vote_context (text) - 'plenary', 'committee'
   - created_at (timestamp)

4. document_relationships
   - id (integer, primary key)
   - source_id (integer, foreign key to documents.id, indexed)
   - target_id (integer, foreign key to documents.id, indexed)
   - relationship_type (text) - 'draft_of', 'committee_report_for', 'meeting_record_for', 'agenda_item_for'
     (the source is the draft, report, meeting or agenda item; the target is the resolution)
   - rel_metadata (json)
   - created_at (timestamp)

5. utterances
   - id (integer, primary key)
   - meeting_id (integer, foreign key to documents.id, indexed)
   - section_id (text) - e.g. "A/78/PV.80_section_11"
   - agenda_item_number (text, indexed) - e.g. "11", "20"
   - speaker_actor_id (integer, foreign key to actors.id, nullable)
   - speaker_name (text) - parsed name, e.g. "El-Sonni"
   - speaker_role (text) - e.g. "The President", "delegate"
   - speaker_raw (text) - speaker line as printed
   - speaker_affiliation (text) - country or organization
   - text (text) - statement content
   - word_count (integer)
   - position_in_meeting (integer)
   - position_in_section (integer)
   - utterance_metadata (json)
   - created_at (timestamp)

6. utterance_documents
   - id (integer, primary key)
   - utterance_id (integer, foreign key to utterances.id, indexed)
   - document_id (integer, foreign key to documents.id, indexed)
   - reference_type (text) - 'mentioned', 'voting_on'
   - context (text) - sentence where the document was mentioned
   - created_at (timestamp)

Common query patterns:
- Join documents with votes: JOIN votes ON votes.document_id = documents.id
- Join votes with actors: JOIN actors ON actors.id = votes.actor_id
- Join documents with relationships: JOIN document_relationships ON document_relationships.source_id = documents.id OR document_relationships.target_id = documents.id
- Join utterances with meetings: JOIN documents ON documents.id = utterances.meeting_id WHERE documents.doc_type = 'meeting'
- Join utterances with actors: JOIN actors ON actors.id = utterances.speaker_actor_id
`

type dialect struct {
	name  string
	like  string
	json  string
	notes string
}

var dialects = map[string]dialect{
	store.DriverPostgres: {
		name:  "PostgreSQL",
		like:  "ILIKE",
		json:  "use -> for objects and ->> for text values",
		notes: "Note: Use ILIKE for case-insensitive text matching. Use JSONB operators (->, ->>) to access metadata fields.",
	},
	store.DriverSQLite: {
		name:  "SQLite",
		like:  "LIKE",
		json:  "use json_extract(column, '$.key')",
		notes: "Note: LIKE is case-insensitive for ASCII text. Use json_extract(doc_metadata, '$.key') to access metadata fields.",
	},
}

func dialectFor(driver string) dialect {
	if d, ok := dialects[driver]; ok {
		return d
	}
	return dialects[store.DriverSQLite]
}

// SchemaDescription is the schema as the model sees it.
func SchemaDescription(driver string) string {
	d := dialectFor(driver)
	return d.name + " database schema for UN General Assembly documents:\n\n" + schemaTables + "\n" + d.notes + "\n"
}

// SystemPrompt holds the rules for SQL generation.
func SystemPrompt(driver string) string {
	d := dialectFor(driver)
	rules := []string{
		"Only generate SELECT, WITH, or EXPLAIN queries (read-only)",
		"Use proper JOIN syntax",
		"Use " + d.like + " for case-insensitive text searches",
		"Always include appropriate WHERE clauses",
		"Use LIMIT when appropriate (default to 100 if not specified)",
		"Return only the SQL query, no explanations or markdown formatting",
		"Use proper table and column names from the schema",
		"For country/actor name matching, use " + d.like + " with patterns like '%country name%' to handle variations",
		"Use proper date comparisons and ordering",
		"When querying JSON fields, " + d.json,
		"For document text content, use the 'body_text' column (contains full PDF text for resolutions/drafts)",
		"For meeting statements, query the 'utterances' table which has a 'text' column",
		"Avoid selecting the large doc_metadata or body_text fields unless specifically requested (use title for previews)",
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a %s expert. Convert natural language questions into valid %s SELECT queries.\n\nRules:\n", d.name, d.name)
	for i, r := range rules {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r)
	}
	b.WriteString("\nThe database contains UN General Assembly documents, votes, actors (countries), and meeting utterances.")
	return b.String()
}

// StripSQLFences returns the contents of the first fenced code block in s,
// or s with a leading ```sql / ``` and trailing ``` removed.
func StripSQLFences(s string) string {
	src := []byte(s)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var (
		buf   bytes.Buffer
		found bool
	)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !ok || !entering {
			return ast.WalkContinue, nil
		}
		lines := fcb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		found = true
		return ast.WalkStop, nil
	})
	if found {
		return strings.TrimSpace(buf.String())
	}

	out := strings.TrimSpace(s)
	for _, p := range []string{"```sql", "```SQL", "```"} {
		if strings.HasPrefix(out, p) {
			out = out[len(p):]
			break
		}
	}
	out = strings.TrimSuffix(strings.TrimSpace(out), "```")
	return strings.TrimSpace(out)
}

// SQLGenerator turns questions into SQL for one database dialect.
type SQLGenerator struct {
	LLM    llm.Completer
	Driver string
}

// GenerateSQL asks the model for a query. The result is not checked
// against store.IsQueryAllowed; callers executing it must do so.
func (g *SQLGenerator) GenerateSQL(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("empty question")
	}

	slog.Info("generating sql", "question", question)
	out, err := g.LLM.Complete(ctx, llm.Request{
		System:      SystemPrompt(g.Driver),
		Prompt:      SchemaDescription(g.Driver) + "\n\nConvert this question to SQL: " + question,
		MaxTokens:   1024,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate sql: %w", err)
	}

	sql := StripSQLFences(out)
	if sql == "" {
		return "", llm.ErrEmptyResponse
	}
	slog.Debug("generated sql", "sql", sql)
	return sql, nil
}
