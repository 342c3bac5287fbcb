package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrDocumentNotFound = errors.New("document not found")

// RelationshipDepth bounds the walk over document_relationships.
const RelationshipDepth = 3

// Related is the genealogy of one document: everything reachable through
// document_relationships in either direction, grouped by document type.
type Related struct {
	Symbol           string         `json:"symbol"`
	Title            string         `json:"title,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	Meetings         []string       `json:"meetings"`
	Drafts           []string       `json:"drafts"`
	CommitteeReports []string       `json:"committee_reports"`
	AgendaItems      []string       `json:"agenda_items"`
}

type edge struct {
	source, target int64
}

// RelatedDocuments walks the relationship graph outward from symbol up to
// RelationshipDepth hops. Resolutions reached on the way are walked through
// but not listed.
func (s *Store) RelatedDocuments(ctx context.Context, symbol string) (*Related, error) {
	doc, err := s.Document(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, symbol)
	}

	seen := map[int64]bool{doc.ID: true}
	frontier := []int64{doc.ID}
	for depth := 0; depth < RelationshipDepth && len(frontier) > 0; depth++ {
		edges, err := s.edgesTouching(ctx, frontier)
		if err != nil {
			return nil, err
		}
		var next []int64
		for _, e := range edges {
			for _, id := range []int64{e.source, e.target} {
				if !seen[id] {
					seen[id] = true
					next = append(next, id)
				}
			}
		}
		frontier = next
	}
	delete(seen, doc.ID)

	rel := &Related{
		Symbol:           doc.Symbol,
		Title:            doc.Title,
		Metadata:         doc.Metadata,
		Meetings:         []string{},
		Drafts:           []string{},
		CommitteeReports: []string{},
		AgendaItems:      []string{},
	}
	if len(seen) == 0 {
		return rel, nil
	}

	ids := make([]any, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	query := `SELECT symbol, doc_type FROM documents WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY symbol`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to read related documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sym, docType string
		if err := rows.Scan(&sym, &docType); err != nil {
			return nil, err
		}
		switch docType {
		case "meeting", "committee_meeting":
			rel.Meetings = append(rel.Meetings, sym)
		case "draft":
			rel.Drafts = append(rel.Drafts, sym)
		case "committee_report":
			rel.CommitteeReports = append(rel.CommitteeReports, sym)
		case "agenda_item", "agenda":
			rel.AgendaItems = append(rel.AgendaItems, sym)
		}
	}
	return rel, rows.Err()
}

func (s *Store) edgesTouching(ctx context.Context, ids []int64) ([]edge, error) {
	args := make([]any, 0, 2*len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, args...)
	in := placeholders(len(ids))
	query := `SELECT source_id, target_id FROM document_relationships
	WHERE source_id IN (` + in + `) OR target_id IN (` + in + `)`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read relationships: %w", err)
	}
	defer rows.Close()

	var out []edge
	for rows.Next() {
		var e edge
		if err := rows.Scan(&e.source, &e.target); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Votes returns the countries that voted on symbol keyed by vote type, each
// list sorted by name. An empty voteType returns every type.
func (s *Store) Votes(ctx context.Context, symbol, voteType string) (map[string][]string, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id FROM documents WHERE symbol = ?`), symbol).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, symbol)
	}
	if err != nil {
		return nil, err
	}

	query := `SELECT a.name, v.vote_type FROM votes v JOIN actors a ON a.id = v.actor_id WHERE v.document_id = ?`
	args := []any{id}
	if voteType != "" {
		query += ` AND v.vote_type = ?`
		args = append(args, voteType)
	}
	query += ` ORDER BY v.vote_type, a.name`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read votes: %w", err)
	}
	defer rows.Close()

	out := map[string][]string{}
	for rows.Next() {
		var name, vt string
		if err := rows.Scan(&name, &vt); err != nil {
			return nil, err
		}
		out[vt] = append(out[vt], name)
	}
	return out, rows.Err()
}

// MeetingUtterances returns the utterances of the given meetings in speaking
// order. When countries is not empty only speakers whose affiliation contains
// one of them, ignoring case, are kept.
func (s *Store) MeetingUtterances(ctx context.Context, meetings, countries []string) ([]MeetingUtterance, error) {
	if len(meetings) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(meetings)+len(countries))
	for _, m := range meetings {
		args = append(args, m)
	}
	query := `SELECT ` + utteranceColumns + `
	FROM utterances u JOIN documents d ON d.id = u.meeting_id
	WHERE d.symbol IN (` + placeholders(len(meetings)) + `)`

	var like []string
	for _, c := range countries {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		like = append(like, `LOWER(u.speaker_affiliation) LIKE ?`)
		args = append(args, "%"+c+"%")
	}
	if len(like) > 0 {
		query += ` AND (` + strings.Join(like, " OR ") + `)`
	}
	query += ` ORDER BY d.symbol, u.position_in_meeting`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read meeting utterances: %w", err)
	}
	defer rows.Close()

	return scanUtterances(rows)
}
