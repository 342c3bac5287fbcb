package load

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	unga "github.com/carlohamalainen/un-ga-documents-go"
	"github.com/carlohamalainen/un-ga-documents-go/recordpage"
	"github.com/carlohamalainen/un-ga-documents-go/store"
)

// recordFile is the part of a parsed record page the loaders read. The
// whole file is kept as doc_metadata.
type recordFile struct {
	Metadata struct {
		Symbol string `json:"symbol"`
		Title  string `json:"title"`
		Date   string `json:"date"`
	} `json:"metadata"`

	// yes/no/abstain are tallies on record pages but country lists in
	// older exports
	Voting           map[string]json.RawMessage `json:"voting"`
	RelatedDocuments recordpage.Related         `json:"related_documents"`
	Agenda           []recordpage.AgendaRef     `json:"agenda"`
}

func readRecordFile(path string) (recordFile, map[string]any, error) {
	var rec recordFile
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, nil, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return rec, nil, err
	}
	return rec, raw, nil
}

// LoadResolutions reads parsed/html/resolutions.
func (l *Loader) LoadResolutions(ctx context.Context) error {
	files, err := jsonFiles(l.dir("html", "resolutions"))
	if err != nil {
		return err
	}
	return l.loadFiles(ctx, files, l.loadResolution)
}

func (l *Loader) loadResolution(ctx context.Context, tx *store.Tx, path string) ([]string, error) {
	rec, raw, err := readRecordFile(path)
	if err != nil {
		return nil, err
	}
	if rec.Metadata.Symbol == "" {
		return nil, errSkip
	}
	symbol := unga.NormalizeSymbol(rec.Metadata.Symbol)

	id, err := tx.UpsertDocument(ctx, store.Document{
		Symbol:   symbol,
		DocType:  "resolution",
		Session:  unga.SessionFromSymbol(symbol),
		Title:    rec.Metadata.Title,
		Date:     isoDate(rec.Metadata.Date),
		Metadata: raw,
	}, store.Fill{DocType: true, Metadata: true})
	if err != nil {
		return nil, err
	}

	if err := loadVotes(ctx, tx, id, rec.Voting); err != nil {
		return nil, fmt.Errorf("votes for %s: %w", symbol, err)
	}
	if err := loadRelationships(ctx, tx, id, symbol, rec.RelatedDocuments); err != nil {
		return nil, fmt.Errorf("relationships for %s: %w", symbol, err)
	}
	if err := loadAgendaRelationships(ctx, tx, id, rec.Agenda); err != nil {
		return nil, fmt.Errorf("agenda for %s: %w", symbol, err)
	}

	return []string{symbol}, nil
}

var voteKeys = []struct{ key, voteType string }{
	{"yes", store.InFavour},
	{"no", store.Against},
	{"abstain", store.Abstaining},
}

// loadVotes stores country lists as vote rows and keeps integer tallies in
// the document metadata under vote_tallies.
func loadVotes(ctx context.Context, tx *store.Tx, docID int64, voting map[string]json.RawMessage) error {
	tallies := map[string]int{}

	for _, k := range voteKeys {
		raw, ok := voting[k.key]
		if !ok {
			continue
		}

		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			if n > 0 {
				tallies[k.voteType] = n
			}
			continue
		}

		var countries []string
		if err := json.Unmarshal(raw, &countries); err != nil {
			continue
		}
		for _, c := range countries {
			if strings.TrimSpace(c) == "" {
				continue
			}
			actor, err := tx.GetOrCreateActor(ctx, c)
			if err != nil {
				return err
			}
			if _, err := tx.AddVote(ctx, docID, actor, k.voteType, "plenary"); err != nil {
				return err
			}
		}
	}

	if len(tallies) == 0 {
		return nil
	}
	return tx.SetMetadataKey(ctx, docID, "vote_tallies", tallies)
}

var relatedKinds = []struct {
	docType, relType string
	links            func(recordpage.Related) []recordpage.Link
}{
	{"draft", "draft_of", func(r recordpage.Related) []recordpage.Link { return r.Drafts }},
	{"committee_report", "committee_report_for", func(r recordpage.Related) []recordpage.Link { return r.CommitteeReports }},
	{"meeting", "meeting_record_for", func(r recordpage.Related) []recordpage.Link { return r.MeetingRecords }},
}

// loadRelationships links the drafts, committee reports and meeting records
// of a record page to it, creating placeholders for documents not loaded
// yet.
func loadRelationships(ctx context.Context, tx *store.Tx, targetID int64, self string, related recordpage.Related) error {
	for _, kind := range relatedKinds {
		for _, link := range kind.links(related) {
			if strings.TrimSpace(link.Text) == "" {
				continue
			}
			symbol := unga.NormalizeSymbol(link.Text)
			if symbol == self {
				continue
			}

			src, err := tx.EnsurePlaceholder(ctx, symbol, kind.docType, map[string]any{"source_url": link.URL})
			if err != nil {
				return err
			}
			if err := tx.AddRelationship(ctx, src, targetID, kind.relType, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadAgendaRelationships stores each agenda reference as an agenda_item
// document keyed by its item id, e.g. "A/78/251_item_35".
func loadAgendaRelationships(ctx context.Context, tx *store.Tx, targetID int64, refs []recordpage.AgendaRef) error {
	for _, ref := range refs {
		symbol := strings.TrimSpace(ref.ID)
		if symbol == "" {
			symbol = strings.TrimSpace(ref.AgendaSymbol)
		}
		if symbol == "" {
			continue
		}

		meta := map[string]any{
			"agenda_symbol": ref.AgendaSymbol,
			"item_number":   ref.ItemNumber,
			"sub_item":      ref.SubItem,
			"title":         ref.Title,
			"subjects":      ref.Subjects,
			"url":           ref.URL,
		}
		src, err := tx.UpsertDocument(ctx, store.Document{
			Symbol:   symbol,
			DocType:  "agenda_item",
			Session:  unga.SessionFromSymbol(ref.AgendaSymbol),
			Title:    ref.Title,
			Metadata: meta,
		}, store.Fill{DocType: true})
		if err != nil {
			return err
		}
		if err := tx.AddRelationship(ctx, src, targetID, "agenda_item_for", nil); err != nil {
			return err
		}
	}
	return nil
}
