package load

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	unga "github.com/carlohamalainen/un-ga-documents-go"
	"github.com/carlohamalainen/un-ga-documents-go/store"
)

// Document types loaded by LoadDocuments.
const (
	DocDraft           = "draft"
	DocCommitteeReport = "committee_report"
	DocAgendaItem      = "agenda_item"
)

// documentDirs maps a document type to its directory under parsed/html and
// parsed/pdfs.
var documentDirs = map[string]string{
	DocDraft:           "drafts",
	DocCommitteeReport: "committee-reports",
	DocAgendaItem:      "agenda",
}

// pdfBodyText picks the body of a parsed PDF: a committee report
// introduction, the draft text, raw full text, then preamble and operative
// parts, then agenda item texts.
func pdfBodyText(data map[string]any, dirName string) string {
	str := func(v any) string {
		s, _ := v.(string)
		return s
	}

	if dirName == documentDirs[DocCommitteeReport] {
		if s := str(data["introduction"]); s != "" {
			return s
		}
	}
	if s := str(data["draft_text"]); s != "" {
		return s
	}
	if raw, ok := data["raw_text"].(map[string]any); ok {
		if s := str(raw["full_text"]); s != "" {
			return s
		}
	}
	if seg, ok := data["text_segments"].(map[string]any); ok {
		preamble, operative := str(seg["preamble"]), str(seg["operative"])
		if preamble != "" || operative != "" {
			return strings.TrimSpace(preamble + "\n\n" + operative)
		}
	}
	if items, ok := data["items"].([]any); ok {
		var texts []string
		for _, it := range items {
			if m, ok := it.(map[string]any); ok {
				if s := strings.TrimSpace(str(m["text"])); s != "" {
					texts = append(texts, s)
				}
			}
		}
		return strings.Join(texts, "\n\n")
	}
	return ""
}

func readJSONMap(path string) (map[string]any, error) {
	var m map[string]any
	if err := unga.ReadJSON(path, &m); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return m, nil
}

// LoadDocuments loads one document type: record-page metadata from
// parsed/html/<dir> merged with PDF text from parsed/pdfs/<dir>, then the
// parsed PDFs that have no record page.
func (l *Loader) LoadDocuments(ctx context.Context, docType string) error {
	dirName, ok := documentDirs[docType]
	if !ok {
		return fmt.Errorf("unknown document type %q", docType)
	}
	pdfDir := l.dir("pdfs", dirName)

	seen := map[string]bool{}

	htmlFiles, err := jsonFiles(l.dir("html", dirName))
	if err != nil {
		slog.Warn("no record pages", "type", docType, "error", err)
	}
	err = l.loadFiles(ctx, htmlFiles, func(ctx context.Context, tx *store.Tx, path string) ([]string, error) {
		sym, err := l.loadDocument(ctx, tx, path, docType, pdfDir)
		if err == nil {
			seen[sym] = true
		}
		return []string{sym}, err
	})
	if err != nil {
		return err
	}

	pdfFiles, err := jsonFiles(pdfDir)
	if err != nil {
		slog.Warn("no parsed pdfs", "type", docType, "error", err)
		return nil
	}

	var standalone []string
	for _, f := range pdfFiles {
		if !seen[unga.NormalizeSymbol(unga.Stem(f))] {
			standalone = append(standalone, f)
		}
	}
	slog.Info("pdf-only documents", "type", docType, "count", len(standalone))

	return l.loadFiles(ctx, standalone, func(ctx context.Context, tx *store.Tx, path string) ([]string, error) {
		return l.loadPDFOnly(ctx, tx, path, docType, dirName)
	})
}

func (l *Loader) loadDocument(ctx context.Context, tx *store.Tx, path, docType, pdfDir string) (string, error) {
	rec, raw, err := readRecordFile(path)
	if err != nil {
		return "", err
	}
	if rec.Metadata.Symbol == "" {
		return "", errSkip
	}
	symbol := unga.NormalizeSymbol(rec.Metadata.Symbol)

	var body string
	pdfPath := filepath.Join(pdfDir, unga.SymbolFilename(symbol)+".json")
	if _, err := os.Stat(pdfPath); err == nil {
		data, err := readJSONMap(pdfPath)
		if err != nil {
			slog.Warn("could not load pdf text", "file", pdfPath, "error", err)
		} else {
			body = pdfBodyText(data, filepath.Base(pdfDir))
		}
	}

	id, err := tx.UpsertDocument(ctx, store.Document{
		Symbol:   symbol,
		DocType:  docType,
		Session:  unga.SessionFromSymbol(symbol),
		Title:    rec.Metadata.Title,
		Date:     isoDate(rec.Metadata.Date),
		Metadata: raw,
		BodyText: body,
	}, store.Fill{DocType: true})
	if err != nil {
		return "", err
	}

	if err := loadRelationships(ctx, tx, id, symbol, rec.RelatedDocuments); err != nil {
		return "", err
	}
	if err := loadAgendaRelationships(ctx, tx, id, rec.Agenda); err != nil {
		return "", err
	}
	return symbol, nil
}

func (l *Loader) loadPDFOnly(ctx context.Context, tx *store.Tx, path, docType, dirName string) ([]string, error) {
	data, err := readJSONMap(path)
	if err != nil {
		return nil, err
	}

	var symbol, title string
	if meta, ok := data["metadata"].(map[string]any); ok {
		symbol, _ = meta["symbol"].(string)
		title, _ = meta["title"].(string)
	}
	if symbol == "" {
		symbol, _ = data["id"].(string)
	}
	if symbol == "" {
		symbol = unga.Stem(path)
	}
	symbol = unga.NormalizeSymbol(symbol)

	_, err = tx.UpsertDocument(ctx, store.Document{
		Symbol:   symbol,
		DocType:  docType,
		Session:  unga.SessionFromSymbol(symbol),
		Title:    title,
		BodyText: pdfBodyText(data, dirName),
	}, store.Fill{DocType: true})
	if err != nil {
		return nil, err
	}
	return []string{symbol}, nil
}
