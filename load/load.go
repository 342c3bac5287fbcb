// Package load moves parsed JSON records into the relational store. Every
// input file is loaded in its own transaction; a bad file is counted and
// logged, never fatal.
package load

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"

	unga "github.com/carlohamalainen/un-ga-documents-go"
	"github.com/carlohamalainen/un-ga-documents-go/search"
	"github.com/carlohamalainen/un-ga-documents-go/store"
)

type Stats struct {
	Loaded  int
	Skipped int
	Errors  int
}

func (s Stats) Print(name string) {
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println(name)
	color.Green("Loaded:  %d", s.Loaded)
	fmt.Printf("Skipped: %d\n", s.Skipped)
	if s.Errors > 0 {
		color.Red("Errors:  %d", s.Errors)
	} else {
		fmt.Printf("Errors:  %d\n", s.Errors)
	}
	fmt.Println(strings.Repeat("=", 50))
}

// Indexer receives every document after its file is committed.
type Indexer interface {
	IndexDocument(ctx context.Context, doc search.Document) error
}

type Loader struct {
	Store    *store.Store
	DataRoot string
	Index    Indexer
	Stats    Stats
}

func New(s *store.Store, dataRoot string) *Loader {
	return &Loader{Store: s, DataRoot: dataRoot}
}

// errSkip marks a file that holds nothing loadable, such as a record
// without a symbol.
var errSkip = errors.New("nothing to load")

// fileFunc loads one file inside tx and returns the symbols it touched.
type fileFunc func(ctx context.Context, tx *store.Tx, path string) ([]string, error)

func jsonFiles(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("%s does not exist: %w", dir, err)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

func (l *Loader) loadFiles(ctx context.Context, files []string, fn fileFunc) error {
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i == 0 || (i+1)%50 == 0 {
			slog.Info("loading", "file", filepath.Base(path), "n", i+1, "of", len(files))
		}

		var symbols []string
		err := l.Store.WithTx(ctx, func(tx *store.Tx) error {
			var err error
			symbols, err = fn(ctx, tx, path)
			return err
		})

		switch {
		case errors.Is(err, errSkip):
			slog.Debug("skipped", "file", path)
			l.Stats.Skipped++
			continue
		case err != nil:
			slog.Error("failed to load", "file", path, "error", err)
			l.Stats.Errors++
			continue
		}

		l.Stats.Loaded++
		l.index(ctx, symbols)
	}
	return nil
}

func (l *Loader) index(ctx context.Context, symbols []string) {
	if l.Index == nil {
		return
	}
	for _, sym := range symbols {
		d, err := l.Store.Document(ctx, sym)
		if err != nil || d == nil {
			slog.Warn("cannot index", "symbol", sym, "error", err)
			continue
		}
		err = l.Index.IndexDocument(ctx, search.Document{
			Symbol:   d.Symbol,
			DocType:  d.DocType,
			Session:  d.Session,
			Title:    d.Title,
			Date:     d.Date,
			BodyText: d.BodyText,
		})
		if err != nil {
			slog.Warn("failed to index", "symbol", sym, "error", err)
		}
	}
}

func (l *Loader) dir(parts ...string) string {
	return filepath.Join(append([]string{l.DataRoot, "parsed"}, parts...)...)
}

// isoDate converts record-page dates to YYYY-MM-DD, or "" when unparseable.
func isoDate(s string) string {
	t := unga.ParseUNDate(s)
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

// meetingDate reads "Tuesday, 9 January 2024, 10 a.m.".
func meetingDate(s string) string {
	parts := strings.Split(s, ",")
	if len(parts) < 2 {
		return ""
	}
	t, err := time.Parse("2 January 2006", strings.TrimSpace(parts[1]))
	if err != nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

// Stage is one named loading step.
type Stage struct {
	Name string
	Run  func(context.Context) error
}

// Stages is the full load in dependency order: record pages first so that
// later stages fill in the placeholders they create.
func (l *Loader) Stages() []Stage {
	return []Stage{
		{"resolutions", l.LoadResolutions},
		{"voting", l.LoadVoting},
		{"drafts", func(ctx context.Context) error { return l.LoadDocuments(ctx, DocDraft) }},
		{"committee-reports", func(ctx context.Context) error { return l.LoadDocuments(ctx, DocCommitteeReport) }},
		{"agenda", func(ctx context.Context) error { return l.LoadDocuments(ctx, DocAgendaItem) }},
		{"meetings", l.LoadMeetings},
		{"committee-meetings", l.LoadCommitteeMeetings},
	}
}

// StageNames lists the stages in the order Run executes them.
func StageNames() []string {
	var names []string
	for _, st := range (&Loader{}).Stages() {
		names = append(names, st.Name)
	}
	return names
}

// Run executes the named stages, or all of them when names is empty. A
// stage whose input directory is missing is logged and skipped.
func (l *Loader) Run(ctx context.Context, names ...string) error {
	for _, st := range l.Stages() {
		if len(names) > 0 && !slices.Contains(names, st.Name) {
			continue
		}

		before := l.Stats
		slog.Info("loading stage", "stage", st.Name)
		if err := st.Run(ctx); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				slog.Warn("stage input missing", "stage", st.Name, "error", err)
				continue
			}
			return fmt.Errorf("%s: %w", st.Name, err)
		}
		slog.Info("stage done", "stage", st.Name,
			"loaded", l.Stats.Loaded-before.Loaded,
			"skipped", l.Stats.Skipped-before.Skipped,
			"errors", l.Stats.Errors-before.Errors)
	}
	return nil
}
