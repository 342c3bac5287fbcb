// Package draft parses draft resolutions and decisions (A/78/L.3,
// A/C.3/78/L.41/Rev.1) into metadata, body text and paragraph segments.
package draft

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	unga "github.com/carlohamalainen/un-ga-documents-go"
	"github.com/carlohamalainen/un-ga-documents-go/pdftext"
)

type AgendaItem struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
}

type Metadata struct {
	Symbol           string      `json:"symbol,omitempty"`
	Distribution     string      `json:"distribution,omitempty"`
	Date             string      `json:"date,omitempty"`
	OriginalLanguage string      `json:"original_language,omitempty"`
	SessionName      string      `json:"session_name,omitempty"`
	SessionNumber    int         `json:"session_number,omitempty"`
	AgendaItem       *AgendaItem `json:"agenda_item,omitempty"`
	SubmissionType   string      `json:"submission_type,omitempty"`
	Title            string      `json:"title,omitempty"`
}

type Stats struct {
	WordCount int  `json:"word_count"`
	LineCount int  `json:"line_count"`
	HasAnnex  bool `json:"has_annex"`
}

type Document struct {
	Metadata     Metadata `json:"metadata"`
	DraftText    string   `json:"draft_text"`
	TextSegments Segments `json:"text_segments"`
	Stats        Stats    `json:"stats"`
}

var (
	symbolPattern      = regexp.MustCompile(`A/(?:C\.\d+/)?\d+/L\.\d+(?:/Rev\.\d+)?(?:/Add\.\d+)?`)
	splitSymbolPattern = regexp.MustCompile(`(?m)^A\s*\n\s*United Nations\s+(/\d+/L\.\d+(?:/Rev\.\d+)?(?:/Add\.\d+)?)`)
	distrPattern       = regexp.MustCompile(`Distr\.:\s*(\w+)`)
	datePattern        = regexp.MustCompile(`\d{1,2}\s+\w+\s+\d{4}`)
	originalPattern    = regexp.MustCompile(`Original:\s*(\w+)`)
	sessionPattern     = regexp.MustCompile(`(?i)([\w-]+)\s+session`)
	digits             = regexp.MustCompile(`\d+`)
	agendaPattern      = regexp.MustCompile(`Agenda item (\d+)\s*\n\s*([^\n]+)\n`)
	submissionPattern  = regexp.MustCompile(`Draft (?:resolution|decision)[^\n]+`)
	titleStop          = regexp.MustCompile(`\n\s*(?:The General Assembly|Annex)`)
	headerLine         = regexp.MustCompile(`^(?:A|United Nations|General Assembly|Distr\.|Original:|Agenda|Draft)`)
)

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func ExtractMetadata(text string) Metadata {
	var md Metadata
	header := head(text, 1000)

	if s := symbolPattern.FindString(head(text, 2000)); s != "" {
		md.Symbol = s
	} else if m := splitSymbolPattern.FindStringSubmatch(head(text, 500)); m != nil {
		// the "A" of the symbol is printed above the UN emblem
		md.Symbol = "A" + m[1]
	}

	if m := distrPattern.FindStringSubmatch(header); m != nil {
		md.Distribution = m[1]
	}
	md.Date = datePattern.FindString(header)
	if m := originalPattern.FindStringSubmatch(header); m != nil {
		md.OriginalLanguage = m[1]
	}

	if m := sessionPattern.FindString(header); m != "" {
		md.SessionName = m
		if d := digits.FindString(m); d != "" {
			md.SessionNumber, _ = strconv.Atoi(d)
		} else {
			md.SessionNumber = unga.OrdinalNumber(strings.Fields(m)[0])
		}
	}

	if m := agendaPattern.FindStringSubmatch(header); m != nil {
		n, _ := strconv.Atoi(m[1])
		md.AgendaItem = &AgendaItem{Number: n, Title: strings.TrimSpace(m[2])}
	}

	if s := submissionPattern.FindString(head(text, 1500)); s != "" {
		md.SubmissionType = strings.TrimSpace(s)
	}

	md.Title = extractTitle(head(text, 2000))
	if md.Title == "" && md.AgendaItem != nil {
		md.Title = md.AgendaItem.Title
	}

	return md
}

// extractTitle returns the lines between the sponsor line and the start of
// the body, collapsed to one line.
func extractTitle(text string) string {
	loc := submissionPattern.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	rest := text[loc[1]:]
	if !strings.HasPrefix(strings.TrimLeft(rest, " \t\r"), "\n") {
		return ""
	}
	end := titleStop.FindStringIndex(rest)
	if end == nil {
		return ""
	}
	return pdftext.Collapse(rest[:end[0]])
}

var bodyStarts = []*regexp.Regexp{
	regexp.MustCompile(`\n\s*(The General Assembly)`),
	regexp.MustCompile(`\n\s*(Adopts the)`),
	regexp.MustCompile(`\n\s*(Recalling)`),
	regexp.MustCompile(`\n\s*(Noting)`),
	regexp.MustCompile(`\n\s*(Recognizing)`),
}

// ExtractDraftText drops the masthead. The starters are tried in order, so
// "The General Assembly" wins over an earlier "Noting" in the header.
func ExtractDraftText(text string) string {
	for _, p := range bodyStarts {
		if loc := p.FindStringSubmatchIndex(text); loc != nil {
			return strings.TrimSpace(text[loc[2]:])
		}
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if i > 10 && strings.TrimSpace(line) != "" && !headerLine.MatchString(line) {
			return strings.TrimSpace(text[strings.Index(text, line):])
		}
	}

	if len(lines) <= 15 {
		return ""
	}
	return strings.TrimSpace(strings.Join(lines[15:], "\n"))
}

// Parse builds the document from already extracted text.
func Parse(text string) Document {
	body := ExtractDraftText(text)
	return Document{
		Metadata:     ExtractMetadata(text),
		DraftText:    body,
		TextSegments: Segment(body),
		Stats: Stats{
			WordCount: len(strings.Fields(body)),
			LineCount: len(strings.Split(body, "\n")),
			HasAnnex:  strings.Contains(strings.ToLower(text), "annex"),
		},
	}
}

// ParseFile parses a draft PDF. A document without a recognisable symbol
// takes it from the file name, A_78_L.3.pdf giving A/78/L.3.
func ParseFile(ctx context.Context, path string) (Document, error) {
	text, err := pdftext.LoadText(ctx, path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to load %s: %w", path, err)
	}

	doc := Parse(text)
	if doc.Metadata.Symbol == "" {
		doc.Metadata.Symbol = unga.NormalizeSymbol(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		slog.Warn("no symbol in draft, using file name", "path", path, "symbol", doc.Metadata.Symbol)
	}
	return doc, nil
}
