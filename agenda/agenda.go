// Package agenda parses General Assembly agenda documents (A/{session}/251)
// and allocation-of-items documents (A/{session}/252) into a flat list of
// items that keeps the section, item and sub-item hierarchy.
package agenda

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	unga "github.com/carlohamalainen/un-ga-documents-go"
	"github.com/carlohamalainen/un-ga-documents-go/pdftext"
)

type ItemType string

const (
	TypeSection         ItemType = "section"
	TypeMain            ItemType = "main"
	TypeSub             ItemType = "sub"
	TypeCommitteeHeader ItemType = "committee_header"
)

type Item struct {
	ID            string   `json:"id,omitempty"`
	Type          ItemType `json:"type"`
	ItemNumber    int      `json:"item_number,omitempty"`
	SubItem       string   `json:"sub_item,omitempty"`
	SectionLetter string   `json:"section_letter,omitempty"`
	Committee     string   `json:"committee,omitempty"`
	Title         string   `json:"title,omitempty"`
	Text          string   `json:"text"`
	Resolutions   []string `json:"resolutions,omitempty"`
	Decisions     []string `json:"decisions,omitempty"`
}

// HasReferences reports whether the item cites any resolution or decision.
func (i Item) HasReferences() bool {
	return len(i.Resolutions) > 0 || len(i.Decisions) > 0
}

type Metadata struct {
	ID            string `json:"id,omitempty"`
	Symbol        string `json:"symbol,omitempty"`
	SessionName   string `json:"session_name,omitempty"`
	SessionNumber int    `json:"session_number,omitempty"`
	Date          string `json:"date,omitempty"`
	Title         string `json:"title,omitempty"`
}

type Stats struct {
	TotalItems          int `json:"total_items"`
	ItemsWithReferences int `json:"items_with_references"`
	TotalResolutions    int `json:"total_resolutions"`
	TotalDecisions      int `json:"total_decisions"`
}

type Document struct {
	ID       string   `json:"id,omitempty"`
	Metadata Metadata `json:"metadata"`
	Items    []Item   `json:"items"`
	Stats    Stats    `json:"stats"`
}

var (
	symbolPattern     = regexp.MustCompile(`A/\d+/\d+(?:/Rev\.\d+)?`)
	sessionPattern    = regexp.MustCompile(`(?i)([\w-]+) session`)
	datePattern       = regexp.MustCompile(`\d{1,2}\s+\w+\s+\d{4}`)
	titlePattern      = regexp.MustCompile(`(?i)(?:Agenda of the|Allocation of agenda items for the) .+ session[^\n]*`)
	allocationPattern = regexp.MustCompile(`(?i)Allocation of .+ agenda items[^\n]*`)
)

// head returns the first n runes of s.
func head(s string, n int) string {
	count := 0
	for pos := range s {
		if count == n {
			return s[:pos]
		}
		count++
	}
	return s
}

// ExtractMetadata reads the symbol, session, date and title from the top of
// the document.
func ExtractMetadata(text string) Metadata {
	var md Metadata

	md.Symbol = symbolPattern.FindString(head(text, 2000))

	if m := sessionPattern.FindStringSubmatch(head(text, 1000)); m != nil {
		md.SessionName = m[0]
		md.SessionNumber = unga.OrdinalNumber(m[1])
	}

	md.Date = datePattern.FindString(head(text, 1000))

	if t := titlePattern.FindString(text); t != "" {
		md.Title = strings.TrimSpace(t)
	} else if t := allocationPattern.FindString(text); t != "" {
		md.Title = strings.TrimSpace(t)
	}

	return md
}

var (
	committeePattern = regexp.MustCompile(`(?i)^(Plenary meetings|First Committee|Second Committee|Third Committee|` +
		`Fourth Committee|Fifth Committee|Sixth Committee|` +
		`Special Political and Decolonization Committee(?:\s*\(Fourth Committee\))?)`)
	sectionLine = regexp.MustCompile(`^([A-Z])\.\s+(.+)$`)
	mainLine    = regexp.MustCompile(`^(\d+)\.\s+(.+)$`)
	subLine     = regexp.MustCompile(`^\(([a-z]{1,2})\)\s+(.+)$`)
)

// NormalizeCommittee maps a header to its canonical committee name. The
// Special Political and Decolonization Committee is the Fourth Committee.
func NormalizeCommittee(header string) string {
	lower := strings.ToLower(header)
	switch {
	case strings.Contains(lower, "plenary"):
		return "Plenary"
	case strings.Contains(lower, "special political"), strings.Contains(lower, "fourth committee"):
		return "Fourth Committee"
	}

	for _, name := range []string{"First", "Second", "Third", "Fifth", "Sixth"} {
		if strings.Contains(lower, strings.ToLower(name)+" committee") {
			return name + " Committee"
		}
	}
	return header
}

type itemParser struct {
	items     []Item
	current   *Item
	buf       []string
	committee string
	section   string
}

func (p *itemParser) flush() {
	if p.current == nil {
		return
	}
	p.current.Text = strings.TrimSpace(strings.Join(p.buf, " "))
	if p.current.Committee == "" {
		p.current.Committee = p.committee
	}
	p.items = append(p.items, *p.current)
	p.current = nil
	p.buf = nil
}

func (p *itemParser) line(line string) {
	if m := committeePattern.FindStringSubmatch(line); m != nil {
		p.flush()
		p.committee = NormalizeCommittee(m[1])
		p.section = ""
		p.items = append(p.items, Item{
			Type:      TypeCommitteeHeader,
			Committee: p.committee,
			Title:     m[1],
		})
		return
	}

	if m := sectionLine.FindStringSubmatch(line); m != nil {
		p.flush()
		p.section = m[1]
		p.current = &Item{Type: TypeSection, SectionLetter: m[1], Title: m[2]}
		return
	}

	if m := mainLine.FindStringSubmatch(line); m != nil {
		p.flush()
		n, _ := strconv.Atoi(m[1])
		p.current = &Item{Type: TypeMain, ItemNumber: n, SectionLetter: p.section}
		p.buf = []string{m[2]}
		return
	}

	if m := subLine.FindStringSubmatch(line); m != nil && p.current != nil {
		parent := *p.current
		p.flush()
		p.current = &Item{
			Type:          TypeSub,
			ItemNumber:    parent.ItemNumber,
			SubItem:       m[1],
			SectionLetter: parent.SectionLetter,
		}
		p.buf = []string{m[2]}
		return
	}

	if p.current != nil {
		p.buf = append(p.buf, line)
	}
}

// ParseItems runs the line state machine over the document text.
//
// Committee headers, section headers ("A. ..."), numbered items ("12. ...")
// and lettered sub-items ("(a) ...") each close the open item. Any other line
// continues the open item's text. Sub-items inherit the number and section of
// the item they follow, so "(b)" after "(a)" stays under the same parent.
// Text before the first recognised line is dropped.
func ParseItems(text string) []Item {
	p := &itemParser{}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		p.line(line)
	}

	if p.current != nil && len(p.buf) > 0 {
		p.flush()
	}

	for i := range p.items {
		item := &p.items[i]
		if item.Type != TypeMain && item.Type != TypeSub {
			continue
		}
		refs := ExtractReferences(item.Text)
		item.Resolutions = refs.Resolutions
		item.Decisions = refs.Decisions
	}

	return p.items
}

// ItemID builds the stable identifier of an item within the document symbol.
func ItemID(symbol string, item Item) string {
	if symbol == "" {
		return ""
	}
	switch item.Type {
	case TypeMain, TypeSub:
		if item.ItemNumber > 0 {
			return symbol + "_item_" + strconv.Itoa(item.ItemNumber) + item.SubItem
		}
	case TypeSection:
		if item.SectionLetter != "" {
			return symbol + "_section_" + item.SectionLetter
		}
	case TypeCommitteeHeader:
		if item.Committee != "" {
			return symbol + "_committee_" + strings.ReplaceAll(item.Committee, " ", "_")
		}
	}
	return ""
}

// ParseDocument extracts metadata and items and assigns identifiers.
func ParseDocument(text string) Document {
	md := ExtractMetadata(text)
	items := ParseItems(text)

	if md.Symbol != "" {
		md.ID = md.Symbol
		for i := range items {
			items[i].ID = ItemID(md.Symbol, items[i])
		}
	}

	if items == nil {
		items = []Item{}
	}

	var stats Stats
	stats.TotalItems = len(items)
	for _, item := range items {
		if item.HasReferences() {
			stats.ItemsWithReferences++
		}
		stats.TotalResolutions += len(item.Resolutions)
		stats.TotalDecisions += len(item.Decisions)
	}

	return Document{ID: md.Symbol, Metadata: md, Items: items, Stats: stats}
}

// ParseFile loads a PDF (or pre-extracted text) and parses it.
func ParseFile(ctx context.Context, path string) (Document, error) {
	text, err := pdftext.LoadText(ctx, path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return ParseDocument(text), nil
}
