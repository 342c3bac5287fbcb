// Package meeting parses verbatim records of General Assembly plenary
// meetings (A/78/PV.51) into agenda item sections and ordered statements.
package meeting

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/carlohamalainen/un-ga-documents-go/pdftext"
)

type DocumentRef struct {
	Symbol  string `json:"symbol"`
	Context string `json:"context"`
}

type Utterance struct {
	ID                      string              `json:"id,omitempty"`
	Speaker                 Speaker             `json:"speaker"`
	Text                    string              `json:"text"`
	WordCount               int                 `json:"word_count"`
	Documents               []string            `json:"documents"`
	ResolutionMetadata      *ResolutionMetadata `json:"resolution_metadata,omitempty"`
	DraftResolutionMentions []string            `json:"draft_resolution_mentions,omitempty"`

	lines []string
}

type Section struct {
	ID               string        `json:"id,omitempty"`
	AgendaItemNumber string        `json:"agenda_item_number"`
	AgendaItemNote   string        `json:"agenda_item_note,omitempty"`
	RawAgendaLine    string        `json:"raw_agenda_line"`
	SectionTitle     string        `json:"section_title,omitempty"`
	SectionSummary   string        `json:"section_summary"`
	Documents        []DocumentRef `json:"documents"`
	Utterances       []Utterance   `json:"utterances"`

	preamble []string
	seen     map[DocumentRef]bool
}

type Stats struct {
	SectionCount       int `json:"section_count"`
	UtteranceCount     int `json:"utterance_count"`
	UniqueSpeakers     int `json:"unique_speakers"`
	DocumentReferences int `json:"document_references"`
}

type Document struct {
	ID         string    `json:"id,omitempty"`
	SourceFile string    `json:"source_file"`
	Preface    string    `json:"preface,omitempty"`
	Metadata   Metadata  `json:"metadata"`
	Sections   []Section `json:"sections"`
	Stats      Stats     `json:"stats"`
}

var (
	docPattern     = regexp.MustCompile(`\b[A-Z]/[\dA-Z]+(?:/[A-Z0-9.\-]+)+\b`)
	agendaPattern  = regexp.MustCompile(`(?i)^\s*Agenda item\s+(?P<number>\d+[A-Za-z]*)\s*(?P<rest>\([^)]+\))?(?P<title>.*)$`)
	speakerPattern = regexp.MustCompile(`(?i)(?P<header>(?:The\s+(?:Acting\s+)?President|The\s+Vice-President|The\s+Secretary-General|` +
		`Mr\.|Ms\.|Mrs\.|Dr\.|Sir|Madam|Ambassador|H\.E\.)[^\n:]{0,120})\s*:\s*(?P<body>.*)`)
)

// DetectDocuments finds document symbols in a line, each paired with the
// line as context.
func DetectDocuments(line string) []DocumentRef {
	var refs []DocumentRef
	ctx := pdftext.Collapse(line)
	for _, s := range docPattern.FindAllString(line, -1) {
		refs = append(refs, DocumentRef{Symbol: s, Context: ctx})
	}
	return refs
}

func (s *Section) addDocuments(refs []DocumentRef) {
	if s.seen == nil {
		s.seen = map[DocumentRef]bool{}
	}
	for _, r := range refs {
		if !s.seen[r] {
			s.seen[r] = true
			s.Documents = append(s.Documents, r)
		}
	}
}

func (u *Utterance) finalize() {
	u.Text = pdftext.Collapse(strings.Join(u.lines, " "))
	u.lines = nil
	u.WordCount = len(strings.Fields(u.Text))
	u.Documents = []string{}
	for _, d := range DetectDocuments(u.Text) {
		u.Documents = append(u.Documents, d.Symbol)
	}
	u.ResolutionMetadata = ExtractResolutionMetadata(u.Text)
	u.DraftResolutionMentions = DraftMentions(u.Text)
}

var skippedTitlePrefixes = []string{
	"the meeting was called to order",
	"statement by",
	"letter dated",
	"in the absence of",
}

func sectionTitle(preamble []string) string {
	for _, line := range preamble {
		lower := strings.ToLower(line)
		skip := false
		for _, p := range skippedTitlePrefixes {
			if strings.HasPrefix(lower, p) {
				skip = true
				break
			}
		}
		if !skip {
			return line
		}
	}
	if len(preamble) > 0 {
		return preamble[0]
	}
	return ""
}

type sectionParser struct {
	sections  []Section
	preface   []string
	section   *Section
	utterance *Utterance
}

func (p *sectionParser) closeUtterance() {
	if p.utterance == nil {
		return
	}
	p.utterance.finalize()
	p.section.Utterances = append(p.section.Utterances, *p.utterance)
	p.utterance = nil
}

func (p *sectionParser) closeSection() {
	if p.section == nil {
		return
	}
	p.closeUtterance()
	p.section.SectionTitle = sectionTitle(p.section.preamble)
	p.section.SectionSummary = strings.Join(p.section.preamble, " ")
	p.section.preamble = nil
	p.section.seen = nil
	p.sections = append(p.sections, *p.section)
	p.section = nil
}

func (p *sectionParser) line(line string) {
	if m := agendaPattern.FindStringSubmatch(line); m != nil {
		p.closeSection()
		p.section = &Section{
			AgendaItemNumber: m[agendaPattern.SubexpIndex("number")],
			AgendaItemNote:   strings.TrimSpace(m[agendaPattern.SubexpIndex("rest")]),
			RawAgendaLine:    line,
			Documents:        []DocumentRef{},
			Utterances:       []Utterance{},
		}
		return
	}

	if p.section == nil {
		p.preface = append(p.preface, line)
		return
	}

	p.section.addDocuments(DetectDocuments(line))

	if m := speakerPattern.FindStringSubmatch(line); m != nil {
		p.closeUtterance()
		p.utterance = &Utterance{Speaker: ParseSpeaker(pdftext.Collapse(m[speakerPattern.SubexpIndex("header")]))}
		if body := pdftext.Collapse(m[speakerPattern.SubexpIndex("body")]); body != "" {
			p.utterance.lines = []string{body}
		}
		return
	}

	if p.utterance != nil {
		p.utterance.lines = append(p.utterance.lines, line)
	} else {
		p.section.preamble = append(p.section.preamble, line)
	}
}

// ParseSections splits the record at "Agenda item N" lines. Speaker lines
// open statements; other lines continue the open statement, or the section
// preamble before the first statement. Text before the first agenda item is
// returned as the preface.
func ParseSections(text string) ([]Section, string) {
	p := &sectionParser{}
	for _, raw := range strings.Split(text, "\n") {
		line := pdftext.Collapse(raw)
		if line == "" {
			continue
		}
		p.line(line)
	}
	p.closeSection()

	if p.sections == nil {
		p.sections = []Section{}
	}
	return p.sections, strings.TrimSpace(strings.Join(p.preface, " "))
}

var (
	multipleDrafts = regexp.MustCompile(`(?i)(\d+|several|multiple|a number of)\s+draft\s+resolutions?`)
	decisionStarts = regexp.MustCompile(`(?i)we will now take a decision|we turn (first|now) to|draft resolution [IVX]+ is entitled`)
)

// AssociateMentions links statements to the drafts they talk about while
// the President has several drafts before the Assembly. The window opens when
// the President announces "N draft resolutions" and closes when voting
// begins.
func AssociateMentions(sections []Section) {
	for si := range sections {
		active := false
		for ui := range sections[si].Utterances {
			u := &sections[si].Utterances[ui]
			presiding := u.Speaker.IsPresiding()

			if presiding && multipleDrafts.MatchString(u.Text) {
				active = true
				continue
			}
			if presiding && decisionStarts.MatchString(u.Text) {
				active = false
			}
			if !active || len(u.DraftResolutionMentions) == 0 {
				continue
			}

			if u.ResolutionMetadata == nil {
				u.ResolutionMetadata = &ResolutionMetadata{
					DraftResolutionIdentifier: u.DraftResolutionMentions[0],
					MentionedResolutions:      append([]string(nil), u.DraftResolutionMentions...),
				}
				continue
			}
			if u.ResolutionMetadata.DraftResolutionIdentifier == "" {
				continue
			}
			for _, m := range u.DraftResolutionMentions {
				if !contains(u.ResolutionMetadata.MentionedResolutions, m) {
					u.ResolutionMetadata.MentionedResolutions = append(u.ResolutionMetadata.MentionedResolutions, m)
				}
			}
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func computeStats(sections []Section) Stats {
	st := Stats{SectionCount: len(sections)}
	speakers := map[string]bool{}
	docs := map[string]bool{}
	for _, s := range sections {
		st.UtteranceCount += len(s.Utterances)
		for _, d := range s.Documents {
			docs[d.Symbol] = true
		}
		for _, u := range s.Utterances {
			if u.Speaker.Raw != "" {
				speakers[u.Speaker.Raw] = true
			}
		}
	}
	st.UniqueSpeakers = len(speakers)
	st.DocumentReferences = len(docs)
	return st
}

// Parse builds the meeting document from extracted text. Identifiers are
// only assigned when the meeting symbol is known.
func Parse(text, sourceFile string) Document {
	md := ExtractMetadata(text)
	sections, preface := ParseSections(text)
	AssociateMentions(sections)

	if md.Symbol != "" {
		md.ID = md.Symbol
		for i := range sections {
			s := &sections[i]
			s.ID = md.Symbol + "_section_" + s.AgendaItemNumber
			for j := range s.Utterances {
				s.Utterances[j].ID = s.ID + "_utterance_" + strconv.Itoa(j+1)
			}
		}
	}

	return Document{
		ID:         md.Symbol,
		SourceFile: sourceFile,
		Preface:    preface,
		Metadata:   md,
		Sections:   sections,
		Stats:      computeStats(sections),
	}
}

func ParseFile(ctx context.Context, path string) (Document, error) {
	text, err := pdftext.LoadText(ctx, path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return Parse(text, path), nil
}
