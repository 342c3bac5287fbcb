// Package report parses the reports a Main Committee sends to the plenary
// (A/78/481/Add.3). A report has an introduction followed by one section per
// draft resolution the committee acted on, giving sponsors, the outcome and
// any recorded vote.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	unga "github.com/carlohamalainen/un-ga-documents-go"
	"github.com/carlohamalainen/un-ga-documents-go/meeting"
	"github.com/carlohamalainen/un-ga-documents-go/pdftext"
)

type AgendaItem struct {
	Number  string `json:"number"`
	SubItem string `json:"sub_item,omitempty"`
}

type Metadata struct {
	Symbol        string      `json:"symbol,omitempty"`
	Session       string      `json:"session,omitempty"`
	SessionNumber int         `json:"session_number,omitempty"`
	Committee     string      `json:"committee,omitempty"`
	Rapporteur    string      `json:"rapporteur,omitempty"`
	AgendaItem    *AgendaItem `json:"agenda_item,omitempty"`
}

const (
	WithoutVote  = "without_vote"
	RecordedVote = "recorded_vote"
)

// Vote is how a draft was adopted. Counts are only set for recorded votes.
type Vote struct {
	Type        string `json:"type"`
	InFavour    int    `json:"in_favour,omitempty"`
	Against     int    `json:"against,omitempty"`
	Abstentions int    `json:"abstentions,omitempty"`
}

// TextReference points at the paragraph of the report that reproduces the
// adopted text, as in "see para. 33, draft resolution I".
type TextReference struct {
	Paragraph   int    `json:"paragraph"`
	DraftNumber string `json:"draft_number"`
}

type Item struct {
	SectionLetter  string               `json:"section_letter"`
	DraftSymbol    string               `json:"draft_symbol"`
	DraftCommittee int                  `json:"draft_committee,omitempty"`
	DraftSession   int                  `json:"draft_session,omitempty"`
	DraftNumber    int                  `json:"draft_number,omitempty"`
	DraftRevision  int                  `json:"draft_revision,omitempty"`
	Title          string               `json:"title,omitempty"`
	SubmittedBy    string               `json:"submission_info,omitempty"`
	Sponsors       []string             `json:"sponsors"`
	AdoptionStatus string               `json:"adoption_status,omitempty"`
	Vote           *Vote                `json:"vote_info,omitempty"`
	VoteDetails    *meeting.VoteDetails `json:"vote_details,omitempty"`
	TextReference  *TextReference       `json:"text_reference,omitempty"`
	Text           string               `json:"item_text"`
}

type Stats struct {
	ItemCount      int `json:"item_count"`
	ItemsWithVotes int `json:"items_with_votes"`
}

type Document struct {
	SourceFile   string   `json:"source_file,omitempty"`
	Metadata     Metadata `json:"metadata"`
	Introduction string   `json:"introduction,omitempty"`
	Items        []Item   `json:"items"`
	Stats        Stats    `json:"stats"`
}

var (
	symbolPattern     = regexp.MustCompile(`A\s*/\s*(\d+)\s*/\s*(\d+)(?:/Add\.(\d+))?`)
	sessionPattern    = regexp.MustCompile(`(?i)([A-Za-z-]+\s+session)`)
	agendaPattern     = regexp.MustCompile(`(?i)Agenda item\s+(\d+)(?:\s*\(([a-z])\))?`)
	reportOfPattern   = regexp.MustCompile(`(?i)Report of the (First|Second|Third|Fourth|Fifth|Sixth) Committee`)
	committeePattern  = regexp.MustCompile(`(?i)(First|Second|Third|Fourth|Fifth|Sixth)\s+Committee`)
	rapporteurPattern = regexp.MustCompile(`(?is)Rapporteur:\s*(.+?)(?:\([^)]+\)|$)`)

	itemHeader   = regexp.MustCompile(`(?mi)^([A-Z])\.\s+Draft resolution\s+(A/C\.\d+/\d+/L\.\d+(?:/Rev\.\d+)?)`)
	nextHeader   = regexp.MustCompile(`(?mi)^[A-Z]\.\s+Draft resolution`)
	draftSymbol  = regexp.MustCompile(`(?i)A/C\.(\d+)/(\d+)/L\.(\d+)(?:/Rev\.(\d+))?`)
	entitled     = regexp.MustCompile(`(?is)entitled\s+["\x{201C}\x{201D}](.+?)["\x{201C}\x{201D}]`)
	submittedBy  = regexp.MustCompile(`(?is)submitted by\s+(.+?)(?:\.|,|$)`)
	joined       = regexp.MustCompile(`(?i)joined in sponsoring the draft resolution`)
	sponsorList  = regexp.MustCompile(`(?i)([^.]{10,200})joined in sponsoring`)
	sponsorLead  = regexp.MustCompile(`(?i)^(?:Also at the same meeting,|At the same meeting,)\s*`)
	withoutVote  = regexp.MustCompile(`(?i)adopted\s+(?:draft\s+resolution\s+\S+\s+)?without\s+a\s+vote`)
	recordedVote = regexp.MustCompile(`(?i)adopted\s+(?:draft\s+resolution\s+\S+\s+)?by\s+a\s+recorded\s+vote(?:\s+of\s+(\d+)\s+to\s+(\d+)(?:,\s+with\s+(\d+)\s+abstentions?)?)?`)
	adoptedDraft = regexp.MustCompile(`(?i)adopted\s+draft\s+resolution`)
	textRef      = regexp.MustCompile(`(?i)see\s+para\.\s+(\d+),\s+draft resolution\s+([IVX]+|\d+)`)

	reportSymbol   = regexp.MustCompile(`A/\d+/\d+(?:/Add\.\d+)?`)
	paragraphStop  = regexp.MustCompile(`(?i)\d+\.\s+(?:Before|After)`)
	chapterStop    = regexp.MustCompile(`(?i)III\.`)
	trailingHeader = regexp.MustCompile(`\n[IVX]+\.\s*$`)
)

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func ExtractMetadata(text string) Metadata {
	var md Metadata
	top := pdftext.Collapse(head(text, 2000))

	if m := symbolPattern.FindStringSubmatch(top); m != nil {
		md.Symbol = fmt.Sprintf("A/%s/%s", m[1], m[2])
		if m[3] != "" {
			md.Symbol += "/Add." + m[3]
		}
	}

	if m := sessionPattern.FindStringSubmatch(top); m != nil {
		md.Session = strings.TrimSuffix(strings.TrimSpace(m[1]), ".")
		md.SessionNumber = unga.OrdinalNumber(strings.Fields(md.Session)[0])
	}

	if m := reportOfPattern.FindStringSubmatch(top); m != nil {
		md.Committee = m[1] + " Committee"
	} else if m := committeePattern.FindStringSubmatch(top); m != nil {
		md.Committee = m[1] + " Committee"
	}

	if m := rapporteurPattern.FindStringSubmatch(head(text, 2000)); m != nil {
		md.Rapporteur = pdftext.Collapse(strings.TrimRight(strings.TrimSpace(m[1]), "*"))
	}

	if m := agendaPattern.FindStringSubmatch(pdftext.Collapse(head(text, 3000))); m != nil {
		md.AgendaItem = &AgendaItem{Number: m[1], SubItem: m[2]}
	}

	return md
}

// considerationStart is where the committee's action on proposals begins.
func considerationStart(text string) int {
	if i := strings.Index(text, "Consideration of proposals"); i != -1 {
		return i
	}
	return strings.Index(text, "II.")
}

func sponsors(text string) []string {
	out := []string{}
	for _, loc := range joined.FindAllStringIndex(text, -1) {
		from := max(0, loc[0]-200)
		for from > 0 && !utf8.RuneStart(text[from]) {
			from++
		}
		m := sponsorList.FindStringSubmatch(text[from:loc[1]])
		if m == nil {
			continue
		}
		s := sponsorLead.ReplaceAllString(strings.TrimSpace(m[1]), "")
		out = append(out, pdftext.Collapse(s))
	}
	return out
}

func adoption(text string) (string, *Vote) {
	if withoutVote.MatchString(text) {
		return "adopted", &Vote{Type: WithoutVote}
	}
	if m := recordedVote.FindStringSubmatch(text); m != nil {
		v := &Vote{Type: RecordedVote}
		if m[1] != "" {
			v.InFavour = atoi(m[1])
			v.Against = atoi(m[2])
			v.Abstentions = atoi(m[3])
		}
		return "adopted", v
	}
	if adoptedDraft.MatchString(text) {
		return "adopted", nil
	}
	return "", nil
}

// listEnd is the earliest marker or stop pattern after from, or len(text).
func listEnd(text string, from int, stops []*regexp.Regexp, markers ...string) int {
	end := len(text)
	for _, m := range markers {
		if i := strings.Index(text[from:], m); i != -1 && from+i < end {
			end = from + i
		}
	}
	for _, re := range stops {
		if loc := re.FindStringIndex(text[from:]); loc != nil && from+loc[0] < end {
			end = from + loc[0]
		}
	}
	return end
}

func stateList(text string, start, end int) []string {
	if start > end {
		return nil
	}
	return meeting.ParseStateList(reportSymbol.ReplaceAllString(strings.TrimSpace(text[start:end]), ""))
}

func label(text string, labels ...string) (int, string) {
	for _, l := range labels {
		if i := strings.Index(text, l); i != -1 {
			return i, l
		}
	}
	return -1, ""
}

// voteLists reads the recorded vote of one item. Committee reports end the
// lists with a numbered "Before the vote" or "After the vote" paragraph.
func voteLists(text string) *meeting.VoteDetails {
	var v meeting.VoteDetails
	stops := []*regexp.Regexp{paragraphStop}

	if i, l := label(text, "In favour:", "In favor:"); i != -1 {
		end := listEnd(text, i+1, stops, "Against:", "Abstaining:", "Abstentions:", "Before the vote", "After the vote")
		v.InFavour = stateList(text, i+len(l), end)
	}
	if i, l := label(text, "Against:"); i != -1 {
		end := listEnd(text, i+1, stops, "Abstaining:", "Abstentions:", "Before the vote", "After the vote")
		v.Against = stateList(text, i+len(l), end)
	}
	if i, l := label(text, "Abstaining:", "Abstentions:"); i != -1 {
		end := listEnd(text, i+1, []*regexp.Regexp{paragraphStop, chapterStop}, "Before the vote", "After the vote", "Recommendations")
		v.Abstaining = stateList(text, i+len(l), end)
	}

	if len(v.InFavour) == 0 && len(v.Against) == 0 && len(v.Abstaining) == 0 {
		return nil
	}
	return &v
}

func parseItem(text string) Item {
	m := itemHeader.FindStringSubmatch(text)
	it := Item{
		SectionLetter: m[1],
		DraftSymbol:   m[2],
		Text:          text,
	}

	if d := draftSymbol.FindStringSubmatch(it.DraftSymbol); d != nil {
		it.DraftCommittee = atoi(d[1])
		it.DraftSession = atoi(d[2])
		it.DraftNumber = atoi(d[3])
		it.DraftRevision = atoi(d[4])
	}
	if t := entitled.FindStringSubmatch(text); t != nil {
		it.Title = pdftext.Collapse(t[1])
	}
	if s := submittedBy.FindStringSubmatch(text); s != nil {
		it.SubmittedBy = pdftext.Collapse(s[1])
	}
	it.Sponsors = sponsors(text)
	it.AdoptionStatus, it.Vote = adoption(text)
	if r := textRef.FindStringSubmatch(text); r != nil {
		it.TextReference = &TextReference{Paragraph: atoi(r[1]), DraftNumber: r[2]}
	}
	it.VoteDetails = voteLists(text)
	return it
}

// ParseItems splits the consideration section into one item per draft
// resolution header ("A. Draft resolution A/C.3/78/L.39").
func ParseItems(text string) []Item {
	items := []Item{}
	start := considerationStart(text)
	if start == -1 {
		return items
	}

	headers := itemHeader.FindAllStringIndex(text[start:], -1)
	for _, h := range headers {
		from := start + h[0]
		end := len(text)
		if next := nextHeader.FindStringIndex(text[start+h[1]:]); next != nil {
			end = start + h[1] + next[0]
		}
		items = append(items, parseItem(text[from:end]))
	}
	return items
}

func Parse(text, sourceFile string) Document {
	doc := Document{
		SourceFile: sourceFile,
		Metadata:   ExtractMetadata(text),
		Items:      ParseItems(text),
	}

	if i := considerationStart(text); i > 0 {
		doc.Introduction = strings.TrimSpace(trailingHeader.ReplaceAllString(strings.TrimSpace(text[:i]), ""))
	}

	doc.Stats.ItemCount = len(doc.Items)
	for _, it := range doc.Items {
		if it.VoteDetails != nil {
			doc.Stats.ItemsWithVotes++
		}
	}
	return doc
}

// ParseFile parses a committee report PDF. Without a symbol in the text the
// file name supplies it.
func ParseFile(ctx context.Context, path string) (Document, error) {
	text, err := pdftext.LoadText(ctx, path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to load %s: %w", path, err)
	}

	doc := Parse(text, filepath.Base(path))
	if doc.Metadata.Symbol == "" {
		doc.Metadata.Symbol = unga.NormalizeSymbol(unga.Stem(path))
		slog.Warn("no symbol in committee report, using file name", "path", path, "symbol", doc.Metadata.Symbol)
	}
	return doc, nil
}
