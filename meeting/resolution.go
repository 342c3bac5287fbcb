package meeting

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/carlohamalainen/un-ga-documents-go/pdftext"
)

type VoteDetails struct {
	InFavour   []string `json:"in_favour,omitempty"`
	Against    []string `json:"against,omitempty"`
	Abstaining []string `json:"abstaining,omitempty"`
}

func (v VoteDetails) empty() bool {
	return len(v.InFavour) == 0 && len(v.Against) == 0 && len(v.Abstaining) == 0
}

// ResolutionMetadata is what a single statement reveals about a decision:
// which draft is being acted on, its title, the outcome and the vote.
type ResolutionMetadata struct {
	DraftResolutionIdentifier string       `json:"draft_resolution_identifier,omitempty"`
	ResolutionTitle           string       `json:"resolution_title,omitempty"`
	ResolutionNumber          string       `json:"resolution_number,omitempty"`
	ResolutionSymbol          string       `json:"resolution_symbol,omitempty"`
	AdoptionStatus            string       `json:"adoption_status,omitempty"`
	VoteType                  string       `json:"vote_type,omitempty"`
	VoteInfo                  string       `json:"vote_info,omitempty"`
	VoteInFavor               *int         `json:"vote_in_favor,omitempty"`
	VoteAgainst               *int         `json:"vote_against,omitempty"`
	VoteAbstentions           *int         `json:"vote_abstentions,omitempty"`
	VoteDetails               *VoteDetails `json:"vote_details,omitempty"`
	MentionedResolutions      []string     `json:"mentioned_resolutions,omitempty"`
}

func (r ResolutionMetadata) empty() bool {
	return r.DraftResolutionIdentifier == "" && r.ResolutionTitle == "" &&
		r.ResolutionNumber == "" && r.AdoptionStatus == "" &&
		r.VoteType == "" && r.VoteInfo == "" && r.VoteDetails == nil
}

const (
	VoteRecorded = "recorded_vote"
	VoteWithout  = "without_vote"
)

var (
	draftResolution  = regexp.MustCompile(`(?i)draft\s+resolution\s+(I{1,3}|IV|V|VI{0,3}|[1-9]\d*)\b`)
	entitledPattern  = regexp.MustCompile(`(?is)entitled\s+["“”](.+?)["“”]`)
	sentenceEnd      = regexp.MustCompile(`\.(?:\s|$)`)
	resolutionNumber = regexp.MustCompile(`(?i)\(?resolution\s+(\d+)/(\d+)\)?`)
	withoutVote      = regexp.MustCompile(`(?i)without\s+a\s+vote`)
	voteOf           = regexp.MustCompile(`(?i)by\s+(?:(?:a\s+)?vote\s+of\s+(\d+)|(\d+)\s+votes?)\s+to\s+(\d+)`)
	abstentionCount  = regexp.MustCompile(`(?i)(\d+)\s+abstention`)
	recordedVote     = regexp.MustCompile(`(?i)by\s+a\s+recorded\s+vote`)
	recordedVoteOf   = regexp.MustCompile(`(?i)by\s+a\s+recorded\s+vote\s+of\s+(\d+)\s+to\s+(\d+)(?:,\s+with\s+(\d+)\s+abstention)?`)

	adoptionPatterns = []struct {
		re     *regexp.Regexp
		status string
	}{
		{regexp.MustCompile(`(?i)was\s+adopted`), "adopted"},
		{regexp.MustCompile(`(?i)was\s+rejected`), "rejected"},
		{regexp.MustCompile(`(?i)was\s+not\s+adopted`), "not_adopted"},
		{regexp.MustCompile(`(?i)is\s+adopted`), "adopted"},
		{regexp.MustCompile(`(?i)adopted\s+without\s+a\s+vote`), "adopted"},
	}
)

// DraftMentions lists the distinct draft resolution identifiers ("I", "IV",
// "2") named in text, in order of first mention.
func DraftMentions(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range draftResolution.FindAllStringSubmatch(text, -1) {
		id := strings.ToUpper(m[1])
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func runePrefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func extractTitle(text string) string {
	m := entitledPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	title := strings.TrimSpace(m[1])

	// an unclosed quote swallows the rest of the statement
	if utf8.RuneCountInString(title) > 200 {
		if loc := sentenceEnd.FindStringIndex(runePrefix(title, 200)); loc != nil {
			title = strings.TrimSpace(title[:loc[0]])
		}
	}
	title = pdftext.Collapse(title)

	if utf8.RuneCountInString(title) > 300 {
		first, _, _ := strings.Cut(title, ".")
		title = strings.TrimSpace(runePrefix(first, 300))
	}
	return title
}

func intp(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// ExtractResolutionMetadata collects decision details from the text of one
// statement. It returns nil when nothing was found.
func ExtractResolutionMetadata(text string) *ResolutionMetadata {
	var md ResolutionMetadata

	if m := draftResolution.FindStringSubmatch(text); m != nil {
		md.DraftResolutionIdentifier = strings.ToUpper(m[1])
	}

	md.ResolutionTitle = extractTitle(text)

	if m := resolutionNumber.FindStringSubmatch(text); m != nil {
		md.ResolutionNumber = m[1] + "/" + m[2]
		md.ResolutionSymbol = "A/RES/" + m[1] + "/" + m[2]
	}

	for _, p := range adoptionPatterns {
		if p.re.MatchString(text) {
			md.AdoptionStatus = p.status
			break
		}
	}

	if lists := ExtractVoteLists(text); !lists.empty() {
		md.VoteDetails = &lists
		md.VoteType = VoteRecorded
	}

	switch {
	case withoutVote.MatchString(text):
		if md.VoteType == "" {
			md.VoteType = VoteWithout
		}
		md.VoteInfo = "without a vote"

	case voteOf.MatchString(text):
		m := voteOf.FindStringSubmatch(text)
		favour := m[1]
		if favour == "" {
			favour = m[2]
		}
		if md.VoteType == "" {
			md.VoteType = VoteRecorded
		}
		md.VoteInFavor = intp(favour)
		md.VoteAgainst = intp(m[3])
		if a := abstentionCount.FindStringSubmatch(text); a != nil {
			md.VoteAbstentions = intp(a[1])
		}
		md.VoteInfo = favour + " to " + m[3]

	case recordedVote.MatchString(text):
		m := recordedVoteOf.FindStringSubmatch(text)
		if m == nil {
			break
		}
		if md.VoteType == "" {
			md.VoteType = VoteRecorded
		}
		md.VoteInFavor = intp(m[1])
		md.VoteAgainst = intp(m[2])
		md.VoteInfo = m[1] + " to " + m[2]
		if m[3] != "" {
			md.VoteAbstentions = intp(m[3])
			md.VoteInfo += ", with " + m[3] + " abstentions"
		}
	}

	if md.empty() {
		return nil
	}
	return &md
}

var (
	pageAndSymbol  = regexp.MustCompile(`\s*\d+/\d+\s+A/\d+/[A-Z0-9.]+`)
	draftTail      = regexp.MustCompile(`(?i)\s+Draft\s+resolution.*$`)
	initialPeriod  = regexp.MustCompile(`\b[A-Z]\.$`)
	pageAndDate    = regexp.MustCompile(`(?s)\d+/\d+\s+\d{2}/\d{2}/\d{4}.*$`)
	abstainingStop = regexp.MustCompile(`(?i)by\s+\d+\s+votes|resolution\s+\d+/\d+`)
)

// ParseStateList splits a comma separated list of Member States. Commas
// inside parentheses, as in "Micronesia (Federated States of)", do not split.
// Page furniture that leaks into the list is removed.
func ParseStateList(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var raw []string
	var cur strings.Builder
	depth := 0
	for _, r := range text {
		switch {
		case r == '(':
			depth++
			cur.WriteRune(r)
		case r == ')':
			depth--
			cur.WriteRune(r)
		case r == ',' && depth == 0:
			raw = append(raw, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	raw = append(raw, cur.String())

	var states []string
	for _, s := range raw {
		s = pdftext.Collapse(s)
		s = pageAndSymbol.ReplaceAllString(s, "")
		s = draftTail.ReplaceAllString(s, "")
		if strings.HasSuffix(s, ".") && !initialPeriod.MatchString(s) {
			s = strings.TrimSpace(strings.TrimSuffix(s, "."))
		}
		s = pdftext.Collapse(s)
		if s != "" {
			states = append(states, s)
		}
	}
	return states
}

// listEnd returns the first position after from at which any marker occurs,
// or len(text).
func listEnd(text string, from int, markers ...string) int {
	end := len(text)
	for _, m := range markers {
		if i := strings.Index(text[from:], m); i != -1 && from+i < end {
			end = from + i
		}
	}
	return end
}

func voteList(text string, start, end int) []string {
	if start > end {
		return nil
	}
	body := strings.TrimSpace(text[start:end])
	return ParseStateList(pageAndDate.ReplaceAllString(body, ""))
}

// ExtractVoteLists reads the "In favour:", "Against:" and "Abstaining:"
// blocks that follow a recorded vote.
func ExtractVoteLists(text string) VoteDetails {
	var v VoteDetails

	favourLabel := "In favour:"
	favour := strings.Index(text, favourLabel)
	if favour == -1 {
		favourLabel = "In favor:"
		favour = strings.Index(text, favourLabel)
	}
	against := strings.Index(text, "Against:")
	abstainLabel := "Abstaining:"
	abstaining := strings.Index(text, abstainLabel)
	if abstaining == -1 {
		abstainLabel = "Abstentions:"
		abstaining = strings.Index(text, abstainLabel)
	}

	if favour != -1 {
		end := listEnd(text, favour+1, "Against:", "Abstaining:", "Abstentions:", "Draft resolution", "was adopted")
		v.InFavour = voteList(text, favour+len(favourLabel), end)
	}

	if against != -1 {
		end := listEnd(text, against+1, "Abstaining:", "Abstentions:", "Draft resolution", "was adopted")
		v.Against = voteList(text, against+len("Against:"), end)
	}

	if abstaining != -1 {
		end := listEnd(text, abstaining+1, "Draft resolution", "was adopted")
		if loc := abstainingStop.FindStringIndex(text[abstaining+1:]); loc != nil && abstaining+1+loc[0] < end {
			end = abstaining + 1 + loc[0]
		}
		v.Abstaining = voteList(text, abstaining+len(abstainLabel), end)
	}

	return v
}
