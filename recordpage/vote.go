package recordpage

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	VoteWithout  = "without_vote"
	VoteRecorded = "recorded_vote"
	VoteUnknown  = "unknown"
)

// VoteSummary is the "Vote summary" row, e.g. "Adopted 151-6-27, 42nd
// plenary meeting".
type VoteSummary struct {
	VoteType string `json:"vote_type"`
	Yes      *int   `json:"yes"`
	No       *int   `json:"no"`
	Abstain  *int   `json:"abstain"`
	Meeting  string `json:"meeting,omitempty"`
	RawText  string `json:"raw_text"`
}

var (
	tally      = regexp.MustCompile(`(\d+)-(\d+)-(\d+)`)
	meetingRef = regexp.MustCompile(`(?i)(\d+)(st|nd|rd|th)\s+plenary\s+meeting`)
)

func ParseVoteSummary(raw string) *VoteSummary {
	v := &VoteSummary{RawText: raw}

	switch m := tally.FindStringSubmatch(raw); {
	case strings.Contains(strings.ToLower(raw), "without vote"):
		v.VoteType = VoteWithout
	case m != nil:
		v.VoteType = VoteRecorded
		yes, _ := strconv.Atoi(m[1])
		no, _ := strconv.Atoi(m[2])
		abstain, _ := strconv.Atoi(m[3])
		v.Yes, v.No, v.Abstain = &yes, &no, &abstain
	default:
		v.VoteType = VoteUnknown
	}

	if m := meetingRef.FindStringSubmatch(raw); m != nil {
		v.Meeting = fmt.Sprintf("%s%s plenary meeting", m[1], strings.ToLower(m[2]))
	}
	return v
}

// AgendaRef is one link of the "Agenda information" row.
type AgendaRef struct {
	ID           string `json:"id"`
	AgendaSymbol string `json:"agenda_symbol"`
	ItemNumber   *int   `json:"item_number"`
	SubItem      string `json:"sub_item,omitempty"`
	Title        string `json:"title"`
	Subjects     string `json:"subjects,omitempty"`
	URL          string `json:"url,omitempty"`
}

var (
	agendaSymbol  = regexp.MustCompile(`^([A-Z]/\d+/\d+(?:\s+Rev\.\d+)?)\s+`)
	plainItem     = regexp.MustCompile(`^(\d+)\s+(.+?)(?:\.\s*(.+))?$`)
	bracketedItem = regexp.MustCompile(`^\[(\d+)\]\s+(.+)$`)
	subItem       = regexp.MustCompile(`^(\d+)([a-z]|\[\d+\])\s+(.+)$`)
)

// ParseAgendaRef understands the link texts the library uses:
//
//	A/78/251 35 Question of Palestine. PALESTINE QUESTION
//	A/78/251 [905] UN. GENERAL ASSEMBLY--PRESIDENT-ELECT--OATH OF OFFICE
//	A/78/251 18i Combating sand and dust storms. STORMS
//	A/78/251 8[1] UN. GENERAL ASSEMBLY--GENERAL DEBATE--RIGHT OF REPLY
func ParseAgendaRef(s string) (AgendaRef, bool) {
	m := agendaSymbol.FindStringSubmatch(s)
	if m == nil {
		return AgendaRef{}, false
	}
	ref := AgendaRef{AgendaSymbol: m[1]}
	rest := s[len(m[0]):]

	number := func(d string) *int {
		n, _ := strconv.Atoi(d)
		return &n
	}

	if g := plainItem.FindStringSubmatch(rest); g != nil {
		ref.ItemNumber = number(g[1])
		ref.Title = strings.TrimSpace(g[2])
		ref.Subjects = strings.TrimSpace(g[3])
		ref.ID = fmt.Sprintf("%s_item_%s", ref.AgendaSymbol, g[1])
		return ref, true
	}
	if g := bracketedItem.FindStringSubmatch(rest); g != nil {
		ref.ItemNumber = number(g[1])
		ref.Title = strings.TrimSpace(g[2])
		ref.ID = fmt.Sprintf("%s_item_%s", ref.AgendaSymbol, g[1])
		return ref, true
	}
	if g := subItem.FindStringSubmatch(rest); g != nil {
		ref.ItemNumber = number(g[1])
		ref.SubItem = strings.Trim(g[2], "[]")
		ref.Title = strings.TrimSpace(g[3])
		ref.ID = fmt.Sprintf("%s_item_%s%s", ref.AgendaSymbol, g[1], ref.SubItem)
		return ref, true
	}

	ref.ID = ref.AgendaSymbol + "_item_unknown"
	ref.Title = strings.TrimSpace(rest)
	return ref, true
}
