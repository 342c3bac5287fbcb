package meeting

import (
	"regexp"
	"strings"

	"github.com/carlohamalainen/un-ga-documents-go/pdftext"
)

type Speaker struct {
	Raw         string `json:"raw"`
	Name        string `json:"name,omitempty"`
	Role        string `json:"role,omitempty"`
	Honorific   string `json:"honorific,omitempty"`
	Affiliation string `json:"affiliation,omitempty"`
}

var (
	leaderDots         = regexp.MustCompile(`\.{3,}`)
	affiliationPattern = regexp.MustCompile(`^(.+?)\s*\(([^)]+)\)\s*$`)
	honorificPattern   = regexp.MustCompile(`^(Mr\.|Ms\.|Mrs\.|Dr\.|Sir|Madam|Ambassador)\s+(.*)$`)
)

// ParseSpeaker splits a speaker header such as "Mr. Kariuki (Kenya)" or
// "The Acting President" into its parts.
func ParseSpeaker(header string) Speaker {
	cleaned := pdftext.Collapse(leaderDots.ReplaceAllString(header, " "))
	sp := Speaker{Raw: cleaned}

	if m := affiliationPattern.FindStringSubmatch(cleaned); m != nil {
		cleaned = strings.TrimSpace(m[1])
		sp.Affiliation = strings.TrimSpace(m[2])
	}

	if strings.HasPrefix(strings.ToLower(cleaned), "the ") {
		sp.Role = cleaned
		sp.Name = cleaned
		return sp
	}

	if m := honorificPattern.FindStringSubmatch(cleaned); m != nil {
		sp.Honorific = m[1]
		sp.Name = strings.TrimSpace(m[2])
		return sp
	}

	sp.Name = cleaned
	return sp
}

// IsPresiding reports whether the speaker is the President or an Acting or
// Vice-President in the chair.
func (s Speaker) IsPresiding() bool {
	return strings.Contains(strings.ToLower(s.Raw), "president")
}
