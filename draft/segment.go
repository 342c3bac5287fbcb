package draft

import (
	"regexp"
	"strings"
)

// Segments is the draft text split into its preamble and operative parts.
type Segments struct {
	Preamble            string   `json:"preamble"`
	Operative           string   `json:"operative"`
	PreambleParagraphs  []string `json:"preamble_paragraphs"`
	OperativeParagraphs []string `json:"operative_paragraphs"`
}

// PreambleStarters open a new preambular paragraph.
var PreambleStarters = []string{
	"The General Assembly",
	"Guided",
	"Recalling",
	"Welcoming",
	"Recognizing",
	"Noting",
	"Reaffirming",
	"Bearing in mind",
	"Mindful",
	"Acknowledging",
	"Emphasizing",
	"Convinced",
	"Concerned",
	"Aware",
	"Deeply concerned",
	"Gravely concerned",
	"Alarmed",
	"Appreciating",
	"Deploring",
	"Desirous",
	"Determined",
	"Expressing",
	"Having considered",
	"Having examined",
	"Observing",
	"Reiterating",
	"Stressing",
	"Taking into account",
	"Taking note",
	"Underlining",
	"Affirming",
	"Believing",
	"Considering",
	"Desiring",
}

var (
	operativeStart  = regexp.MustCompile(`\n\s*1\.\s+[A-Z]`)
	operativeMarker = regexp.MustCompile(`\n\s*(\d+)\.\s+`)
	subMarker       = regexp.MustCompile(`\n\s*\(([a-z])\)\s+`)
)

// Segment splits at the first "1. Xxx" paragraph. Without one the whole text
// is preamble.
func Segment(text string) Segments {
	loc := operativeStart.FindStringIndex(text)
	if loc == nil {
		return Segments{
			Preamble:            strings.TrimSpace(text),
			PreambleParagraphs:  splitPreamble(text),
			OperativeParagraphs: []string{},
		}
	}

	preamble := strings.TrimSpace(text[:loc[0]])
	operative := strings.TrimSpace(text[loc[0]:])

	return Segments{
		Preamble:            preamble,
		Operative:           operative,
		PreambleParagraphs:  splitPreamble(preamble),
		OperativeParagraphs: splitOperative(operative),
	}
}

func startsPreamble(line string) bool {
	for _, s := range PreambleStarters {
		if strings.HasPrefix(line, s) {
			return true
		}
	}
	return false
}

func splitPreamble(text string) []string {
	paragraphs := []string{}
	var current []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if startsPreamble(line) && len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = nil
		}
		current = append(current, line)
	}

	if len(current) > 0 {
		paragraphs = append(paragraphs, strings.Join(current, " "))
	}
	return paragraphs
}

// splitMarked cuts text at each marker match and returns (label, content)
// pairs. Text before the first marker is dropped.
func splitMarked(marker *regexp.Regexp, text string) [][2]string {
	locs := marker.FindAllStringSubmatchIndex(text, -1)
	out := make([][2]string, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		out = append(out, [2]string{text[loc[2]:loc[3]], strings.TrimSpace(text[loc[1]:end])})
	}
	return out
}

func splitOperative(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}
	text = "\n" + strings.TrimSpace(text)

	paragraphs := []string{}
	for _, p := range splitMarked(operativeMarker, text) {
		paragraphs = append(paragraphs, p[0]+". "+p[1])
	}
	return paragraphs
}

// SubParagraphs returns the lettered "(a) ..." parts of an operative
// paragraph, or nil when it has none.
func SubParagraphs(paragraph string) []string {
	parts := splitMarked(subMarker, paragraph)
	if len(parts) == 0 {
		return nil
	}
	subs := make([]string, 0, len(parts))
	for _, p := range parts {
		subs = append(subs, "("+p[0]+") "+p[1])
	}
	return subs
}
