package meeting

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/carlohamalainen/un-ga-documents-go/pdftext"
)

type Metadata struct {
	ID              string   `json:"id,omitempty"`
	Symbol          string   `json:"symbol,omitempty"`
	Session         string   `json:"session,omitempty"`
	MeetingNumber   int      `json:"meeting_number,omitempty"`
	Datetime        string   `json:"datetime,omitempty"`
	Location        string   `json:"location,omitempty"`
	President       string   `json:"president,omitempty"`
	Chair           string   `json:"chair,omitempty"`
	CalledToOrderAt string   `json:"called_to_order_at,omitempty"`
	AgendaItems     []string `json:"agenda_items,omitempty"`
}

var (
	symbolPattern        = regexp.MustCompile(`(?i)A\s*/\s*(\d+)\s*/\s*(PV\.\d+)`)
	sessionPattern       = regexp.MustCompile(`(?i)([A-Za-z-]+\s+session)`)
	meetingNumberPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:st|nd|rd|th)\s+plenary meeting`)
	datetimePattern      = regexp.MustCompile(`(?i)([A-Za-z]+,\s+\d{1,2}\s+[A-Za-z]+\s+\d{4},\s+[0-9.apm\s]+)`)
	locationPattern      = regexp.MustCompile(`(?i)(New York|Geneva|Vienna)`)
	calledToOrder        = regexp.MustCompile(`The meeting was called to order at ([^.\n]+)`)
	agendaLinePattern    = regexp.MustCompile(`(?i)Agenda item\s+\d+[^\n]*`)
)

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// normalized flattens the first n bytes onto one line for the masthead
// patterns, which often wrap across lines in the PDF text.
func normalized(text string, n int) string {
	return pdftext.Collapse(strings.ReplaceAll(head(text, n), "\n", " "))
}

func extractSymbol(text string) string {
	m := symbolPattern.FindStringSubmatch(normalized(text, 3000))
	if m == nil {
		return ""
	}
	return "A/" + m[1] + "/" + strings.ToUpper(m[2])
}

func extractSession(text string) string {
	m := sessionPattern.FindStringSubmatch(normalized(text, 2000))
	if m == nil {
		return ""
	}
	return strings.TrimRight(strings.TrimSpace(m[1]), ".")
}

func extractMeetingNumber(text string) int {
	m := meetingNumberPattern.FindStringSubmatch(normalized(text, 2000))
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func extractDatetime(text string) string {
	m := datetimePattern.FindStringSubmatch(normalized(text, 2000))
	if m == nil {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(m[1], " .", "."))
}

func extractLocation(text string) string {
	m := locationPattern.FindStringSubmatch(normalized(text, 2000))
	if m == nil {
		return ""
	}
	return m[1]
}

func extractPresident(text string) string {
	for _, line := range strings.Split(head(text, 2000), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "President:") {
			_, after, _ := strings.Cut(line, "President:")
			return pdftext.Collapse(after)
		}
	}
	return ""
}

func extractChair(text string) string {
	for _, line := range strings.Split(head(text, 2000), "\n") {
		if strings.Contains(line, "took the Chair") {
			return pdftext.Collapse(line)
		}
	}
	return ""
}

func extractCalledToOrder(text string) string {
	m := calledToOrder.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return pdftext.Collapse(m[1])
}

// ExtractMetadata reads the masthead of a verbatim record.
func ExtractMetadata(text string) Metadata {
	md := Metadata{
		Symbol:          extractSymbol(text),
		Session:         extractSession(text),
		MeetingNumber:   extractMeetingNumber(text),
		Datetime:        extractDatetime(text),
		Location:        extractLocation(text),
		President:       extractPresident(text),
		Chair:           extractChair(text),
		CalledToOrderAt: extractCalledToOrder(text),
	}
	for _, m := range agendaLinePattern.FindAllString(text, -1) {
		md.AgendaItems = append(md.AgendaItems, pdftext.Collapse(m))
	}
	return md
}
