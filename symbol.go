package unga

import (
	"strconv"
	"strings"
	"time"
)

// NormalizeSymbol turns a filename-style symbol such as A_RES_78_220 back into
// A/RES/78/220.
func NormalizeSymbol(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(symbol)), "_", "/")
}

// SymbolFilename is the on-disk stem used for a document symbol.
func SymbolFilename(symbol string) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(symbol)
}

// SessionFromSymbol returns the session number embedded in a symbol, or 0.
func SessionFromSymbol(symbol string) int {
	for _, part := range strings.Split(symbol, "/") {
		if len(part) == 0 || len(part) > 3 {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

var unDateLayouts = []string{
	"2 Jan. 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2006-01-02",
}

// ParseUNDate handles imprint dates like "[New York] : UN, 16 Oct. 2023" as
// well as plain ISO dates. The zero time means the date was not recognised.
func ParseUNDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}

	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = strings.TrimSpace(s[i+1:])
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, "UN,"))

	for _, layout := range unDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
