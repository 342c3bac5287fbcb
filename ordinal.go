package unga

import (
	"regexp"
	"strconv"
	"strings"
)

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"eleventh": 11, "twelfth": 12, "thirteenth": 13, "fourteenth": 14, "fifteenth": 15,
	"sixteenth": 16, "seventeenth": 17, "eighteenth": 18, "nineteenth": 19,
	"twentieth": 20, "thirtieth": 30, "fortieth": 40, "fiftieth": 50,
	"sixtieth": 60, "seventieth": 70, "eightieth": 80, "ninetieth": 90,
}

var tensWords = map[string]int{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

var leadingDigits = regexp.MustCompile(`\d+`)

// OrdinalNumber converts a session ordinal such as "Seventy-eighth" or "78th"
// to its number. It returns 0 when the word is not an ordinal.
func OrdinalNumber(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0
	}

	if d := leadingDigits.FindString(s); d != "" {
		n, _ := strconv.Atoi(d)
		return n
	}

	if n, ok := ordinalWords[s]; ok {
		return n
	}

	tens, unit, ok := strings.Cut(s, "-")
	if !ok {
		return 0
	}
	t, okTens := tensWords[tens]
	u, okUnit := ordinalWords[unit]
	if !okTens || !okUnit || u >= 10 {
		return 0
	}
	return t + u
}
