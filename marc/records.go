package marc

import (
	"strconv"
	"strings"
)

type File struct {
	Language string `json:"language,omitempty"`
	Size     int    `json:"size,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Metadata is the bibliographic record of one document.
type Metadata struct {
	RecordID string   `json:"record_id,omitempty"`
	Symbol   string   `json:"symbol,omitempty"`
	Title    string   `json:"title,omitempty"`
	Date     string   `json:"date,omitempty"`
	Subjects []string `json:"subjects,omitempty"`
	Authors  []string `json:"authors,omitempty"`
	Files    []File   `json:"files,omitempty"`
}

// IsZero reports a record with no usable field.
func (m Metadata) IsZero() bool {
	return m.RecordID == "" && m.Symbol == "" && m.Title == "" && m.Date == "" &&
		len(m.Subjects) == 0 && len(m.Authors) == 0 && len(m.Files) == 0
}

// PDFURL returns the English file link, or the first link when there is no
// English one.
func (m Metadata) PDFURL() string {
	for _, f := range m.Files {
		if strings.EqualFold(f.Language, "English") && f.URL != "" {
			return f.URL
		}
	}
	for _, f := range m.Files {
		if f.URL != "" {
			return f.URL
		}
	}
	return ""
}

// ParseMetadata maps 001 record id, 191/791 symbol, 245 title, 269 date,
// 650 subjects, 710 corporate authors and 856 file links.
func ParseMetadata(r Record) Metadata {
	m := Metadata{RecordID: r.Control("001")}

	symbolField, ok := r.Field("191")
	if !ok {
		symbolField, ok = r.Field("791")
	}
	if ok {
		m.Symbol, _ = symbolField.Sub("a")
	}

	if tf, ok := r.Field("245"); ok {
		var parts []string
		for _, sf := range tf.Subfields {
			if v := strings.TrimSpace(sf.Value); v != "" {
				parts = append(parts, v)
			}
		}
		m.Title = strings.Join(parts, " ")
	}

	m.Date = r.SubValue("269", "a")

	for _, f := range r.Fields("650") {
		if v, ok := f.Sub("a"); ok {
			m.Subjects = append(m.Subjects, v)
		}
	}
	for _, f := range r.Fields("710") {
		if v, ok := f.Sub("a"); ok {
			m.Authors = append(m.Authors, v)
		}
	}

	for _, f := range r.Fields("856") {
		var file File
		file.Language, _ = f.Sub("y")
		if s, ok := f.Sub("s"); ok {
			file.Size, _ = strconv.Atoi(s)
		}
		file.URL, _ = f.Sub("u")
		if file != (File{}) {
			m.Files = append(m.Files, file)
		}
	}

	return m
}

type Counts struct {
	Yes       int `json:"yes"`
	No        int `json:"no"`
	Abstain   int `json:"abstain"`
	NonVoting int `json:"non_voting"`
	Total     int `json:"total"`
}

type Vote struct {
	Country string `json:"country"`
	Vote    string `json:"vote"`
}

// Voting is a recorded vote from the "Voting Data" collection.
type Voting struct {
	RecordID string  `json:"record_id"`
	Symbol   string  `json:"symbol"`
	Title    string  `json:"title"`
	Date     string  `json:"date,omitempty"`
	VoteType string  `json:"vote_type"`
	Counts   *Counts `json:"counts,omitempty"`
	Votes    []Vote  `json:"votes"`
}

func subInt(f DataField, code string) int {
	v, _ := f.Sub(code)
	n, _ := strconv.Atoi(v)
	return n
}

// ParseVoting maps 791 resolution symbol, 245 a/b/c title, 269 date, 590 vote
// type, 996 tallies and the 967 per-country votes. Vote codes are Y, N, A;
// a country without a code is recorded as "X".
func ParseVoting(r Record) Voting {
	v := Voting{RecordID: r.Control("001"), Votes: []Vote{}}
	if v.RecordID == "" {
		v.RecordID = "unknown"
	}

	v.Symbol = r.SubValue("791", "a")
	if v.Symbol == "" {
		v.Symbol = r.SubValue("191", "a")
	}
	if v.Symbol == "" {
		v.Symbol = "vote_" + v.RecordID
	}

	var title []string
	for _, code := range []string{"a", "b", "c"} {
		if s := r.SubValue("245", code); s != "" {
			title = append(title, s)
		}
	}
	v.Title = strings.Join(title, " ")

	v.Date = r.SubValue("269", "a")

	v.VoteType = r.SubValue("590", "a")
	if v.VoteType == "" {
		v.VoteType = "Unknown"
	}

	if f, ok := r.Field("996"); ok {
		v.Counts = &Counts{
			Yes:       subInt(f, "b"),
			No:        subInt(f, "c"),
			Abstain:   subInt(f, "d"),
			NonVoting: subInt(f, "e"),
			Total:     subInt(f, "f"),
		}
	}

	for _, f := range r.Fields("967") {
		country, ok := f.Sub("e")
		if !ok {
			continue
		}
		code, ok := f.Sub("d")
		if !ok || code == "" {
			code = "X"
		}
		v.Votes = append(v.Votes, Vote{Country: country, Vote: code})
	}

	return v
}
