// Package marc decodes MARCXML exports from the UN Digital Library and maps
// the fields the pipeline uses onto metadata and voting records.
package marc

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

const Namespace = "http://www.loc.gov/MARC21/slim"

type Collection struct {
	XMLName xml.Name `xml:"collection"`
	Records []Record `xml:"record"`
}

type Record struct {
	ControlFields []ControlField `xml:"controlfield"`
	DataFields    []DataField    `xml:"datafield"`
}

type ControlField struct {
	Tag   string `xml:"tag,attr"`
	Value string `xml:",chardata"`
}

type DataField struct {
	Tag       string     `xml:"tag,attr"`
	Ind1      string     `xml:"ind1,attr"`
	Ind2      string     `xml:"ind2,attr"`
	Subfields []Subfield `xml:"subfield"`
}

type Subfield struct {
	Code  string `xml:"code,attr"`
	Value string `xml:",chardata"`
}

// Decode reads a <collection> document. A bare <record> root is accepted too.
func Decode(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var c Collection
	if err := xml.Unmarshal(data, &c); err == nil {
		return c.Records, nil
	}

	var rec Record
	if err := xml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode MARCXML: %w", err)
	}
	return []Record{rec}, nil
}

func DecodeFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Control returns the trimmed value of a control field.
func (r Record) Control(tag string) string {
	for _, cf := range r.ControlFields {
		if cf.Tag == tag {
			return strings.TrimSpace(cf.Value)
		}
	}
	return ""
}

// Fields returns every data field with the tag, in document order.
func (r Record) Fields(tag string) []DataField {
	var out []DataField
	for _, df := range r.DataFields {
		if df.Tag == tag {
			out = append(out, df)
		}
	}
	return out
}

// Field returns the first data field with the tag.
func (r Record) Field(tag string) (DataField, bool) {
	for _, df := range r.DataFields {
		if df.Tag == tag {
			return df, true
		}
	}
	return DataField{}, false
}

// Sub returns the first subfield value with the code.
func (f DataField) Sub(code string) (string, bool) {
	for _, sf := range f.Subfields {
		if sf.Code == code {
			return strings.TrimSpace(sf.Value), true
		}
	}
	return "", false
}

// SubValue is the first $code of the first field with the tag, or "".
func (r Record) SubValue(tag, code string) string {
	for _, df := range r.Fields(tag) {
		if v, ok := df.Sub(code); ok {
			return v
		}
	}
	return ""
}
