// Package recordpage parses the HTML record pages of the UN Digital Library.
// They carry what MARCXML does not: the vote summary, the related drafts,
// committee reports and meeting records, and the agenda items a document was
// considered under.
package recordpage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	unga "github.com/carlohamalainen/un-ga-documents-go"
)

const BaseURL = "https://digitallibrary.un.org"

type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type File struct {
	Language string `json:"language"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

type Metadata struct {
	ID          string   `json:"id"`
	Symbol      string   `json:"symbol,omitempty"`
	RecordID    string   `json:"record_id,omitempty"`
	Title       string   `json:"title,omitempty"`
	Date        string   `json:"date,omitempty"`
	ActionNote  string   `json:"action_note,omitempty"`
	Description string   `json:"description,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Authors     []string `json:"authors"`
	SourceFile  string   `json:"source_file,omitempty"`
}

type Related struct {
	Drafts           []Link `json:"drafts"`
	CommitteeReports []Link `json:"committee_reports"`
	MeetingRecords   []Link `json:"meeting_records"`
}

// Page is everything extracted from one record page.
type Page struct {
	ID               string       `json:"id"`
	URL              string       `json:"url,omitempty"`
	Metadata         Metadata     `json:"metadata"`
	Voting           *VoteSummary `json:"voting"`
	RelatedDocuments Related      `json:"related_documents"`
	Agenda           []AgendaRef  `json:"agenda"`
	Files            []File       `json:"files"`
	PDFURLs          []string     `json:"pdf_urls"`
	Subjects         []string     `json:"subjects"`
}

// RecordURL is the record page for a Digital Library record id.
func RecordURL(recordID string) string {
	return fmt.Sprintf("%s/record/%s?v=pdf", BaseURL, recordID)
}

// DocsURL is the docs.un.org page used when a record id is unknown.
func DocsURL(symbol, language string) string {
	return fmt.Sprintf("https://docs.un.org/%s/%s", language, strings.ReplaceAll(symbol, "/RES/", "/res/"))
}

// absolute resolves Digital Library relative links.
func absolute(href string) string {
	switch {
	case strings.HasPrefix(href, "http"):
		return href
	case strings.HasPrefix(href, "/"):
		return BaseURL + href
	}
	return BaseURL + "/" + href
}

// text joins the trimmed text nodes under s with single spaces.
func text(s *goquery.Selection) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}

func row(doc *goquery.Document, title string) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("div.metadata-row").EachWithBreak(func(_ int, r *goquery.Selection) bool {
		if strings.TrimSpace(r.Find("div.title").First().Text()) == title {
			found = r.Find("div.value").First()
			return false
		}
		return true
	})
	return found
}

func rowValue(doc *goquery.Document, title string) string {
	v := row(doc, title)
	if v == nil || v.Length() == 0 {
		return ""
	}
	return text(v)
}

func rowLinks(doc *goquery.Document, title string) []Link {
	links := []Link{}
	v := row(doc, title)
	if v == nil {
		return links
	}
	v.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		links = append(links, Link{Text: strings.TrimSpace(a.Text()), URL: absolute(href)})
	})
	return links
}

var (
	pdfLanguage = regexp.MustCompile(`-([A-Z]{2})\.pdf$`)
	recordIDRe  = regexp.MustCompile(`record_(\d+)`)
)

var languages = map[string]string{
	"EN": "English",
	"FR": "French",
	"ES": "Spanish",
	"AR": "Arabic",
	"RU": "Russian",
	"ZH": "Chinese",
}

func citationFiles(doc *goquery.Document) []File {
	var files []File
	doc.Find(`meta[name="citation_pdf_url"]`).Each(func(_ int, m *goquery.Selection) {
		u := strings.TrimSpace(m.AttrOr("content", ""))
		if !strings.HasSuffix(u, ".pdf") {
			return
		}
		code := "EN"
		if g := pdfLanguage.FindStringSubmatch(u); g != nil {
			code = g[1]
		}
		lang, ok := languages[code]
		if !ok {
			lang = code
		}
		files = append(files, File{Language: lang, Filename: u[strings.LastIndex(u, "/")+1:], URL: u})
	})
	return files
}

// accessFiles reads the "Access" row, laid out as
// <strong>English:</strong> <em>file.pdf</em> - <a href="...">PDF</a>.
func accessFiles(doc *goquery.Document) []File {
	v := row(doc, "Access")
	if v == nil {
		return nil
	}

	var (
		files    []File
		lang     string
		filename string
	)
	v.Children().Each(func(_ int, c *goquery.Selection) {
		switch goquery.NodeName(c) {
		case "strong":
			lang = strings.TrimSuffix(strings.TrimSpace(c.Text()), ":")
		case "em":
			filename = strings.TrimSpace(c.Text())
		case "a":
			if lang == "" {
				return
			}
			files = append(files, File{Language: lang, Filename: filename, URL: absolute(c.AttrOr("href", ""))})
			lang = ""
		}
	})
	return files
}

func subjects(doc *goquery.Document) []string {
	out := []string{}
	doc.Find("div.related-subjects a.rs-link").Each(func(_ int, a *goquery.Selection) {
		if s := strings.TrimSpace(a.Text()); s != "" {
			out = append(out, s)
		}
	})
	return out
}

func agendaRefs(doc *goquery.Document) []AgendaRef {
	v := row(doc, "Agenda information")
	if v == nil {
		return nil
	}
	var refs []AgendaRef
	v.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		ref, ok := ParseAgendaRef(strings.TrimSpace(a.Text()))
		if !ok {
			return
		}
		ref.URL = absolute(a.AttrOr("href", ""))
		refs = append(refs, ref)
	})
	return refs
}

// Parse reads a record page. sourceFile is the saved file name; a
// record_<id> part in it supplies the record id.
func Parse(r io.Reader, sourceFile string) (*Page, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	md := Metadata{
		Symbol:      rowValue(doc, "Symbol"),
		Title:       rowValue(doc, "Title"),
		Date:        rowValue(doc, "Date"),
		ActionNote:  rowValue(doc, "Action note"),
		Description: rowValue(doc, "Description"),
		Notes:       rowValue(doc, "Notes"),
		Authors:     []string{},
		SourceFile:  sourceFile,
	}
	if a := rowValue(doc, "Authors"); a != "" {
		md.Authors = append(md.Authors, a)
	}
	if m := recordIDRe.FindStringSubmatch(unga.Stem(sourceFile)); m != nil {
		md.RecordID = m[1]
	}
	md.ID = md.RecordID
	if md.ID == "" {
		md.ID = md.Symbol
	}

	p := &Page{
		ID:       md.ID,
		Metadata: md,
		RelatedDocuments: Related{
			Drafts:           rowLinks(doc, "Draft"),
			CommitteeReports: rowLinks(doc, "Committee report"),
			MeetingRecords:   rowLinks(doc, "Meeting record"),
		},
		Agenda:   agendaRefs(doc),
		Files:    []File{},
		PDFURLs:  []string{},
		Subjects: subjects(doc),
	}
	if md.RecordID != "" {
		p.URL = RecordURL(md.RecordID)
	}
	if v := rowValue(doc, "Vote summary"); v != "" {
		p.Voting = ParseVoteSummary(v)
	}

	citations := citationFiles(doc)
	seen := map[string]bool{}
	for _, f := range append(citations, accessFiles(doc)...) {
		if f.URL == "" || seen[f.URL] {
			continue
		}
		seen[f.URL] = true
		p.Files = append(p.Files, f)
	}
	for _, f := range citations {
		p.PDFURLs = append(p.PDFURLs, f.URL)
	}

	return p, nil
}

func ParseFile(_ context.Context, path string) (*Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f, filepath.Base(path))
}
