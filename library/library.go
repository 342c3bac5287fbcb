// Package library fetches MARCXML search results from the UN Digital Library
// and stores each search as a single combined collection.
package library

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	unga "github.com/carlohamalainen/un-ga-documents-go"
)

const (
	SearchURL       = "https://digitallibrary.un.org/search"
	DefaultPageSize = 200
	marcNamespace   = "http://www.loc.gov/MARC21/slim"
)

type Client struct {
	HTTP       *http.Client
	BaseURL    string
	PageSize   int
	Delay      time.Duration
	MaxRetries int
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		HTTP:       httpClient,
		BaseURL:    SearchURL,
		PageSize:   DefaultPageSize,
		Delay:      500 * time.Millisecond,
		MaxRetries: 3,
	}
}

var (
	totalPattern  = regexp.MustCompile(`<!--\s*Search-Engine-Total-Number-Of-Results:\s*(\d+)\s*-->`)
	recordPattern = regexp.MustCompile(`(?s)<record[^>]*>.*?</record>`)
)

// ReportedTotal reads the result count the search engine puts in an XML
// comment, falling back to the number of records on the page.
func ReportedTotal(body string) int {
	if m := totalPattern.FindStringSubmatch(body); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return strings.Count(body, "<record>")
}

type rawRecord struct {
	Inner string `xml:",innerxml"`
}

type rawCollection struct {
	Records []rawRecord `xml:"record"`
}

// ExtractRecords returns the <record> elements of a result page. Pages the
// XML decoder rejects are cut apart with a regular expression instead.
func ExtractRecords(body string) (records []string, usedRegex bool) {
	var c rawCollection
	if err := xml.Unmarshal([]byte(body), &c); err == nil {
		for _, r := range c.Records {
			records = append(records, "<record>"+r.Inner+"</record>")
		}
		return records, false
	}
	return recordPattern.FindAllString(body, -1), true
}

func (c *Client) pageURL(params url.Values, jrec int) string {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("of", "xm")
	q.Set("rg", strconv.Itoa(c.PageSize))
	if jrec > 1 {
		q.Set("jrec", strconv.Itoa(jrec))
	}
	return c.BaseURL + "?" + q.Encode()
}

func (c *Client) get(ctx context.Context, u string) (string, error) {
	body, _, _, err := unga.DownloadWithRetry(ctx, u, c.HTTP, c.MaxRetries, time.Second)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchAll pages through every result of a search. Paging stops at a short
// page or once the reported total is covered. When the total equals the page
// size exactly one extra page is requested, since the engine caps the
// reported number at the page size.
func (c *Client) FetchAll(ctx context.Context, params url.Values) ([]string, error) {
	rg := c.PageSize

	first, err := c.get(ctx, c.pageURL(params, 1))
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}

	total := ReportedTotal(first)
	records, usedRegex := ExtractRecords(first)
	slog.Info("fetched page", "page", 1, "records", len(records), "total", total, "regex", usedRegex)

	paginate := total > rg || (len(records) == rg && total == rg)
	if !paginate {
		return records, nil
	}

	numPages := 2
	if total > rg {
		numPages = (total + rg - 1) / rg
	}

	for page := 2; ; page++ {
		if err := unga.Sleep(ctx, c.Delay); err != nil {
			return records, err
		}

		jrec := (page-1)*rg + 1
		body, err := c.get(ctx, c.pageURL(params, jrec))
		if err != nil {
			slog.Warn("page request failed, stopping", "page", page, "jrec", jrec, "error", err)
			break
		}

		pageRecords, regex := ExtractRecords(body)
		records = append(records, pageRecords...)
		slog.Info("fetched page", "page", page, "jrec", jrec, "records", len(pageRecords), "regex", regex)

		if len(pageRecords) < rg {
			break
		}
		if total > rg && page >= numPages {
			break
		}
	}

	return records, nil
}

// CombineRecords wraps records in one MARC collection with the record count
// in the same comment the search engine uses.
func CombineRecords(records []string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, "<!-- Search-Engine-Total-Number-Of-Results: %d -->\n", len(records))
	fmt.Fprintf(&b, "<collection xmlns=%q>\n", marcNamespace)
	b.WriteString(strings.Join(records, "\n"))
	b.WriteString("\n</collection>")
	return b.String()
}

// Fetch runs a query and writes the combined collection into dir.
func (c *Client) Fetch(ctx context.Context, q Query, dir string) (string, int, error) {
	records, err := c.FetchAll(ctx, q.Params)
	if err != nil {
		return "", 0, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, err
	}
	path := filepath.Join(dir, q.File)
	if err := os.WriteFile(path, []byte(CombineRecords(records)), 0o644); err != nil {
		return "", 0, fmt.Errorf("failed to write %s: %w", path, err)
	}

	slog.Info("saved search", "type", q.Type, "path", path, "records", len(records))
	return path, len(records), nil
}
