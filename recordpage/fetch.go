package recordpage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/yosssi/gohtml"
	"golang.org/x/time/rate"

	unga "github.com/carlohamalainen/un-ga-documents-go"
	"github.com/carlohamalainen/un-ga-documents-go/marc"
)

// Fetcher returns the HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches with a plain (usually caching) HTTP client.
type HTTPFetcher struct {
	Client     *http.Client
	MaxRetries int
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	retries := f.MaxRetries
	if retries <= 0 {
		retries = 5
	}
	body, _, _, err := unga.DownloadWithRetry(ctx, url, f.Client, retries, time.Second)
	return body, err
}

// BrowserFetcher renders pages in headless Chromium. Point it at the caching
// proxy to avoid fetching a page twice.
type BrowserFetcher struct {
	browser *rod.Browser
	Settle  time.Duration
}

func NewBrowserFetcher(proxy string) (*BrowserFetcher, error) {
	l := launcher.New().
		Headless(true).
		Set("ignore-certificate-errors")
	if proxy != "" {
		l = l.Proxy(proxy)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	return &BrowserFetcher{browser: browser, Settle: time.Second}, nil
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	page, err := f.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", url, err)
	}
	defer page.Close()

	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("page did not load: %w", err)
	}
	if err := page.WaitStable(f.Settle); err != nil {
		return nil, fmt.Errorf("page did not settle: %w", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, err
	}
	return []byte(html), nil
}

func (f *BrowserFetcher) Close() error {
	return f.browser.Close()
}

// FileName is the saved name of a record page. Parse recovers the record id
// from it.
func FileName(symbol, recordID string) string {
	switch {
	case recordID != "" && symbol != "":
		return fmt.Sprintf("%s_record_%s.html", unga.SymbolFilename(symbol), recordID)
	case recordID != "":
		return fmt.Sprintf("record_%s.html", recordID)
	}
	return unga.SymbolFilename(symbol) + ".html"
}

// PageURL prefers the Digital Library record and falls back to docs.un.org.
func PageURL(m marc.Metadata) (string, error) {
	switch {
	case m.RecordID != "":
		return RecordURL(m.RecordID), nil
	case m.Symbol != "":
		return DocsURL(m.Symbol, "en"), nil
	}
	return "", errors.New("record has neither symbol nor record id")
}

type Summary struct {
	Total      int
	Downloaded int
	Existing   int
	Failed     int
	Fallback   int
}

// Downloader saves record pages for metadata records.
type Downloader struct {
	Fetcher Fetcher
	Limiter *rate.Limiter

	// Pretty re-indents the saved HTML with gohtml.
	Pretty bool
}

func (d *Downloader) Download(ctx context.Context, records []marc.Metadata, outputDir string) (Summary, error) {
	s := Summary{Total: len(records)}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return s, err
	}

	for i, m := range records {
		u, err := PageURL(m)
		if err != nil {
			slog.Warn("skipping record", "index", i, "error", err)
			s.Failed++
			continue
		}
		if m.RecordID == "" {
			s.Fallback++
		}

		dst := filepath.Join(outputDir, FileName(m.Symbol, m.RecordID))
		if _, err := os.Stat(dst); err == nil {
			slog.Debug("already exists", "file", dst)
			s.Existing++
			continue
		}

		if d.Limiter != nil {
			if err := d.Limiter.Wait(ctx); err != nil {
				return s, err
			}
		}

		body, err := d.Fetcher.Fetch(ctx, u)
		if err != nil {
			slog.Error("failed to fetch record page", "symbol", m.Symbol, "url", u, "error", err)
			s.Failed++
			continue
		}
		if d.Pretty {
			body = []byte(gohtml.Format(string(body)))
		}

		if err := os.WriteFile(dst, body, 0o644); err != nil {
			return s, fmt.Errorf("failed to write %s: %w", dst, err)
		}
		slog.Info("downloaded", "symbol", m.Symbol, "url", u, "size", len(body))
		s.Downloaded++
	}

	return s, nil
}
