// Package download fetches document PDFs from the UN Official Document
// System by symbol.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	unga "github.com/carlohamalainen/un-ga-documents-go"
	"github.com/carlohamalainen/un-ga-documents-go/marc"
	"github.com/carlohamalainen/un-ga-documents-go/pdftext"
)

const AccessURL = "https://documents.un.org/api/symbol/access"

// URL is the ODS access link for symbol. Resolution symbols must use a lower
// case "res" or the API answers with an HTML error page.
func URL(symbol, language string) string {
	return accessURL(AccessURL, symbol, language)
}

func accessURL(base, symbol, language string) string {
	return fmt.Sprintf("%s?s=%s&l=%s&t=pdf", base, strings.ReplaceAll(symbol, "/RES/", "/res/"), language)
}

var ErrNotPDF = errors.New("response is not a pdf")

type Summary struct {
	Total      int
	Downloaded int
	Skipped    int
	Failed     int
	// Pages is the page count of the downloaded PDFs.
	Pages     int
	OutputDir string
}

type Downloader struct {
	Client     *http.Client
	BaseURL    string
	Language   string
	Limiter    *rate.Limiter
	MaxRetries int
	BaseDelay  time.Duration

	// Validate rejects bodies that are not PDFs, typically HTML error
	// pages served with a 200.
	Validate func([]byte) error
	// PageCount is read from each saved file for the summary.
	PageCount func(path string) (int, error)
}

// New returns a downloader that waits delay between requests.
func New(client *http.Client, delay time.Duration) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Downloader{
		Client:     client,
		BaseURL:    AccessURL,
		Language:   "en",
		Limiter:    rate.NewLimiter(rate.Every(delay), 1),
		MaxRetries: 5,
		BaseDelay:  time.Second,
		Validate:   pdftext.Validate,
		PageCount:  pdftext.PageCount,
	}
}

// Fetch downloads one symbol and checks the body is a readable PDF.
func (d *Downloader) Fetch(ctx context.Context, symbol string) ([]byte, error) {
	if err := d.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := accessURL(d.BaseURL, symbol, d.Language)
	body, _, _, err := unga.DownloadWithRetry(ctx, u, d.Client, d.MaxRetries, d.BaseDelay)
	if err != nil {
		return nil, err
	}
	if err := d.Validate(body); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotPDF, symbol, err)
	}
	return body, nil
}

// Run downloads every record's PDF to outputDir/<symbol>.pdf. Existing files
// are left alone.
func (d *Downloader) Run(ctx context.Context, records []marc.Metadata, outputDir string) (Summary, error) {
	s := Summary{Total: len(records), OutputDir: outputDir}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return s, err
	}

	for i, m := range records {
		if err := ctx.Err(); err != nil {
			return s, err
		}

		if m.Symbol == "" {
			slog.Warn("no symbol", "index", i, "record_id", m.RecordID)
			s.Failed++
			continue
		}

		dst := filepath.Join(outputDir, unga.SymbolFilename(m.Symbol)+".pdf")
		if _, err := os.Stat(dst); err == nil {
			s.Skipped++
			continue
		}

		body, err := d.Fetch(ctx, m.Symbol)
		if err != nil {
			slog.Error("download failed", "symbol", m.Symbol, "error", err)
			s.Failed++
			continue
		}

		if err := os.WriteFile(dst, body, 0o644); err != nil {
			return s, fmt.Errorf("failed to write %s: %w", dst, err)
		}
		pages := 0
		if d.PageCount != nil {
			if pages, err = d.PageCount(dst); err != nil {
				slog.Warn("failed to count pages", "file", dst, "error", err)
			}
		}
		slog.Info("downloaded", "symbol", m.Symbol, "size", len(body), "pages", pages, "sha256", unga.Sha256sum(body))
		s.Pages += pages
		s.Downloaded++
	}

	return s, nil
}

// OutputDir is where PDFs for a metadata file go when -o is not given.
func OutputDir(metadataPath, dataRoot string) string {
	root := unga.DataRoot(metadataPath, dataRoot)
	return filepath.Join(root, "documents", "pdfs", unga.Category(metadataPath))
}
