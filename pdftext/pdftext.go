// Package pdftext turns UN PDF documents into clean plain text.
//
// Text extraction shells out to poppler's pdftotext; structural checks use
// pdfcpu so a saved HTML error page is never mistaken for a document.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/unicode/norm"
)

// ExtractText returns the text of each page of the PDF at path.
func ExtractText(ctx context.Context, path string) ([]string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return nil, fmt.Errorf("pdftotext not found, this tool is required: %w", err)
	}

	cmd := exec.CommandContext(ctx, "pdftotext", "-enc", "UTF-8", "-eol", "unix", path, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftotext failed on %s: %w, stderr: %s", path, err, stderr.String())
	}

	pages := strings.Split(stdout.String(), "\f")
	// pdftotext terminates the last page with a form feed too
	if n := len(pages); n > 1 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return pages, nil
}

// PageCount reads the page tree of the PDF at path.
func PageCount(path string) (int, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF context: %w", err)
	}
	return pdfCtx.PageCount, nil
}

// Validate checks that data is a readable PDF with at least one page.
func Validate(data []byte) error {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\r\n\t "), []byte("%PDF-")) {
		return fmt.Errorf("missing %%PDF- header")
	}

	pdfCtx, err := api.ReadContext(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return fmt.Errorf("failed to read PDF context: %w", err)
	}
	if pdfCtx.PageCount == 0 {
		return fmt.Errorf("PDF has no pages")
	}
	return nil
}

var (
	footerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d{2}-\d{5}\s*\([A-Z]\)\s*\d{6}$`), // 23-21227 (E) 131123
		regexp.MustCompile(`^\*\d{7}\*$`),                       // *2321227*
		regexp.MustCompile(`^\d+/\d+\s+\d{2}-\d{5}$`),           // 2/9 23-21227
		regexp.MustCompile(`^\d{2}-\d{5}\s+\d+/\d+$`),           // 23-18952 3/4
		regexp.MustCompile(`^_{10,}$`),
	}

	headerPattern = regexp.MustCompile(`^A/(?:C\.\d+/)?(?:RES/)?\d+/[A-Z0-9.]+$`)

	blankRuns  = regexp.MustCompile(`\n{3,}`)
	whitespace = regexp.MustCompile(`\s+`)
)

// IsFooterLine reports job numbers, barcodes, page counters, footnote rules
// and the recycling notice.
func IsFooterLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	for _, p := range footerPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(line), "please recycle")
}

// IsHeaderLine reports the running document symbol printed on pages 2+.
func IsHeaderLine(line string) bool {
	line = strings.TrimSpace(line)
	return line != "" && headerPattern.MatchString(line)
}

// CleanPage drops headers and footers from one page. pageNum is 1-based.
func CleanPage(text string, pageNum int) string {
	lines := strings.Split(norm.NFKC.String(text), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if IsFooterLine(line) {
			continue
		}
		if pageNum > 1 && IsHeaderLine(line) {
			continue
		}
		kept = append(kept, strings.TrimRight(line, " \t\r"))
	}
	return strings.Join(kept, "\n")
}

// Clean joins cleaned pages into one text.
func Clean(pages []string) string {
	cleaned := make([]string, 0, len(pages))
	for i, page := range pages {
		cleaned = append(cleaned, CleanPage(page, i+1))
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(strings.Join(cleaned, "\n"), "\n\n"))
}

// Collapse reduces every whitespace run to a single space.
func Collapse(s string) string {
	return whitespace.ReplaceAllString(strings.TrimSpace(s), " ")
}

// LoadText extracts and cleans a PDF. Any other file is read as UTF-8 text,
// which is how pre-extracted dumps and fixtures are fed to the parsers.
func LoadText(ctx context.Context, path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		pages, err := ExtractText(ctx, path)
		if err != nil {
			return "", err
		}
		return Clean(pages), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
