package pdftext

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsFooterLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"23-21227 (E) 131123", true},
		{"*2321227*", true},
		{"2/9 23-21227", true},
		{"23-18952 3/4", true},
		{"____________________", true},
		{"Please recycle ♲", true},
		{"", false},
		{"1. Decides to include in the provisional agenda", false},
		{"78/528 A", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFooterLine(tt.line))
		})
	}
}

func TestCleanPageDropsHeaderOnlyAfterFirstPage(t *testing.T) {
	page := "A/C.3/78/L.41\nRecalling its resolution 77/1,\n2/9 23-21227"

	assert.Equal(t, "A/C.3/78/L.41\nRecalling its resolution 77/1,", CleanPage(page, 1))
	assert.Equal(t, "Recalling its resolution 77/1,", CleanPage(page, 2))
}

func TestCleanFoldsLigaturesAndBlankRuns(t *testing.T) {
	pages := []string{"The General Assembly,\n\n\n\nReaﬃrming", "A/78/251\n*2321227*\nNoting"}

	got := Clean(pages)
	assert.Equal(t, "The General Assembly,\n\nReaffirming\nNoting", got)
}

func TestCollapse(t *testing.T) {
	assert.Equal(t, "Hello world there", Collapse("  Hello    world\n\tthere "))
}

func TestValidateRejectsHTML(t *testing.T) {
	err := Validate([]byte("<!DOCTYPE html><html><body>Not found</body></html>"))
	require.Error(t, err)
}

func TestLoadTextReadsPlainFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "A_78_251.txt")
	require.NoError(t, os.WriteFile(path, []byte("Agenda of the seventy-eighth session"), 0o600))

	got, err := LoadText(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Agenda of the seventy-eighth session", got)
}
