package marc

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	unga "github.com/carlohamalainen/un-ga-documents-go"
)

// ParseMetadataFile returns every non-empty record of an XML export.
func ParseMetadataFile(path string) ([]Metadata, error) {
	records, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	slog.Info("decoded MARCXML", "path", path, "records", len(records))

	out := make([]Metadata, 0, len(records))
	for _, r := range records {
		if m := ParseMetadata(r); !m.IsZero() {
			out = append(out, m)
		}
	}
	return out, nil
}

// WriteMetadataDir writes one JSON file per record, named after its symbol.
// Records without a symbol fall back to the record id.
func WriteMetadataDir(records []Metadata, outputDir string) (int, error) {
	n := 0
	for _, m := range records {
		name := m.Symbol
		if name == "" {
			name = "record_" + m.RecordID
		}
		path := filepath.Join(outputDir, unga.SymbolFilename(name)+".json")
		if err := unga.WriteJSON(path, m); err != nil {
			return n, fmt.Errorf("failed to write %s: %w", path, err)
		}
		n++
	}
	return n, nil
}

// ParseVotingFile decodes a voting export and writes one JSON file per
// record into outputDir.
func ParseVotingFile(path, outputDir string) ([]Voting, error) {
	records, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	slog.Info("decoded voting MARCXML", "path", path, "records", len(records))

	out := make([]Voting, 0, len(records))
	for _, r := range records {
		v := ParseVoting(r)
		dst := filepath.Join(outputDir, unga.SymbolFilename(v.Symbol)+".json")
		if err := unga.WriteJSON(dst, v); err != nil {
			return out, fmt.Errorf("failed to write %s: %w", dst, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// LoadMetadata reads parsed metadata back: either one JSON array or a
// directory of per-record JSON files.
func LoadMetadata(path string) ([]Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		var records []Metadata
		if err := unga.ReadJSON(path, &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	files, err := filepath.Glob(filepath.Join(path, "*.json"))
	if err != nil {
		return nil, err
	}
	slices.Sort(files)

	records := make([]Metadata, 0, len(files))
	for _, f := range files {
		var m Metadata
		if err := unga.ReadJSON(f, &m); err != nil {
			return nil, err
		}
		records = append(records, m)
	}
	return records, nil
}
