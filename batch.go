package unga

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fatih/color"
)

// BatchSummary counts the outcome of a directory run.
type BatchSummary struct {
	Total     int
	Parsed    int
	Failed    int
	OutputDir string
}

// ParseFunc turns one input file into a JSON-serialisable record.
type ParseFunc func(ctx context.Context, path string) (any, error)

// RunBatch parses every file matching pattern in inputDir and writes
// <stem>.json into outputDir. A failing file is logged and counted; it never
// stops the batch. maxFiles <= 0 means no limit.
func RunBatch(ctx context.Context, inputDir, pattern, outputDir string, maxFiles int, parse ParseFunc) (BatchSummary, error) {
	summary := BatchSummary{OutputDir: outputDir}

	files, err := filepath.Glob(filepath.Join(inputDir, pattern))
	if err != nil {
		return summary, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	slices.Sort(files)

	if maxFiles > 0 && len(files) > maxFiles {
		files = files[:maxFiles]
	}
	summary.Total = len(files)

	slog.Info("found files to parse", "dir", inputDir, "count", len(files))

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return summary, fmt.Errorf("failed to create output dir: %w", err)
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		record, err := parse(ctx, file)
		if err != nil {
			slog.Error("failed to parse", "file", file, "error", err)
			summary.Failed++
			continue
		}

		out := filepath.Join(outputDir, Stem(file)+".json")
		if err := WriteJSON(out, record); err != nil {
			slog.Error("failed to save", "file", out, "error", err)
			summary.Failed++
			continue
		}

		slog.Info("saved", "file", out)
		summary.Parsed++
	}

	return summary, nil
}

// Print writes the summary to stdout for terminal use.
func (s BatchSummary) Print() {
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Total files: %d\n", s.Total)
	color.Green("Parsed: %d", s.Parsed)
	if s.Failed > 0 {
		color.Red("Failed: %d", s.Failed)
	} else {
		fmt.Printf("Failed: %d\n", s.Failed)
	}
	if s.OutputDir != "" {
		fmt.Printf("Output directory: %s\n", s.OutputDir)
	}
}

// Stem is the file name without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OutputDirFor maps data/documents/pdfs/agenda to data/parsed/pdfs/agenda.
// Paths without a "documents" element get a sibling "<name>_parsed".
func OutputDirFor(inputDir string) string {
	clean := filepath.Clean(inputDir)
	parts := strings.Split(clean, string(filepath.Separator))

	if i := slices.Index(parts, "documents"); i >= 0 {
		parts[i] = "parsed"
		out := strings.Join(parts, string(filepath.Separator))
		if out == "" {
			return string(filepath.Separator)
		}
		return out
	}

	return filepath.Join(filepath.Dir(clean), filepath.Base(clean)+"_parsed")
}

// SingleOutputPath resolves the -o flag for single-file mode. An output with
// an extension is used as-is; otherwise it is treated as a directory.
func SingleOutputPath(input, output string) string {
	if output == "" {
		return filepath.Join(filepath.Dir(input), Stem(input)+".json")
	}
	if filepath.Ext(output) != "" {
		return output
	}
	return filepath.Join(output, Stem(input)+".json")
}

// ParsePath parses a single file, or every file matching pattern when input
// is a directory. An empty output puts directory results in
// OutputDirFor(input) and a single result next to its input.
func ParsePath(ctx context.Context, input, pattern, output string, maxFiles int, parse ParseFunc) (BatchSummary, error) {
	info, err := os.Stat(input)
	if err != nil {
		return BatchSummary{}, err
	}

	if info.IsDir() {
		if output == "" {
			output = OutputDirFor(input)
		}
		return RunBatch(ctx, input, pattern, output, maxFiles, parse)
	}

	out := SingleOutputPath(input, output)
	summary := BatchSummary{Total: 1, OutputDir: filepath.Dir(out)}

	record, err := parse(ctx, input)
	if err != nil {
		summary.Failed++
		return summary, fmt.Errorf("failed to parse %s: %w", input, err)
	}
	if err := WriteJSON(out, record); err != nil {
		summary.Failed++
		return summary, err
	}
	slog.Info("saved", "file", out)
	summary.Parsed++
	return summary, nil
}
