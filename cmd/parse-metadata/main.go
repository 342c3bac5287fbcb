package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	unga "github.com/carlohamalainen/un-ga-documents-go"
	"github.com/carlohamalainen/un-ga-documents-go/config"
	"github.com/carlohamalainen/un-ga-documents-go/marc"
)

type Config struct {
	Settings  config.Config
	Input     string
	Output    string
	PerRecord bool
}

func parseArgs() (Config, error) {
	configArg := flag.String("config", "", "Optional TOML config file")
	inputArg := flag.String("i", "", "MARCXML file or directory of MARCXML files")
	outputArg := flag.String("o", "", "Output file or directory (default <data-root>/parsed/metadata)")
	perRecordArg := flag.Bool("per-record", false, "Write one JSON file per record instead of one array")

	flag.Parse()

	settings, err := config.Load(*configArg)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Settings:  settings,
		Input:     *inputArg,
		Output:    *outputArg,
		PerRecord: *perRecordArg,
	}

	if cfg.Input == "" && flag.NArg() > 0 {
		cfg.Input = flag.Arg(0)
	}
	if cfg.Input == "" {
		return cfg, fmt.Errorf("need -i")
	}
	if cfg.Output == "" {
		cfg.Output = filepath.Join(unga.DataRoot(cfg.Input, settings.DataRoot), "parsed", "metadata")
	}

	return cfg, nil
}

func inputFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := filepath.Glob(filepath.Join(path, "*.xml"))
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

func parse(cfg Config, path string) (int, error) {
	records, err := marc.ParseMetadataFile(path)
	if err != nil {
		return 0, err
	}

	if cfg.PerRecord {
		dir := filepath.Join(cfg.Output, unga.Stem(path))
		return marc.WriteMetadataDir(records, dir)
	}

	out := unga.SingleOutputPath(path, cfg.Output)
	if err := unga.WriteJSON(out, records); err != nil {
		return 0, err
	}
	slog.Info("saved", "file", out, "records", len(records))
	return len(records), nil
}

func main() {
	config.SetupLogger(os.Getenv("LOG_LEVEL"))

	cfg, err := parseArgs()
	if err != nil {
		slog.Error("failed to parse arguments", "error", err)
		os.Exit(1)
	}
	config.SetupLogger(cfg.Settings.LogLevel)

	files, err := inputFiles(cfg.Input)
	if err != nil {
		slog.Error("failed to list input", "input", cfg.Input, "error", err)
		os.Exit(1)
	}

	slog.Info("starting", "files", len(files), "output", cfg.Output)

	summary := unga.BatchSummary{Total: len(files), OutputDir: cfg.Output}
	records := 0
	for _, f := range files {
		n, err := parse(cfg, f)
		if err != nil {
			slog.Error("failed to parse", "file", f, "error", err)
			summary.Failed++
			continue
		}
		records += n
		summary.Parsed++
	}
	summary.Print()
	fmt.Printf("Records: %d\n", records)

	if summary.Failed > 0 {
		os.Exit(1)
	}
	slog.Info("completed successfully")
}
