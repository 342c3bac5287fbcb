package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	unga "github.com/carlohamalainen/un-ga-documents-go"
	"github.com/carlohamalainen/un-ga-documents-go/config"
	"github.com/carlohamalainen/un-ga-documents-go/store"
)

type Config struct {
	Settings  config.Config
	OutputDir string
}

func parseArgs() (Config, error) {
	configArg := flag.String("config", "", "Optional TOML config file")
	dsnArg := flag.String("dsn", "", "Database DSN (overrides config)")
	outputArg := flag.String("o", "", "Output directory (default <data-root>/export)")

	flag.Parse()

	settings, err := config.Load(*configArg)
	if err != nil {
		return Config{}, err
	}
	if *dsnArg != "" {
		settings.Database.DSN = *dsnArg
	}

	cfg := Config{
		Settings:  settings,
		OutputDir: *outputArg,
	}

	if settings.Database.DSN == "" {
		return cfg, fmt.Errorf("need -dsn")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(settings.DataRoot, "export")
	}

	return cfg, nil
}

func documentRows(docs []store.Document) ([]unga.DocumentRow, error) {
	rows := make([]unga.DocumentRow, 0, len(docs))
	for _, d := range docs {
		row := unga.DocumentRow{
			Symbol:   d.Symbol,
			DocType:  d.DocType,
			Session:  d.Session,
			Title:    d.Title,
			Date:     d.Date,
			BodyText: d.BodyText,
		}
		if len(d.Metadata) > 0 {
			b, err := json.Marshal(d.Metadata)
			if err != nil {
				return nil, fmt.Errorf("metadata of %s: %w", d.Symbol, err)
			}
			row.Metadata = string(b)
		}
		if d.BodyText != "" {
			row.BodySha = unga.Sha256sum([]byte(d.BodyText))
			row.WordCount = len(strings.Fields(d.BodyText))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func utteranceRows(us []store.MeetingUtterance) []unga.UtteranceRow {
	rows := make([]unga.UtteranceRow, len(us))
	for i, u := range us {
		rows[i] = unga.UtteranceRow{
			MeetingSymbol:      u.MeetingSymbol,
			SectionID:          u.SectionID,
			AgendaItemNumber:   u.AgendaItemNumber,
			SpeakerName:        u.SpeakerName,
			SpeakerAffiliation: u.SpeakerAffiliation,
			Text:               u.Text,
			WordCount:          u.WordCount,
			PositionInMeeting:  u.PositionInMeeting,
		}
	}
	return rows
}

func export(ctx context.Context, cfg Config) error {
	s, err := cfg.Settings.OpenStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return err
	}

	docs, err := s.Documents(ctx)
	if err != nil {
		return err
	}
	rows, err := documentRows(docs)
	if err != nil {
		return err
	}
	path := filepath.Join(cfg.OutputDir, "documents.parquet")
	if err := unga.WriteRecords(path, rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	color.Green("Wrote %d documents to %s", len(rows), path)

	us, err := s.Utterances(ctx)
	if err != nil {
		return err
	}
	path = filepath.Join(cfg.OutputDir, "utterances.parquet")
	if err := unga.WriteRecords(path, utteranceRows(us)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	color.Green("Wrote %d utterances to %s", len(us), path)

	return nil
}

func main() {
	config.SetupLogger(os.Getenv("LOG_LEVEL"))

	cfg, err := parseArgs()
	if err != nil {
		slog.Error("failed to parse arguments", "error", err)
		os.Exit(1)
	}
	config.SetupLogger(cfg.Settings.LogLevel)

	slog.Info("starting", "driver", cfg.Settings.Database.Driver, "output", cfg.OutputDir)

	if err := export(context.Background(), cfg); err != nil {
		slog.Error("export failed", "error", err)
		os.Exit(1)
	}

	slog.Info("completed successfully")
}
