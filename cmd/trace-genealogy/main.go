package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"

	"github.com/carlohamalainen/un-ga-documents-go/config"
	"github.com/carlohamalainen/un-ga-documents-go/store"
)

type Config struct {
	Settings config.Config
	Symbols  []string
	JSON     bool
}

func parseArgs() (Config, error) {
	configArg := flag.String("config", "", "Optional TOML config file")
	dsnArg := flag.String("dsn", "", "Database DSN (overrides config)")
	jsonArg := flag.Bool("json", false, "Print the genealogy as JSON")

	flag.Parse()

	settings, err := config.Load(*configArg)
	if err != nil {
		return Config{}, err
	}
	if *dsnArg != "" {
		settings.Database.DSN = *dsnArg
	}

	cfg := Config{Settings: settings, Symbols: flag.Args(), JSON: *jsonArg}
	if len(cfg.Symbols) == 0 {
		return cfg, errors.New("need at least one resolution symbol")
	}
	return cfg, nil
}

func printTree(w io.Writer, rel *store.Related) {
	title := rel.Title
	if title == "" {
		title = "(untitled)"
	}
	color.New(color.FgCyan, color.Bold).Fprintf(w, "%s  %s\n", rel.Symbol, title)

	branches := []struct {
		label   string
		symbols []string
	}{
		{"Drafts", rel.Drafts},
		{"Committee reports", rel.CommitteeReports},
		{"Meeting records", rel.Meetings},
		{"Agenda items", rel.AgendaItems},
	}
	for i, b := range branches {
		joint, pipe := "├──", "│   "
		if i == len(branches)-1 {
			joint, pipe = "└──", "    "
		}
		fmt.Fprintf(w, "%s %s (%d)\n", joint, b.label, len(b.symbols))
		for j, sym := range b.symbols {
			leaf := "├──"
			if j == len(b.symbols)-1 {
				leaf = "└──"
			}
			fmt.Fprintf(w, "%s%s %s\n", pipe, leaf, sym)
		}
	}
}

func trace(ctx context.Context, cfg Config, w io.Writer) error {
	s, err := cfg.Settings.OpenStore()
	if err != nil {
		return err
	}
	defer s.Close()

	var trees []*store.Related
	for _, sym := range cfg.Symbols {
		rel, err := s.RelatedDocuments(ctx, strings.TrimSpace(sym))
		if err != nil {
			return err
		}
		slog.Info("traced", "symbol", rel.Symbol, "meetings", len(rel.Meetings), "drafts", len(rel.Drafts),
			"committee_reports", len(rel.CommitteeReports), "agenda_items", len(rel.AgendaItems))
		trees = append(trees, rel)
	}

	if cfg.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(trees)
	}
	for i, rel := range trees {
		if i > 0 {
			fmt.Fprintln(w)
		}
		printTree(w, rel)
	}
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := trace(ctx, cfg, os.Stdout); err != nil {
		slog.Error("trace failed", "error", err)
		os.Exit(1)
	}
}
