package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/carlohamalainen/un-ga-documents-go/config"
	"github.com/carlohamalainen/un-ga-documents-go/load"
)

type Config struct {
	Settings config.Config
	Reset    bool
	Stages   []string
	Index    bool
}

func parseArgs() (Config, error) {
	configArg := flag.String("config", "", "Optional TOML config file")
	dataRootArg := flag.String("data-root", "", "Data directory holding parsed/ (overrides config)")
	driverArg := flag.String("driver", "", "Database driver: sqlite3 or postgres (overrides config)")
	dsnArg := flag.String("dsn", "", "Database DSN (overrides config)")
	resetArg := flag.Bool("reset", false, "Drop and recreate all tables first")
	stagesArg := flag.String("stages", "", "Comma separated stages to run (default all)")
	indexArg := flag.Bool("index", false, "Also index loaded documents in Elasticsearch")

	flag.Parse()

	settings, err := config.Load(*configArg)
	if err != nil {
		return Config{}, err
	}
	if *dataRootArg != "" {
		settings.DataRoot = *dataRootArg
	}
	if *driverArg != "" {
		settings.Database.Driver = *driverArg
	}
	if *dsnArg != "" {
		settings.Database.DSN = *dsnArg
	}

	cfg := Config{
		Settings: settings,
		Reset:    *resetArg,
		Index:    *indexArg,
	}

	if settings.Database.DSN == "" {
		return cfg, fmt.Errorf("need -dsn")
	}
	if cfg.Index && len(settings.Elasticsearch.Addresses) == 0 {
		return cfg, fmt.Errorf("need ELASTICSEARCH_URL for -index")
	}

	known := load.StageNames()
	for _, s := range strings.Split(*stagesArg, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !slices.Contains(known, s) {
			return cfg, fmt.Errorf("unknown stage %q (have %s)", s, strings.Join(known, ", "))
		}
		cfg.Stages = append(cfg.Stages, s)
	}

	return cfg, nil
}

func run(ctx context.Context, cfg Config) error {
	s, err := cfg.Settings.OpenStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if cfg.Reset {
		slog.Warn("resetting database", "driver", s.Driver())
		if err := s.Reset(); err != nil {
			return err
		}
	}

	l := load.New(s, cfg.Settings.DataRoot)

	if cfg.Index {
		es, err := cfg.Settings.SearchClient()
		if err != nil {
			return err
		}
		if err := es.Ping(ctx); err != nil {
			return err
		}
		l.Index = es
	}

	if err := l.Run(ctx, cfg.Stages...); err != nil {
		return err
	}
	l.Stats.Print("DATABASE LOAD")

	counts, err := s.Counts(ctx)
	if err != nil {
		return err
	}
	tables := make([]string, 0, len(counts))
	for t := range counts {
		tables = append(tables, t)
	}
	slices.Sort(tables)
	for _, t := range tables {
		fmt.Printf("%-24s %d\n", t, counts[t])
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

	slog.Info("starting", "driver", cfg.Settings.Database.Driver, "data_root", cfg.Settings.DataRoot, "stages", cfg.Stages)

	if err := run(ctx, cfg); err != nil {
		slog.Error("load failed", "error", err)
		os.Exit(1)
	}

	slog.Info("completed successfully")
}
