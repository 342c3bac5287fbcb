package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/carlohamalainen/un-ga-documents-go/cache"
	"github.com/carlohamalainen/un-ga-documents-go/config"
	"github.com/carlohamalainen/un-ga-documents-go/library"
)

type Config struct {
	Settings  config.Config
	Session   int
	Types     []string
	OutputDir string
	PageSize  int
	Delay     time.Duration
}

func parseArgs() (Config, error) {
	configArg := flag.String("config", "", "Optional TOML config file")
	sessionArg := flag.Int("session", 0, "General Assembly session number, e.g. 78")
	typesArg := flag.String("types", "all", "Comma separated document types, or all")
	outputArg := flag.String("o", "", "Output directory (default <data-root>/raw/xml)")
	pageSizeArg := flag.Int("page-size", library.DefaultPageSize, "Records per search page")
	delayArg := flag.Duration("delay", 500*time.Millisecond, "Delay between search pages")
	httpCacheArg := flag.String("http-cache", "", "Path to sqlite http cache")

	flag.Parse()

	settings, err := config.Load(*configArg)
	if err != nil {
		return Config{}, err
	}
	if *httpCacheArg != "" {
		settings.HTTPCache = *httpCacheArg
	}

	cfg := Config{
		Settings:  settings,
		Session:   *sessionArg,
		OutputDir: *outputArg,
		PageSize:  *pageSizeArg,
		Delay:     *delayArg,
	}

	if cfg.Session <= 0 {
		return cfg, fmt.Errorf("need -session")
	}

	cfg.Types, err = library.ExpandTypes(strings.Split(*typesArg, ","))
	if err != nil {
		return cfg, err
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(settings.DataRoot, "raw", "xml")
	}

	return cfg, nil
}

func fetch(ctx context.Context, cfg Config) error {
	httpClient, err := cache.NewHTTPClient(cfg.Settings.HTTPCache)
	if err != nil {
		return err
	}

	client := library.NewClient(httpClient)
	client.PageSize = cfg.PageSize
	client.Delay = cfg.Delay

	failed := 0
	for _, t := range cfg.Types {
		queries, err := library.QueriesFor(t, cfg.Session)
		if err != nil {
			return err
		}
		for _, q := range queries {
			path, n, err := client.Fetch(ctx, q, cfg.OutputDir)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Error("search failed", "type", q.Type, "file", q.File, "error", err)
				failed++
				continue
			}
			color.Green("%-28s %5d records  %s", q.Type, n, path)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d searches failed", failed)
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

	slog.Info("starting", "session", cfg.Session, "types", cfg.Types, "output", cfg.OutputDir)

	if err := fetch(ctx, cfg); err != nil {
		slog.Error("fetch failed", "error", err)
		os.Exit(1)
	}

	slog.Info("completed successfully")
}
