package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"

	"github.com/carlohamalainen/un-ga-documents-go/cache"
	"github.com/carlohamalainen/un-ga-documents-go/config"
	"github.com/carlohamalainen/un-ga-documents-go/download"
	"github.com/carlohamalainen/un-ga-documents-go/marc"
)

type Config struct {
	Settings  config.Config
	Metadata  string
	OutputDir string
	Language  string
	Delay     time.Duration
	Limit     int
}

func parseArgs() (Config, error) {
	configArg := flag.String("config", "", "Optional TOML config file")
	metadataArg := flag.String("i", "", "Metadata JSON file or directory")
	outputArg := flag.String("o", "", "Output directory (default <data-root>/documents/pdfs/<type>)")
	languageArg := flag.String("lang", "en", "Document language")
	delayArg := flag.Duration("delay", time.Second, "Delay between downloads")
	limitArg := flag.Int("limit", 0, "Download at most this many records (0 = all)")
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
		Metadata:  *metadataArg,
		OutputDir: *outputArg,
		Language:  *languageArg,
		Delay:     *delayArg,
		Limit:     *limitArg,
	}

	if cfg.Metadata == "" {
		return cfg, fmt.Errorf("need -i")
	}
	if cfg.Delay <= 0 {
		return cfg, fmt.Errorf("need a positive -delay")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = download.OutputDir(cfg.Metadata, settings.DataRoot)
	}

	return cfg, nil
}

func run(ctx context.Context, cfg Config) error {
	records, err := marc.LoadMetadata(cfg.Metadata)
	if err != nil {
		return fmt.Errorf("failed to load metadata: %w", err)
	}
	if cfg.Limit > 0 && len(records) > cfg.Limit {
		records = records[:cfg.Limit]
	}

	client, err := cache.NewHTTPClient(cfg.Settings.HTTPCache)
	if err != nil {
		return err
	}

	d := download.New(client, cfg.Delay)
	d.Language = cfg.Language

	s, err := d.Run(ctx, records, cfg.OutputDir)
	if err != nil {
		return err
	}

	fmt.Printf("Records: %d\n", s.Total)
	color.Green("Downloaded: %d", s.Downloaded)
	fmt.Printf("Skipped (already present): %d\n", s.Skipped)
	fmt.Printf("Pages downloaded: %d\n", s.Pages)
	if s.Failed > 0 {
		color.Red("Failed: %d", s.Failed)
	} else {
		fmt.Printf("Failed: %d\n", s.Failed)
	}
	fmt.Printf("Output directory: %s\n", s.OutputDir)
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

	slog.Info("starting", "metadata", cfg.Metadata, "output", cfg.OutputDir)

	if err := run(ctx, cfg); err != nil {
		slog.Error("download failed", "error", err)
		os.Exit(1)
	}

	slog.Info("completed successfully")
}
