package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"golang.org/x/time/rate"

	unga "github.com/carlohamalainen/un-ga-documents-go"
	"github.com/carlohamalainen/un-ga-documents-go/cache"
	"github.com/carlohamalainen/un-ga-documents-go/config"
	"github.com/carlohamalainen/un-ga-documents-go/marc"
	"github.com/carlohamalainen/un-ga-documents-go/recordpage"
)

type Config struct {
	Settings  config.Config
	Metadata  string
	OutputDir string
	ParsedDir string
	Delay     time.Duration
	Browser   bool
	Proxy     string
	Pretty    bool
	SkipParse bool
}

func parseArgs() (Config, error) {
	configArg := flag.String("config", "", "Optional TOML config file")
	metadataArg := flag.String("i", "", "Metadata JSON file or directory")
	outputArg := flag.String("o", "", "HTML output directory (default <data-root>/documents/html/<type>)")
	parsedArg := flag.String("parsed", "", "Parsed JSON directory (default derived from -o)")
	delayArg := flag.Duration("delay", time.Second, "Delay between page fetches")
	browserArg := flag.Bool("browser", false, "Render pages in headless Chromium")
	proxyArg := flag.String("proxy", "", "Proxy for the browser, e.g. the cache-proxy address")
	prettyArg := flag.Bool("pretty", false, "Re-indent saved HTML")
	skipParseArg := flag.Bool("skip-parse", false, "Only download, do not parse the saved pages")
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
		ParsedDir: *parsedArg,
		Delay:     *delayArg,
		Browser:   *browserArg,
		Proxy:     *proxyArg,
		Pretty:    *prettyArg,
		SkipParse: *skipParseArg,
	}

	if cfg.Metadata == "" {
		return cfg, fmt.Errorf("need -i")
	}
	if cfg.OutputDir == "" {
		root := unga.DataRoot(cfg.Metadata, settings.DataRoot)
		cfg.OutputDir = filepath.Join(root, "documents", "html", unga.Category(cfg.Metadata))
	}
	if cfg.ParsedDir == "" {
		cfg.ParsedDir = unga.OutputDirFor(cfg.OutputDir)
	}

	return cfg, nil
}

func newFetcher(cfg Config) (recordpage.Fetcher, func(), error) {
	if cfg.Browser {
		f, err := recordpage.NewBrowserFetcher(cfg.Proxy)
		if err != nil {
			return nil, nil, err
		}
		return f, func() {
			if err := f.Close(); err != nil {
				slog.Warn("failed to close browser", "error", err)
			}
		}, nil
	}

	client, err := cache.NewHTTPClient(cfg.Settings.HTTPCache)
	if err != nil {
		return nil, nil, err
	}
	return &recordpage.HTTPFetcher{Client: client}, func() {}, nil
}

func run(ctx context.Context, cfg Config) error {
	records, err := marc.LoadMetadata(cfg.Metadata)
	if err != nil {
		return fmt.Errorf("failed to load metadata: %w", err)
	}

	fetcher, closeFetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	defer closeFetcher()

	d := &recordpage.Downloader{
		Fetcher: fetcher,
		Limiter: rate.NewLimiter(rate.Every(cfg.Delay), 1),
		Pretty:  cfg.Pretty,
	}
	s, err := d.Download(ctx, records, cfg.OutputDir)
	if err != nil {
		return err
	}

	fmt.Printf("Records: %d\n", s.Total)
	color.Green("Downloaded: %d", s.Downloaded)
	fmt.Printf("Already present: %d\n", s.Existing)
	fmt.Printf("Fetched from docs.un.org: %d\n", s.Fallback)
	if s.Failed > 0 {
		color.Red("Failed: %d", s.Failed)
	}

	if cfg.SkipParse {
		return nil
	}

	summary, err := unga.RunBatch(ctx, cfg.OutputDir, "*.html", cfg.ParsedDir, 0,
		func(ctx context.Context, path string) (any, error) {
			return recordpage.ParseFile(ctx, path)
		})
	if err != nil {
		return err
	}
	summary.Print()
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

	slog.Info("starting", "metadata", cfg.Metadata, "output", cfg.OutputDir, "browser", cfg.Browser)

	if err := run(ctx, cfg); err != nil {
		slog.Error("download failed", "error", err)
		os.Exit(1)
	}

	slog.Info("completed successfully")
}
