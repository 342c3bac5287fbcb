package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/carlohamalainen/un-ga-documents-go/cache"
	"github.com/carlohamalainen/un-ga-documents-go/config"
)

type Config struct {
	Settings config.Config
	Addr     string
	Purge    bool
}

func parseArgs() (Config, error) {
	configArg := flag.String("config", "", "Optional TOML config file")
	addrArg := flag.String("addr", ":8081", "Listen address")
	httpCacheArg := flag.String("http-cache", "", "Path to sqlite http cache")
	purgeArg := flag.Bool("purge-errors", false, "Delete cached 429 and 5xx responses before starting")

	flag.Parse()

	settings, err := config.Load(*configArg)
	if err != nil {
		return Config{}, err
	}
	if *httpCacheArg != "" {
		settings.HTTPCache = *httpCacheArg
	}

	cfg := Config{
		Settings: settings,
		Addr:     *addrArg,
		Purge:    *purgeArg,
	}

	if cfg.Settings.HTTPCache == "" {
		return cfg, fmt.Errorf("need -http-cache")
	}

	return cfg, nil
}

func run(ctx context.Context, cfg Config) error {
	store, err := cache.OpenStore(cfg.Settings.HTTPCache)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Purge {
		n, err := store.PurgeStatus(429, 500, 502, 503, 504)
		if err != nil {
			return err
		}
		slog.Info("purged error responses", "count", n)
	}
	if n, err := store.Count(); err == nil {
		slog.Info("cache opened", "path", cfg.Settings.HTTPCache, "entries", n)
	}

	handler, err := cache.NewProxyHandler(store)
	if err != nil {
		return err
	}
	return cache.RunServer(ctx, cfg.Addr, handler)
}

func main() {
	config.SetupLogger(os.Getenv("LOG_LEVEL"))

	cfg, err := parseArgs()
	if err != nil {
		slog.Error("failed to parse arguments", "error", err)
		os.Exit(1)
	}
	config.SetupLogger(cfg.Settings.LogLevel)

	slog.Info("starting", "addr", cfg.Addr, "cache", cfg.Settings.HTTPCache)

	if err := run(context.Background(), cfg); err != nil {
		slog.Error("proxy failed", "error", err)
		os.Exit(1)
	}

	slog.Info("completed successfully")
}
