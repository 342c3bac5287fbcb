package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/carlohamalainen/un-ga-documents-go/config"
	"github.com/carlohamalainen/un-ga-documents-go/llm"
	"github.com/carlohamalainen/un-ga-documents-go/rag"
	"github.com/carlohamalainen/un-ga-documents-go/server"
)

type Config struct {
	Settings config.Config
	NoLLM    bool
}

func parseArgs() (Config, error) {
	configArg := flag.String("config", "", "Optional TOML config file")
	addrArg := flag.String("addr", "", "Listen address (overrides config)")
	dsnArg := flag.String("dsn", "", "Database DSN (overrides config)")
	noLLMArg := flag.Bool("no-llm", false, "Serve only the SQL and search endpoints")

	flag.Parse()

	settings, err := config.Load(*configArg)
	if err != nil {
		return Config{}, err
	}
	if *addrArg != "" {
		settings.Server.Addr = *addrArg
	}
	if *dsnArg != "" {
		settings.Database.DSN = *dsnArg
	}

	return Config{Settings: settings, NoLLM: *noLLMArg}, nil
}

func serve(ctx context.Context, cfg Config) error {
	s, err := cfg.Settings.OpenStore()
	if err != nil {
		return err
	}
	defer s.Close()

	var pipeline *rag.Pipeline
	if !cfg.NoLLM {
		model, err := llm.New(cfg.Settings.LLMConfig())
		if err != nil {
			return err
		}
		pipeline = rag.NewPipeline(model, s)
	}

	var searcher server.Searcher
	es, err := cfg.Settings.SearchClient()
	if err != nil {
		return err
	}
	if es != nil {
		if err := es.Ping(ctx); err != nil {
			slog.Warn("elasticsearch unreachable, search disabled", "error", err)
		} else {
			searcher = es
		}
	}

	srv := server.New(s, pipeline, searcher, server.Options{
		ConversationTTL: cfg.Settings.Server.ConversationTTL.Duration,
		CleanupSchedule: cfg.Settings.Server.CleanupSchedule,
		RequestTimeout:  cfg.Settings.Server.RequestTimeout.Duration,
	})
	return srv.Run(ctx, cfg.Settings.Server.Addr)
}

func main() {
	config.SetupLogger(os.Getenv("LOG_LEVEL"))

	cfg, err := parseArgs()
	if err != nil {
		slog.Error("failed to parse arguments", "error", err)
		os.Exit(1)
	}
	config.SetupLogger(cfg.Settings.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting", "addr", cfg.Settings.Server.Addr, "driver", cfg.Settings.Database.Driver)

	if err := serve(ctx, cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("completed successfully")
}
