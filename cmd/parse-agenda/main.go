package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	unga "github.com/carlohamalainen/un-ga-documents-go"
	"github.com/carlohamalainen/un-ga-documents-go/agenda"
	"github.com/carlohamalainen/un-ga-documents-go/config"
)

type Config struct {
	Settings config.Config
	Input    string
	Output   string
	MaxFiles int
}

func parseArgs() (Config, error) {
	configArg := flag.String("config", "", "Optional TOML config file")
	inputArg := flag.String("i", "", "Agenda PDF file or directory (e.g. data/documents/pdfs/agenda)")
	outputArg := flag.String("o", "", "Output file or directory")
	maxFilesArg := flag.Int("max-files", 0, "Parse at most this many files in directory mode (0 = all)")

	flag.Parse()

	settings, err := config.Load(*configArg)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Settings: settings,
		Input:    *inputArg,
		Output:   *outputArg,
		MaxFiles: *maxFilesArg,
	}

	if cfg.Input == "" && flag.NArg() > 0 {
		cfg.Input = flag.Arg(0)
	}
	if cfg.Input == "" {
		return cfg, fmt.Errorf("need -i")
	}

	return cfg, nil
}

func parse(ctx context.Context, path string) (any, error) {
	return agenda.ParseFile(ctx, path)
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

	slog.Info("starting", "input", cfg.Input, "output", cfg.Output)

	summary, err := unga.ParsePath(ctx, cfg.Input, "*.pdf", cfg.Output, cfg.MaxFiles, parse)
	summary.Print()
	if err != nil {
		slog.Error("parse failed", "error", err)
		os.Exit(1)
	}

	slog.Info("completed successfully")
}
