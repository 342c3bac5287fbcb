package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	unga "github.com/carlohamalainen/un-ga-documents-go"
	"github.com/carlohamalainen/un-ga-documents-go/config"
	"github.com/carlohamalainen/un-ga-documents-go/marc"
)

type Config struct {
	Settings  config.Config
	Input     string
	OutputDir string
}

func parseArgs() (Config, error) {
	configArg := flag.String("config", "", "Optional TOML config file")
	inputArg := flag.String("i", "", "Voting MARCXML file")
	outputArg := flag.String("o", "", "Output directory (default <data-root>/parsed/voting)")

	flag.Parse()

	settings, err := config.Load(*configArg)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Settings:  settings,
		Input:     *inputArg,
		OutputDir: *outputArg,
	}

	if cfg.Input == "" && flag.NArg() > 0 {
		cfg.Input = flag.Arg(0)
	}
	if cfg.Input == "" {
		return cfg, fmt.Errorf("need -i")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(unga.DataRoot(cfg.Input, settings.DataRoot), "parsed", "voting")
	}

	return cfg, nil
}

func main() {
	config.SetupLogger(os.Getenv("LOG_LEVEL"))

	cfg, err := parseArgs()
	if err != nil {
		slog.Error("failed to parse arguments", "error", err)
		os.Exit(1)
	}
	config.SetupLogger(cfg.Settings.LogLevel)

	slog.Info("starting", "input", cfg.Input, "output", cfg.OutputDir)

	votes, err := marc.ParseVotingFile(cfg.Input, cfg.OutputDir)
	if err != nil {
		slog.Error("failed to parse voting records", "error", err)
		os.Exit(1)
	}

	recorded := 0
	for _, v := range votes {
		if len(v.Votes) > 0 {
			recorded++
		}
	}
	color.Green("Parsed %d voting records (%d with country votes)", len(votes), recorded)
	fmt.Printf("Output directory: %s\n", cfg.OutputDir)

	slog.Info("completed successfully")
}
