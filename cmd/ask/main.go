package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"

	"github.com/carlohamalainen/un-ga-documents-go/config"
	"github.com/carlohamalainen/un-ga-documents-go/llm"
	"github.com/carlohamalainen/un-ga-documents-go/rag"
)

type Config struct {
	Settings  config.Config
	Question  string
	Summarize bool
	Multistep bool
	ShowRows  int
}

func parseArgs() (Config, error) {
	configArg := flag.String("config", "", "Optional TOML config file")
	dsnArg := flag.String("dsn", "", "Database DSN (overrides config)")
	providerArg := flag.String("provider", "", "LLM provider: anthropic, openai, nvidia or local (overrides config)")
	modelArg := flag.String("model", "", "LLM model (overrides config)")
	summarizeArg := flag.Bool("summarize", false, "Also summarize the text of the top results")
	showRowsArg := flag.Int("rows", 10, "Print at most this many result rows")
	multistepArg := flag.Bool("multistep", false, "Let the model gather evidence with tools instead of a single query")

	flag.Parse()

	settings, err := config.Load(*configArg)
	if err != nil {
		return Config{}, err
	}
	if *dsnArg != "" {
		settings.Database.DSN = *dsnArg
	}
	if *providerArg != "" {
		settings.LLM.Provider = *providerArg
	}
	if *modelArg != "" {
		settings.LLM.Model = *modelArg
	}

	cfg := Config{
		Settings:  settings,
		Question:  strings.TrimSpace(strings.Join(flag.Args(), " ")),
		Summarize: *summarizeArg,
		Multistep: *multistepArg,
		ShowRows:  *showRowsArg,
	}

	if cfg.Question == "" {
		return cfg, fmt.Errorf("need a question")
	}

	return cfg, nil
}

func ask(ctx context.Context, cfg Config) error {
	s, err := cfg.Settings.OpenStore()
	if err != nil {
		return err
	}
	defer s.Close()

	model, err := llm.New(cfg.Settings.LLMConfig())
	if err != nil {
		return err
	}
	p := rag.NewPipeline(model, s)

	if cfg.Multistep {
		return askMultistep(ctx, p, cfg.Question)
	}

	out, err := p.Ask(ctx, cfg.Question)
	if out.SQL != "" {
		color.Cyan("SQL:")
		fmt.Println(out.SQL)
		fmt.Println()
	}
	if err != nil {
		return err
	}

	color.Cyan("Results: %d rows", out.Results.RowCount)
	for i, row := range out.Results.Rows {
		if i >= cfg.ShowRows {
			fmt.Printf("... %d more\n", out.Results.RowCount-i)
			break
		}
		cells := make([]string, len(out.Results.Columns))
		for j, c := range out.Results.Columns {
			cells[j] = row[c].Display
		}
		fmt.Println(strings.Join(cells, " | "))
	}
	fmt.Println()

	color.Green("Answer:")
	fmt.Println(out.Answer.Answer)
	if len(out.Sources) > 0 {
		fmt.Printf("\nSources: %s\n", strings.Join(out.Sources, ", "))
	}

	if cfg.Summarize {
		summary, err := p.Assistant.Summarize(ctx, out.Results, cfg.Question)
		if err != nil {
			return err
		}
		color.Green("\nSummary:")
		fmt.Println(summary)
	}
	return nil
}

func askMultistep(ctx context.Context, p *rag.Pipeline, question string) error {
	if p.Multistep == nil {
		return llm.ErrToolsUnsupported
	}
	out, err := p.Multistep.Answer(ctx, question, nil)
	if err != nil {
		return err
	}

	for i, step := range out.Steps {
		color.Cyan("Step %d: %s %s (%.2fs)", i+1, step.Tool, string(step.Arguments), step.ExecutionTime)
	}
	fmt.Println()

	color.Green("Answer:")
	fmt.Println(out.Answer.Answer)
	if len(out.Sources) > 0 {
		fmt.Printf("\nSources: %s\n", strings.Join(out.Sources, ", "))
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

	if err := ask(ctx, cfg); err != nil {
		slog.Error("ask failed", "error", err)
		os.Exit(1)
	}
}
