// Package config holds settings shared by the commands. Values are layered:
// defaults, then an optional TOML file, then .env and the environment. The
// commands apply their flags last.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/carlohamalainen/un-ga-documents-go/llm"
	"github.com/carlohamalainen/un-ga-documents-go/search"
	"github.com/carlohamalainen/un-ga-documents-go/store"
)

type Database struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

type LLM struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	BaseURL  string `toml:"base_url"`
	RPM      int    `toml:"rpm"`

	// Keys come from the environment only.
	AnthropicKey string `toml:"-"`
	OpenAIKey    string `toml:"-"`
	NvidiaKey    string `toml:"-"`
}

type Elasticsearch struct {
	Addresses []string `toml:"addresses"`
	Index     string   `toml:"index"`
}

// Duration reads values such as "24h" or "90s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Server struct {
	Addr            string   `toml:"addr"`
	ConversationTTL Duration `toml:"conversation_ttl"`
	CleanupSchedule string   `toml:"cleanup_schedule"`
	RequestTimeout  Duration `toml:"request_timeout"`
}

type Config struct {
	DataRoot      string        `toml:"data_root"`
	HTTPCache     string        `toml:"http_cache"`
	LogLevel      string        `toml:"log_level"`
	Database      Database      `toml:"database"`
	LLM           LLM           `toml:"llm"`
	Elasticsearch Elasticsearch `toml:"elasticsearch"`
	Server        Server        `toml:"server"`
}

func Default() Config {
	return Config{
		DataRoot: "data",
		LogLevel: "info",
		Database: Database{
			Driver: store.DriverSQLite,
			DSN:    "data/unga.db",
		},
		LLM: LLM{
			Provider: llm.ProviderAnthropic,
			Model:    "claude-sonnet-4-5",
			RPM:      50,
		},
		Elasticsearch: Elasticsearch{
			Index: search.DefaultIndex,
		},
		Server: Server{
			Addr:            ":8080",
			ConversationTTL: Duration{24 * time.Hour},
			CleanupSchedule: "@hourly",
			RequestTimeout:  Duration{2 * time.Minute},
		},
	}
}

// Load builds the configuration from defaults, the TOML file at path (if
// not empty), a .env file in the working directory (if present) and the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load .env: %w", err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("UNGA_DATA_ROOT"); v != "" {
		cfg.DataRoot = v
	}
	if v := os.Getenv("UNGA_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("UNGA_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("HTTP_CACHE"); v != "" {
		cfg.HTTPCache = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LLM.RPM = n
		} else {
			slog.Warn("ignoring LLM_RPM", "value", v, "error", err)
		}
	}
	cfg.LLM.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.LLM.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	cfg.LLM.NvidiaKey = os.Getenv("NVIDIA_API_KEY")

	if v := os.Getenv("ELASTICSEARCH_URL"); v != "" {
		cfg.Elasticsearch.Addresses = strings.Split(v, ",")
	}
	if v := os.Getenv("ELASTICSEARCH_INDEX"); v != "" {
		cfg.Elasticsearch.Index = v
	}
	if v := os.Getenv("UNGA_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

// LLMConfig picks the API key that matches the provider.
func (c Config) LLMConfig() llm.Config {
	key := map[string]string{
		llm.ProviderAnthropic: c.LLM.AnthropicKey,
		"":                    c.LLM.AnthropicKey,
		llm.ProviderOpenAI:    c.LLM.OpenAIKey,
		llm.ProviderNvidia:    c.LLM.NvidiaKey,
		llm.ProviderLocal:     c.LLM.OpenAIKey,
	}[c.LLM.Provider]

	return llm.Config{
		Provider: c.LLM.Provider,
		Model:    c.LLM.Model,
		APIKey:   key,
		BaseURL:  c.LLM.BaseURL,
		RPM:      c.LLM.RPM,
	}
}

func (c Config) OpenStore() (*store.Store, error) {
	return store.Open(c.Database.Driver, c.Database.DSN)
}

// SearchClient returns nil when no Elasticsearch address is configured.
func (c Config) SearchClient() (*search.Client, error) {
	if len(c.Elasticsearch.Addresses) == 0 {
		return nil, nil
	}
	return search.New(c.Elasticsearch.Addresses, c.Elasticsearch.Index)
}

// Level maps debug, info, warn and error to a slog level, defaulting to
// info.
func Level(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// SetupLogger installs a JSON handler on stderr as the default logger.
func SetupLogger(level string) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		AddSource: true,
		Level:     Level(level),
	}))
	slog.SetDefault(logger)
	return logger
}
