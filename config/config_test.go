package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlohamalainen/un-ga-documents-go/llm"
	"github.com/carlohamalainen/un-ga-documents-go/store"
)

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "unga.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_root = "/srv/unga"
log_level = "debug"

[database]
driver = "postgres"
dsn = "postgres://localhost/unga"

[llm]
provider = "openai"
model = "gpt-4o-mini"

[server]
conversation_ttl = "6h"
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_API_KEY=sk-test\n"), 0o600))

	// .env never overrides variables that are already set
	t.Setenv("OPENAI_API_KEY", "")
	require.NoError(t, os.Unsetenv("OPENAI_API_KEY"))

	for _, k := range []string{"LLM_PROVIDER", "LLM_MODEL", "LLM_BASE_URL", "UNGA_DATA_ROOT", "UNGA_DB_DRIVER"} {
		t.Setenv(k, "")
	}
	t.Setenv("UNGA_DB_DSN", "postgres://db/unga")
	t.Setenv("ELASTICSEARCH_URL", "http://es1:9200,http://es2:9200")
	t.Setenv("LLM_RPM", "12")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/unga", cfg.DataRoot)
	assert.Equal(t, store.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://db/unga", cfg.Database.DSN)
	assert.Equal(t, 6*time.Hour, cfg.Server.ConversationTTL.Duration)
	assert.Equal(t, 2*time.Minute, cfg.Server.RequestTimeout.Duration)
	assert.Equal(t, []string{"http://es1:9200", "http://es2:9200"}, cfg.Elasticsearch.Addresses)

	lc := cfg.LLMConfig()
	assert.Equal(t, llm.Config{Provider: "openai", Model: "gpt-4o-mini", APIKey: "sk-test", RPM: 12}, lc)
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ELASTICSEARCH_URL", "")
	t.Setenv("UNGA_DB_DRIVER", "")
	t.Setenv("UNGA_ADDR", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, store.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "@hourly", cfg.Server.CleanupSchedule)

	sc, err := cfg.SearchClient()
	require.NoError(t, err)
	assert.Nil(t, sc)
}

func TestLoadErrors(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load("missing.toml")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile("bad.toml", []byte("[server]\nconversation_ttl = \"soon\"\n"), 0o600))
	_, err = Load("bad.toml")
	assert.Error(t, err)
}

func TestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Level("DEBUG"))
	assert.Equal(t, slog.LevelWarn, Level("warning"))
	assert.Equal(t, slog.LevelError, Level("error"))
	assert.Equal(t, slog.LevelInfo, Level(""))
}
