package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "entitle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 2*time.Second, cfg.Engine.MinInterval)
	assert.Equal(t, 5*time.Second, cfg.Identity.Timeout)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":9090"
  allowed_origins: ["chrome-extension://abc"]
database:
  driver: pg
  dsn: postgres://localhost/entitle
log:
  level: debug
  format: json
identity:
  client_id: client-1
  allowed_extensions: [abc]
  timeout: 3s
engine:
  min_interval: 1s
  history_batch_size: 50
  plans:
    - id: free
      name: Free
      max_chars: 1000
      max_requests: 10
      term: perpetual
    - id: pro
      name: Pro
      max_chars: 5000
      max_requests: 200
      price: "299.00"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"chrome-extension://abc"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 3*time.Second, cfg.Identity.Timeout)
	assert.Equal(t, time.Second, cfg.Engine.MinInterval)
	assert.Equal(t, 50, cfg.Engine.HistoryBatchSize)

	reg, err := cfg.Engine.Registry()
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	lvl, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	_, err := Load(writeFile(t, "server: [unclosed"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"ENTITLE_ADDR":               ":7000",
		"ENTITLE_DB_DRIVER":          "sqlite",
		"ENTITLE_DB_DSN":             "file:entitle.db",
		"ENTITLE_ALLOWED_EXTENSIONS": "a, b,,c",
		"OPENAI_API_KEY":             "sk-env",
		"GOOGLE_CLIENT_ID":           "client-env",
		"ENTITLE_MIN_INTERVAL":       "500ms",
		"ENTITLE_HISTORY_MIN_RANK":   "1",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.applyEnv(lookup))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Identity.AllowedExtensions)
	assert.Equal(t, "sk-env", cfg.Generation.APIKey)
	assert.Equal(t, "client-env", cfg.Identity.ClientID)
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.MinInterval)
	assert.Equal(t, 1, cfg.Engine.HistoryMinRank)

	env["ENTITLE_MIN_INTERVAL"] = "soon"
	assert.Error(t, Default().applyEnv(lookup))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"dsn required", func(c *Config) { c.Database.Driver = "postgres" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLogHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(LogConfig{Level: "warn", Format: "json"}.Handler(&buf))

	logger.Info("hidden")
	logger.Warn("shown", "subject_id", "s1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"subject_id":"s1"`)
}
