// Package config loads the entitled server configuration from a YAML file,
// a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/xraph/entitle/extension"
	"github.com/xraph/entitle/identity"
	"github.com/xraph/entitle/store/backend"
)

// Config is the complete server configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" json:"server"`
	Database   DatabaseConfig   `yaml:"database" json:"database"`
	Log        LogConfig        `yaml:"log" json:"log"`
	Identity   IdentityConfig   `yaml:"identity" json:"identity"`
	Generation GenerationConfig `yaml:"generation" json:"generation"`

	// Engine carries the metering settings and an optional plan catalog.
	Engine extension.Config `yaml:"engine" json:"engine"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr" json:"addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins" json:"allowed_origins"`
	RateLimit       float64       `yaml:"rate_limit" json:"rate_limit"`
	RateBurst       int           `yaml:"rate_burst" json:"rate_burst"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"-"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// IdentityConfig configures token verification.
type IdentityConfig struct {
	ClientID          string        `yaml:"client_id" json:"client_id"`
	AllowedExtensions []string      `yaml:"allowed_extensions" json:"allowed_extensions"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
}

// GenerationConfig configures the upstream model.
type GenerationConfig struct {
	BaseURL   string `yaml:"base_url" json:"base_url"`
	APIKey    string `yaml:"api_key" json:"-"`
	Model     string `yaml:"model" json:"model"`
	MaxTokens int    `yaml:"max_tokens" json:"max_tokens"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			AllowedOrigins:  []string{"*"},
			RateLimit:       5,
			RateBurst:       10,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{Driver: backend.DriverMemory},
		Log:      LogConfig{Level: "info", Format: "text"},
		Identity: IdentityConfig{Timeout: identity.DefaultTimeout},
		Generation: GenerationConfig{
			Model:     "gpt-4o-mini",
			MaxTokens: 800,
		},
		Engine: extension.DefaultConfig(),
	}
}

// Load builds the configuration: defaults, then the YAML file at path (a
// missing file is not an error), then .env, then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Debug("config: file not found, using defaults", "path", path)
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	// Existing environment variables win over .env entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("config: failed to load .env", "error", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}

	str("ENTITLE_ADDR", &c.Server.Addr)
	list("ENTITLE_ALLOWED_ORIGINS", &c.Server.AllowedOrigins)
	str("ENTITLE_DB_DRIVER", &c.Database.Driver)
	str("ENTITLE_DB_DSN", &c.Database.DSN)
	str("ENTITLE_LOG_LEVEL", &c.Log.Level)
	str("ENTITLE_LOG_FORMAT", &c.Log.Format)
	str("GOOGLE_CLIENT_ID", &c.Identity.ClientID)
	list("ENTITLE_ALLOWED_EXTENSIONS", &c.Identity.AllowedExtensions)
	str("OPENAI_API_KEY", &c.Generation.APIKey)
	str("OPENAI_BASE_URL", &c.Generation.BaseURL)
	str("ENTITLE_MODEL", &c.Generation.Model)

	if v, ok := lookup("ENTITLE_MIN_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: ENTITLE_MIN_INTERVAL: %w", err)
		}
		c.Engine.MinInterval = d
	}
	if v, ok := lookup("ENTITLE_HISTORY_MIN_RANK"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: ENTITLE_HISTORY_MIN_RANK: %w", err)
		}
		c.Engine.HistoryMinRank = n
	}
	return nil
}

// Validate checks the parts of the configuration that cannot be defaulted.
func (c *Config) Validate() error {
	driver := backend.Normalize(c.Database.Driver)
	switch driver {
	case backend.DriverMemory:
	case backend.DriverPostgres, backend.DriverSQLite, backend.DriverMongo:
		if c.Database.DSN == "" {
			return fmt.Errorf("config: database.dsn is required for driver %q", driver)
		}
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	c.Database.Driver = driver

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}

	if _, err := c.Engine.Registry(); err != nil {
		return fmt.Errorf("config: engine.plans: %w", err)
	}
	return nil
}

// SlogLevel parses Level ("debug", "info", "warn", "error").
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("config: log.level: %w", err)
	}
	return lvl, nil
}

// Handler returns the slog handler described by the config, writing to w.
func (l LogConfig) Handler(w io.Writer) slog.Handler {
	lvl, err := l.SlogLevel()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(l.Format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
