package extension

import (
	"fmt"
	"time"

	entitle "github.com/xraph/entitle"
	"github.com/xraph/entitle/plan"
)

// Config holds the entitle extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.entitle" or "entitle" keys).
type Config struct {
	// DisableMigrate prevents schema migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// MinInterval is the minimum spacing between two billable actions of one
	// subject (default: 2s).
	MinInterval time.Duration `json:"min_interval" mapstructure:"min_interval" yaml:"min_interval"`

	// HistoryMinRank is the lowest plan rank that keeps a history (default: 2).
	HistoryMinRank int `json:"history_min_rank" mapstructure:"history_min_rank" yaml:"history_min_rank"`

	// HistoryBatchSize is the number of history items to buffer before
	// flushing to the store (default: 100).
	HistoryBatchSize int `json:"history_batch_size" mapstructure:"history_batch_size" yaml:"history_batch_size"`

	// HistoryFlushInterval is how frequently the history buffer is flushed
	// even if the batch size has not been reached (default: 5s).
	HistoryFlushInterval time.Duration `json:"history_flush_interval" mapstructure:"history_flush_interval" yaml:"history_flush_interval"`

	// Plans overrides the built-in plan catalog when non-empty.
	Plans []plan.Definition `json:"plans,omitempty" mapstructure:"plans" yaml:"plans,omitempty"`

	// GroveDriver names the driver of the grove.DB passed with WithGroveDB
	// (postgres, sqlite or mongo).
	GroveDriver string `json:"grove_driver" mapstructure:"grove_driver" yaml:"grove_driver"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinInterval:          2 * time.Second,
		HistoryMinRank:       2,
		HistoryBatchSize:     100,
		HistoryFlushInterval: 5 * time.Second,
	}
}

// Registry builds the plan registry from Plans, or returns the default
// catalog when none are configured.
func (c Config) Registry() (*plan.Registry, error) {
	if len(c.Plans) == 0 {
		return plan.DefaultRegistry(), nil
	}
	plans := make([]plan.Plan, 0, len(c.Plans))
	for _, d := range c.Plans {
		p, err := d.Plan()
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plan.NewRegistry(plans...)
}

// EngineOptions converts the config into engine options. Zero values are
// filled from DefaultConfig first.
func (c Config) EngineOptions() ([]entitle.Option, error) {
	c = mergeWithDefaults(c)

	plans, err := c.Registry()
	if err != nil {
		return nil, fmt.Errorf("entitle: plan catalog: %w", err)
	}
	opts := []entitle.Option{
		entitle.WithPlans(plans),
		entitle.WithMinInterval(c.MinInterval),
		entitle.WithHistoryMinRank(c.HistoryMinRank),
		entitle.WithHistoryBatch(c.HistoryBatchSize, c.HistoryFlushInterval),
	}
	if c.DisableMigrate {
		opts = append(opts, entitle.WithoutMigrate())
	}
	return opts, nil
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.MinInterval == 0 {
		cfg.MinInterval = defaults.MinInterval
	}
	if cfg.HistoryMinRank == 0 {
		cfg.HistoryMinRank = defaults.HistoryMinRank
	}
	if cfg.HistoryBatchSize == 0 {
		cfg.HistoryBatchSize = defaults.HistoryBatchSize
	}
	if cfg.HistoryFlushInterval == 0 {
		cfg.HistoryFlushInterval = defaults.HistoryFlushInterval
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	if yamlConfig.GroveDriver == "" {
		yamlConfig.GroveDriver = programmaticConfig.GroveDriver
	}
	if len(yamlConfig.Plans) == 0 {
		yamlConfig.Plans = programmaticConfig.Plans
	}

	if yamlConfig.MinInterval == 0 {
		yamlConfig.MinInterval = programmaticConfig.MinInterval
	}
	if yamlConfig.HistoryMinRank == 0 {
		yamlConfig.HistoryMinRank = programmaticConfig.HistoryMinRank
	}
	if yamlConfig.HistoryBatchSize == 0 {
		yamlConfig.HistoryBatchSize = programmaticConfig.HistoryBatchSize
	}
	if yamlConfig.HistoryFlushInterval == 0 {
		yamlConfig.HistoryFlushInterval = programmaticConfig.HistoryFlushInterval
	}

	return mergeWithDefaults(yamlConfig)
}
