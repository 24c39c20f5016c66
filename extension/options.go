package extension

import (
	"time"

	"github.com/xraph/grove"

	entitle "github.com/xraph/entitle"
	"github.com/xraph/entitle/plan"
	"github.com/xraph/entitle/plugin"
	"github.com/xraph/entitle/store"
)

// Option configures the entitle Forge extension.
type Option func(*Extension)

// WithStore sets the store for the entitle engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB builds the store from an open grove database. driver selects
// the backend (postgres, sqlite or mongo).
func WithGroveDB(driver string, db *grove.DB) Option {
	return func(e *Extension) {
		e.config.GroveDriver = driver
		e.groveDB = db
	}
}

// WithEngineOption passes an entitle.Option through to the underlying engine.
func WithEngineOption(opt entitle.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an entitle plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, entitle.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents schema migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithMinInterval sets the minimum spacing between two billable actions.
func WithMinInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.MinInterval = d }
}

// WithHistoryBatchSize sets the number of history items to buffer before flushing.
func WithHistoryBatchSize(size int) Option {
	return func(e *Extension) { e.config.HistoryBatchSize = size }
}

// WithHistoryFlushInterval sets how frequently the history buffer is flushed.
func WithHistoryFlushInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.HistoryFlushInterval = d }
}

// WithPlans replaces the plan catalog.
func WithPlans(plans ...plan.Plan) Option {
	return func(e *Extension) {
		e.config.Plans = e.config.Plans[:0]
		for _, p := range plans {
			e.config.Plans = append(e.config.Plans, plan.DefinitionOf(p))
		}
	}
}
