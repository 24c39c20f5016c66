package audithook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger for the extension.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		e.logger = logger
	}
}

// WithEnabledActions sets which actions to audit.
// If not called, all actions except usage.consumed are audited.
func WithEnabledActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = make(map[string]bool)
		for _, action := range actions {
			e.enabled[action] = true
		}
	}
}

// WithDisabledActions sets which actions to skip.
func WithDisabledActions(actions ...string) Option {
	return func(e *Extension) {
		if e.enabled == nil {
			e.enabled = defaultActions()
		}
		for _, action := range actions {
			delete(e.enabled, action)
		}
	}
}

// defaultActions enables every known action except per-request usage, which
// is too frequent for an audit trail.
func defaultActions() map[string]bool {
	enabled := make(map[string]bool)
	for _, action := range allActions() {
		if action != ActionUsageConsumed {
			enabled[action] = true
		}
	}
	return enabled
}

// allActions returns all known audit actions.
func allActions() []string {
	return []string{
		ActionSubjectCreated,
		ActionSettingsUpdated,
		ActionSubscriptionUpgraded,
		ActionSubscriptionExpired,
		ActionCycleReset,
		ActionUsageConsumed,
		ActionQuotaExceeded,
		ActionRateLimited,
		ActionGenerationFailed,
	}
}
