// Package plugin provides an extensible plugin system for entitle.
// Plugins hook into lifecycle events of subjects, plans and usage.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/entitle/entitlement"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. engine is the *entitle.Engine.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Subject and subscription hooks
// ──────────────────────────────────────────────────

// OnSubjectCreated is called when a subject's record is created on first contact.
type OnSubjectCreated interface {
	Plugin
	OnSubjectCreated(ctx context.Context, v *entitlement.View) error
}

// OnPlanUpgraded is called after a subject is moved onto a plan.
type OnPlanUpgraded interface {
	Plugin
	OnPlanUpgraded(ctx context.Context, v *entitlement.View, fromPlan string) error
}

// OnSubscriptionExpired is called when a resolve downgrades an expired plan.
type OnSubscriptionExpired interface {
	Plugin
	OnSubscriptionExpired(ctx context.Context, v *entitlement.View, fromPlan string) error
}

// OnCycleReset is called when a resolve starts a new monthly cycle.
type OnCycleReset interface {
	Plugin
	OnCycleReset(ctx context.Context, v *entitlement.View) error
}

// OnSettingsUpdated is called after a subject's settings change.
type OnSettingsUpdated interface {
	Plugin
	OnSettingsUpdated(ctx context.Context, subjectID string, s entitlement.Settings) error
}

// ──────────────────────────────────────────────────
// Usage hooks
// ──────────────────────────────────────────────────

// OnUsageConsumed is called after one billable action is recorded.
// v reflects the usage after the increment.
type OnUsageConsumed interface {
	Plugin
	OnUsageConsumed(ctx context.Context, v *entitlement.View) error
}

// OnQuotaExceeded is called when an action is refused for an exhausted quota.
type OnQuotaExceeded interface {
	Plugin
	OnQuotaExceeded(ctx context.Context, subjectID, planID string, used, limit int) error
}

// OnRateLimited is called when an action is refused as a duplicate submission.
type OnRateLimited interface {
	Plugin
	OnRateLimited(ctx context.Context, subjectID string) error
}

// OnGenerationCompleted is called when the generation step of a billable
// action ends, successfully or not.
type OnGenerationCompleted interface {
	Plugin
	OnGenerationCompleted(ctx context.Context, subjectID, mode string, elapsed time.Duration, err error) error
}

// ──────────────────────────────────────────────────
// History hooks
// ──────────────────────────────────────────────────

// OnHistoryFlushed is called after a batch of history items is written.
type OnHistoryFlushed interface {
	Plugin
	OnHistoryFlushed(ctx context.Context, count int, elapsed time.Duration) error
}
