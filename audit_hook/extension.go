// Package audithook bridges entitle lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on a
// particular audit store. Callers inject a RecorderFunc adapter at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/id"
	"github.com/xraph/entitle/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnSubjectCreated      = (*Extension)(nil)
	_ plugin.OnPlanUpgraded        = (*Extension)(nil)
	_ plugin.OnSubscriptionExpired = (*Extension)(nil)
	_ plugin.OnCycleReset          = (*Extension)(nil)
	_ plugin.OnSettingsUpdated     = (*Extension)(nil)
	_ plugin.OnUsageConsumed       = (*Extension)(nil)
	_ plugin.OnQuotaExceeded       = (*Extension)(nil)
	_ plugin.OnRateLimited         = (*Extension)(nil)
	_ plugin.OnGenerationCompleted = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	ID         id.EventID     `json:"id"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges entitle lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.enabled == nil {
		e.enabled = defaultActions()
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Subject and subscription hooks
// ──────────────────────────────────────────────────

// OnSubjectCreated implements plugin.OnSubjectCreated.
func (e *Extension) OnSubjectCreated(ctx context.Context, v *entitlement.View) error {
	return e.record(ctx, ActionSubjectCreated, SeverityInfo, OutcomeSuccess,
		ResourceSubject, v.SubjectID, CategorySubscription, nil,
		"plan_id", v.PlanID,
	)
}

// OnPlanUpgraded implements plugin.OnPlanUpgraded.
func (e *Extension) OnPlanUpgraded(ctx context.Context, v *entitlement.View, fromPlan string) error {
	kv := []any{"from_plan", fromPlan, "to_plan", v.PlanID}
	if v.SubscriptionExpires != nil {
		kv = append(kv, "expires", v.SubscriptionExpires.Format(time.RFC3339))
	}
	return e.record(ctx, ActionSubscriptionUpgraded, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, v.SubjectID, CategorySubscription, nil,
		kv...,
	)
}

// OnSubscriptionExpired implements plugin.OnSubscriptionExpired.
func (e *Extension) OnSubscriptionExpired(ctx context.Context, v *entitlement.View, fromPlan string) error {
	return e.record(ctx, ActionSubscriptionExpired, SeverityWarning, OutcomeSuccess,
		ResourceSubscription, v.SubjectID, CategorySubscription, nil,
		"from_plan", fromPlan,
		"requests_used", v.RequestsUsed,
	)
}

// OnCycleReset implements plugin.OnCycleReset.
func (e *Extension) OnCycleReset(ctx context.Context, v *entitlement.View) error {
	return e.record(ctx, ActionCycleReset, SeverityInfo, OutcomeSuccess,
		ResourceUsage, v.SubjectID, CategoryUsage, nil,
		"cycle_anchor", v.CycleAnchor,
	)
}

// OnSettingsUpdated implements plugin.OnSettingsUpdated.
func (e *Extension) OnSettingsUpdated(ctx context.Context, subjectID string, s entitlement.Settings) error {
	return e.record(ctx, ActionSettingsUpdated, SeverityInfo, OutcomeSuccess,
		ResourceSubject, subjectID, CategorySubscription, nil,
		"simplify_level", s.SimplifyLevel,
		"shorten_level", s.ShortenLevel,
		"bullet_count", s.BulletCount,
		"example_count", s.ExampleCount,
	)
}

// ──────────────────────────────────────────────────
// Usage hooks
// ──────────────────────────────────────────────────

// OnUsageConsumed implements plugin.OnUsageConsumed.
func (e *Extension) OnUsageConsumed(ctx context.Context, v *entitlement.View) error {
	return e.record(ctx, ActionUsageConsumed, SeverityInfo, OutcomeSuccess,
		ResourceUsage, v.SubjectID, CategoryUsage, nil,
		"plan_id", v.PlanID,
		"requests_used", v.RequestsUsed,
	)
}

// OnQuotaExceeded implements plugin.OnQuotaExceeded.
func (e *Extension) OnQuotaExceeded(ctx context.Context, subjectID, planID string, used, limit int) error {
	return e.record(ctx, ActionQuotaExceeded, SeverityWarning, OutcomeFailure,
		ResourceUsage, subjectID, CategoryAccess, nil,
		"plan_id", planID,
		"used", used,
		"limit", limit,
	)
}

// OnRateLimited implements plugin.OnRateLimited.
func (e *Extension) OnRateLimited(ctx context.Context, subjectID string) error {
	return e.record(ctx, ActionRateLimited, SeverityInfo, OutcomeFailure,
		ResourceUsage, subjectID, CategoryAccess, nil,
	)
}

// OnGenerationCompleted implements plugin.OnGenerationCompleted. Only
// failures are audited.
func (e *Extension) OnGenerationCompleted(ctx context.Context, subjectID, mode string, elapsed time.Duration, err error) error {
	if err == nil {
		return nil
	}
	return e.record(ctx, ActionGenerationFailed, SeverityError, OutcomeFailure,
		ResourceGeneration, subjectID, CategoryIntegration, err,
		"mode", mode,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		ID:         id.NewEventID(),
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
