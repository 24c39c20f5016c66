// Package observability provides a metrics extension for entitle that records
// lifecycle event counts through a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnSubjectCreated      = (*MetricsExtension)(nil)
	_ plugin.OnPlanUpgraded        = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionExpired = (*MetricsExtension)(nil)
	_ plugin.OnCycleReset          = (*MetricsExtension)(nil)
	_ plugin.OnSettingsUpdated     = (*MetricsExtension)(nil)
	_ plugin.OnUsageConsumed       = (*MetricsExtension)(nil)
	_ plugin.OnQuotaExceeded       = (*MetricsExtension)(nil)
	_ plugin.OnRateLimited         = (*MetricsExtension)(nil)
	_ plugin.OnGenerationCompleted = (*MetricsExtension)(nil)
	_ plugin.OnHistoryFlushed      = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an entitle plugin to track metering metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Subject metrics
	SubjectCreated  Counter
	SettingsUpdated Counter

	// Subscription metrics
	PlanUpgraded        Counter
	SubscriptionExpired Counter
	CycleReset          Counter

	// Usage metrics
	UsageConsumed  Counter
	QuotaExceeded  Counter
	RateLimited    Counter
	QuotaRemaining Histogram

	// Generation metrics
	GenerationCompleted Counter
	GenerationFailed    Counter
	GenerationLatency   Histogram

	// History metrics
	HistoryFlushed      Counter
	HistoryBatchSize    Histogram
	HistoryFlushLatency Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		SubjectCreated:  factory.Counter("entitle.subject.created"),
		SettingsUpdated: factory.Counter("entitle.settings.updated"),

		PlanUpgraded:        factory.Counter("entitle.subscription.upgraded"),
		SubscriptionExpired: factory.Counter("entitle.subscription.expired"),
		CycleReset:          factory.Counter("entitle.cycle.reset"),

		UsageConsumed:  factory.Counter("entitle.usage.consumed"),
		QuotaExceeded:  factory.Counter("entitle.usage.quota_exceeded"),
		RateLimited:    factory.Counter("entitle.usage.rate_limited"),
		QuotaRemaining: factory.Histogram("entitle.usage.remaining"),

		GenerationCompleted: factory.Counter("entitle.generation.completed"),
		GenerationFailed:    factory.Counter("entitle.generation.failed"),
		GenerationLatency:   factory.Histogram("entitle.generation.latency_ms"),

		HistoryFlushed:      factory.Counter("entitle.history.flushed"),
		HistoryBatchSize:    factory.Histogram("entitle.history.batch.size"),
		HistoryFlushLatency: factory.Histogram("entitle.history.flush.latency_ms"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Subject and subscription hooks
// ──────────────────────────────────────────────────

// OnSubjectCreated implements plugin.OnSubjectCreated.
func (m *MetricsExtension) OnSubjectCreated(_ context.Context, _ *entitlement.View) error {
	m.SubjectCreated.Inc()
	return nil
}

// OnPlanUpgraded implements plugin.OnPlanUpgraded.
func (m *MetricsExtension) OnPlanUpgraded(_ context.Context, _ *entitlement.View, _ string) error {
	m.PlanUpgraded.Inc()
	return nil
}

// OnSubscriptionExpired implements plugin.OnSubscriptionExpired.
func (m *MetricsExtension) OnSubscriptionExpired(_ context.Context, _ *entitlement.View, _ string) error {
	m.SubscriptionExpired.Inc()
	return nil
}

// OnCycleReset implements plugin.OnCycleReset.
func (m *MetricsExtension) OnCycleReset(_ context.Context, _ *entitlement.View) error {
	m.CycleReset.Inc()
	return nil
}

// OnSettingsUpdated implements plugin.OnSettingsUpdated.
func (m *MetricsExtension) OnSettingsUpdated(_ context.Context, _ string, _ entitlement.Settings) error {
	m.SettingsUpdated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Usage hooks
// ──────────────────────────────────────────────────

// OnUsageConsumed implements plugin.OnUsageConsumed.
func (m *MetricsExtension) OnUsageConsumed(_ context.Context, v *entitlement.View) error {
	m.UsageConsumed.Inc()
	m.QuotaRemaining.Observe(float64(v.Remaining))
	return nil
}

// OnQuotaExceeded implements plugin.OnQuotaExceeded.
func (m *MetricsExtension) OnQuotaExceeded(_ context.Context, _, _ string, _, _ int) error {
	m.QuotaExceeded.Inc()
	return nil
}

// OnRateLimited implements plugin.OnRateLimited.
func (m *MetricsExtension) OnRateLimited(_ context.Context, _ string) error {
	m.RateLimited.Inc()
	return nil
}

// OnGenerationCompleted implements plugin.OnGenerationCompleted.
func (m *MetricsExtension) OnGenerationCompleted(_ context.Context, _, _ string, elapsed time.Duration, err error) error {
	if err != nil {
		m.GenerationFailed.Inc()
	} else {
		m.GenerationCompleted.Inc()
	}
	m.GenerationLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// ──────────────────────────────────────────────────
// History hooks
// ──────────────────────────────────────────────────

// OnHistoryFlushed implements plugin.OnHistoryFlushed.
func (m *MetricsExtension) OnHistoryFlushed(_ context.Context, count int, elapsed time.Duration) error {
	m.HistoryFlushed.Add(float64(count))
	m.HistoryBatchSize.Observe(float64(count))
	m.HistoryFlushLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}
