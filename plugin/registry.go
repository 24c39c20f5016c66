package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/entitle/entitlement"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit                []OnInit
	onShutdown            []OnShutdown
	onSubjectCreated      []OnSubjectCreated
	onPlanUpgraded        []OnPlanUpgraded
	onSubscriptionExpired []OnSubscriptionExpired
	onCycleReset          []OnCycleReset
	onSettingsUpdated     []OnSettingsUpdated
	onUsageConsumed       []OnUsageConsumed
	onQuotaExceeded       []OnQuotaExceeded
	onRateLimited         []OnRateLimited
	onGenerationCompleted []OnGenerationCompleted
	onHistoryFlushed      []OnHistoryFlushed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its hooks.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnSubjectCreated); ok {
		r.onSubjectCreated = append(r.onSubjectCreated, v)
	}
	if v, ok := p.(OnPlanUpgraded); ok {
		r.onPlanUpgraded = append(r.onPlanUpgraded, v)
	}
	if v, ok := p.(OnSubscriptionExpired); ok {
		r.onSubscriptionExpired = append(r.onSubscriptionExpired, v)
	}
	if v, ok := p.(OnCycleReset); ok {
		r.onCycleReset = append(r.onCycleReset, v)
	}
	if v, ok := p.(OnSettingsUpdated); ok {
		r.onSettingsUpdated = append(r.onSettingsUpdated, v)
	}
	if v, ok := p.(OnUsageConsumed); ok {
		r.onUsageConsumed = append(r.onUsageConsumed, v)
	}
	if v, ok := p.(OnQuotaExceeded); ok {
		r.onQuotaExceeded = append(r.onQuotaExceeded, v)
	}
	if v, ok := p.(OnRateLimited); ok {
		r.onRateLimited = append(r.onRateLimited, v)
	}
	if v, ok := p.(OnGenerationCompleted); ok {
		r.onGenerationCompleted = append(r.onGenerationCompleted, v)
	}
	if v, ok := p.(OnHistoryFlushed); ok {
		r.onHistoryFlushed = append(r.onHistoryFlushed, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"hooks", hooksOf(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeFor[OnInit]()},
	{"OnShutdown", reflect.TypeFor[OnShutdown]()},
	{"OnSubjectCreated", reflect.TypeFor[OnSubjectCreated]()},
	{"OnPlanUpgraded", reflect.TypeFor[OnPlanUpgraded]()},
	{"OnSubscriptionExpired", reflect.TypeFor[OnSubscriptionExpired]()},
	{"OnCycleReset", reflect.TypeFor[OnCycleReset]()},
	{"OnSettingsUpdated", reflect.TypeFor[OnSettingsUpdated]()},
	{"OnUsageConsumed", reflect.TypeFor[OnUsageConsumed]()},
	{"OnQuotaExceeded", reflect.TypeFor[OnQuotaExceeded]()},
	{"OnRateLimited", reflect.TypeFor[OnRateLimited]()},
	{"OnGenerationCompleted", reflect.TypeFor[OnGenerationCompleted]()},
	{"OnHistoryFlushed", reflect.TypeFor[OnHistoryFlushed]()},
}

// hooksOf lists the hook interfaces p implements.
func hooksOf(p Plugin) []string {
	var hooks []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			hooks = append(hooks, h.name)
		}
	}
	return hooks
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	emit(ctx, r, "OnInit", plugins, func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	emit(ctx, r, "OnShutdown", plugins, func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitSubjectCreated emits a subject created event.
func (r *Registry) EmitSubjectCreated(ctx context.Context, v *entitlement.View) {
	r.mu.RLock()
	plugins := r.onSubjectCreated
	r.mu.RUnlock()

	emit(ctx, r, "OnSubjectCreated", plugins, func(p OnSubjectCreated) error {
		return p.OnSubjectCreated(ctx, v)
	})
}

// EmitPlanUpgraded emits a plan upgraded event.
func (r *Registry) EmitPlanUpgraded(ctx context.Context, v *entitlement.View, fromPlan string) {
	r.mu.RLock()
	plugins := r.onPlanUpgraded
	r.mu.RUnlock()

	emit(ctx, r, "OnPlanUpgraded", plugins, func(p OnPlanUpgraded) error {
		return p.OnPlanUpgraded(ctx, v, fromPlan)
	})
}

// EmitSubscriptionExpired emits a subscription expired event.
func (r *Registry) EmitSubscriptionExpired(ctx context.Context, v *entitlement.View, fromPlan string) {
	r.mu.RLock()
	plugins := r.onSubscriptionExpired
	r.mu.RUnlock()

	emit(ctx, r, "OnSubscriptionExpired", plugins, func(p OnSubscriptionExpired) error {
		return p.OnSubscriptionExpired(ctx, v, fromPlan)
	})
}

// EmitCycleReset emits a cycle reset event.
func (r *Registry) EmitCycleReset(ctx context.Context, v *entitlement.View) {
	r.mu.RLock()
	plugins := r.onCycleReset
	r.mu.RUnlock()

	emit(ctx, r, "OnCycleReset", plugins, func(p OnCycleReset) error {
		return p.OnCycleReset(ctx, v)
	})
}

// EmitSettingsUpdated emits a settings updated event.
func (r *Registry) EmitSettingsUpdated(ctx context.Context, subjectID string, s entitlement.Settings) {
	r.mu.RLock()
	plugins := r.onSettingsUpdated
	r.mu.RUnlock()

	emit(ctx, r, "OnSettingsUpdated", plugins, func(p OnSettingsUpdated) error {
		return p.OnSettingsUpdated(ctx, subjectID, s)
	})
}

// EmitUsageConsumed emits a usage consumed event.
func (r *Registry) EmitUsageConsumed(ctx context.Context, v *entitlement.View) {
	r.mu.RLock()
	plugins := r.onUsageConsumed
	r.mu.RUnlock()

	emit(ctx, r, "OnUsageConsumed", plugins, func(p OnUsageConsumed) error {
		return p.OnUsageConsumed(ctx, v)
	})
}

// EmitQuotaExceeded emits a quota exceeded event.
func (r *Registry) EmitQuotaExceeded(ctx context.Context, subjectID, planID string, used, limit int) {
	r.mu.RLock()
	plugins := r.onQuotaExceeded
	r.mu.RUnlock()

	emit(ctx, r, "OnQuotaExceeded", plugins, func(p OnQuotaExceeded) error {
		return p.OnQuotaExceeded(ctx, subjectID, planID, used, limit)
	})
}

// EmitRateLimited emits a rate limited event.
func (r *Registry) EmitRateLimited(ctx context.Context, subjectID string) {
	r.mu.RLock()
	plugins := r.onRateLimited
	r.mu.RUnlock()

	emit(ctx, r, "OnRateLimited", plugins, func(p OnRateLimited) error {
		return p.OnRateLimited(ctx, subjectID)
	})
}

// EmitGenerationCompleted emits a generation completed event.
func (r *Registry) EmitGenerationCompleted(ctx context.Context, subjectID, mode string, elapsed time.Duration, genErr error) {
	r.mu.RLock()
	plugins := r.onGenerationCompleted
	r.mu.RUnlock()

	emit(ctx, r, "OnGenerationCompleted", plugins, func(p OnGenerationCompleted) error {
		return p.OnGenerationCompleted(ctx, subjectID, mode, elapsed, genErr)
	})
}

// EmitHistoryFlushed emits a history flushed event.
func (r *Registry) EmitHistoryFlushed(ctx context.Context, count int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onHistoryFlushed
	r.mu.RUnlock()

	emit(ctx, r, "OnHistoryFlushed", plugins, func(p OnHistoryFlushed) error {
		return p.OnHistoryFlushed(ctx, count, elapsed)
	})
}

// emit runs fn for each plugin, logging failures. Hook errors never reach
// the caller.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, plugins []T, fn func(T) error) {
	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins must never block the billable path.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
