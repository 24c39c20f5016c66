package entitle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/history"
	"github.com/xraph/entitle/meter"
	"github.com/xraph/entitle/plan"
	"github.com/xraph/entitle/plugin"
	"github.com/xraph/entitle/store"
	"github.com/xraph/entitle/subscription"
)

// Engine is the usage metering and subscription entitlement engine.
type Engine struct {
	store   store.Store
	plans   *plan.Registry
	plugins *plugin.Registry
	logger  *slog.Logger
	now     func() time.Time

	minInterval    time.Duration
	historyMinRank int
	skipMigrate    bool

	// History batching
	historyBatch         bool
	historyBuffer        chan *history.Item
	historyBatchSize     int
	historyFlushInterval time.Duration
	stopChan             chan struct{}
	stopOnce             sync.Once
	wg                   sync.WaitGroup
}

// New creates a new Engine over s. Without WithPlans the default catalog
// is used.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:                s,
		plugins:              plugin.NewRegistry(),
		logger:               slog.Default(),
		now:                  time.Now,
		minInterval:          meter.MinInterval,
		historyMinRank:       2,
		historyBatchSize:     100,
		historyFlushInterval: 5 * time.Second,
		stopChan:             make(chan struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.plans == nil {
		e.plans = plan.DefaultRegistry()
	}
	if e.historyBatch {
		e.historyBuffer = make(chan *history.Item, e.historyBatchSize*100)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPlans sets the plan catalog.
func WithPlans(r *plan.Registry) Option {
	return func(e *Engine) {
		e.plans = r
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMinInterval sets the minimum spacing between two billable actions of
// one subject.
func WithMinInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.minInterval = d
	}
}

// WithHistoryMinRank sets the lowest plan rank (position in price order)
// whose subjects keep a history.
func WithHistoryMinRank(rank int) Option {
	return func(e *Engine) {
		e.historyMinRank = rank
	}
}

// WithoutMigrate makes Start skip schema migration. The plan catalog is
// still synced.
func WithoutMigrate() Option {
	return func(e *Engine) {
		e.skipMigrate = true
	}
}

// WithHistoryBatch queues history appends and writes them in batches from
// a background worker started by Start.
func WithHistoryBatch(batchSize int, flushInterval time.Duration) Option {
	return func(e *Engine) {
		e.historyBatch = true
		if batchSize > 0 {
			e.historyBatchSize = batchSize
		}
		if flushInterval > 0 {
			e.historyFlushInterval = flushInterval
		}
	}
}

// Start migrates the store, persists the plan catalog and begins
// background workers.
func (e *Engine) Start(ctx context.Context) error {
	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
		}
	}
	if err := e.store.SyncPlans(ctx, e.plans.List()); err != nil {
		return storeErr("sync plans", err)
	}

	e.plugins.EmitInit(ctx, e)

	if e.historyBatch {
		e.wg.Add(1)
		go e.historyFlushWorker(context.WithoutCancel(ctx))
	}

	e.logger.Info("entitle started",
		"plans", e.plans.Len(),
		"min_interval", e.minInterval,
		"history_min_rank", e.historyMinRank,
		"history_batch", e.historyBatch,
	)

	return nil
}

// Stop drains background workers and closes the store.
func (e *Engine) Stop() error {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.wg.Wait()

	e.plugins.EmitShutdown(context.Background())

	return e.store.Close()
}

// Plans returns the catalog in ascending price order.
func (e *Engine) Plans() []plan.Plan {
	return e.plans.List()
}

// Registry returns the plan registry.
func (e *Engine) Registry() *plan.Registry {
	return e.plans
}

// Ping checks the store.
func (e *Engine) Ping(ctx context.Context) error {
	return storeErr("ping", e.store.Ping(ctx))
}

// ──────────────────────────────────────────────────
// Resolution
// ──────────────────────────────────────────────────

// Resolve is the read entry point for a subject. It creates the record on
// first contact, records a changed email, downgrades an expired plan and
// starts a new cycle on a month change, each as one conditional store
// write, and returns the corrected view.
func (e *Engine) Resolve(ctx context.Context, subjectID, email string) (*entitlement.View, error) {
	if subjectID == "" {
		return nil, ValidationError{Kind: ErrInvalidInput, Field: "subject_id", Message: "must not be empty"}
	}

	now := e.now().UTC()
	rec := entitlement.NewRecord(subjectID, email, now)

	created, err := e.store.CreateIfAbsent(ctx, rec)
	if err != nil {
		return nil, storeErr("create", err)
	}
	if !created {
		if rec, err = e.store.GetRecord(ctx, subjectID); err != nil {
			return nil, storeErr("get", err)
		}
		if email != "" && rec.Email != email {
			if err := e.store.SyncEmail(ctx, subjectID, email, now); err != nil {
				return nil, storeErr("sync email", err)
			}
			rec.Email = email
		}
	}

	// A conditional write that matched nothing lost to a concurrent caller;
	// the stored row is then re-read before building the view.
	stale := false
	expiredFrom := ""

	if subscription.Expired(rec, now) {
		free := e.plans.Free()
		applied, err := e.store.Downgrade(ctx, subjectID, rec.PlanID, now, free.MaxRequests)
		if err != nil {
			return nil, storeErr("downgrade", err)
		}
		if applied {
			expiredFrom = rec.PlanID
			rec.PlanID = plan.FreeID
			rec.SubscriptionExpires = nil
			rec.RequestsUsed = min(rec.RequestsUsed, free.MaxRequests)
		} else {
			stale = true
		}
	}

	reset := false
	today := subscription.Anchor(now)
	switch {
	case rec.CycleAnchor == "":
		applied, err := e.store.BackfillAnchor(ctx, subjectID, today, now)
		if err != nil {
			return nil, storeErr("backfill anchor", err)
		}
		rec.CycleAnchor = today
		stale = stale || !applied
	case subscription.NeedsRollover(rec.CycleAnchor, now):
		applied, err := e.store.ResetCycle(ctx, subjectID, rec.CycleAnchor, today, now)
		if err != nil {
			return nil, storeErr("reset cycle", err)
		}
		if applied {
			reset = true
			rec.RequestsUsed = 0
			rec.CycleAnchor = today
		} else {
			stale = true
		}
	}

	if stale {
		if rec, err = e.store.GetRecord(ctx, subjectID); err != nil {
			return nil, storeErr("get", err)
		}
	}

	v := e.view(rec)
	v.Created = created
	v.Expired = expiredFrom != ""
	v.ExpiredFrom = expiredFrom
	v.Reset = reset

	if created {
		e.logger.Debug("subject created", "subject_id", subjectID)
		e.plugins.EmitSubjectCreated(ctx, v)
	}
	if v.Expired {
		e.logger.Info("subscription expired", "subject_id", subjectID, "plan", expiredFrom)
		e.plugins.EmitSubscriptionExpired(ctx, v, expiredFrom)
	}
	if reset {
		e.logger.Debug("usage cycle reset", "subject_id", subjectID, "anchor", today)
		e.plugins.EmitCycleReset(ctx, v)
	}

	return v, nil
}

func (e *Engine) view(rec *entitlement.Record) *entitlement.View {
	p := e.plans.Resolve(rec.PlanID)
	return entitlement.NewView(rec, p, e.historyAllowed(p))
}

// ──────────────────────────────────────────────────
// Subscription management
// ──────────────────────────────────────────────────

// Upgrade moves the subject onto planID with a fresh expiry for the plan's
// term and zero usage, creating the record if needed.
func (e *Engine) Upgrade(ctx context.Context, subjectID, planID string) (*entitlement.View, error) {
	if subjectID == "" {
		return nil, ValidationError{Kind: ErrInvalidInput, Field: "subject_id", Message: "must not be empty"}
	}
	p, ok := e.plans.Get(planID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, planID)
	}

	fromPlan := ""
	if rec, err := e.store.GetRecord(ctx, subjectID); err == nil {
		fromPlan = rec.PlanID
	} else if !errors.Is(err, ErrSubjectNotFound) {
		return nil, storeErr("get", err)
	}

	now := e.now().UTC()
	expires := subscription.ExpiryFor(p, now)
	if err := e.store.SetPlan(ctx, subjectID, p.ID, expires, now); err != nil {
		return nil, storeErr("set plan", err)
	}

	v, err := e.Resolve(ctx, subjectID, "")
	if err != nil {
		return nil, err
	}

	e.logger.Info("plan upgraded",
		"subject_id", subjectID,
		"from", fromPlan,
		"to", p.ID,
		"expires", expires,
	)
	e.plugins.EmitPlanUpgraded(ctx, v, fromPlan)

	return v, nil
}

// ──────────────────────────────────────────────────
// Settings
// ──────────────────────────────────────────────────

// Settings returns the subject's stored settings, or the defaults for a
// subject that has none yet.
func (e *Engine) Settings(ctx context.Context, subjectID string) (entitlement.Settings, error) {
	rec, err := e.store.GetRecord(ctx, subjectID)
	if errors.Is(err, ErrSubjectNotFound) {
		return entitlement.DefaultSettings(), nil
	}
	if err != nil {
		return entitlement.Settings{}, storeErr("get", err)
	}
	return rec.Settings, nil
}

// UpdateSettings validates and stores s. Only plans with AI settings
// enabled may change them.
func (e *Engine) UpdateSettings(ctx context.Context, subjectID string, s entitlement.Settings) (entitlement.Settings, error) {
	if err := s.Validate(); err != nil {
		return entitlement.Settings{}, ValidationError{Kind: ErrInvalidSettings, Message: err.Error()}
	}

	v, err := e.Resolve(ctx, subjectID, "")
	if err != nil {
		return entitlement.Settings{}, err
	}
	if !v.Plan.AISettingsEnabled {
		return entitlement.Settings{}, fmt.Errorf("%w: settings on plan %q", ErrPlanRestricted, v.Plan.ID)
	}

	if err := e.store.UpdateSettings(ctx, subjectID, s, e.now().UTC()); err != nil {
		return entitlement.Settings{}, storeErr("update settings", err)
	}

	e.plugins.EmitSettingsUpdated(ctx, subjectID, s)
	return s, nil
}

// ──────────────────────────────────────────────────
// Metering
// ──────────────────────────────────────────────────

// TryConsume records one billable action against v's plan limit if the
// quota allows it and the previous action is at least the minimum interval
// old. On success v is updated to reflect the action.
func (e *Engine) TryConsume(ctx context.Context, v *entitlement.View) (bool, error) {
	now := e.now().UTC()
	ok, err := e.store.TryConsume(ctx, v.SubjectID, v.Plan.MaxRequests, e.minInterval, now)
	if err != nil {
		return false, storeErr("consume", err)
	}
	if !ok {
		return false, nil
	}

	v.RequestsUsed++
	v.Remaining = v.Plan.Remaining(v.RequestsUsed)
	v.LastActionAt = &now

	e.plugins.EmitUsageConsumed(ctx, v)
	return true, nil
}

// Consume is TryConsume with the refusal explained: ErrQuotaExceeded when
// the cycle quota is used up, ErrRateLimited otherwise.
func (e *Engine) Consume(ctx context.Context, v *entitlement.View) error {
	ok, err := e.TryConsume(ctx, v)
	if err != nil || ok {
		return err
	}

	rec, err := e.store.GetRecord(ctx, v.SubjectID)
	if err != nil {
		return storeErr("get", err)
	}

	switch meter.Classify(rec, v.Plan.MaxRequests) {
	case meter.OutcomeQuotaExceeded:
		e.plugins.EmitQuotaExceeded(ctx, v.SubjectID, v.Plan.ID, rec.RequestsUsed, v.Plan.MaxRequests)
		return ErrQuotaExceeded
	default:
		e.plugins.EmitRateLimited(ctx, v.SubjectID)
		return ErrRateLimited
	}
}

// Authorize runs the full admission of a billable action: resolve, check
// the text length and mode against the plan, then consume. The returned
// view reflects the consumed action.
func (e *Engine) Authorize(ctx context.Context, subjectID, email, text string, mode plan.Mode) (*entitlement.View, error) {
	if text == "" {
		return nil, ValidationError{Kind: ErrInvalidInput, Field: "text", Message: "must not be empty"}
	}

	v, err := e.Resolve(ctx, subjectID, email)
	if err != nil {
		return nil, err
	}
	if !v.Plan.AllowsLength(text) {
		return v, fmt.Errorf("%w: limit is %d characters", ErrTextTooLong, v.Plan.MaxChars)
	}
	if !v.Plan.AllowsMode(mode) {
		return v, fmt.Errorf("%w: mode %q", ErrPlanRestricted, mode)
	}
	if err := e.Consume(ctx, v); err != nil {
		return v, err
	}
	return v, nil
}

// ReportGeneration notifies plugins that the generation step of an
// authorized action finished. Usage is not refunded on failure.
func (e *Engine) ReportGeneration(ctx context.Context, v *entitlement.View, mode plan.Mode, elapsed time.Duration, genErr error) {
	if genErr != nil {
		e.logger.Warn("generation failed",
			"subject_id", v.SubjectID,
			"mode", mode,
			"error", genErr,
		)
	}
	e.plugins.EmitGenerationCompleted(ctx, v.SubjectID, string(mode), elapsed, genErr)
}
