package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the migrate executor
	"github.com/xraph/grove/migrate"

	entitle "github.com/xraph/entitle"
	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/history"
	"github.com/xraph/entitle/plan"
	entitlestore "github.com/xraph/entitle/store"
)

// compile-time interface check
var _ entitlestore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate applies the versioned migrations using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("entitle/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("entitle/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Plan Store ====================

func (s *Store) SyncPlans(ctx context.Context, plans []plan.Plan) error {
	if len(plans) == 0 {
		return nil
	}
	t := time.Now().UTC()
	models := make([]planModel, len(plans))
	for i, p := range plans {
		models[i] = toPlanModel(p, t)
	}
	_, err := s.pg.NewInsert(&models).
		MultiRow().
		OnConflict("(id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("max_chars = EXCLUDED.max_chars").
		Set("max_requests = EXCLUDED.max_requests").
		Set("ai_settings_enabled = EXCLUDED.ai_settings_enabled").
		Set("price_amount = EXCLUDED.price_amount").
		Set("price_currency = EXCLUDED.price_currency").
		Set("term = EXCLUDED.term").
		Set("modes = EXCLUDED.modes").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) ListPlans(ctx context.Context) ([]plan.Plan, error) {
	var models []planModel
	if err := s.pg.NewSelect(&models).OrderExpr("price_amount ASC, id ASC").Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]plan.Plan, len(models))
	for i := range models {
		p, err := fromPlanModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// ==================== Entitlement Store ====================

func (s *Store) CreateIfAbsent(ctx context.Context, rec *entitlement.Record) (bool, error) {
	res, err := s.pg.NewInsert(toSubjectModel(rec)).
		OnConflict("(subject_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return applied(res)
}

func (s *Store) GetRecord(ctx context.Context, subjectID string) (*entitlement.Record, error) {
	m := new(subjectModel)
	err := s.pg.NewSelect(m).
		Where("subject_id = $1", subjectID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, entitle.ErrSubjectNotFound
		}
		return nil, err
	}
	return fromSubjectModel(m), nil
}

func (s *Store) SyncEmail(ctx context.Context, subjectID, email string, now time.Time) error {
	_, err := s.pg.NewUpdate((*subjectModel)(nil)).
		Set("email = $1", email).
		Set("updated_at = $2", now).
		Where("subject_id = $3", subjectID).
		Where("email IS DISTINCT FROM $4", email).
		Exec(ctx)
	return err
}

func (s *Store) ResetCycle(ctx context.Context, subjectID, oldAnchor, newAnchor string, now time.Time) (bool, error) {
	res, err := s.pg.NewUpdate((*subjectModel)(nil)).
		Set("requests_used = 0").
		Set("cycle_anchor = $1", newAnchor).
		Set("updated_at = $2", now).
		Where("subject_id = $3", subjectID).
		Where("cycle_anchor = $4", oldAnchor).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return applied(res)
}

func (s *Store) BackfillAnchor(ctx context.Context, subjectID, anchor string, now time.Time) (bool, error) {
	res, err := s.pg.NewUpdate((*subjectModel)(nil)).
		Set("cycle_anchor = $1", anchor).
		Set("updated_at = $2", now).
		Where("subject_id = $3", subjectID).
		Where("COALESCE(cycle_anchor, '') = ''").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return applied(res)
}

func (s *Store) UpdateSettings(ctx context.Context, subjectID string, settings entitlement.Settings, now time.Time) error {
	res, err := s.pg.NewUpdate((*subjectModel)(nil)).
		Set("simplify_level = $1", settings.SimplifyLevel).
		Set("shorten_level = $2", settings.ShortenLevel).
		Set("bullet_count = $3", settings.BulletCount).
		Set("example_count = $4", settings.ExampleCount).
		Set("updated_at = $5", now).
		Where("subject_id = $6", subjectID).
		Exec(ctx)
	if err != nil {
		return err
	}
	ok, err := applied(res)
	if err != nil {
		return err
	}
	if !ok {
		return entitle.ErrSubjectNotFound
	}
	return nil
}

// ==================== Subscription Store ====================

func (s *Store) SetPlan(ctx context.Context, subjectID, planID string, expires *time.Time, now time.Time) error {
	rec := entitlement.NewRecord(subjectID, "", now)
	rec.PlanID = planID
	rec.SubscriptionExpires = expires

	_, err := s.pg.NewInsert(toSubjectModel(rec)).
		OnConflict("(subject_id) DO UPDATE").
		Set("plan_id = EXCLUDED.plan_id").
		Set("subscription_expires = EXCLUDED.subscription_expires").
		Set("requests_used = 0").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) Downgrade(ctx context.Context, subjectID, fromPlan string, now time.Time, freeMaxRequests int) (bool, error) {
	res, err := s.pg.NewUpdate((*subjectModel)(nil)).
		Set("plan_id = $1", plan.FreeID).
		Set("subscription_expires = NULL").
		Set("requests_used = LEAST(requests_used, $2)", freeMaxRequests).
		Set("updated_at = $3", now).
		Where("subject_id = $4", subjectID).
		Where("plan_id = $5", fromPlan).
		Where("subscription_expires < $6", now).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return applied(res)
}

// ==================== Meter Store ====================

func (s *Store) TryConsume(ctx context.Context, subjectID string, limit int, minInterval time.Duration, now time.Time) (bool, error) {
	res, err := s.pg.NewUpdate((*subjectModel)(nil)).
		Set("requests_used = requests_used + 1").
		Set("last_action_at = $1", now).
		Set("updated_at = $2", now).
		Where("subject_id = $3", subjectID).
		Where("requests_used < $4", limit).
		Where("(last_action_at IS NULL OR last_action_at <= $5)", now.Add(-minInterval)).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return applied(res)
}

// ==================== History Store ====================

func (s *Store) AppendHistory(ctx context.Context, items []*history.Item) error {
	if len(items) == 0 {
		return nil
	}
	models := make([]historyModel, len(items))
	for i, item := range items {
		models[i] = toHistoryModel(item)
	}
	_, err := s.pg.NewInsert(&models).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *Store) ListHistory(ctx context.Context, subjectID string, opts history.ListOpts) ([]*history.Item, error) {
	var models []historyModel
	q := s.pg.NewSelect(&models).
		Where("subject_id = $1", subjectID).
		OrderExpr("created_at DESC, id DESC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*history.Item, len(models))
	for i := range models {
		item, err := fromHistoryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = item
	}
	return result, nil
}

// ==================== Helpers ====================

// rowsResult is the part of a grove exec result the store reads.
type rowsResult interface {
	RowsAffected() (int64, error)
}

// applied reports whether a write touched a row.
func applied(res rowsResult) (bool, error) {
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
