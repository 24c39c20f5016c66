package store

import (
	"context"
	"time"

	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/history"
	"github.com/xraph/entitle/plan"
)

// Store is the unified storage interface for all entitle entities.
// Methods are declared explicitly rather than by embedding so each backend's
// surface reads in one place.
type Store interface {
	// Plan methods
	SyncPlans(ctx context.Context, plans []plan.Plan) error
	ListPlans(ctx context.Context) ([]plan.Plan, error)

	// Entitlement methods
	CreateIfAbsent(ctx context.Context, rec *entitlement.Record) (bool, error)
	GetRecord(ctx context.Context, subjectID string) (*entitlement.Record, error)
	SyncEmail(ctx context.Context, subjectID, email string, now time.Time) error
	ResetCycle(ctx context.Context, subjectID, oldAnchor, newAnchor string, now time.Time) (bool, error)
	BackfillAnchor(ctx context.Context, subjectID, anchor string, now time.Time) (bool, error)
	UpdateSettings(ctx context.Context, subjectID string, s entitlement.Settings, now time.Time) error

	// Subscription methods
	SetPlan(ctx context.Context, subjectID, planID string, expires *time.Time, now time.Time) error
	Downgrade(ctx context.Context, subjectID, fromPlan string, now time.Time, freeMaxRequests int) (bool, error)

	// Meter methods
	TryConsume(ctx context.Context, subjectID string, limit int, minInterval time.Duration, now time.Time) (bool, error)

	// History methods
	AppendHistory(ctx context.Context, items []*history.Item) error
	ListHistory(ctx context.Context, subjectID string, opts history.ListOpts) ([]*history.Item, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
