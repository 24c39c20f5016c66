package plan

import "context"

// Store persists the catalog so the storage layout carries a plans relation.
// The Registry stays the source of truth at runtime.
type Store interface {
	// SyncPlans upserts every plan by id.
	SyncPlans(ctx context.Context, plans []Plan) error
	// ListPlans returns the persisted plans in no particular order.
	ListPlans(ctx context.Context) ([]Plan, error)
}
