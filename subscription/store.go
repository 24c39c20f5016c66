package subscription

import (
	"context"
	"time"
)

// Store applies plan changes to entitlement records.
type Store interface {
	// SetPlan upserts the subject onto planID with the given expiry and
	// zero usage.
	SetPlan(ctx context.Context, subjectID, planID string, expires *time.Time, now time.Time) error
	// Downgrade moves the subject to the free tier, clearing the expiry and
	// clamping usage to freeMaxRequests. It applies only while the stored
	// plan is still fromPlan and its expiry is before now.
	Downgrade(ctx context.Context, subjectID, fromPlan string, now time.Time, freeMaxRequests int) (bool, error)
}
