package entitlement

import (
	"context"
	"time"
)

// Store persists entitlement records. Every mutating method is a single
// conditional write; a write whose condition no longer holds is a no-op
// because a concurrent caller already applied it.
type Store interface {
	// CreateIfAbsent inserts rec unless a record for the subject exists.
	CreateIfAbsent(ctx context.Context, rec *Record) (created bool, err error)
	// GetRecord returns the record or a not-found error.
	GetRecord(ctx context.Context, subjectID string) (*Record, error)
	// SyncEmail stores email when it differs from the stored one.
	SyncEmail(ctx context.Context, subjectID, email string, now time.Time) error
	// ResetCycle zeroes usage and moves the anchor to newAnchor, only while
	// the stored anchor still equals oldAnchor.
	ResetCycle(ctx context.Context, subjectID, oldAnchor, newAnchor string, now time.Time) (bool, error)
	// BackfillAnchor sets the anchor of a record that has none, keeping usage.
	BackfillAnchor(ctx context.Context, subjectID, anchor string, now time.Time) (bool, error)
	// UpdateSettings overwrites the settings; not-found when the record is absent.
	UpdateSettings(ctx context.Context, subjectID string, s Settings, now time.Time) error
}
