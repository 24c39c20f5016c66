// Package meter is the rate guard and usage ledger: one atomic
// check-and-increment per billable action.
package meter

import (
	"time"

	"github.com/xraph/entitle/entitlement"
)

// MinInterval is the default minimum spacing between two billable actions
// of one subject. A second action inside the window is treated as a
// duplicate submission.
const MinInterval = 2 * time.Second

// Outcome classifies a consume attempt.
type Outcome string

const (
	OutcomeConsumed      Outcome = "consumed"
	OutcomeQuotaExceeded Outcome = "quota_exceeded"
	OutcomeRateLimited   Outcome = "rate_limited"
)

// Throttled reports whether an action at now falls inside minInterval of
// last.
func Throttled(last *time.Time, now time.Time, minInterval time.Duration) bool {
	return last != nil && now.Sub(*last) < minInterval
}

// Allowed reports whether rec may consume one more action under limit.
// It is the condition every store applies atomically in TryConsume.
func Allowed(rec *entitlement.Record, limit int, minInterval time.Duration, now time.Time) bool {
	return rec.RequestsUsed < limit && !Throttled(rec.LastActionAt, now, minInterval)
}

// Classify explains a failed TryConsume from a fresh read of the record:
// an exhausted quota wins over the rate guard.
func Classify(rec *entitlement.Record, limit int) Outcome {
	if rec.RequestsUsed >= limit {
		return OutcomeQuotaExceeded
	}
	return OutcomeRateLimited
}
