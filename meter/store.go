package meter

import (
	"context"
	"time"
)

// Store performs the atomic consume primitive.
type Store interface {
	// TryConsume increments the subject's usage by one and stamps its last
	// action time with now, iff usage is below limit and the previous
	// action is at least minInterval old. Check and increment are one
	// indivisible write; false means nothing changed.
	TryConsume(ctx context.Context, subjectID string, limit int, minInterval time.Duration, now time.Time) (bool, error)
}
