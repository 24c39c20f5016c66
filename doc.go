// Package entitle is a usage metering and subscription entitlement engine.
//
// It tracks, per subject, which plan tier is held, how many requests of the
// current monthly cycle are used, when the last billable action happened and
// when a paid subscription expires. For an authenticated subject it decides
// whether an action may proceed and records that it did:
//
//   - Lazy subject creation on first contact (free tier, zero usage)
//   - Expiry-driven downgrades and one usage reset per calendar month
//   - Atomic check-and-increment metering with duplicate-submission guard
//   - Tier-gated settings and an optional history of completed actions
//   - Lifecycle hooks for metrics and audit plugins
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/entitle"
//	    "github.com/xraph/entitle/store/postgres"
//	)
//
//	e := entitle.New(postgres.New(db),
//	    entitle.WithLogger(logger),
//	    entitle.WithHistoryBatch(100, 5*time.Second),
//	)
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
// # Billable actions
//
// Authorize resolves the subject, checks the text length and mode against
// the plan and consumes one request:
//
//	v, err := e.Authorize(ctx, subjectID, email, text, plan.ModeSimple)
//	switch {
//	case errors.Is(err, entitle.ErrQuotaExceeded):
//	    // cycle quota used up
//	case errors.Is(err, entitle.ErrRateLimited):
//	    // repeated within the minimum interval
//	}
//
// Usage consumed before a failing generation step is not refunded.
//
// # Plans
//
// The catalog is an immutable plan.Registry ordered by price. The bottom
// tier must be the zero-priced "free" plan every subject falls back to:
//
//	free     2000 chars    15 requests
//	go       5000 chars   100 requests   199.00 RUB / month
//	go_pro  10000 chars   500 requests   499.00 RUB / month
//
// Upgrade moves a subject onto a plan and starts its term:
//
//	v, err := e.Upgrade(ctx, subjectID, "go_pro")
//
// History items carry TypeIDs with the "hist" prefix:
//
//	hist_01h2xcejqtf2nbrexx3vqjhp41
package entitle
