// Package subscription is the lifecycle state machine of a subject's tier:
// upgrades, expiry-driven downgrades, and monthly cycle rollover.
package subscription

import (
	"fmt"
	"time"

	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/plan"
)

// Kind distinguishes the two lifecycle states.
type Kind string

const (
	KindFree Kind = "free"
	KindPaid Kind = "paid"
)

// State is a subject's position in the lifecycle. Expires is nil for Free
// and for paid plans stored without an expiry.
type State struct {
	Kind    Kind
	PlanID  string
	Expires *time.Time
}

// Transition is an event moving a subject between states.
type Transition string

const (
	TransitionUpgrade       Transition = "upgrade"
	TransitionExpiryElapsed Transition = "expiry_elapsed"
	TransitionCycleRollover Transition = "cycle_rollover"
)

// StateOf derives the lifecycle state of rec.
func StateOf(rec *entitlement.Record) State {
	if rec.PlanID == "" || rec.PlanID == plan.FreeID {
		return State{Kind: KindFree, PlanID: plan.FreeID}
	}
	return State{Kind: KindPaid, PlanID: rec.PlanID, Expires: rec.SubscriptionExpires}
}

// Expired reports whether rec holds a paid plan whose expiry has passed.
func Expired(rec *entitlement.Record, now time.Time) bool {
	st := StateOf(rec)
	return st.Kind == KindPaid && st.Expires != nil && now.After(*st.Expires)
}

// NeedsRollover reports whether anchor falls in an earlier calendar month
// (UTC) than now. An empty or unparsable anchor never rolls over.
func NeedsRollover(anchor string, now time.Time) bool {
	a, err := ParseAnchor(anchor)
	if err != nil {
		return false
	}
	now = now.UTC()
	return a.Year() != now.Year() || a.Month() != now.Month()
}

// Anchor formats now as a cycle anchor.
func Anchor(now time.Time) string {
	return now.UTC().Format(entitlement.AnchorLayout)
}

// ParseAnchor parses a stored cycle anchor.
func ParseAnchor(s string) (time.Time, error) {
	t, err := time.Parse(entitlement.AnchorLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("subscription: invalid anchor %q: %w", s, err)
	}
	return t, nil
}

// ExpiryFor returns the expiry of a purchase of p made at now.
func ExpiryFor(p plan.Plan, now time.Time) *time.Time {
	var exp time.Time
	switch {
	case p.IsFree():
		return nil
	case p.Term == plan.TermPerpetual:
		exp = now.AddDate(100, 0, 0)
	case p.Term == plan.TermAnnual:
		exp = now.AddDate(0, 0, 365)
	default:
		exp = now.AddDate(0, 0, 30)
	}
	exp = exp.UTC()
	return &exp
}

// Apply returns the state after t. Upgrade needs the target plan and the
// purchase time; the other transitions ignore them.
func (s State) Apply(t Transition, target plan.Plan, now time.Time) State {
	switch t {
	case TransitionUpgrade:
		if target.IsFree() {
			return State{Kind: KindFree, PlanID: plan.FreeID}
		}
		return State{Kind: KindPaid, PlanID: target.ID, Expires: ExpiryFor(target, now)}
	case TransitionExpiryElapsed:
		if s.Kind == KindPaid && s.Expires != nil && now.After(*s.Expires) {
			return State{Kind: KindFree, PlanID: plan.FreeID}
		}
	}
	return s
}
