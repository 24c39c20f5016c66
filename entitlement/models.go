// Package entitlement holds the per-subject record the engine meters
// against and the resolved view handed to callers.
package entitlement

import (
	"fmt"
	"time"

	"github.com/xraph/entitle/plan"
	"github.com/xraph/entitle/types"
)

// AnchorLayout is the storage format of a cycle anchor (a UTC calendar date).
const AnchorLayout = "2006-01-02"

// Settings are the per-subject generation preferences. They can only be
// edited on plans with AI settings enabled but survive downgrades.
type Settings struct {
	SimplifyLevel int `json:"simplify_level"`
	ShortenLevel  int `json:"shorten_level"`
	BulletCount   int `json:"bullet_count"`
	ExampleCount  int `json:"example_count"`
}

// DefaultSettings returns the settings every new subject starts with.
func DefaultSettings() Settings {
	return Settings{SimplifyLevel: 5, ShortenLevel: 5, BulletCount: 5, ExampleCount: 2}
}

// Validate checks every field against its allowed range.
func (s Settings) Validate() error {
	checks := []struct {
		field    string
		value    int
		min, max int
	}{
		{"simplify_level", s.SimplifyLevel, 1, 10},
		{"shorten_level", s.ShortenLevel, 1, 10},
		{"bullet_count", s.BulletCount, 1, 10},
		{"example_count", s.ExampleCount, 1, 5},
	}
	for _, c := range checks {
		if c.value < c.min || c.value > c.max {
			return fmt.Errorf("%s must be between %d and %d, got %d", c.field, c.min, c.max, c.value)
		}
	}
	return nil
}

// Record is the persisted entitlement state of one subject.
type Record struct {
	types.Entity
	SubjectID           string     `json:"subject_id"`
	Email               string     `json:"email,omitempty"`
	PlanID              string     `json:"plan_id"`
	RequestsUsed        int        `json:"requests_used"`
	CycleAnchor         string     `json:"cycle_anchor"`
	LastActionAt        *time.Time `json:"last_action_at,omitempty"`
	SubscriptionExpires *time.Time `json:"subscription_expires,omitempty"`
	Settings            Settings   `json:"settings"`
}

// NewRecord returns the record created on a subject's first contact: free
// tier, no usage, anchored at today.
func NewRecord(subjectID, email string, now time.Time) *Record {
	return &Record{
		Entity:      types.NewEntity(now),
		SubjectID:   subjectID,
		Email:       email,
		PlanID:      plan.FreeID,
		CycleAnchor: now.UTC().Format(AnchorLayout),
		Settings:    DefaultSettings(),
	}
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	if r.LastActionAt != nil {
		t := *r.LastActionAt
		c.LastActionAt = &t
	}
	if r.SubscriptionExpires != nil {
		t := *r.SubscriptionExpires
		c.SubscriptionExpires = &t
	}
	return &c
}

// View is a record joined with its resolved plan, after lifecycle
// corrections have been applied.
type View struct {
	Record
	Plan           plan.Plan `json:"plan"`
	Remaining      int       `json:"remaining"`
	HistoryEnabled bool      `json:"history_enabled"`

	// Transitions applied while resolving.
	Created     bool   `json:"-"`
	Expired     bool   `json:"-"`
	ExpiredFrom string `json:"-"`
	Reset       bool   `json:"-"`
}

// NewView joins rec with p.
func NewView(rec *Record, p plan.Plan, historyEnabled bool) *View {
	return &View{
		Record:         *rec.Clone(),
		Plan:           p,
		Remaining:      p.Remaining(rec.RequestsUsed),
		HistoryEnabled: historyEnabled,
	}
}

// Exhausted reports whether the cycle quota is used up.
func (v *View) Exhausted() bool {
	return v.RequestsUsed >= v.Plan.MaxRequests
}
