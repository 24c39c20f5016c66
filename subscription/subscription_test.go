package subscription_test

import (
	"testing"
	"time"

	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/plan"
	"github.com/xraph/entitle/subscription"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestExpiryFor(t *testing.T) {
	r := plan.DefaultRegistry()
	tests := []struct {
		planID string
		want   *time.Time
	}{
		{"free", nil},
		{"go", ptr(now.AddDate(0, 0, 30))},
		{"go_pro", ptr(now.AddDate(0, 0, 30))},
		{"go_pro_plus", ptr(now.AddDate(0, 0, 365))},
		{"lifetime", ptr(now.AddDate(100, 0, 0))},
	}

	for _, tt := range tests {
		t.Run(tt.planID, func(t *testing.T) {
			p, _ := r.Get(tt.planID)
			got := subscription.ExpiryFor(p, now)
			switch {
			case tt.want == nil && got != nil:
				t.Fatalf("expected nil expiry, got %v", got)
			case tt.want != nil && (got == nil || !got.Equal(*tt.want)):
				t.Fatalf("expiry = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpired(t *testing.T) {
	rec := entitlement.NewRecord("s", "", now)
	if subscription.Expired(rec, now) {
		t.Error("free record can never be expired")
	}

	rec.PlanID = "go_pro"
	rec.SubscriptionExpires = ptr(now.Add(-time.Second))
	if !subscription.Expired(rec, now) {
		t.Error("expected expired")
	}

	rec.SubscriptionExpires = ptr(now)
	if subscription.Expired(rec, now) {
		t.Error("expiry equal to now is still active")
	}

	rec.SubscriptionExpires = nil
	if subscription.Expired(rec, now) {
		t.Error("paid plan without expiry never expires")
	}
}

func TestNeedsRollover(t *testing.T) {
	tests := []struct {
		anchor string
		want   bool
	}{
		{"2025-06-01", false},
		{"2025-06-15", false},
		{"2025-05-31", true},
		{"2024-06-15", true},
		{"", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		if got := subscription.NeedsRollover(tt.anchor, now); got != tt.want {
			t.Errorf("NeedsRollover(%q) = %v, want %v", tt.anchor, got, tt.want)
		}
	}
}

func TestStateTransitions(t *testing.T) {
	r := plan.DefaultRegistry()
	annual, _ := r.Get("go_pro_plus")

	rec := entitlement.NewRecord("s", "", now)
	st := subscription.StateOf(rec)
	if st.Kind != subscription.KindFree {
		t.Fatalf("initial state = %v", st.Kind)
	}

	st = st.Apply(subscription.TransitionUpgrade, annual, now)
	if st.Kind != subscription.KindPaid || st.PlanID != "go_pro_plus" {
		t.Fatalf("after upgrade: %+v", st)
	}

	if got := st.Apply(subscription.TransitionExpiryElapsed, plan.Plan{}, now.AddDate(0, 0, 100)); got.Kind != subscription.KindPaid {
		t.Error("expiry before the end of term should not downgrade")
	}
	if got := st.Apply(subscription.TransitionExpiryElapsed, plan.Plan{}, now.AddDate(0, 0, 366)); got.Kind != subscription.KindFree {
		t.Error("expected downgrade after the annual term")
	}
	if got := st.Apply(subscription.TransitionCycleRollover, plan.Plan{}, now.AddDate(0, 1, 0)); got != st {
		t.Error("rollover must not change the tier")
	}
}

func ptr(t time.Time) *time.Time { return &t }
