package meter_test

import (
	"testing"
	"time"

	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/meter"
)

func TestAllowed(t *testing.T) {
	now := time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)
	recent := now.Add(-time.Second)
	old := now.Add(-meter.MinInterval)

	tests := []struct {
		name string
		used int
		last *time.Time
		want bool
	}{
		{"fresh", 0, nil, true},
		{"below limit, spaced", 3, &old, true},
		{"inside window", 3, &recent, false},
		{"at limit", 15, nil, false},
		{"over limit", 20, &old, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := entitlement.NewRecord("s", "", now)
			rec.RequestsUsed = tt.used
			rec.LastActionAt = tt.last
			if got := meter.Allowed(rec, 15, meter.MinInterval, now); got != tt.want {
				t.Errorf("Allowed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	rec := entitlement.NewRecord("s", "", time.Now())

	rec.RequestsUsed = 15
	if got := meter.Classify(rec, 15); got != meter.OutcomeQuotaExceeded {
		t.Errorf("got %q, want quota_exceeded", got)
	}

	rec.RequestsUsed = 3
	if got := meter.Classify(rec, 15); got != meter.OutcomeRateLimited {
		t.Errorf("got %q, want rate_limited", got)
	}
}
