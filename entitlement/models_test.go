package entitlement_test

import (
	"testing"
	"time"

	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/plan"
)

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*entitlement.Settings)
		wantErr bool
	}{
		{"defaults", func(*entitlement.Settings) {}, false},
		{"max levels", func(s *entitlement.Settings) { s.SimplifyLevel, s.ShortenLevel = 10, 10 }, false},
		{"zero simplify", func(s *entitlement.Settings) { s.SimplifyLevel = 0 }, true},
		{"shorten too high", func(s *entitlement.Settings) { s.ShortenLevel = 11 }, true},
		{"bullets too high", func(s *entitlement.Settings) { s.BulletCount = 11 }, true},
		{"examples too high", func(s *entitlement.Settings) { s.ExampleCount = 6 }, true},
		{"examples min", func(s *entitlement.Settings) { s.ExampleCount = 1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := entitlement.DefaultSettings()
			tt.mutate(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewRecord(t *testing.T) {
	now := time.Date(2025, 3, 31, 23, 30, 0, 0, time.FixedZone("MSK", 3*3600))
	rec := entitlement.NewRecord("sub-1", "a@example.com", now)

	if rec.PlanID != plan.FreeID || rec.RequestsUsed != 0 {
		t.Errorf("unexpected initial state: %+v", rec)
	}
	// 23:30 MSK is 20:30 UTC on the same date.
	if rec.CycleAnchor != "2025-03-31" {
		t.Errorf("anchor = %q", rec.CycleAnchor)
	}
	if rec.Settings != entitlement.DefaultSettings() {
		t.Errorf("settings = %+v", rec.Settings)
	}
}

func TestViewRemainingNeverNegative(t *testing.T) {
	r := plan.DefaultRegistry()
	rec := entitlement.NewRecord("sub-1", "", time.Now())
	rec.RequestsUsed = 40

	v := entitlement.NewView(rec, r.Free(), false)
	if v.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", v.Remaining)
	}
	if !v.Exhausted() {
		t.Error("expected exhausted view")
	}
}

func TestRecordCloneIsDeep(t *testing.T) {
	now := time.Now()
	rec := entitlement.NewRecord("sub-1", "", now)
	rec.LastActionAt = &now

	c := rec.Clone()
	*c.LastActionAt = now.Add(time.Hour)
	if !rec.LastActionAt.Equal(now) {
		t.Error("Clone shared LastActionAt")
	}
}
