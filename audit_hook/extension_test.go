package audithook_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/entitle"
	audithook "github.com/xraph/entitle/audit_hook"
	"github.com/xraph/entitle/store/memory"
)

type sink struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (s *sink) Record(_ context.Context, e *audithook.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *sink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Action
	}
	return out
}

func engineWith(t *testing.T, ext *audithook.Extension) *entitle.Engine {
	t.Helper()
	now := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	e := entitle.New(memory.New(),
		entitle.WithPlugin(ext),
		entitle.WithClock(func() time.Time { return now }),
	)
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.Stop() })
	return e
}

func TestAuditTrail(t *testing.T) {
	rec := &sink{}
	e := engineWith(t, audithook.New(rec))
	ctx := context.Background()

	if _, err := e.Resolve(ctx, "sub-1", "a@example.com"); err != nil {
		t.Fatal(err)
	}
	v, err := e.Upgrade(ctx, "sub-1", "go_pro")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Consume(ctx, v); err != nil {
		t.Fatal(err)
	}
	// Same instant: the second action is a duplicate submission.
	if err := e.Consume(ctx, v); !errors.Is(err, entitle.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}

	want := []string{
		audithook.ActionSubjectCreated,
		audithook.ActionSubscriptionUpgraded,
		audithook.ActionRateLimited,
	}
	got := rec.actions()
	if len(got) != len(want) {
		t.Fatalf("actions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("action[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEnabledActionsFilter(t *testing.T) {
	rec := &sink{}
	ext := audithook.New(rec, audithook.WithEnabledActions(audithook.ActionUsageConsumed))
	e := engineWith(t, ext)
	ctx := context.Background()

	v, err := e.Resolve(ctx, "sub-2", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Consume(ctx, v); err != nil {
		t.Fatal(err)
	}

	got := rec.actions()
	if len(got) != 1 || got[0] != audithook.ActionUsageConsumed {
		t.Errorf("actions = %v, want only usage.consumed", got)
	}
	if rec.events[0].ResourceID != "sub-2" {
		t.Errorf("resource id = %q", rec.events[0].ResourceID)
	}
	if p := rec.events[0].ID.Prefix(); p != "evt" {
		t.Errorf("event id prefix = %q", p)
	}
}

func TestDisabledActions(t *testing.T) {
	rec := &sink{}
	ext := audithook.New(rec, audithook.WithDisabledActions(audithook.ActionSubjectCreated))
	e := engineWith(t, ext)

	if _, err := e.Resolve(context.Background(), "sub-3", ""); err != nil {
		t.Fatal(err)
	}
	if got := rec.actions(); len(got) != 0 {
		t.Errorf("expected no events, got %v", got)
	}
}

func TestGenerationFailureRecordsReason(t *testing.T) {
	rec := &sink{}
	ext := audithook.New(rec)
	ctx := context.Background()

	if err := ext.OnGenerationCompleted(ctx, "sub-4", "simple", time.Second, nil); err != nil {
		t.Fatal(err)
	}
	if err := ext.OnGenerationCompleted(ctx, "sub-4", "simple", time.Second, errors.New("upstream 503")); err != nil {
		t.Fatal(err)
	}

	if len(rec.events) != 1 {
		t.Fatalf("expected one event, got %d", len(rec.events))
	}
	evt := rec.events[0]
	if evt.Action != audithook.ActionGenerationFailed || evt.Reason != "upstream 503" {
		t.Errorf("unexpected event %+v", evt)
	}
}
