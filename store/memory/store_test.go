package memory_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/entitle"
	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/history"
	"github.com/xraph/entitle/id"
	"github.com/xraph/entitle/store/memory"
)

var now = time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *memory.Store, subjectID string) {
	t.Helper()
	if _, err := s.CreateIfAbsent(context.Background(), entitlement.NewRecord(subjectID, "", now)); err != nil {
		t.Fatal(err)
	}
}

func TestCreateIfAbsent(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	created, err := s.CreateIfAbsent(ctx, entitlement.NewRecord("a", "first@example.com", now))
	if err != nil || !created {
		t.Fatalf("first create: created=%v err=%v", created, err)
	}
	created, err = s.CreateIfAbsent(ctx, entitlement.NewRecord("a", "second@example.com", now))
	if err != nil || created {
		t.Fatalf("second create: created=%v err=%v", created, err)
	}

	rec, _ := s.GetRecord(ctx, "a")
	if rec.Email != "first@example.com" {
		t.Errorf("existing record was overwritten: %q", rec.Email)
	}
}

func TestTryConsumeConcurrentWithinWindow(t *testing.T) {
	s := memory.New()
	seed(t, s, "a")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.TryConsume(context.Background(), "a", 15, 2*time.Second, now)
			if err != nil {
				t.Error(err)
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one success, got %d", wins.Load())
	}
	rec, _ := s.GetRecord(context.Background(), "a")
	if rec.RequestsUsed != 1 {
		t.Errorf("RequestsUsed = %d, want 1", rec.RequestsUsed)
	}
}

func TestTryConsumeNeverExceedsLimit(t *testing.T) {
	s := memory.New()
	seed(t, s, "a")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.TryConsume(context.Background(), "a", 15, 0, now); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 15 {
		t.Errorf("expected 15 successes, got %d", wins.Load())
	}
}

func TestTryConsumeUnknownSubject(t *testing.T) {
	ok, err := memory.New().TryConsume(context.Background(), "ghost", 15, 0, now)
	if ok || err != nil {
		t.Errorf("ok=%v err=%v", ok, err)
	}
}

func TestResetCycleAppliesOnce(t *testing.T) {
	s := memory.New()
	seed(t, s, "a")
	ctx := context.Background()
	_, _ = s.TryConsume(ctx, "a", 15, 0, now)

	first, _ := s.ResetCycle(ctx, "a", "2025-04-10", "2025-05-01", now)
	second, _ := s.ResetCycle(ctx, "a", "2025-04-10", "2025-05-01", now)
	if !first || second {
		t.Fatalf("first=%v second=%v", first, second)
	}

	rec, _ := s.GetRecord(ctx, "a")
	if rec.RequestsUsed != 0 || rec.CycleAnchor != "2025-05-01" {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestDowngradeConditions(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	past := now.Add(-time.Hour)

	if err := s.SetPlan(ctx, "a", "go_pro", &past, now.Add(-48*time.Hour)); err != nil {
		t.Fatal(err)
	}
	for range 40 {
		_, _ = s.TryConsume(ctx, "a", 500, 0, now)
	}

	if ok, _ := s.Downgrade(ctx, "a", "go", now, 15); ok {
		t.Fatal("downgrade must not apply when the plan changed")
	}
	if ok, _ := s.Downgrade(ctx, "a", "go_pro", now, 15); !ok {
		t.Fatal("expected downgrade")
	}

	rec, _ := s.GetRecord(ctx, "a")
	if rec.PlanID != "free" || rec.SubscriptionExpires != nil || rec.RequestsUsed != 15 {
		t.Errorf("unexpected record: plan=%s expires=%v used=%d", rec.PlanID, rec.SubscriptionExpires, rec.RequestsUsed)
	}
}

func TestUpdateSettingsNotFound(t *testing.T) {
	err := memory.New().UpdateSettings(context.Background(), "ghost", entitlement.DefaultSettings(), now)
	if !entitle.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestListHistoryNewestFirst(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	var items []*history.Item
	for i := range 5 {
		items = append(items, &history.Item{
			ID:        id.NewHistoryID(),
			SubjectID: "a",
			Mode:      "simple",
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		})
	}
	if err := s.AppendHistory(ctx, items); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListHistory(ctx, "a", history.ListOpts{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if !got[0].CreatedAt.Equal(now.Add(3*time.Minute)) || !got[1].CreatedAt.Equal(now.Add(2*time.Minute)) {
		t.Errorf("unexpected order: %v, %v", got[0].CreatedAt, got[1].CreatedAt)
	}

	if empty, _ := s.ListHistory(ctx, "b", history.ListOpts{Limit: 20}); len(empty) != 0 {
		t.Errorf("expected no items for b, got %d", len(empty))
	}
}

func TestClosedStore(t *testing.T) {
	s := memory.New()
	_ = s.Close()
	if err := s.Ping(context.Background()); err != entitle.ErrStoreClosed {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}
