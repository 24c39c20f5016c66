// Package memory provides an in-memory store. Every operation runs under a
// single mutex, which makes each conditional write atomic. Intended for
// tests and single-process development.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/xraph/entitle"
	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/history"
	"github.com/xraph/entitle/meter"
	"github.com/xraph/entitle/plan"
	"github.com/xraph/entitle/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	closed bool

	plans   map[string]plan.Plan
	records map[string]*entitlement.Record
	history map[string][]*history.Item
}

func New() *Store {
	return &Store{
		plans:   make(map[string]plan.Plan),
		records: make(map[string]*entitlement.Record),
		history: make(map[string][]*history.Item),
	}
}

// Plan Store implementation

func (s *Store) SyncPlans(_ context.Context, plans []plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return entitle.ErrStoreClosed
	}

	for _, p := range plans {
		p.Modes = slices.Clone(p.Modes)
		s.plans[p.ID] = p
	}
	return nil
}

func (s *Store) ListPlans(_ context.Context) ([]plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]plan.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Entitlement Store implementation

func (s *Store) CreateIfAbsent(_ context.Context, rec *entitlement.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, entitle.ErrStoreClosed
	}

	if _, exists := s.records[rec.SubjectID]; exists {
		return false, nil
	}
	s.records[rec.SubjectID] = rec.Clone()
	return true, nil
}

func (s *Store) GetRecord(_ context.Context, subjectID string) (*entitlement.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, entitle.ErrStoreClosed
	}

	rec, ok := s.records[subjectID]
	if !ok {
		return nil, entitle.ErrSubjectNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) SyncEmail(_ context.Context, subjectID, email string, now time.Time) error {
	return s.mutate(subjectID, func(rec *entitlement.Record) {
		if rec.Email == email {
			return
		}
		rec.Email = email
		rec.Touch(now)
	})
}

func (s *Store) ResetCycle(_ context.Context, subjectID, oldAnchor, newAnchor string, now time.Time) (bool, error) {
	applied := false
	err := s.mutate(subjectID, func(rec *entitlement.Record) {
		if rec.CycleAnchor != oldAnchor {
			return
		}
		rec.RequestsUsed = 0
		rec.CycleAnchor = newAnchor
		rec.Touch(now)
		applied = true
	})
	return applied, err
}

func (s *Store) BackfillAnchor(_ context.Context, subjectID, anchor string, now time.Time) (bool, error) {
	applied := false
	err := s.mutate(subjectID, func(rec *entitlement.Record) {
		if rec.CycleAnchor != "" {
			return
		}
		rec.CycleAnchor = anchor
		rec.Touch(now)
		applied = true
	})
	return applied, err
}

func (s *Store) UpdateSettings(_ context.Context, subjectID string, settings entitlement.Settings, now time.Time) error {
	return s.mutate(subjectID, func(rec *entitlement.Record) {
		rec.Settings = settings
		rec.Touch(now)
	})
}

// Subscription Store implementation

func (s *Store) SetPlan(_ context.Context, subjectID, planID string, expires *time.Time, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return entitle.ErrStoreClosed
	}

	rec, ok := s.records[subjectID]
	if !ok {
		rec = entitlement.NewRecord(subjectID, "", now)
		s.records[subjectID] = rec
	}
	rec.PlanID = planID
	rec.RequestsUsed = 0
	rec.SubscriptionExpires = nil
	if expires != nil {
		t := *expires
		rec.SubscriptionExpires = &t
	}
	rec.Touch(now)
	return nil
}

func (s *Store) Downgrade(_ context.Context, subjectID, fromPlan string, now time.Time, freeMaxRequests int) (bool, error) {
	applied := false
	err := s.mutate(subjectID, func(rec *entitlement.Record) {
		if rec.PlanID != fromPlan || rec.SubscriptionExpires == nil || !rec.SubscriptionExpires.Before(now) {
			return
		}
		rec.PlanID = plan.FreeID
		rec.SubscriptionExpires = nil
		rec.RequestsUsed = min(rec.RequestsUsed, freeMaxRequests)
		rec.Touch(now)
		applied = true
	})
	return applied, err
}

// Meter Store implementation

func (s *Store) TryConsume(_ context.Context, subjectID string, limit int, minInterval time.Duration, now time.Time) (bool, error) {
	applied := false
	err := s.mutate(subjectID, func(rec *entitlement.Record) {
		if !meter.Allowed(rec, limit, minInterval, now) {
			return
		}
		rec.RequestsUsed++
		t := now
		rec.LastActionAt = &t
		rec.Touch(now)
		applied = true
	})
	if entitle.IsNotFound(err) {
		return false, nil
	}
	return applied, err
}

// History Store implementation

func (s *Store) AppendHistory(_ context.Context, items []*history.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return entitle.ErrStoreClosed
	}

	for _, item := range items {
		cp := *item
		s.history[item.SubjectID] = append(s.history[item.SubjectID], &cp)
	}
	return nil
}

func (s *Store) ListHistory(_ context.Context, subjectID string, opts history.ListOpts) ([]*history.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, entitle.ErrStoreClosed
	}

	items := s.history[subjectID]
	out := make([]*history.Item, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		cp := *items[i]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if opts.Offset >= len(out) {
		return []*history.Item{}, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Core methods

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return entitle.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// mutate applies fn to the subject's record under the write lock.
func (s *Store) mutate(subjectID string, fn func(rec *entitlement.Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return entitle.ErrStoreClosed
	}

	rec, ok := s.records[subjectID]
	if !ok {
		return entitle.ErrSubjectNotFound
	}
	fn(rec)
	return nil
}
