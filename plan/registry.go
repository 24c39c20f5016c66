package plan

import (
	"fmt"
	"slices"
	"strings"
)

// Registry is an immutable, price-ordered catalog of plans. It is safe for
// concurrent use without locking.
type Registry struct {
	plans []Plan
	index map[string]int
}

// NewRegistry validates plans and orders them ascending by price, ties
// broken by id. A zero-priced free tier is required.
func NewRegistry(plans ...Plan) (*Registry, error) {
	r := &Registry{
		plans: make([]Plan, 0, len(plans)),
		index: make(map[string]int, len(plans)),
	}

	seen := make(map[string]struct{}, len(plans))
	currency := ""
	for _, p := range plans {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if p.Price.IsPositive() {
			if currency != "" && p.Price.Currency != currency {
				return nil, fmt.Errorf("plan %q: currency %q differs from catalog currency %q", p.ID, p.Price.Currency, currency)
			}
			currency = p.Price.Currency
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("plan: duplicate id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
		r.plans = append(r.plans, p.clone())
	}

	if _, ok := seen[FreeID]; !ok {
		return nil, fmt.Errorf("plan: catalog has no %q tier", FreeID)
	}

	slices.SortStableFunc(r.plans, func(a, b Plan) int {
		if c := a.Price.Compare(b.Price); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	for i, p := range r.plans {
		r.index[p.ID] = i
	}

	if r.plans[r.index[FreeID]].Price.IsPositive() {
		return nil, fmt.Errorf("plan: %q tier must be zero-priced", FreeID)
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry(plans ...Plan) *Registry {
	r, err := NewRegistry(plans...)
	if err != nil {
		panic(err)
	}
	return r
}

// List returns the plans ascending by price.
func (r *Registry) List() []Plan {
	out := make([]Plan, len(r.plans))
	for i, p := range r.plans {
		out[i] = p.clone()
	}
	return out
}

// Get looks up a plan by id.
func (r *Registry) Get(id string) (Plan, bool) {
	i, ok := r.index[id]
	if !ok {
		return Plan{}, false
	}
	return r.plans[i].clone(), true
}

// Resolve returns the plan for id, falling back to the free tier for ids
// the catalog no longer carries.
func (r *Registry) Resolve(id string) Plan {
	if p, ok := r.Get(id); ok {
		return p
	}
	return r.Free()
}

// Free returns the fallback tier.
func (r *Registry) Free() Plan {
	return r.plans[r.index[FreeID]].clone()
}

// Rank returns the position of id in price order, or -1 if unknown.
func (r *Registry) Rank(id string) int {
	i, ok := r.index[id]
	if !ok {
		return -1
	}
	return i
}

// clone copies p so callers cannot reach the registry's Modes array.
func (p Plan) clone() Plan {
	p.Modes = slices.Clone(p.Modes)
	return p
}

// Len returns the number of plans.
func (r *Registry) Len() int { return len(r.plans) }
