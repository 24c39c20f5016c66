package extension

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/entitle/plan"
	"github.com/xraph/entitle/types"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{HistoryBatchSize: 10})

	if cfg.HistoryBatchSize != 10 {
		t.Errorf("batch size = %d, want 10", cfg.HistoryBatchSize)
	}
	if cfg.MinInterval != 2*time.Second || cfg.HistoryFlushInterval != 5*time.Second || cfg.HistoryMinRank != 2 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestMergeConfigurations(t *testing.T) {
	file := Config{MinInterval: 3 * time.Second}
	prog := Config{
		MinInterval:      time.Second,
		HistoryBatchSize: 7,
		DisableMigrate:   true,
		GroveDriver:      "sqlite",
	}

	cfg := mergeConfigurations(file, prog)

	if cfg.MinInterval != 3*time.Second {
		t.Errorf("file value should win: %v", cfg.MinInterval)
	}
	if cfg.HistoryBatchSize != 7 {
		t.Errorf("programmatic value should fill gap: %d", cfg.HistoryBatchSize)
	}
	if !cfg.DisableMigrate || cfg.GroveDriver != "sqlite" {
		t.Errorf("flags not merged: %+v", cfg)
	}
	if cfg.HistoryFlushInterval != 5*time.Second {
		t.Errorf("defaults not applied: %v", cfg.HistoryFlushInterval)
	}
}

func TestConfigRegistry(t *testing.T) {
	r, err := Config{}.Registry()
	if err != nil {
		t.Fatal(err)
	}
	if r.Len() != plan.DefaultRegistry().Len() {
		t.Errorf("empty config should yield the default catalog")
	}

	cfg := Config{Plans: []plan.Definition{
		{ID: plan.FreeID, Name: "Free", MaxChars: 100, MaxRequests: 3, Term: "perpetual"},
		{ID: "pro", Name: "Pro", MaxChars: 1000, MaxRequests: 50, Price: "9.99", Currency: "usd"},
	}}
	r, err = cfg.Registry()
	if err != nil {
		t.Fatal(err)
	}
	p, ok := r.Get("pro")
	if !ok || !p.Price.Equal(types.USD(999)) {
		t.Errorf("pro plan = %+v, ok=%v", p, ok)
	}

	bad := Config{Plans: []plan.Definition{{ID: "pro", Name: "Pro", MaxChars: 1, MaxRequests: 1}}}
	if _, err := bad.Registry(); err == nil {
		t.Error("catalog without a free tier should fail")
	}
}

func TestBuildUsesConfiguredPlans(t *testing.T) {
	e := New(
		WithPlans(
			plan.Plan{ID: plan.FreeID, Name: "Free", MaxChars: 10, MaxRequests: 1, Price: types.Zero("rub"), Term: plan.TermPerpetual},
		),
		WithHistoryBatchSize(5),
	)
	e.config = mergeWithDefaults(e.config)
	if err := e.build(); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := e.Engine().Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = e.Engine().Stop() }()

	v, err := e.Engine().Resolve(ctx, "sub-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if v.Plan.MaxRequests != 1 || len(e.Engine().Plans()) != 1 {
		t.Errorf("configured catalog not applied: %+v", v.Plan)
	}
	if err := e.Health(ctx); err != nil {
		t.Errorf("health: %v", err)
	}
}
