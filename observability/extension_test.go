package observability_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/observability"
	"github.com/xraph/entitle/plugin"
)

func TestMetricsExtensionCounts(t *testing.T) {
	f := observability.NewPrometheusFactory()
	m := observability.NewMetricsExtension(f)
	ctx := context.Background()

	reg := plugin.NewRegistry()
	if err := reg.Register(m); err != nil {
		t.Fatal(err)
	}

	v := &entitlement.View{Remaining: 3}
	reg.EmitSubjectCreated(ctx, v)
	reg.EmitUsageConsumed(ctx, v)
	reg.EmitUsageConsumed(ctx, v)
	reg.EmitQuotaExceeded(ctx, "s1", "free", 15, 15)
	reg.EmitRateLimited(ctx, "s1")
	reg.EmitGenerationCompleted(ctx, "s1", "simple", 20*time.Millisecond, nil)
	reg.EmitGenerationCompleted(ctx, "s1", "simple", 5*time.Millisecond, errors.New("upstream"))
	reg.EmitHistoryFlushed(ctx, 7, time.Millisecond)

	tests := []struct {
		name    string
		counter observability.Counter
		want    float64
	}{
		{"subject created", m.SubjectCreated, 1},
		{"usage consumed", m.UsageConsumed, 2},
		{"quota exceeded", m.QuotaExceeded, 1},
		{"rate limited", m.RateLimited, 1},
		{"generation completed", m.GenerationCompleted, 1},
		{"generation failed", m.GenerationFailed, 1},
		{"history flushed", m.HistoryFlushed, 7},
		{"cycle reset", m.CycleReset, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := tt.counter.(prometheus.Counter)
			if !ok {
				t.Fatalf("counter is %T, want prometheus.Counter", tt.counter)
			}
			if got := testutil.ToFloat64(c); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPrometheusFactoryReusesMetrics(t *testing.T) {
	f := observability.NewPrometheusFactory()
	a := f.Counter("entitle.usage.consumed")
	b := f.Counter("entitle.usage.consumed")
	a.Inc()
	b.Inc()

	if got := testutil.ToFloat64(a.(prometheus.Counter)); got != 2 {
		t.Errorf("shared counter = %v, want 2", got)
	}
}

func TestPrometheusHandlerExposesNames(t *testing.T) {
	f := observability.NewPrometheusFactory()
	observability.NewMetricsExtension(f).UsageConsumed.Inc()

	rec := httptest.NewRecorder()
	f.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{"entitle_usage_consumed_total 1", "entitle_generation_latency_ms_bucket"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
