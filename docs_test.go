package entitle_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/entitle"
	"github.com/xraph/entitle/history"
	"github.com/xraph/entitle/plan"
	"github.com/xraph/entitle/store/memory"
)

// TestDocumentationExamples verifies that the package documentation flow works.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		e := entitle.New(memory.New(),
			entitle.WithLogger(slog.Default()),
			entitle.WithHistoryBatch(100, 5*time.Second),
		)

		ctx := context.Background()
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer e.Stop()

		v, err := e.Authorize(ctx, "google-oauth2|123", "user@example.com", "Длинный и сложный текст", plan.ModeSimple)
		if err != nil {
			t.Fatal(err)
		}
		if v.Remaining != 14 {
			t.Errorf("remaining = %d", v.Remaining)
		}

		_, err = e.Authorize(ctx, "google-oauth2|123", "user@example.com", "again", plan.ModeSimple)
		if !errors.Is(err, entitle.ErrRateLimited) {
			t.Errorf("expected rate limiting, got %v", err)
		}
	})

	t.Run("UpgradeExample", func(t *testing.T) {
		e := entitle.New(memory.New())
		ctx := context.Background()

		v, err := e.Upgrade(ctx, "sub-1", "go_pro")
		if err != nil {
			t.Fatal(err)
		}
		if !v.Plan.AISettingsEnabled || !v.HistoryEnabled {
			t.Errorf("go_pro should enable settings and history: %+v", v.Plan)
		}
		if err := e.AppendHistory(ctx, v, &history.Item{InputText: "in", OutputText: "out", Mode: "simple"}); err != nil {
			t.Fatal(err)
		}
	})
}
