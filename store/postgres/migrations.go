package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the entitle store.
var Migrations = migrate.NewGroup("entitle")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_entitle_plans",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS entitle_plans (
    id                  TEXT PRIMARY KEY,
    name                TEXT NOT NULL DEFAULT '',
    max_chars           INT NOT NULL DEFAULT 0,
    max_requests        INT NOT NULL DEFAULT 0,
    ai_settings_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    price_amount        BIGINT NOT NULL DEFAULT 0,
    price_currency      TEXT NOT NULL DEFAULT 'rub',
    term                TEXT NOT NULL DEFAULT 'monthly',
    modes               JSONB NOT NULL DEFAULT '[]',
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS entitle_plans`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_entitle_subjects",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS entitle_subjects (
    subject_id           TEXT PRIMARY KEY,
    email                TEXT,
    plan_id              TEXT NOT NULL DEFAULT 'free',
    requests_used        INT NOT NULL DEFAULT 0 CHECK (requests_used >= 0),
    cycle_anchor         TEXT NOT NULL DEFAULT '',
    last_action_at       TIMESTAMPTZ,
    subscription_expires TIMESTAMPTZ,
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_entitle_subjects_plan ON entitle_subjects (plan_id);
CREATE INDEX IF NOT EXISTS idx_entitle_subjects_expires ON entitle_subjects (subscription_expires)
    WHERE subscription_expires IS NOT NULL;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS entitle_subjects`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "add_entitle_subject_settings",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
ALTER TABLE entitle_subjects
    ADD COLUMN IF NOT EXISTS simplify_level INT NOT NULL DEFAULT 5,
    ADD COLUMN IF NOT EXISTS shorten_level  INT NOT NULL DEFAULT 5,
    ADD COLUMN IF NOT EXISTS bullet_count   INT NOT NULL DEFAULT 5,
    ADD COLUMN IF NOT EXISTS example_count  INT NOT NULL DEFAULT 2;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
ALTER TABLE entitle_subjects
    DROP COLUMN IF EXISTS simplify_level,
    DROP COLUMN IF EXISTS shorten_level,
    DROP COLUMN IF EXISTS bullet_count,
    DROP COLUMN IF EXISTS example_count;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_entitle_history",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS entitle_history (
    id          TEXT PRIMARY KEY,
    subject_id  TEXT NOT NULL REFERENCES entitle_subjects (subject_id),
    input_text  TEXT NOT NULL DEFAULT '',
    output_text TEXT NOT NULL DEFAULT '',
    mode        TEXT NOT NULL DEFAULT '',
    source_url  TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_entitle_history_subject ON entitle_history (subject_id, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS entitle_history`)
				return err
			},
		},
	)
}
