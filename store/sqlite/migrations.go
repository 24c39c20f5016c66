package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the entitle store (SQLite).
// Versions are applied in order, once each.
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
    max_chars           INTEGER NOT NULL DEFAULT 0,
    max_requests        INTEGER NOT NULL DEFAULT 0,
    ai_settings_enabled INTEGER NOT NULL DEFAULT 0,
    price_amount        INTEGER NOT NULL DEFAULT 0,
    price_currency      TEXT NOT NULL DEFAULT 'rub',
    term                TEXT NOT NULL DEFAULT 'monthly',
    modes               TEXT NOT NULL DEFAULT '[]',
    updated_at          INTEGER NOT NULL DEFAULT 0
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
    requests_used        INTEGER NOT NULL DEFAULT 0,
    cycle_anchor         TEXT NOT NULL DEFAULT '',
    last_action_at       INTEGER,
    subscription_expires INTEGER,
    created_at           INTEGER NOT NULL DEFAULT 0,
    updated_at           INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_entitle_subjects_plan ON entitle_subjects (plan_id);
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
ALTER TABLE entitle_subjects ADD COLUMN simplify_level INTEGER NOT NULL DEFAULT 5;
ALTER TABLE entitle_subjects ADD COLUMN shorten_level INTEGER NOT NULL DEFAULT 5;
ALTER TABLE entitle_subjects ADD COLUMN bullet_count INTEGER NOT NULL DEFAULT 5;
ALTER TABLE entitle_subjects ADD COLUMN example_count INTEGER NOT NULL DEFAULT 2;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
ALTER TABLE entitle_subjects DROP COLUMN simplify_level;
ALTER TABLE entitle_subjects DROP COLUMN shorten_level;
ALTER TABLE entitle_subjects DROP COLUMN bullet_count;
ALTER TABLE entitle_subjects DROP COLUMN example_count;
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
    subject_id  TEXT NOT NULL,
    input_text  TEXT NOT NULL DEFAULT '',
    output_text TEXT NOT NULL DEFAULT '',
    mode        TEXT NOT NULL DEFAULT '',
    source_url  TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL DEFAULT 0
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
