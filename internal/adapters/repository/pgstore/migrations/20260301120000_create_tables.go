package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		stmts := []string{
			`CREATE TABLE IF NOT EXISTS judges (
				id UUID PRIMARY KEY,
				name TEXT NOT NULL UNIQUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE IF NOT EXISTS teams (
				id UUID PRIMARY KEY,
				name TEXT NOT NULL UNIQUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE IF NOT EXISTS score_categories (
				id UUID PRIMARY KEY,
				name TEXT NOT NULL UNIQUE,
				max_score INTEGER NOT NULL DEFAULT 10 CHECK (max_score > 0),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE IF NOT EXISTS scores (
				id UUID PRIMARY KEY,
				team_id UUID NOT NULL REFERENCES teams (id) ON DELETE CASCADE,
				judge_id UUID NOT NULL REFERENCES judges (id) ON DELETE CASCADE,
				category_id UUID NOT NULL REFERENCES score_categories (id) ON DELETE CASCADE,
				score INTEGER NOT NULL CHECK (score >= 0),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (team_id, judge_id, category_id)
			)`,
			`CREATE TABLE IF NOT EXISTS comments (
				id UUID PRIMARY KEY,
				team_id UUID NOT NULL REFERENCES teams (id) ON DELETE CASCADE,
				judge_id UUID NOT NULL REFERENCES judges (id) ON DELETE CASCADE,
				comment TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_scores_team ON scores (team_id)`,
		}
		for _, stmt := range stmts {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create tables: %w", err)
			}
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS comments, scores, score_categories, teams, judges`)
		if err != nil {
			return fmt.Errorf("drop tables: %w", err)
		}
		return nil
	})
}
