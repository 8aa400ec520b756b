package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// One canonical comment per (team, judge). Older rows are collapsed onto the
// most recently updated one before the constraint is added.
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.ExecContext(ctx, `
			DELETE FROM comments c
			USING comments newer
			WHERE c.team_id = newer.team_id
			  AND c.judge_id = newer.judge_id
			  AND (c.updated_at, c.id) < (newer.updated_at, newer.id)
		`)
		if err != nil {
			return fmt.Errorf("collapse duplicate comments: %w", err)
		}
		_, err = db.ExecContext(ctx, `
			CREATE UNIQUE INDEX IF NOT EXISTS uq_comments_team_judge ON comments (team_id, judge_id)
		`)
		if err != nil {
			return fmt.Errorf("add comment key: %w", err)
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.ExecContext(ctx, `DROP INDEX IF EXISTS uq_comments_team_judge`)
		if err != nil {
			return fmt.Errorf("drop comment key: %w", err)
		}
		return nil
	})
}
