// Package repository defines the data-service contract the scoring service
// runs against, an in-memory implementation and a metrics decorator.
// The Postgres implementation lives in the pgstore subpackage.
package repository

import (
	"context"

	"github.com/okian/judgeboard/internal/domain/model"
)

// Store provides table-scoped access to judges, teams, categories, scores
// and comments. Every call stands alone; there are no transactions spanning
// calls. Implementations wrap failures onto the model error kinds.
type Store interface {
	// ListJudges returns every judge ordered by name.
	ListJudges(ctx context.Context) ([]model.Judge, error)
	// CreateJudge inserts a judge. A taken name yields ErrConflict.
	CreateJudge(ctx context.Context, name string) (model.Judge, error)
	// DeleteJudge removes a judge with its scores and comments.
	DeleteJudge(ctx context.Context, id string) error
	// FindJudgesByName returns every judge whose name equals name exactly.
	FindJudgesByName(ctx context.Context, name string) ([]model.Judge, error)

	// ListTeams returns every team ordered by name.
	ListTeams(ctx context.Context) ([]model.Team, error)
	// CreateTeam inserts a team. A taken name yields ErrConflict.
	CreateTeam(ctx context.Context, name string) (model.Team, error)
	// DeleteTeam removes a team with its scores and comments.
	DeleteTeam(ctx context.Context, id string) error
	// GetTeam returns one team or ErrNotFound.
	GetTeam(ctx context.Context, id string) (model.Team, error)
	// FindTeamsByName returns every team whose name equals name exactly.
	FindTeamsByName(ctx context.Context, name string) ([]model.Team, error)

	// ListCategories returns every category ordered by name.
	ListCategories(ctx context.Context) ([]model.Category, error)
	// SeedCategories makes sure a category exists per name with the given
	// ceiling. Existing rows keep their id; their ceiling is updated.
	SeedCategories(ctx context.Context, maxByName map[string]int) ([]model.Category, error)

	// ListScores returns every score row.
	ListScores(ctx context.Context) ([]model.Score, error)
	// ListScoresFor returns one judge's rows for one team.
	ListScoresFor(ctx context.Context, teamID, judgeID string) ([]model.Score, error)
	// ListTeamScores returns every judge's rows for one team.
	ListTeamScores(ctx context.Context, teamID string) ([]model.Score, error)
	// UpsertScore inserts or overwrites the row keyed on
	// (team, judge, category). Unknown team, judge or category yields
	// ErrNotFound.
	UpsertScore(ctx context.Context, s model.Score) (model.Score, error)

	// FindComment returns the comment for (team, judge) or ErrNotFound.
	FindComment(ctx context.Context, teamID, judgeID string) (model.Comment, error)
	// ListTeamComments returns every judge's comment on a team.
	ListTeamComments(ctx context.Context, teamID string) ([]model.Comment, error)
	// UpsertComment inserts or overwrites the row keyed on (team, judge).
	UpsertComment(ctx context.Context, c model.Comment) (model.Comment, error)

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
	// Close releases resources.
	Close() error
}
