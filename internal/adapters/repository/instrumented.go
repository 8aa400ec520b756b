package repository

import (
	"context"
	"time"

	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/pkg/metrics"
)

// Instrumented wraps a Store and records latency and failures per call.
type Instrumented struct {
	next   Store
	record func(op string, latencyMs float64, err error)
}

var _ Store = (*Instrumented)(nil)

// Instrument wraps next. Calls are reported to the global metrics manager.
func Instrument(next Store) *Instrumented {
	return &Instrumented{next: next, record: metrics.RecordStoreCall}
}

func (s *Instrumented) observe(op string, start time.Time, err error) {
	s.record(op, float64(time.Since(start).Microseconds())/1000, err)
}

// ListJudges implements Store.
func (s *Instrumented) ListJudges(ctx context.Context) (out []model.Judge, err error) {
	defer func(start time.Time) { s.observe("list_judges", start, err) }(time.Now())
	return s.next.ListJudges(ctx)
}

// CreateJudge implements Store.
func (s *Instrumented) CreateJudge(ctx context.Context, name string) (out model.Judge, err error) {
	defer func(start time.Time) { s.observe("create_judge", start, err) }(time.Now())
	return s.next.CreateJudge(ctx, name)
}

// DeleteJudge implements Store.
func (s *Instrumented) DeleteJudge(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { s.observe("delete_judge", start, err) }(time.Now())
	return s.next.DeleteJudge(ctx, id)
}

// FindJudgesByName implements Store.
func (s *Instrumented) FindJudgesByName(ctx context.Context, name string) (out []model.Judge, err error) {
	defer func(start time.Time) { s.observe("find_judges", start, err) }(time.Now())
	return s.next.FindJudgesByName(ctx, name)
}

// ListTeams implements Store.
func (s *Instrumented) ListTeams(ctx context.Context) (out []model.Team, err error) {
	defer func(start time.Time) { s.observe("list_teams", start, err) }(time.Now())
	return s.next.ListTeams(ctx)
}

// CreateTeam implements Store.
func (s *Instrumented) CreateTeam(ctx context.Context, name string) (out model.Team, err error) {
	defer func(start time.Time) { s.observe("create_team", start, err) }(time.Now())
	return s.next.CreateTeam(ctx, name)
}

// DeleteTeam implements Store.
func (s *Instrumented) DeleteTeam(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { s.observe("delete_team", start, err) }(time.Now())
	return s.next.DeleteTeam(ctx, id)
}

// GetTeam implements Store.
func (s *Instrumented) GetTeam(ctx context.Context, id string) (out model.Team, err error) {
	defer func(start time.Time) { s.observe("get_team", start, err) }(time.Now())
	return s.next.GetTeam(ctx, id)
}

// FindTeamsByName implements Store.
func (s *Instrumented) FindTeamsByName(ctx context.Context, name string) (out []model.Team, err error) {
	defer func(start time.Time) { s.observe("find_teams", start, err) }(time.Now())
	return s.next.FindTeamsByName(ctx, name)
}

// ListCategories implements Store.
func (s *Instrumented) ListCategories(ctx context.Context) (out []model.Category, err error) {
	defer func(start time.Time) { s.observe("list_categories", start, err) }(time.Now())
	return s.next.ListCategories(ctx)
}

// SeedCategories implements Store.
func (s *Instrumented) SeedCategories(ctx context.Context, maxByName map[string]int) (out []model.Category, err error) {
	defer func(start time.Time) { s.observe("seed_categories", start, err) }(time.Now())
	return s.next.SeedCategories(ctx, maxByName)
}

// ListScores implements Store.
func (s *Instrumented) ListScores(ctx context.Context) (out []model.Score, err error) {
	defer func(start time.Time) { s.observe("list_scores", start, err) }(time.Now())
	return s.next.ListScores(ctx)
}

// ListScoresFor implements Store.
func (s *Instrumented) ListScoresFor(ctx context.Context, teamID, judgeID string) (out []model.Score, err error) {
	defer func(start time.Time) { s.observe("list_scores_for", start, err) }(time.Now())
	return s.next.ListScoresFor(ctx, teamID, judgeID)
}

// ListTeamScores implements Store.
func (s *Instrumented) ListTeamScores(ctx context.Context, teamID string) (out []model.Score, err error) {
	defer func(start time.Time) { s.observe("list_team_scores", start, err) }(time.Now())
	return s.next.ListTeamScores(ctx, teamID)
}

// UpsertScore implements Store.
func (s *Instrumented) UpsertScore(ctx context.Context, sc model.Score) (out model.Score, err error) {
	defer func(start time.Time) { s.observe("upsert_score", start, err) }(time.Now())
	return s.next.UpsertScore(ctx, sc)
}

// FindComment implements Store.
func (s *Instrumented) FindComment(ctx context.Context, teamID, judgeID string) (out model.Comment, err error) {
	defer func(start time.Time) { s.observe("find_comment", start, err) }(time.Now())
	return s.next.FindComment(ctx, teamID, judgeID)
}

// ListTeamComments implements Store.
func (s *Instrumented) ListTeamComments(ctx context.Context, teamID string) (out []model.Comment, err error) {
	defer func(start time.Time) { s.observe("list_team_comments", start, err) }(time.Now())
	return s.next.ListTeamComments(ctx, teamID)
}

// UpsertComment implements Store.
func (s *Instrumented) UpsertComment(ctx context.Context, c model.Comment) (out model.Comment, err error) {
	defer func(start time.Time) { s.observe("upsert_comment", start, err) }(time.Now())
	return s.next.UpsertComment(ctx, c)
}

// Ping implements Store.
func (s *Instrumented) Ping(ctx context.Context) (err error) {
	defer func(start time.Time) { s.observe("ping", start, err) }(time.Now())
	return s.next.Ping(ctx)
}

// Close implements Store.
func (s *Instrumented) Close() error { return s.next.Close() }
