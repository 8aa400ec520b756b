// Package pgstore implements repository.Store on Postgres through bun.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"github.com/okian/judgeboard/internal/adapters/repository"
	"github.com/okian/judgeboard/internal/adapters/repository/pgstore/migrations"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/pkg/logger"
)

// Postgres error codes mapped onto store kinds.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInvalidText         = "22P02"
)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithMaxOpenConns caps the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithClock sets the time source used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is a Postgres-backed repository.Store.
type Store struct {
	db           *bun.DB
	now          func() time.Time
	maxOpenConns int
}

var _ repository.Store = (*Store)(nil)

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	s := &Store{now: func() time.Time { return time.Now().UTC() }, maxOpenConns: 10}
	for _, opt := range opts {
		opt(s)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	sqldb.SetMaxOpenConns(s.maxOpenConns)
	s.db = bun.NewDB(sqldb, pgdialect.New())

	if err := s.db.PingContext(ctx); err != nil {
		_ = s.db.Close()
		return nil, fmt.Errorf("ping postgres: %w: %w", model.ErrUpstream, err)
	}
	return s, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *bun.DB { return s.db }

// Migrate applies every pending migration.
func (s *Store) Migrate(ctx context.Context) error {
	log := logger.Named("pgstore")
	migrator := migrate.NewMigrator(s.db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := migrator.Lock(ctx); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	defer func() {
		if err := migrator.Unlock(ctx); err != nil {
			log.Warn(ctx, "failed to unlock migrations", logger.Error(err))
		}
	}()

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if group.IsZero() {
		log.Info(ctx, "schema up to date")
		return nil
	}
	log.Info(ctx, "schema migrated", logger.String("group", group.String()))
	return nil
}

// ListJudges implements repository.Store.
func (s *Store) ListJudges(ctx context.Context) ([]model.Judge, error) {
	var rows []judgeRow
	if err := s.db.NewSelect().Model(&rows).OrderExpr("name ASC, id ASC").Scan(ctx); err != nil {
		return nil, mapErr("list judges", err)
	}
	return mapRows(rows, judgeRow.toModel), nil
}

// CreateJudge implements repository.Store.
func (s *Store) CreateJudge(ctx context.Context, name string) (model.Judge, error) {
	name = model.NormalizeName(name)
	if name == "" {
		return model.Judge{}, repository.ErrEmptyName
	}
	row := judgeRow{ID: uuid.NewString(), Name: name, CreatedAt: s.now()}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return model.Judge{}, mapErr("create judge "+name, err)
	}
	return row.toModel(), nil
}

// DeleteJudge implements repository.Store.
func (s *Store) DeleteJudge(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model((*judgeRow)(nil)).Where("id = ?", id).Exec(ctx)
	return deleted("delete judge "+id, res, err)
}

// FindJudgesByName implements repository.Store.
func (s *Store) FindJudgesByName(ctx context.Context, name string) ([]model.Judge, error) {
	var rows []judgeRow
	err := s.db.NewSelect().Model(&rows).Where("name = ?", model.NormalizeName(name)).Scan(ctx)
	if err != nil {
		return nil, mapErr("find judges", err)
	}
	return mapRows(rows, judgeRow.toModel), nil
}

// ListTeams implements repository.Store.
func (s *Store) ListTeams(ctx context.Context) ([]model.Team, error) {
	var rows []teamRow
	if err := s.db.NewSelect().Model(&rows).OrderExpr("name ASC, id ASC").Scan(ctx); err != nil {
		return nil, mapErr("list teams", err)
	}
	return mapRows(rows, teamRow.toModel), nil
}

// CreateTeam implements repository.Store.
func (s *Store) CreateTeam(ctx context.Context, name string) (model.Team, error) {
	name = model.NormalizeName(name)
	if name == "" {
		return model.Team{}, repository.ErrEmptyName
	}
	row := teamRow{ID: uuid.NewString(), Name: name, CreatedAt: s.now()}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return model.Team{}, mapErr("create team "+name, err)
	}
	return row.toModel(), nil
}

// DeleteTeam implements repository.Store.
func (s *Store) DeleteTeam(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model((*teamRow)(nil)).Where("id = ?", id).Exec(ctx)
	return deleted("delete team "+id, res, err)
}

// GetTeam implements repository.Store.
func (s *Store) GetTeam(ctx context.Context, id string) (model.Team, error) {
	var row teamRow
	if err := s.db.NewSelect().Model(&row).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		return model.Team{}, mapErr("get team "+id, err)
	}
	return row.toModel(), nil
}

// FindTeamsByName implements repository.Store.
func (s *Store) FindTeamsByName(ctx context.Context, name string) ([]model.Team, error) {
	var rows []teamRow
	err := s.db.NewSelect().Model(&rows).Where("name = ?", model.NormalizeName(name)).Scan(ctx)
	if err != nil {
		return nil, mapErr("find teams", err)
	}
	return mapRows(rows, teamRow.toModel), nil
}

// ListCategories implements repository.Store.
func (s *Store) ListCategories(ctx context.Context) ([]model.Category, error) {
	var rows []categoryRow
	if err := s.db.NewSelect().Model(&rows).OrderExpr("name ASC, id ASC").Scan(ctx); err != nil {
		return nil, mapErr("list categories", err)
	}
	return mapRows(rows, categoryRow.toModel), nil
}

// SeedCategories implements repository.Store.
func (s *Store) SeedCategories(ctx context.Context, maxByName map[string]int) ([]model.Category, error) {
	if len(maxByName) > 0 {
		rows := make([]categoryRow, 0, len(maxByName))
		for name, maxScore := range maxByName {
			name = model.NormalizeName(name)
			if name == "" {
				return nil, repository.ErrEmptyName
			}
			if maxScore <= 0 {
				maxScore = model.DefaultMaxScore
			}
			rows = append(rows, categoryRow{ID: uuid.NewString(), Name: name, MaxScore: maxScore, CreatedAt: s.now()})
		}
		_, err := s.db.NewInsert().
			Model(&rows).
			On("CONFLICT (name) DO UPDATE").
			Set("max_score = EXCLUDED.max_score").
			Exec(ctx)
		if err != nil {
			return nil, mapErr("seed categories", err)
		}
	}
	return s.ListCategories(ctx)
}

// ListScores implements repository.Store.
func (s *Store) ListScores(ctx context.Context) ([]model.Score, error) {
	return s.selectScores(ctx, "list scores", func(q *bun.SelectQuery) *bun.SelectQuery { return q })
}

// ListScoresFor implements repository.Store.
func (s *Store) ListScoresFor(ctx context.Context, teamID, judgeID string) ([]model.Score, error) {
	return s.selectScores(ctx, "list judge scores", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("team_id = ?", teamID).Where("judge_id = ?", judgeID)
	})
}

// ListTeamScores implements repository.Store.
func (s *Store) ListTeamScores(ctx context.Context, teamID string) ([]model.Score, error) {
	return s.selectScores(ctx, "list team scores", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("team_id = ?", teamID)
	})
}

func (s *Store) selectScores(ctx context.Context, op string, where func(*bun.SelectQuery) *bun.SelectQuery) ([]model.Score, error) {
	var rows []scoreRow
	q := where(s.db.NewSelect().Model(&rows)).OrderExpr("team_id, judge_id, category_id")
	if err := q.Scan(ctx); err != nil {
		return nil, mapErr(op, err)
	}
	return mapRows(rows, scoreRow.toModel), nil
}

// UpsertScore implements repository.Store.
func (s *Store) UpsertScore(ctx context.Context, sc model.Score) (model.Score, error) {
	now := s.now()
	row := scoreRow{
		ID:         uuid.NewString(),
		TeamID:     sc.TeamID,
		JudgeID:    sc.JudgeID,
		CategoryID: sc.CategoryID,
		Value:      sc.Value,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (team_id, judge_id, category_id) DO UPDATE").
		Set("score = EXCLUDED.score").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return model.Score{}, mapErr("upsert score", err)
	}
	return row.toModel(), nil
}

// FindComment implements repository.Store.
func (s *Store) FindComment(ctx context.Context, teamID, judgeID string) (model.Comment, error) {
	var row commentRow
	err := s.db.NewSelect().
		Model(&row).
		Where("team_id = ?", teamID).
		Where("judge_id = ?", judgeID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return model.Comment{}, mapErr("find comment", err)
	}
	return row.toModel(), nil
}

// ListTeamComments implements repository.Store.
func (s *Store) ListTeamComments(ctx context.Context, teamID string) ([]model.Comment, error) {
	var rows []commentRow
	err := s.db.NewSelect().Model(&rows).Where("team_id = ?", teamID).OrderExpr("judge_id").Scan(ctx)
	if err != nil {
		return nil, mapErr("list comments", err)
	}
	return mapRows(rows, commentRow.toModel), nil
}

// UpsertComment implements repository.Store.
func (s *Store) UpsertComment(ctx context.Context, c model.Comment) (model.Comment, error) {
	now := s.now()
	row := commentRow{
		ID:        uuid.NewString(),
		TeamID:    c.TeamID,
		JudgeID:   c.JudgeID,
		Body:      c.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (team_id, judge_id) DO UPDATE").
		Set("comment = EXCLUDED.comment").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return model.Comment{}, mapErr("upsert comment", err)
	}
	return row.toModel(), nil
}

// Ping implements repository.Store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return mapErr("ping", err)
	}
	return nil
}

// Close implements repository.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

func deleted(op string, res sql.Result, err error) error {
	if err != nil {
		return mapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	return nil
}

// mapErr folds driver errors onto the store kinds. A malformed id can match
// no row, so it reads as not found.
func mapErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Field('C') {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w", op, repository.ErrConflict)
		case codeForeignKeyViolation, codeInvalidText:
			return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, model.ErrUpstream, err)
}
