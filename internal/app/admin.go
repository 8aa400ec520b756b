package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/judgeboard/internal/domain/identity"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/pkg/logger"
	"github.com/okian/judgeboard/pkg/metrics"
)

// ListJudges returns every judge. Admin only.
func (s *Service) ListJudges(ctx context.Context) ([]model.Judge, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if _, err := identity.Require(ctx, identity.KindAdmin); err != nil {
		return nil, err
	}
	judges, err := s.store.ListJudges(ctx)
	if err != nil {
		return nil, err
	}
	metrics.UpdateJudgeCount(len(judges))
	return judges, nil
}

// CreateJudge registers a judge. Admin only.
func (s *Service) CreateJudge(ctx context.Context, name string) (j model.Judge, err error) {
	ctx, end := s.span(ctx, "service.CreateJudge")
	defer func() { end(err) }()

	if err := s.ready(); err != nil {
		return model.Judge{}, err
	}
	admin, err := identity.Require(ctx, identity.KindAdmin)
	if err != nil {
		return model.Judge{}, err
	}
	if strings.TrimSpace(name) == "" {
		return model.Judge{}, ErrEmptyName
	}
	j, err = s.store.CreateJudge(ctx, name)
	if err != nil {
		return model.Judge{}, err
	}
	s.logger.Info(ctx, "judge created",
		logger.String("judge_id", j.ID),
		logger.String("name", j.Name),
		logger.String("by", admin.Subject))
	return j, nil
}

// DeleteJudge removes a judge with their scores and comments and ends their
// sessions. Admin only.
func (s *Service) DeleteJudge(ctx context.Context, id string) (err error) {
	ctx, end := s.span(ctx, "service.DeleteJudge", attribute.String("judge_id", id))
	defer func() { end(err) }()

	if err := s.ready(); err != nil {
		return err
	}
	admin, err := identity.Require(ctx, identity.KindAdmin)
	if err != nil {
		return err
	}
	if err := s.store.DeleteJudge(ctx, id); err != nil {
		return err
	}
	s.tokens.Revoke(id)
	metrics.RecordSessionInvalidation("delete")
	s.logger.Info(ctx, "judge deleted", logger.String("judge_id", id), logger.String("by", admin.Subject))
	return nil
}

// ListTeams returns every team. Admins and judges.
func (s *Service) ListTeams(ctx context.Context) ([]model.Team, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if _, err := identity.Require(ctx, identity.KindAdmin, identity.KindJudge); err != nil {
		return nil, err
	}
	return s.store.ListTeams(ctx)
}

// CreateTeam registers a team. Admin only.
func (s *Service) CreateTeam(ctx context.Context, name string) (t model.Team, err error) {
	ctx, end := s.span(ctx, "service.CreateTeam")
	defer func() { end(err) }()

	if err := s.ready(); err != nil {
		return model.Team{}, err
	}
	admin, err := identity.Require(ctx, identity.KindAdmin)
	if err != nil {
		return model.Team{}, err
	}
	if strings.TrimSpace(name) == "" {
		return model.Team{}, ErrEmptyName
	}
	t, err = s.store.CreateTeam(ctx, name)
	if err != nil {
		return model.Team{}, err
	}
	s.logger.Info(ctx, "team created",
		logger.String("team_id", t.ID),
		logger.String("name", t.Name),
		logger.String("by", admin.Subject))
	return t, nil
}

// DeleteTeam removes a team with its scores and comments and ends its
// sessions. Admin only.
func (s *Service) DeleteTeam(ctx context.Context, id string) (err error) {
	ctx, end := s.span(ctx, "service.DeleteTeam", attribute.String("team_id", id))
	defer func() { end(err) }()

	if err := s.ready(); err != nil {
		return err
	}
	admin, err := identity.Require(ctx, identity.KindAdmin)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTeam(ctx, id); err != nil {
		return err
	}
	s.tokens.Revoke(id)
	metrics.RecordSessionInvalidation("delete")
	s.logger.Info(ctx, "team deleted", logger.String("team_id", id), logger.String("by", admin.Subject))
	return nil
}

// Categories returns the scoring categories. Public.
func (s *Service) Categories(ctx context.Context) ([]model.Category, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.ListCategories(ctx)
}
