package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/judgeboard/internal/adapters/mq/notify"
	"github.com/okian/judgeboard/internal/domain/identity"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/pkg/logger"
	"github.com/okian/judgeboard/pkg/metrics"
)

// SignInAdmin exchanges credentials with the identity provider and returns
// a signed-in admin identity carrying an access token.
func (s *Service) SignInAdmin(ctx context.Context, email, password string) (id identity.Identity, err error) {
	ctx, end := s.span(ctx, "service.SignInAdmin")
	defer func() {
		metrics.RecordSignIn(string(identity.KindAdmin), outcome(err))
		end(err)
	}()

	if err := s.ready(); err != nil {
		return identity.Identity{}, err
	}
	sub, err := s.admins.Authenticate(ctx, email, password)
	if err != nil {
		s.logger.Warn(ctx, "admin sign-in refused", logger.Error(err))
		return identity.Identity{}, err
	}
	return s.issue(ctx, identity.Identity{Kind: identity.KindAdmin, Subject: sub.ID, Name: sub.Name})
}

// SignInJudge resolves a judge by exact name. Names are the only credential;
// anyone who knows a judge's name can act as that judge.
func (s *Service) SignInJudge(ctx context.Context, name string) (id identity.Identity, err error) {
	ctx, end := s.span(ctx, "service.SignInJudge")
	defer func() {
		metrics.RecordSignIn(string(identity.KindJudge), outcome(err))
		end(err)
	}()

	if err := s.ready(); err != nil {
		return identity.Identity{}, err
	}
	name = model.NormalizeName(name)
	if name == "" {
		return identity.Identity{}, ErrEmptyName
	}
	judges, err := s.store.FindJudgesByName(ctx, name)
	if err != nil {
		return identity.Identity{}, err
	}
	j, err := only(judges)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("judge %q: %w", name, err)
	}
	return s.issue(ctx, identity.Identity{Kind: identity.KindJudge, Subject: j.ID, Name: j.Name})
}

// SignInTeam resolves a team by exact name, with the same weak trust as
// SignInJudge.
func (s *Service) SignInTeam(ctx context.Context, name string) (id identity.Identity, err error) {
	ctx, end := s.span(ctx, "service.SignInTeam")
	defer func() {
		metrics.RecordSignIn(string(identity.KindTeam), outcome(err))
		end(err)
	}()

	if err := s.ready(); err != nil {
		return identity.Identity{}, err
	}
	name = model.NormalizeName(name)
	if name == "" {
		return identity.Identity{}, ErrEmptyName
	}
	teams, err := s.store.FindTeamsByName(ctx, name)
	if err != nil {
		return identity.Identity{}, err
	}
	t, err := only(teams)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("team %q: %w", name, err)
	}
	return s.issue(ctx, identity.Identity{Kind: identity.KindTeam, Subject: t.ID, Name: t.Name})
}

// only returns the single element of rows. Zero or several matches are
// both not found.
func only[T any](rows []T) (T, error) {
	var zero T
	switch len(rows) {
	case 1:
		return rows[0], nil
	case 0:
		return zero, ErrNameNotMatched
	default:
		return zero, ErrAmbiguousName
	}
}

func (s *Service) issue(ctx context.Context, id identity.Identity) (identity.Identity, error) {
	signed, err := s.tokens.Issue(id)
	if err != nil {
		return identity.Identity{}, err
	}
	s.logger.Info(ctx, "signed in",
		logger.String("kind", string(signed.Kind)),
		logger.String("subject", signed.Subject))
	return signed, nil
}

// Authenticate verifies an access token and returns its identity.
func (s *Service) Authenticate(_ context.Context, token string) (identity.Identity, error) {
	return s.tokens.Verify(strings.TrimSpace(token))
}

// SignOut ends every session of the acting subject and announces it to
// other instances when a notifier is configured. A failed announcement is
// logged; the local sign-out still stands.
func (s *Service) SignOut(ctx context.Context) (err error) {
	ctx, end := s.span(ctx, "service.SignOut")
	defer func() { end(err) }()

	if err := s.ready(); err != nil {
		return err
	}
	id, err := identity.Require(ctx)
	if err != nil {
		return err
	}
	s.tokens.Revoke(id.Subject)
	metrics.RecordSessionInvalidation("sign_out")
	s.logger.Info(ctx, "signed out", logger.String("kind", string(id.Kind)), logger.String("subject", id.Subject))

	if s.notifier != nil {
		n := notify.Notification{Subject: id.Subject, Reason: notify.ReasonSignOut, Origin: s.instanceID}
		if err := s.notifier.Publish(ctx, n); err != nil {
			s.logger.Warn(ctx, "failed to announce sign-out", logger.String("subject", id.Subject), logger.Error(err))
		}
	}
	return nil
}

// HandleSessionChange applies a notification from the identity provider or
// another instance: every token of the subject issued so far stops working.
// Notifications this instance published itself are ignored.
func (s *Service) HandleSessionChange(ctx context.Context, n notify.Notification) error {
	if n.Origin != "" && n.Origin == s.instanceID {
		return nil
	}
	if strings.TrimSpace(n.Subject) == "" {
		return notify.ErrEmptySubject
	}
	s.tokens.Revoke(n.Subject)
	metrics.RecordSessionInvalidation("notification")
	s.logger.Info(ctx, "session invalidated",
		logger.String("subject", n.Subject),
		logger.String("reason", n.Reason))
	return nil
}
