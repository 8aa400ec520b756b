package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/okian/judgeboard/internal/adapters/export"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/pkg/metrics"
)

// Leaderboard fetches teams and scores concurrently and ranks them. Either
// fetch failing fails the whole call; nothing is cached or retried.
func (s *Service) Leaderboard(ctx context.Context) (board []model.LeaderboardEntry, err error) {
	ctx, end := s.span(ctx, "service.Leaderboard")
	start := time.Now()
	var teams []model.Team
	var scores []model.Score
	defer func() {
		metrics.RecordLeaderboard(outcome(err), since(start), len(teams), len(scores))
		end(err)
	}()

	if err := s.ready(); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		teams, err = s.store.ListTeams(gctx)
		if err != nil {
			return fmt.Errorf("fetch teams: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		scores, err = s.store.ListScores(gctx)
		if err != nil {
			return fmt.Errorf("fetch scores: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		teams, scores = nil, nil
		return nil, err
	}
	return s.engine.Rank(teams, scores), nil
}

// ExportLeaderboard writes the leaderboard to w in format ("xlsx" or "png").
func (s *Service) ExportLeaderboard(ctx context.Context, format string, w io.Writer) (err error) {
	ctx, end := s.span(ctx, "service.ExportLeaderboard", attribute.String("format", format))
	defer func() { end(err) }()

	var render func(io.Writer, []model.LeaderboardEntry) error
	switch format {
	case export.FormatXLSX:
		render = export.XLSX
	case export.FormatPNG:
		render = export.PNG
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	board, err := s.Leaderboard(ctx)
	if err != nil {
		return err
	}
	if err := render(w, board); err != nil {
		return err
	}
	metrics.RecordExport(format)
	return nil
}
