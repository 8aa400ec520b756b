package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/judgeboard/internal/domain/identity"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/ranking"
	"github.com/okian/judgeboard/internal/domain/submission"
	"github.com/okian/judgeboard/pkg/logger"
	"github.com/okian/judgeboard/pkg/metrics"
)

// Submission is one judge's persisted scores and comment for one team, as
// re-read after a write.
type Submission struct {
	TeamID  string             `json:"team_id"`
	JudgeID string             `json:"judge_id"`
	Scores  []model.Score      `json:"scores"`
	Comment string             `json:"comment"`
	Report  *submission.Report `json:"report,omitempty"`
}

// SubmitScores validates and writes the acting judge's scores and comment
// for a team, then returns what is persisted. When some writes fail and
// others land, the returned error wraps ErrPartialWrite and every failure.
// When no write lands, the failures are returned as they are. The
// Submission carries the write report either way.
func (s *Service) SubmitScores(ctx context.Context, teamID string, entries []submission.Entry, comment string) (sub Submission, err error) {
	ctx, end := s.span(ctx, "service.SubmitScores", attribute.String("team_id", teamID), attribute.Int("entries", len(entries)))
	start := time.Now()
	defer func() {
		metrics.RecordSubmission(outcome(err), since(start))
		end(err)
	}()

	if err := s.ready(); err != nil {
		return Submission{}, err
	}
	judge, err := identity.Require(ctx, identity.KindJudge)
	if err != nil {
		return Submission{}, err
	}
	if strings.TrimSpace(teamID) == "" {
		return Submission{}, ErrEmptyTeamID
	}
	if _, err := s.store.GetTeam(ctx, teamID); err != nil {
		return Submission{}, err
	}
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return Submission{}, err
	}

	payload, err := s.gate.Check(submission.Payload{
		TeamID:  teamID,
		JudgeID: judge.Subject,
		Entries: entries,
		Comment: comment,
	}, categories)
	if err != nil {
		metrics.RecordValidationFailure()
		return Submission{}, err
	}

	report := submission.Apply(ctx, s.store, payload)
	for _, w := range report.Writes {
		label := metrics.OutcomeOK
		switch w.Outcome {
		case submission.OutcomeFailed:
			label = metrics.OutcomeError
		case submission.OutcomeSkipped:
			label = metrics.OutcomeSkipped
		}
		if w.Kind == submission.KindComment {
			metrics.RecordCommentWrite(label)
		} else {
			metrics.RecordScoreUpsert(label)
		}
	}

	sub, readErr := s.readSubmission(ctx, teamID, judge.Subject)
	sub.Report = &report
	writeErr := report.Err()
	if writeErr != nil {
		s.logger.Warn(ctx, "submission writes failed",
			logger.String("team_id", teamID),
			logger.String("judge_id", judge.Subject),
			logger.Int("failed", len(report.Failed())),
			logger.Int("writes", len(report.Writes)),
			logger.Error(writeErr))
	}
	if readErr != nil {
		return sub, errors.Join(readErr, writeErr)
	}
	if writeErr != nil {
		if report.Partial() {
			writeErr = fmt.Errorf("%w: %w", ErrPartialWrite, writeErr)
		}
		return sub, writeErr
	}

	s.logger.Info(ctx, "scores submitted",
		logger.String("team_id", teamID),
		logger.String("judge_id", judge.Subject),
		logger.Int("scores", len(payload.Entries)))
	return sub, nil
}

// JudgeSubmission returns the acting judge's persisted scores and comment
// for a team.
func (s *Service) JudgeSubmission(ctx context.Context, teamID string) (Submission, error) {
	if err := s.ready(); err != nil {
		return Submission{}, err
	}
	judge, err := identity.Require(ctx, identity.KindJudge)
	if err != nil {
		return Submission{}, err
	}
	if _, err := s.store.GetTeam(ctx, teamID); err != nil {
		return Submission{}, err
	}
	return s.readSubmission(ctx, teamID, judge.Subject)
}

func (s *Service) readSubmission(ctx context.Context, teamID, judgeID string) (Submission, error) {
	sub := Submission{TeamID: teamID, JudgeID: judgeID, Scores: []model.Score{}}
	scores, err := s.store.ListScoresFor(ctx, teamID, judgeID)
	if err != nil {
		return sub, fmt.Errorf("re-read scores: %w", err)
	}
	sub.Scores = scores

	c, err := s.store.FindComment(ctx, teamID, judgeID)
	switch {
	case errors.Is(err, model.ErrNotFound):
	case err != nil:
		return sub, fmt.Errorf("re-read comment: %w", err)
	default:
		sub.Comment = c.Body
	}
	return sub, nil
}

// ScoreLine is one judge's value in one category.
type ScoreLine struct {
	CategoryID string `json:"category_id"`
	Category   string `json:"category"`
	JudgeID    string `json:"judge_id"`
	Judge      string `json:"judge"`
	Score      int    `json:"score"`
}

// CommentLine is one judge's comment.
type CommentLine struct {
	JudgeID string `json:"judge_id"`
	Judge   string `json:"judge"`
	Comment string `json:"comment"`
}

// TeamScores is a team's view of its own standing.
type TeamScores struct {
	Team     model.Team    `json:"team"`
	Rank     int           `json:"rank"`
	Total    int           `json:"total"`
	Teams    int           `json:"teams"`
	Scores   []ScoreLine   `json:"scores"`
	Comments []CommentLine `json:"comments"`
}

// MyScores returns the acting team's per-category, per-judge breakdown, its
// rank and the judges' comments.
func (s *Service) MyScores(ctx context.Context) (view TeamScores, err error) {
	ctx, end := s.span(ctx, "service.MyScores")
	defer func() { end(err) }()

	if err := s.ready(); err != nil {
		return TeamScores{}, err
	}
	team, err := identity.Require(ctx, identity.KindTeam)
	if err != nil {
		return TeamScores{}, err
	}
	t, err := s.store.GetTeam(ctx, team.Subject)
	if err != nil {
		return TeamScores{}, err
	}
	board, err := s.Leaderboard(ctx)
	if err != nil {
		return TeamScores{}, err
	}
	scores, err := s.store.ListTeamScores(ctx, t.ID)
	if err != nil {
		return TeamScores{}, err
	}
	comments, err := s.store.ListTeamComments(ctx, t.ID)
	if err != nil {
		return TeamScores{}, err
	}
	judges, err := s.store.ListJudges(ctx)
	if err != nil {
		return TeamScores{}, err
	}
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return TeamScores{}, err
	}

	judgeName := make(map[string]string, len(judges))
	for _, j := range judges {
		judgeName[j.ID] = j.Name
	}
	catName := make(map[string]string, len(cats))
	for _, c := range cats {
		catName[c.ID] = c.Name
	}

	view = TeamScores{Team: t, Teams: len(board), Scores: []ScoreLine{}, Comments: []CommentLine{}}
	if e, ok := ranking.Find(board, t.ID); ok {
		view.Rank, view.Total = e.Rank, e.Total
	}
	for _, sc := range scores {
		view.Scores = append(view.Scores, ScoreLine{
			CategoryID: sc.CategoryID,
			Category:   catName[sc.CategoryID],
			JudgeID:    sc.JudgeID,
			Judge:      judgeName[sc.JudgeID],
			Score:      sc.Value,
		})
	}
	for _, c := range comments {
		view.Comments = append(view.Comments, CommentLine{JudgeID: c.JudgeID, Judge: judgeName[c.JudgeID], Comment: c.Body})
	}
	return view, nil
}
