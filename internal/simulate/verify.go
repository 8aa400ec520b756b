package simulate

import (
	"errors"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"

	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/ranking"
)

// ErrVerification wraps every leaderboard discrepancy.
var ErrVerification = errors.New("leaderboard verification failed")

// Verify checks board against scores for the given teams. Teams in skip are
// not checked. When board holds exactly these teams and nothing is skipped,
// the full ordering is compared with a local ranking as well.
func Verify(teams []model.Team, scores []model.Score, board []model.LeaderboardEntry, skip map[string]bool) error {
	var err error
	for i, e := range board {
		if e.Rank != i+1 {
			err = multierr.Append(err, fmt.Errorf("%w: position %d has rank %d", ErrVerification, i+1, e.Rank))
		}
	}

	totals := ranking.Totals(scores)
	for _, t := range teams {
		if skip[t.ID] {
			continue
		}
		got, ok := ranking.Find(board, t.ID)
		if !ok {
			err = multierr.Append(err, fmt.Errorf("%w: team %q missing", ErrVerification, t.Name))
			continue
		}
		if got.Total != totals[t.ID] {
			err = multierr.Append(err, fmt.Errorf("%w: team %q total %d, want %d", ErrVerification, t.Name, got.Total, totals[t.ID]))
		}
	}

	if len(skip) == 0 && len(board) == len(teams) {
		want := ranking.New(ranking.WithTieBreak(ranking.ByName)).Rank(teams, scores)
		if diff := cmp.Diff(want, board); diff != "" {
			err = multierr.Append(err, fmt.Errorf("%w: ordering differs (-want +got):\n%s", ErrVerification, diff))
		}
	}
	return err
}
