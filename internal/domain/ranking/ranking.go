// Package ranking aggregates score rows into team totals and orders teams
// into a leaderboard.
package ranking

import (
	"cmp"
	"slices"

	"github.com/okian/judgeboard/internal/domain/model"
)

// TieBreak compares two entries whose totals are equal. It returns a negative
// number when a ranks before b. A nil TieBreak keeps input order.
type TieBreak func(a, b model.LeaderboardEntry) int

// ByName orders equal totals by team name, then by team id.
func ByName(a, b model.LeaderboardEntry) int {
	if c := cmp.Compare(a.TeamName, b.TeamName); c != 0 {
		return c
	}
	return cmp.Compare(a.TeamID, b.TeamID)
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithTieBreak sets the tie-break rule. Pass nil to keep input order.
func WithTieBreak(tb TieBreak) Option {
	return func(e *Engine) {
		e.tieBreak = tb
	}
}

// Engine ranks teams by total score. It holds no state between calls and is
// safe for concurrent use.
type Engine struct {
	tieBreak TieBreak
}

// New creates an Engine that breaks ties by team name unless configured
// otherwise.
func New(opts ...Option) *Engine {
	e := &Engine{tieBreak: ByName}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Totals sums score values per team id.
func Totals(scores []model.Score) map[string]int {
	totals := make(map[string]int, len(scores))
	for _, s := range scores {
		totals[s.TeamID] += s.Value
	}
	return totals
}

// Rank returns one entry per team, sorted by total descending, with rank set
// to the 1-based position. Teams without scores total 0. Rows for unknown
// teams are ignored. Equal totals still receive distinct consecutive ranks.
func (e *Engine) Rank(teams []model.Team, scores []model.Score) []model.LeaderboardEntry {
	totals := Totals(scores)
	entries := make([]model.LeaderboardEntry, len(teams))
	for i, t := range teams {
		entries[i] = model.LeaderboardEntry{
			TeamID:   t.ID,
			TeamName: t.Name,
			Total:    totals[t.ID],
		}
	}

	slices.SortStableFunc(entries, func(a, b model.LeaderboardEntry) int {
		if a.Total != b.Total {
			return cmp.Compare(b.Total, a.Total)
		}
		if e.tieBreak == nil {
			return 0
		}
		return e.tieBreak(a, b)
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// Find returns the entry for teamID and whether it is present.
func Find(entries []model.LeaderboardEntry, teamID string) (model.LeaderboardEntry, bool) {
	for _, e := range entries {
		if e.TeamID == teamID {
			return e, true
		}
	}
	return model.LeaderboardEntry{}, false
}
