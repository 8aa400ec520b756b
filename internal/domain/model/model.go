// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxScore is the category ceiling used when none is configured.
const DefaultMaxScore = 10

// Judge is a person allowed to score teams.
type Judge struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Team is a scored participant.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Category is a named scoring dimension with an inclusive ceiling.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MaxScore  int       `json:"max_score"`
	CreatedAt time.Time `json:"created_at"`
}

// InRange reports whether v lies in [0, MaxScore].
func (c Category) InRange(v int) bool {
	return v >= 0 && v <= c.MaxScore
}

// Clamp forces v into [0, MaxScore].
func (c Category) Clamp(v int) int {
	switch {
	case v < 0:
		return 0
	case v > c.MaxScore:
		return c.MaxScore
	default:
		return v
	}
}

// Score is one judge's value for one team in one category.
// (TeamID, JudgeID, CategoryID) is unique.
type Score struct {
	ID         string    `json:"id"`
	TeamID     string    `json:"team_id"`
	JudgeID    string    `json:"judge_id"`
	CategoryID string    `json:"category_id"`
	Value      int       `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ScoreKey is the natural key of a Score row.
type ScoreKey struct {
	TeamID     string
	JudgeID    string
	CategoryID string
}

// Key returns the natural key of s.
func (s Score) Key() ScoreKey {
	return ScoreKey{TeamID: s.TeamID, JudgeID: s.JudgeID, CategoryID: s.CategoryID}
}

// Comment is a judge's free-text note on a team. (TeamID, JudgeID) is unique.
type Comment struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"team_id"`
	JudgeID   string    `json:"judge_id"`
	Body      string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LeaderboardEntry is a derived, never persisted, ranking row.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name"`
	Total    int    `json:"total"`
}

// NormalizeName trims surrounding space and applies Unicode NFC so that
// visually identical names compare equal byte-for-byte.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
