// Package submission validates a judge's per-team score payload and applies
// it as a sequence of independent idempotent writes.
package submission

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/okian/judgeboard/internal/domain/model"
)

// Policy decides what the gate does with an out-of-range value.
type Policy string

const (
	// PolicyReject refuses the whole payload.
	PolicyReject Policy = "reject"
	// PolicyClamp forces values into [0, max_score].
	PolicyClamp Policy = "clamp"
)

// ParsePolicy parses a policy name; empty means reject.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyReject:
		return PolicyReject, nil
	case PolicyClamp:
		return PolicyClamp, nil
	default:
		return "", fmt.Errorf("%w: unknown score policy %q", model.ErrValidation, s)
	}
}

// Entry is one category value in a payload.
type Entry struct {
	CategoryID string `json:"category_id" validate:"required"`
	Score      int    `json:"score"`
}

// Payload is everything one judge submits for one team.
type Payload struct {
	TeamID  string  `json:"team_id" validate:"required"`
	JudgeID string  `json:"judge_id" validate:"required"`
	Entries []Entry `json:"scores" validate:"dive"`
	Comment string  `json:"comment" validate:"max=4000"`
}

// Problem describes why a single entry was refused.
type Problem struct {
	CategoryID string `json:"category_id,omitempty"`
	Reason     string `json:"reason"`
}

// ValidationError lists every problem found in a payload.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		if p.CategoryID == "" {
			parts[i] = p.Reason
			continue
		}
		parts[i] = p.CategoryID + ": " + p.Reason
	}
	return "invalid submission: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return model.ErrValidation }

// Gate checks payloads against the known categories before anything is
// written. It is the only path to the writer, so non-UI callers are bound by
// the same range rules as the UI.
type Gate struct {
	policy   Policy
	validate *validator.Validate
}

// NewGate creates a gate applying policy.
func NewGate(policy Policy) *Gate {
	if policy == "" {
		policy = PolicyReject
	}
	return &Gate{policy: policy, validate: validator.New()}
}

// Policy returns the gate's policy.
func (g *Gate) Policy() Policy { return g.policy }

// Check returns the payload as it will be persisted: comment trimmed and,
// under PolicyClamp, values clamped. Any problem yields a *ValidationError.
func (g *Gate) Check(p Payload, categories []model.Category) (Payload, error) {
	var problems []Problem
	if err := g.validate.Struct(p); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				problems = append(problems, Problem{Reason: fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())})
			}
		} else {
			problems = append(problems, Problem{Reason: err.Error()})
		}
		return Payload{}, &ValidationError{Problems: problems}
	}

	byID := make(map[string]model.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	out := Payload{
		TeamID:  p.TeamID,
		JudgeID: p.JudgeID,
		Comment: strings.TrimSpace(p.Comment),
		Entries: make([]Entry, 0, len(p.Entries)),
	}
	seen := make(map[string]bool, len(p.Entries))
	for _, e := range p.Entries {
		cat, ok := byID[e.CategoryID]
		switch {
		case !ok:
			problems = append(problems, Problem{CategoryID: e.CategoryID, Reason: "unknown category"})
			continue
		case seen[e.CategoryID]:
			problems = append(problems, Problem{CategoryID: e.CategoryID, Reason: "category listed twice"})
			continue
		}
		seen[e.CategoryID] = true

		v := e.Score
		if !cat.InRange(v) {
			if g.policy != PolicyClamp {
				problems = append(problems, Problem{
					CategoryID: e.CategoryID,
					Reason:     fmt.Sprintf("score %d outside [0, %d]", v, cat.MaxScore),
				})
				continue
			}
			v = cat.Clamp(v)
		}
		out.Entries = append(out.Entries, Entry{CategoryID: e.CategoryID, Score: v})
	}

	if len(problems) > 0 {
		sort.SliceStable(problems, func(i, j int) bool { return problems[i].CategoryID < problems[j].CategoryID })
		return Payload{}, &ValidationError{Problems: problems}
	}
	return out, nil
}
