package submission

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/okian/judgeboard/internal/domain/model"
)

// Writer persists single rows. Each call stands alone; there is no
// transaction spanning a submission.
type Writer interface {
	// UpsertScore inserts or overwrites the row keyed on (team, judge, category).
	UpsertScore(ctx context.Context, s model.Score) (model.Score, error)
	// UpsertComment inserts or overwrites the row keyed on (team, judge).
	UpsertComment(ctx context.Context, c model.Comment) (model.Comment, error)
}

// Outcome of one write.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Write kinds.
const (
	KindScore   = "score"
	KindComment = "comment"
)

// Write records what happened to one row of a submission.
type Write struct {
	Kind       string `json:"kind"`
	CategoryID string `json:"category_id,omitempty"`
	Score      int    `json:"score,omitempty"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`

	err error
}

// Report lists every attempted write of one submission in order.
type Report struct {
	TeamID  string  `json:"team_id"`
	JudgeID string  `json:"judge_id"`
	Writes  []Write `json:"writes"`
}

// Failed returns the writes that did not land.
func (r Report) Failed() []Write {
	var out []Write
	for _, w := range r.Writes {
		if w.Outcome == OutcomeFailed {
			out = append(out, w)
		}
	}
	return out
}

// Succeeded returns the writes that landed.
func (r Report) Succeeded() []Write {
	var out []Write
	for _, w := range r.Writes {
		if w.Outcome == OutcomeOK {
			out = append(out, w)
		}
	}
	return out
}

// Partial reports whether some writes landed and some failed.
func (r Report) Partial() bool {
	return len(r.Failed()) > 0 && len(r.Succeeded()) > 0
}

// Err combines every write failure, or returns nil.
func (r Report) Err() error {
	var err error
	for _, w := range r.Writes {
		if w.err != nil {
			err = multierr.Append(err, w.err)
		}
	}
	return err
}

// Apply writes a checked payload: one upsert per entry, then the comment when
// it is non-empty. A failed write does not stop the ones after it and nothing
// is rolled back; callers must re-read to learn the persisted state.
func Apply(ctx context.Context, w Writer, p Payload) Report {
	report := Report{TeamID: p.TeamID, JudgeID: p.JudgeID, Writes: make([]Write, 0, len(p.Entries)+1)}

	for _, e := range p.Entries {
		rec := Write{Kind: KindScore, CategoryID: e.CategoryID, Score: e.Score, Outcome: OutcomeOK}
		_, err := w.UpsertScore(ctx, model.Score{
			TeamID:     p.TeamID,
			JudgeID:    p.JudgeID,
			CategoryID: e.CategoryID,
			Value:      e.Score,
		})
		if err != nil {
			rec.Outcome = OutcomeFailed
			rec.err = fmt.Errorf("score %s: %w", e.CategoryID, err)
			rec.Error = rec.err.Error()
		}
		report.Writes = append(report.Writes, rec)
	}

	rec := Write{Kind: KindComment, Outcome: OutcomeSkipped}
	if p.Comment != "" {
		rec.Outcome = OutcomeOK
		_, err := w.UpsertComment(ctx, model.Comment{TeamID: p.TeamID, JudgeID: p.JudgeID, Body: p.Comment})
		if err != nil {
			rec.Outcome = OutcomeFailed
			rec.err = fmt.Errorf("comment: %w", err)
			rec.Error = rec.err.Error()
		}
	}
	report.Writes = append(report.Writes, rec)

	return report
}
