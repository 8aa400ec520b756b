package submission_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/submission"
	. "github.com/smartystreets/goconvey/convey"
)

var categories = []model.Category{
	{ID: "inn", Name: "Innovation", MaxScore: 10},
	{ID: "des", Name: "Design", MaxScore: 5},
}

func TestParsePolicy(t *testing.T) {
	Convey("Given policy names", t, func() {
		p, err := submission.ParsePolicy("")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, submission.PolicyReject)

		p, err = submission.ParsePolicy(" Clamp ")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, submission.PolicyClamp)

		_, err = submission.ParsePolicy("round")
		So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
	})
}

func TestGate_Check(t *testing.T) {
	base := submission.Payload{TeamID: "x", JudgeID: "a"}

	Convey("Given a rejecting gate", t, func() {
		gate := submission.NewGate(submission.PolicyReject)

		Convey("In-range values pass and the comment is trimmed", func() {
			p := base
			p.Entries = []submission.Entry{{CategoryID: "inn", Score: 10}, {CategoryID: "des", Score: 0}}
			p.Comment = "  solid work \n"
			out, err := gate.Check(p, categories)
			So(err, ShouldBeNil)
			So(out.Entries, ShouldResemble, p.Entries)
			So(out.Comment, ShouldEqual, "solid work")
		})

		Convey("An out-of-range value refuses the whole payload", func() {
			p := base
			p.Entries = []submission.Entry{{CategoryID: "inn", Score: 4}, {CategoryID: "des", Score: 6}}
			_, err := gate.Check(p, categories)
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)

			var verr *submission.ValidationError
			So(errors.As(err, &verr), ShouldBeTrue)
			So(len(verr.Problems), ShouldEqual, 1)
			So(verr.Problems[0].CategoryID, ShouldEqual, "des")
			So(err.Error(), ShouldContainSubstring, "score 6 outside [0, 5]")
		})

		Convey("Negative values are refused", func() {
			p := base
			p.Entries = []submission.Entry{{CategoryID: "inn", Score: -1}}
			_, err := gate.Check(p, categories)
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("Unknown and repeated categories are refused", func() {
			p := base
			p.Entries = []submission.Entry{{CategoryID: "zzz", Score: 1}, {CategoryID: "inn", Score: 1}, {CategoryID: "inn", Score: 2}}
			_, err := gate.Check(p, categories)
			var verr *submission.ValidationError
			So(errors.As(err, &verr), ShouldBeTrue)
			So(len(verr.Problems), ShouldEqual, 2)
		})

		Convey("Missing ids fail struct validation", func() {
			_, err := gate.Check(submission.Payload{Entries: []submission.Entry{{Score: 1}}}, categories)
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "required")
		})
	})

	Convey("Given a clamping gate", t, func() {
		gate := submission.NewGate(submission.PolicyClamp)
		So(gate.Policy(), ShouldEqual, submission.PolicyClamp)

		p := base
		p.Entries = []submission.Entry{{CategoryID: "inn", Score: 99}, {CategoryID: "des", Score: -3}}
		out, err := gate.Check(p, categories)

		So(err, ShouldBeNil)
		So(out.Entries[0].Score, ShouldEqual, 10)
		So(out.Entries[1].Score, ShouldEqual, 0)
	})

	Convey("Given a gate with no explicit policy", t, func() {
		So(submission.NewGate("").Policy(), ShouldEqual, submission.PolicyReject)
	})
}

type fakeWriter struct {
	scores     map[model.ScoreKey]int
	comments   map[[2]string]string
	failScores map[string]bool
	failNote   bool
	calls      int
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{
		scores:     map[model.ScoreKey]int{},
		comments:   map[[2]string]string{},
		failScores: map[string]bool{},
	}
}

func (w *fakeWriter) UpsertScore(_ context.Context, s model.Score) (model.Score, error) {
	w.calls++
	if w.failScores[s.CategoryID] {
		return model.Score{}, model.ErrUpstream
	}
	w.scores[s.Key()] = s.Value
	return s, nil
}

func (w *fakeWriter) UpsertComment(_ context.Context, c model.Comment) (model.Comment, error) {
	w.calls++
	if w.failNote {
		return model.Comment{}, model.ErrUpstream
	}
	w.comments[[2]string{c.TeamID, c.JudgeID}] = c.Body
	return c, nil
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	payload := submission.Payload{
		TeamID:  "x",
		JudgeID: "a",
		Entries: []submission.Entry{{CategoryID: "inn", Score: 8}, {CategoryID: "des", Score: 4}},
		Comment: "nice",
	}

	Convey("Given a healthy writer", t, func() {
		w := newFakeWriter()

		Convey("When applying the same payload twice", func() {
			first := submission.Apply(ctx, w, payload)
			second := submission.Apply(ctx, w, payload)

			Convey("Then every write succeeds and state is unchanged by the repeat", func() {
				So(first.Err(), ShouldBeNil)
				So(second.Err(), ShouldBeNil)
				So(len(w.scores), ShouldEqual, 2)
				So(w.scores[model.ScoreKey{TeamID: "x", JudgeID: "a", CategoryID: "inn"}], ShouldEqual, 8)
				So(len(w.comments), ShouldEqual, 1)
				So(first.Partial(), ShouldBeFalse)
			})
		})

		Convey("When the comment is empty", func() {
			p := payload
			p.Comment = ""
			report := submission.Apply(ctx, w, p)

			Convey("Then no comment write happens", func() {
				So(len(w.comments), ShouldEqual, 0)
				last := report.Writes[len(report.Writes)-1]
				So(last.Kind, ShouldEqual, submission.KindComment)
				So(last.Outcome, ShouldEqual, submission.OutcomeSkipped)
				So(w.calls, ShouldEqual, 2)
			})
		})
	})

	Convey("Given a writer that fails one category and the comment", t, func() {
		w := newFakeWriter()
		w.failScores["inn"] = true
		w.failNote = true

		report := submission.Apply(ctx, w, payload)

		Convey("Then later writes are still attempted and failures are itemised", func() {
			So(w.calls, ShouldEqual, 3)
			So(w.scores[model.ScoreKey{TeamID: "x", JudgeID: "a", CategoryID: "des"}], ShouldEqual, 4)
			So(len(report.Failed()), ShouldEqual, 2)
			So(len(report.Succeeded()), ShouldEqual, 1)
			So(report.Partial(), ShouldBeTrue)
			So(errors.Is(report.Err(), model.ErrUpstream), ShouldBeTrue)
			So(report.Failed()[0].Error, ShouldContainSubstring, "score inn")
		})
	})
}
