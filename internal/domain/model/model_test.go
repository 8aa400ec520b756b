package model_test

import (
	"testing"

	"github.com/okian/judgeboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCategory_Range(t *testing.T) {
	Convey("Given a category with max 10", t, func() {
		c := model.Category{Name: "Innovation", MaxScore: 10}

		Convey("Bounds are inclusive", func() {
			So(c.InRange(0), ShouldBeTrue)
			So(c.InRange(10), ShouldBeTrue)
			So(c.InRange(-1), ShouldBeFalse)
			So(c.InRange(11), ShouldBeFalse)
		})

		Convey("Clamp pulls values into range", func() {
			So(c.Clamp(-4), ShouldEqual, 0)
			So(c.Clamp(7), ShouldEqual, 7)
			So(c.Clamp(42), ShouldEqual, 10)
		})
	})
}

func TestNormalizeName(t *testing.T) {
	Convey("Given names with padding and decomposed accents", t, func() {
		composed := "Jos\u00e9"
		decomposed := "Jose\u0301"

		So(model.NormalizeName("  Team X \t"), ShouldEqual, "Team X")
		So(model.NormalizeName(decomposed), ShouldEqual, composed)
		So(model.NormalizeName("Team x"), ShouldNotEqual, "Team X")
	})
}

func TestScore_Key(t *testing.T) {
	Convey("Given two rows for the same triple", t, func() {
		a := model.Score{ID: "1", TeamID: "t", JudgeID: "j", CategoryID: "c", Value: 3}
		b := model.Score{ID: "2", TeamID: "t", JudgeID: "j", CategoryID: "c", Value: 9}
		So(a.Key(), ShouldResemble, b.Key())
	})
}
