// Package storetest is a behaviour suite every repository.Store must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/okian/judgeboard/internal/adapters/repository"
	"github.com/okian/judgeboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) repository.Store

// Run exercises the Store contract against stores made by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	ctx := context.Background()

	Convey("Given an empty store", t, func() {
		store := newStore(t)
		Reset(func() { _ = store.Close() })

		So(store.Ping(ctx), ShouldBeNil)

		cats, err := store.SeedCategories(ctx, map[string]int{"Innovation": 10, "Design": 10})
		So(err, ShouldBeNil)
		So(len(cats), ShouldEqual, 2)
		So(cats[0].Name, ShouldEqual, "Design")
		design, innovation := cats[0], cats[1]

		judgeA, err := store.CreateJudge(ctx, "  Ada ")
		So(err, ShouldBeNil)
		So(judgeA.Name, ShouldEqual, "Ada")
		judgeB, err := store.CreateJudge(ctx, "Bob")
		So(err, ShouldBeNil)
		teamX, err := store.CreateTeam(ctx, "Team X")
		So(err, ShouldBeNil)
		teamY, err := store.CreateTeam(ctx, "Team Y")
		So(err, ShouldBeNil)

		Convey("Names are unique", func() {
			_, err := store.CreateJudge(ctx, "Ada")
			So(errors.Is(err, model.ErrConflict), ShouldBeTrue)
			_, err = store.CreateTeam(ctx, " Team X")
			So(errors.Is(err, model.ErrConflict), ShouldBeTrue)
			_, err = store.CreateTeam(ctx, "   ")
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("Lookups are exact and listings ordered by name", func() {
			found, err := store.FindJudgesByName(ctx, "Ada")
			So(err, ShouldBeNil)
			So(len(found), ShouldEqual, 1)
			So(found[0].ID, ShouldEqual, judgeA.ID)

			found, err = store.FindJudgesByName(ctx, "ada")
			So(err, ShouldBeNil)
			So(found, ShouldBeEmpty)

			teams, err := store.FindTeamsByName(ctx, "Team Y")
			So(err, ShouldBeNil)
			So(len(teams), ShouldEqual, 1)

			judges, err := store.ListJudges(ctx)
			So(err, ShouldBeNil)
			So(len(judges), ShouldEqual, 2)
			So(judges[0].Name, ShouldEqual, "Ada")

			got, err := store.GetTeam(ctx, teamY.ID)
			So(err, ShouldBeNil)
			So(got.Name, ShouldEqual, "Team Y")
		})

		Convey("Seeding again keeps ids and updates ceilings", func() {
			again, err := store.SeedCategories(ctx, map[string]int{"Design": 5})
			So(err, ShouldBeNil)
			So(len(again), ShouldEqual, 2)
			So(again[0].ID, ShouldEqual, design.ID)
			So(again[0].MaxScore, ShouldEqual, 5)
		})

		Convey("Scores upsert on (team, judge, category)", func() {
			first, err := store.UpsertScore(ctx, model.Score{TeamID: teamX.ID, JudgeID: judgeA.ID, CategoryID: innovation.ID, Value: 8})
			So(err, ShouldBeNil)
			So(first.ID, ShouldNotBeEmpty)

			second, err := store.UpsertScore(ctx, model.Score{TeamID: teamX.ID, JudgeID: judgeA.ID, CategoryID: innovation.ID, Value: 8})
			So(err, ShouldBeNil)
			So(second.ID, ShouldEqual, first.ID)

			_, err = store.UpsertScore(ctx, model.Score{TeamID: teamX.ID, JudgeID: judgeA.ID, CategoryID: innovation.ID, Value: 3})
			So(err, ShouldBeNil)

			rows, err := store.ListScoresFor(ctx, teamX.ID, judgeA.ID)
			So(err, ShouldBeNil)
			So(len(rows), ShouldEqual, 1)
			So(rows[0].Value, ShouldEqual, 3)

			_, err = store.UpsertScore(ctx, model.Score{TeamID: teamX.ID, JudgeID: judgeB.ID, CategoryID: design.ID, Value: 9})
			So(err, ShouldBeNil)
			all, err := store.ListScores(ctx)
			So(err, ShouldBeNil)
			So(len(all), ShouldEqual, 2)
			teamRows, err := store.ListTeamScores(ctx, teamX.ID)
			So(err, ShouldBeNil)
			So(len(teamRows), ShouldEqual, 2)
			empty, err := store.ListTeamScores(ctx, teamY.ID)
			So(err, ShouldBeNil)
			So(empty, ShouldBeEmpty)
		})

		Convey("Scores for unknown rows are refused", func() {
			_, err := store.UpsertScore(ctx, model.Score{TeamID: "00000000-0000-0000-0000-000000000000", JudgeID: judgeA.ID, CategoryID: design.ID, Value: 1})
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("Comments upsert on (team, judge)", func() {
			_, err := store.FindComment(ctx, teamX.ID, judgeA.ID)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)

			c1, err := store.UpsertComment(ctx, model.Comment{TeamID: teamX.ID, JudgeID: judgeA.ID, Body: "good"})
			So(err, ShouldBeNil)
			c2, err := store.UpsertComment(ctx, model.Comment{TeamID: teamX.ID, JudgeID: judgeA.ID, Body: "better"})
			So(err, ShouldBeNil)
			So(c2.ID, ShouldEqual, c1.ID)

			got, err := store.FindComment(ctx, teamX.ID, judgeA.ID)
			So(err, ShouldBeNil)
			So(got.Body, ShouldEqual, "better")

			list, err := store.ListTeamComments(ctx, teamX.ID)
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 1)
		})

		Convey("Deleting cascades to scores and comments", func() {
			_, err := store.UpsertScore(ctx, model.Score{TeamID: teamX.ID, JudgeID: judgeA.ID, CategoryID: design.ID, Value: 4})
			So(err, ShouldBeNil)
			_, err = store.UpsertScore(ctx, model.Score{TeamID: teamY.ID, JudgeID: judgeB.ID, CategoryID: design.ID, Value: 6})
			So(err, ShouldBeNil)
			_, err = store.UpsertComment(ctx, model.Comment{TeamID: teamX.ID, JudgeID: judgeA.ID, Body: "x"})
			So(err, ShouldBeNil)

			So(store.DeleteJudge(ctx, judgeA.ID), ShouldBeNil)
			rows, err := store.ListScores(ctx)
			So(err, ShouldBeNil)
			So(len(rows), ShouldEqual, 1)
			_, err = store.FindComment(ctx, teamX.ID, judgeA.ID)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)

			So(store.DeleteTeam(ctx, teamY.ID), ShouldBeNil)
			rows, err = store.ListScores(ctx)
			So(err, ShouldBeNil)
			So(rows, ShouldBeEmpty)

			So(errors.Is(store.DeleteTeam(ctx, teamY.ID), model.ErrNotFound), ShouldBeTrue)
			_, err = store.GetTeam(ctx, teamY.ID)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("Concurrent upserts of one triple converge to a single row", func() {
			var wg sync.WaitGroup
			for v := 0; v < 8; v++ {
				wg.Add(1)
				go func(v int) {
					defer wg.Done()
					_, _ = store.UpsertScore(ctx, model.Score{TeamID: teamY.ID, JudgeID: judgeB.ID, CategoryID: innovation.ID, Value: v})
				}(v)
			}
			wg.Wait()

			rows, err := store.ListScoresFor(ctx, teamY.ID, judgeB.ID)
			So(err, ShouldBeNil)
			So(len(rows), ShouldEqual, 1)
		})
	})
}
