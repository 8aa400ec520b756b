package service_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/judgeboard/internal/adapters/authjwt"
	"github.com/okian/judgeboard/internal/adapters/idp"
	"github.com/okian/judgeboard/internal/adapters/mq/notify"
	"github.com/okian/judgeboard/internal/adapters/repository"
	service "github.com/okian/judgeboard/internal/app"
	"github.com/okian/judgeboard/internal/domain/identity"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/submission"
	"github.com/okian/judgeboard/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const (
	adminEmail    = "admin@example.com"
	adminPassword = "s3cret"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Publish(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// flakyStore fails score writes for one category.
type flakyStore struct {
	repository.Store
	failCategory string
}

func (f *flakyStore) UpsertScore(ctx context.Context, s model.Score) (model.Score, error) {
	if s.CategoryID == f.failCategory {
		return model.Score{}, model.ErrUpstream
	}
	return f.Store.UpsertScore(ctx, s)
}

type fixture struct {
	svc      *service.Service
	store    repository.Store
	notifier *recordingNotifier
	admin    context.Context
}

func newFixture(t *testing.T, opts ...service.Option) *fixture {
	t.Helper()
	tokens, err := authjwt.NewIssuer("test-secret")
	if err != nil {
		t.Fatal(err)
	}
	admins, err := idp.NewLocal(adminEmail, adminPassword)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{store: repository.NewMemoryStore(), notifier: &recordingNotifier{}}
	base := []service.Option{
		service.WithStore(f.store),
		service.WithTokenIssuer(tokens),
		service.WithIdentityProvider(admins),
		service.WithNotifier(f.notifier),
		service.WithCategories(map[string]int{"Innovation": 10, "Design": 20}),
	}
	f.svc = service.New(append(base, opts...)...)
	if err := f.svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(f.svc.Stop)

	id, err := f.svc.SignInAdmin(context.Background(), adminEmail, adminPassword)
	if err != nil {
		t.Fatal(err)
	}
	f.admin = identity.WithIdentity(context.Background(), id)
	return f
}

func (f *fixture) judge(t *testing.T, name string) (model.Judge, context.Context) {
	t.Helper()
	j, err := f.svc.CreateJudge(f.admin, name)
	if err != nil {
		t.Fatal(err)
	}
	id, err := f.svc.SignInJudge(context.Background(), name)
	if err != nil {
		t.Fatal(err)
	}
	return j, identity.WithIdentity(context.Background(), id)
}

func (f *fixture) team(t *testing.T, name string) model.Team {
	t.Helper()
	tm, err := f.svc.CreateTeam(f.admin, name)
	if err != nil {
		t.Fatal(err)
	}
	return tm
}

func (f *fixture) category(t *testing.T, name string) model.Category {
	t.Helper()
	cats, err := f.svc.Categories(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range cats {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("category %q not seeded", name)
	return model.Category{}
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service without a token issuer", t, func() {
		admins, _ := idp.NewLocal(adminEmail, adminPassword)
		svc := service.New(service.WithIdentityProvider(admins))

		Convey("Then Start fails", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, service.ErrNotConfigured), ShouldBeTrue)
			So(svc.Started(), ShouldBeFalse)
		})

		Convey("And calls before Start fail", func() {
			_, err := svc.Leaderboard(context.Background())
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(errors.Is(svc.Ping(context.Background()), service.ErrNotStarted), ShouldBeTrue)
		})
	})

	Convey("Given a started service", t, func() {
		f := newFixture(t)

		Convey("Then stats describe it", func() {
			stats := f.svc.GetStats(context.Background())
			So(stats.Started, ShouldBeTrue)
			So(stats.Categories, ShouldEqual, 2)
			So(stats.Policy, ShouldEqual, "reject")
			So(stats.Instance, ShouldEqual, f.svc.InstanceID())
			So(stats.Errors, ShouldBeEmpty)
		})

		Convey("And categories carry their ceilings", func() {
			So(f.category(t, "Design").MaxScore, ShouldEqual, 20)
		})

		Convey("When stopped twice", func() {
			f.svc.Stop()
			f.svc.Stop()
			So(f.svc.Started(), ShouldBeFalse)
		})
	})
}

func TestService_Leaderboard(t *testing.T) {
	Convey("Given one judge and two teams", t, func() {
		f := newFixture(t)
		_, judgeCtx := f.judge(t, "Ada")
		alpha := f.team(t, "Alpha")
		zero := f.team(t, "Zero")
		innovation := f.category(t, "Innovation")
		design := f.category(t, "Design")

		Convey("When the judge scores Alpha 10 and 20", func() {
			sub, err := f.svc.SubmitScores(judgeCtx, alpha.ID, []submission.Entry{
				{CategoryID: innovation.ID, Score: 10},
				{CategoryID: design.ID, Score: 20},
			}, "Great pitch")
			So(err, ShouldBeNil)
			So(sub.Scores, ShouldHaveLength, 2)
			So(sub.Comment, ShouldEqual, "Great pitch")
			So(sub.Report.Partial(), ShouldBeFalse)

			Convey("Then Alpha totals 30 and the unscored team is last", func() {
				board, err := f.svc.Leaderboard(context.Background())
				So(err, ShouldBeNil)
				want := []model.LeaderboardEntry{
					{Rank: 1, TeamID: alpha.ID, TeamName: "Alpha", Total: 30},
					{Rank: 2, TeamID: zero.ID, TeamName: "Zero", Total: 0},
				}
				So(cmp.Diff(want, board), ShouldBeEmpty)
			})

			Convey("Then resubmitting the same payload changes nothing", func() {
				again, err := f.svc.SubmitScores(judgeCtx, alpha.ID, []submission.Entry{
					{CategoryID: innovation.ID, Score: 10},
					{CategoryID: design.ID, Score: 20},
				}, "Great pitch")
				So(err, ShouldBeNil)
				ignore := cmpopts.IgnoreFields(model.Score{}, "UpdatedAt")
				So(cmp.Diff(sub.Scores, again.Scores, ignore), ShouldBeEmpty)
				all, _ := f.store.ListScores(context.Background())
				So(all, ShouldHaveLength, 2)
			})

			Convey("Then a new comment replaces the old one", func() {
				_, err := f.svc.SubmitScores(judgeCtx, alpha.ID, nil, "Revised")
				So(err, ShouldBeNil)
				comments, _ := f.store.ListTeamComments(context.Background(), alpha.ID)
				So(comments, ShouldHaveLength, 1)
				So(comments[0].Body, ShouldEqual, "Revised")
			})

			Convey("Then the team sees its breakdown and rank", func() {
				teamID, err := f.svc.SignInTeam(context.Background(), "Alpha")
				So(err, ShouldBeNil)
				view, err := f.svc.MyScores(identity.WithIdentity(context.Background(), teamID))
				So(err, ShouldBeNil)
				So(view.Rank, ShouldEqual, 1)
				So(view.Total, ShouldEqual, 30)
				So(view.Teams, ShouldEqual, 2)
				So(view.Scores, ShouldHaveLength, 2)
				So(view.Scores[0].Judge, ShouldEqual, "Ada")
				So(view.Comments, ShouldResemble, []service.CommentLine{
					{JudgeID: sub.JudgeID, Judge: "Ada", Comment: "Great pitch"},
				})
			})

			Convey("Then both export formats render", func() {
				var xlsx, png bytes.Buffer
				So(f.svc.ExportLeaderboard(context.Background(), "xlsx", &xlsx), ShouldBeNil)
				So(f.svc.ExportLeaderboard(context.Background(), "png", &png), ShouldBeNil)
				So(xlsx.Len(), ShouldBeGreaterThan, 0)
				So(png.Bytes()[:4], ShouldResemble, []byte("\x89PNG"))

				err := f.svc.ExportLeaderboard(context.Background(), "pdf", &png)
				So(errors.Is(err, service.ErrUnknownFormat), ShouldBeTrue)
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			})

			Convey("Then deleting the team removes it from the board", func() {
				So(f.svc.DeleteTeam(f.admin, alpha.ID), ShouldBeNil)
				board, err := f.svc.Leaderboard(context.Background())
				So(err, ShouldBeNil)
				So(board, ShouldHaveLength, 1)
				So(board[0].TeamID, ShouldEqual, zero.ID)
			})
		})

		Convey("When a submission has an empty comment", func() {
			sub, err := f.svc.SubmitScores(judgeCtx, alpha.ID, []submission.Entry{
				{CategoryID: innovation.ID, Score: 3},
			}, "   ")
			So(err, ShouldBeNil)

			Convey("Then no comment row is written", func() {
				So(sub.Comment, ShouldBeEmpty)
				comments, _ := f.store.ListTeamComments(context.Background(), alpha.ID)
				So(comments, ShouldBeEmpty)
			})
		})

		Convey("When a score is out of range", func() {
			_, err := f.svc.SubmitScores(judgeCtx, alpha.ID, []submission.Entry{
				{CategoryID: innovation.ID, Score: 11},
			}, "")

			Convey("Then the whole payload is rejected", func() {
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
				all, _ := f.store.ListScores(context.Background())
				So(all, ShouldBeEmpty)
			})
		})

		Convey("When the team does not exist", func() {
			_, err := f.svc.SubmitScores(judgeCtx, "missing", nil, "hi")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_ClampPolicy(t *testing.T) {
	Convey("Given a service that clamps out-of-range scores", t, func() {
		f := newFixture(t, service.WithScorePolicy(submission.PolicyClamp))
		_, judgeCtx := f.judge(t, "Ada")
		alpha := f.team(t, "Alpha")
		innovation := f.category(t, "Innovation")

		sub, err := f.svc.SubmitScores(judgeCtx, alpha.ID, []submission.Entry{
			{CategoryID: innovation.ID, Score: 99},
		}, "")
		So(err, ShouldBeNil)
		So(sub.Scores, ShouldHaveLength, 1)
		So(sub.Scores[0].Value, ShouldEqual, 10)
	})
}

func TestService_PartialWrite(t *testing.T) {
	Convey("Given a store that fails writes for one category", t, func() {
		flaky := &flakyStore{Store: repository.NewMemoryStore()}
		f := newFixture(t, service.WithStore(flaky))
		_, judgeCtx := f.judge(t, "Ada")
		alpha := f.team(t, "Alpha")
		innovation := f.category(t, "Innovation")
		design := f.category(t, "Design")
		flaky.failCategory = design.ID

		Convey("When a judge submits both categories and a comment", func() {
			sub, err := f.svc.SubmitScores(judgeCtx, alpha.ID, []submission.Entry{
				{CategoryID: innovation.ID, Score: 7},
				{CategoryID: design.ID, Score: 5},
			}, "ok")

			Convey("Then the error reports the partial write", func() {
				So(errors.Is(err, service.ErrPartialWrite), ShouldBeTrue)
				So(errors.Is(err, model.ErrUpstream), ShouldBeTrue)
			})

			Convey("And the successful writes are kept and reported", func() {
				So(sub.Report, ShouldNotBeNil)
				So(sub.Report.Partial(), ShouldBeTrue)
				So(sub.Report.Failed(), ShouldHaveLength, 1)
				So(sub.Report.Failed()[0].CategoryID, ShouldEqual, design.ID)
				So(sub.Scores, ShouldHaveLength, 1)
				So(sub.Scores[0].CategoryID, ShouldEqual, innovation.ID)
				So(sub.Comment, ShouldEqual, "ok")
			})
		})

		Convey("When nothing in the submission lands", func() {
			sub, err := f.svc.SubmitScores(judgeCtx, alpha.ID, []submission.Entry{
				{CategoryID: design.ID, Score: 5},
			}, "")

			Convey("Then the failure is an upstream error, not a partial write", func() {
				So(errors.Is(err, model.ErrUpstream), ShouldBeTrue)
				So(errors.Is(err, service.ErrPartialWrite), ShouldBeFalse)
			})

			Convey("And the report still lists the failed and skipped writes", func() {
				So(sub.Report, ShouldNotBeNil)
				So(sub.Report.Partial(), ShouldBeFalse)
				So(sub.Report.Failed(), ShouldHaveLength, 1)
				So(sub.Report.Succeeded(), ShouldBeEmpty)
				So(sub.Scores, ShouldBeEmpty)
			})
		})
	})
}

func TestService_Roles(t *testing.T) {
	Convey("Given a judge and a team", t, func() {
		f := newFixture(t)
		_, judgeCtx := f.judge(t, "Ada")
		alpha := f.team(t, "Alpha")
		teamID, err := f.svc.SignInTeam(context.Background(), "Alpha")
		So(err, ShouldBeNil)
		teamCtx := identity.WithIdentity(context.Background(), teamID)

		Convey("Then anonymous callers cannot list teams", func() {
			_, err := f.svc.ListTeams(context.Background())
			So(errors.Is(err, model.ErrUnauthorized), ShouldBeTrue)
		})

		Convey("Then judges can list teams but not judges", func() {
			teams, err := f.svc.ListTeams(judgeCtx)
			So(err, ShouldBeNil)
			So(teams, ShouldHaveLength, 1)
			_, err = f.svc.ListJudges(judgeCtx)
			So(errors.Is(err, model.ErrForbidden), ShouldBeTrue)
		})

		Convey("Then teams cannot submit scores", func() {
			_, err := f.svc.SubmitScores(teamCtx, alpha.ID, nil, "self praise")
			So(errors.Is(err, model.ErrForbidden), ShouldBeTrue)
		})

		Convey("Then judges cannot create teams", func() {
			_, err := f.svc.CreateTeam(judgeCtx, "Beta")
			So(errors.Is(err, model.ErrForbidden), ShouldBeTrue)
		})

		Convey("Then a duplicate team name conflicts", func() {
			_, err := f.svc.CreateTeam(f.admin, " Alpha ")
			So(errors.Is(err, model.ErrConflict), ShouldBeTrue)
		})

		Convey("Then an empty name is invalid", func() {
			_, err := f.svc.CreateJudge(f.admin, "  ")
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})
	})
}

func TestService_SignIn(t *testing.T) {
	Convey("Given a started service", t, func() {
		f := newFixture(t)
		ctx := context.Background()

		Convey("When the admin password is wrong", func() {
			_, err := f.svc.SignInAdmin(ctx, adminEmail, "nope")
			So(errors.Is(err, model.ErrUnauthorized), ShouldBeTrue)
		})

		Convey("When no judge has the name", func() {
			_, err := f.svc.SignInJudge(ctx, "Nobody")
			So(errors.Is(err, service.ErrNameNotMatched), ShouldBeTrue)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the name is blank", func() {
			_, err := f.svc.SignInTeam(ctx, " ")
			So(errors.Is(err, service.ErrEmptyName), ShouldBeTrue)
		})

		Convey("When a team signs in", func() {
			tm := f.team(t, "Alpha")
			id, err := f.svc.SignInTeam(ctx, "Alpha")
			So(err, ShouldBeNil)

			Convey("Then its token authenticates as the team", func() {
				got, err := f.svc.Authenticate(ctx, id.Token)
				So(err, ShouldBeNil)
				So(got.Kind, ShouldEqual, identity.KindTeam)
				So(got.Subject, ShouldEqual, tm.ID)
				So(got.Name, ShouldEqual, "Alpha")
			})
		})
	})
}

func TestService_Revocation(t *testing.T) {
	Convey("Given a signed-in judge", t, func() {
		f := newFixture(t)
		j, judgeCtx := f.judge(t, "Ada")
		id, _ := identity.FromContext(judgeCtx)

		Convey("When the judge signs out", func() {
			So(f.svc.SignOut(judgeCtx), ShouldBeNil)

			Convey("Then the old token is refused", func() {
				_, err := f.svc.Authenticate(context.Background(), id.Token)
				So(errors.Is(err, authjwt.ErrRevokedToken), ShouldBeTrue)
			})

			Convey("And the sign-out is announced with this instance as origin", func() {
				So(f.notifier.sent, ShouldHaveLength, 1)
				So(f.notifier.sent[0].Subject, ShouldEqual, j.ID)
				So(f.notifier.sent[0].Origin, ShouldEqual, f.svc.InstanceID())
			})

			Convey("And a fresh sign-in works", func() {
				again, err := f.svc.SignInJudge(context.Background(), "Ada")
				So(err, ShouldBeNil)
				_, err = f.svc.Authenticate(context.Background(), again.Token)
				So(err, ShouldBeNil)
			})
		})

		Convey("When the service is stopped before the judge signs out", func() {
			f.svc.Stop()
			err := f.svc.SignOut(judgeCtx)

			Convey("Then sign-out is refused and nothing is revoked or announced", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(f.notifier.sent, ShouldBeEmpty)
				_, err := f.svc.Authenticate(context.Background(), id.Token)
				So(err, ShouldBeNil)
			})
		})

		Convey("When this instance's own notification comes back", func() {
			n := notify.Notification{Subject: j.ID, Origin: f.svc.InstanceID()}
			So(f.svc.HandleSessionChange(context.Background(), n), ShouldBeNil)

			Convey("Then the token still works", func() {
				_, err := f.svc.Authenticate(context.Background(), id.Token)
				So(err, ShouldBeNil)
			})
		})

		Convey("When another instance announces a change", func() {
			n := notify.Notification{Subject: j.ID, Reason: notify.ReasonSignOut, Origin: "elsewhere"}
			So(f.svc.HandleSessionChange(context.Background(), n), ShouldBeNil)

			Convey("Then the token is refused", func() {
				_, err := f.svc.Authenticate(context.Background(), id.Token)
				So(errors.Is(err, model.ErrUnauthorized), ShouldBeTrue)
			})
		})

		Convey("When a notification has no subject", func() {
			err := f.svc.HandleSessionChange(context.Background(), notify.Notification{Origin: "elsewhere"})
			So(errors.Is(err, notify.ErrEmptySubject), ShouldBeTrue)
		})

		Convey("When an admin deletes the judge", func() {
			So(f.svc.DeleteJudge(f.admin, j.ID), ShouldBeNil)

			Convey("Then the judge's token is refused", func() {
				_, err := f.svc.Authenticate(context.Background(), id.Token)
				So(errors.Is(err, model.ErrUnauthorized), ShouldBeTrue)
			})
		})
	})
}
