package simulate_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/judgeboard/internal/adapters/authjwt"
	"github.com/okian/judgeboard/internal/adapters/http/api"
	"github.com/okian/judgeboard/internal/adapters/idp"
	"github.com/okian/judgeboard/internal/adapters/repository"
	service "github.com/okian/judgeboard/internal/app"
	"github.com/okian/judgeboard/internal/client"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/simulate"
	"github.com/okian/judgeboard/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newServer(t *testing.T, opts ...api.Option) *client.Client {
	t.Helper()
	tokens, err := authjwt.NewIssuer("simulate-test-secret")
	if err != nil {
		t.Fatal(err)
	}
	admins, err := idp.NewLocal("admin@example.com", "pw")
	if err != nil {
		t.Fatal(err)
	}
	svc := service.New(
		service.WithStore(repository.NewMemoryStore()),
		service.WithTokenIssuer(tokens),
		service.WithIdentityProvider(admins),
		service.WithCategories(map[string]int{"Innovation": 10, "Design": 20, "Pitch": 5}),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(api.NewServer(svc, opts...).Handler())
	t.Cleanup(func() {
		srv.Close()
		svc.Stop()
	})
	return client.New(srv.URL, client.WithHTTPClient(srv.Client()))
}

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFixture(t *testing.T) {
	Convey("Given a YAML roster", t, func() {
		path := writeFixture(t, "judges: [Ada, ' Grace ', '']\nteams:\n  - Rockets\n  - Comets\n")

		f, err := simulate.LoadFixture(path)
		So(err, ShouldBeNil)
		So(f.Judges, ShouldResemble, []string{"Ada", "Grace"})
		So(f.Teams, ShouldResemble, []string{"Rockets", "Comets"})

		Convey("Then it survives a save and reload", func() {
			out := filepath.Join(t.TempDir(), "nested", "copy.yaml")
			So(simulate.SaveFixture(out, f), ShouldBeNil)
			again, err := simulate.LoadFixture(out)
			So(err, ShouldBeNil)
			So(again, ShouldResemble, f)
		})
	})

	Convey("Given rosters that cannot be used", t, func() {
		_, err := simulate.LoadFixture(writeFixture(t, "judges: [Ada]\nteams: []\n"))
		So(errors.Is(err, simulate.ErrEmptyFixture), ShouldBeTrue)

		_, err = simulate.LoadFixture(writeFixture(t, "judges: [Ada, ada]\nteams: [Rockets]\n"))
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "duplicate judge")

		_, err = simulate.LoadFixture(writeFixture(t, "judges: [unclosed\n"))
		So(err, ShouldNotBeNil)

		_, err = simulate.LoadFixture(filepath.Join(t.TempDir(), "missing.yaml"))
		So(err, ShouldNotBeNil)
	})

	Convey("Generated rosters are sized, tagged and distinct", t, func() {
		f := simulate.GenerateFixture(gofakeit.New(42), 30, 40, "r1")
		So(f.Judges, ShouldHaveLength, 30)
		So(f.Teams, ShouldHaveLength, 40)
		So(f.Teams[0], ShouldEndWith, " r1")
		So(f.Validate(), ShouldBeNil)

		again := simulate.GenerateFixture(gofakeit.New(42), 30, 40, "r1")
		So(again, ShouldResemble, f)
	})
}

func TestVerify(t *testing.T) {
	teams := []model.Team{{ID: "a", Name: "Alpha"}, {ID: "b", Name: "Beta"}}
	scores := []model.Score{
		{TeamID: "a", JudgeID: "j", CategoryID: "c1", Value: 3},
		{TeamID: "b", JudgeID: "j", CategoryID: "c1", Value: 7},
	}
	good := []model.LeaderboardEntry{
		{Rank: 1, TeamID: "b", TeamName: "Beta", Total: 7},
		{Rank: 2, TeamID: "a", TeamName: "Alpha", Total: 3},
	}

	Convey("A matching leaderboard verifies", t, func() {
		So(simulate.Verify(teams, scores, good, nil), ShouldBeNil)
	})

	Convey("A wrong total is reported", t, func() {
		bad := []model.LeaderboardEntry{
			{Rank: 1, TeamID: "b", TeamName: "Beta", Total: 9},
			{Rank: 2, TeamID: "a", TeamName: "Alpha", Total: 3},
		}
		err := simulate.Verify(teams, scores, bad, nil)
		So(errors.Is(err, simulate.ErrVerification), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, `team "Beta" total 9, want 7`)

		Convey("Unless the team is skipped", func() {
			So(simulate.Verify(teams, scores, bad, map[string]bool{"b": true}), ShouldBeNil)
		})
	})

	Convey("A swapped order and a missing team are reported", t, func() {
		swapped := []model.LeaderboardEntry{good[1], good[0]}
		err := simulate.Verify(teams, scores, swapped, nil)
		So(errors.Is(err, simulate.ErrVerification), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "ordering differs")

		err = simulate.Verify(teams, scores, good[:1], nil)
		So(err.Error(), ShouldContainSubstring, `team "Alpha" missing`)
	})

	Convey("Extra teams on the board only get per-team checks", t, func() {
		board := append([]model.LeaderboardEntry{{Rank: 1, TeamID: "x", TeamName: "Other", Total: 50}},
			model.LeaderboardEntry{Rank: 2, TeamID: "b", TeamName: "Beta", Total: 7},
			model.LeaderboardEntry{Rank: 3, TeamID: "a", TeamName: "Alpha", Total: 3})
		So(simulate.Verify(teams, scores, board, nil), ShouldBeNil)
	})
}

func TestRun(t *testing.T) {
	Convey("Given a fresh server", t, func() {
		ctx := context.Background()

		cfg := simulate.DefaultConfig()
		cfg.AdminEmail = "admin@example.com"
		cfg.AdminPassword = "pw"
		cfg.Judges = 3
		cfg.Teams = 5
		cfg.Workers = 4
		cfg.Resubmit = 0.5
		cfg.Seed = 7

		Convey("Then a generated round verifies", func() {
			c := newServer(t, api.WithSignInLimit(0, 0))
			cfg.SaveFixture = filepath.Join(t.TempDir(), "roster.yaml")

			stats, err := simulate.Run(ctx, cfg, c)
			So(err, ShouldBeNil)
			So(stats.Judges, ShouldEqual, 3)
			So(stats.Teams, ShouldEqual, 5)
			So(stats.Submitted, ShouldEqual, 15)
			So(stats.Successful, ShouldEqual, 15)
			So(stats.Failed, ShouldEqual, 0)
			So(stats.Resubmitted, ShouldEqual, 7)
			So(stats.Mismatches, ShouldEqual, 0)
			So(stats.BoardEntries, ShouldEqual, 5)

			saved, err := simulate.LoadFixture(cfg.SaveFixture)
			So(err, ShouldBeNil)
			So(saved.Teams, ShouldHaveLength, 5)
		})

		Convey("Then a fixture file is used and sign-ins wait out the rate limit", func() {
			c := newServer(t, api.WithSignInLimit(50, 1))
			cfg.FixtureFile = writeFixture(t, "judges: [Ada, Grace, Linus]\nteams: [Rockets, Comets]\n")
			cfg.SignInBackoff = 10 * time.Millisecond

			stats, err := simulate.Run(ctx, cfg, c)
			So(err, ShouldBeNil)
			So(stats.Judges, ShouldEqual, 3)
			So(stats.Teams, ShouldEqual, 2)
			So(stats.Submitted, ShouldEqual, 6)
		})

		Convey("Then a second run with the same roster conflicts", func() {
			c := newServer(t, api.WithSignInLimit(0, 0))
			cfg.FixtureFile = writeFixture(t, "judges: [Ada]\nteams: [Rockets]\n")

			_, err := simulate.Run(ctx, cfg, c)
			So(err, ShouldBeNil)
			_, err = simulate.Run(ctx, cfg, c)
			So(errors.Is(err, model.ErrConflict), ShouldBeTrue)
		})

		Convey("Then wrong admin credentials stop the run", func() {
			c := newServer(t, api.WithSignInLimit(0, 0))
			cfg.AdminPassword = "nope"

			_, err := simulate.Run(ctx, cfg, c)
			So(errors.Is(err, model.ErrUnauthorized), ShouldBeTrue)
		})
	})
}
