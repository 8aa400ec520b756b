// Package simulate drives a judgeboard server through a scoring round:
// it seeds a roster, has every judge score every team concurrently, checks
// that re-sent submissions change nothing and verifies the leaderboard
// against a local recomputation.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/okian/judgeboard/internal/client"
	"github.com/okian/judgeboard/internal/domain/identity"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/submission"
	"github.com/okian/judgeboard/pkg/logger"
)

// Defaults for a run.
const (
	DefaultJudges   = 5
	DefaultTeams    = 12
	DefaultWorkers  = 8
	DefaultResubmit = 0.2

	signInAttempts = 30
	signInBackoff  = time.Second
	reportInterval = time.Second
)

// ErrIdempotence is returned when re-sending a submission changed what the
// server stores.
var ErrIdempotence = errors.New("resubmission changed stored scores")

// Config drives one run.
type Config struct {
	AdminEmail    string
	AdminPassword string
	Judges        int
	Teams         int
	Workers       int
	// Resubmit is the share of submissions sent a second time, 0 to 1.
	Resubmit float64
	// CommentRate is the share of submissions that carry a comment.
	CommentRate float64
	Seed        uint64
	// Tag is appended to generated names.
	Tag string
	// FixtureFile, when set, is loaded instead of generating a roster.
	FixtureFile string
	// SaveFixture, when set, receives the roster used.
	SaveFixture string
	// SignInBackoff is the wait after a rate-limited sign-in.
	SignInBackoff time.Duration
}

// DefaultConfig returns a Config with every knob at its default.
func DefaultConfig() Config {
	return Config{
		Judges:        DefaultJudges,
		Teams:         DefaultTeams,
		Workers:       DefaultWorkers,
		Resubmit:      DefaultResubmit,
		CommentRate:   0.5,
		SignInBackoff: signInBackoff,
	}
}

// Stats summarises a run.
type Stats struct {
	Judges       int
	Teams        int
	Submitted    int
	Successful   int
	Partial      int
	Failed       int
	Resubmitted  int
	Mismatches   int
	BoardEntries int
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
}

// task is one judge scoring one team.
type task struct {
	judge   int
	team    model.Team
	entries []submission.Entry
	comment string
}

type result struct {
	sub client.Submission
	err error
}

// Run executes a full scoring round against the server behind c.
func Run(ctx context.Context, cfg Config, c *client.Client) (*Stats, error) {
	log := logger.Named("simulate")
	stats := &Stats{StartTime: time.Now()}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.SignInBackoff <= 0 {
		cfg.SignInBackoff = signInBackoff
	}
	faker := gofakeit.New(cfg.Seed)

	// Step 1: Check service health
	if err := c.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Build the roster
	roster, err := buildRoster(cfg, faker)
	if err != nil {
		return stats, err
	}
	if cfg.SaveFixture != "" {
		if err := SaveFixture(cfg.SaveFixture, roster); err != nil {
			log.Warn(ctx, "failed to save fixture", logger.Error(err))
		}
	}

	// Step 3: Seed judges and teams through the admin API
	admin, err := signIn(ctx, cfg.SignInBackoff, func() (identity.Identity, error) {
		return c.SignInAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
	})
	if err != nil {
		return stats, fmt.Errorf("admin sign-in failed: %w", err)
	}
	asAdmin := c.As(admin)
	judges, teams, err := seed(ctx, asAdmin, roster)
	if err != nil {
		return stats, err
	}
	stats.Judges, stats.Teams = len(judges), len(teams)
	categories, err := asAdmin.Categories(ctx)
	if err != nil {
		return stats, fmt.Errorf("list categories: %w", err)
	}

	// Step 4: Sign every judge in
	asJudge := make([]*client.Client, len(judges))
	for i, j := range judges {
		id, err := signIn(ctx, cfg.SignInBackoff, func() (identity.Identity, error) {
			return c.SignInJudge(ctx, j.Name)
		})
		if err != nil {
			return stats, fmt.Errorf("judge %q sign-in failed: %w", j.Name, err)
		}
		asJudge[i] = c.As(id)
	}

	// Step 5: Plan and submit every judge x team pair
	tasks := plan(faker, len(judges), teams, categories, cfg.CommentRate)
	log.Info(ctx, "submitting scores",
		logger.Int("judges", len(judges)),
		logger.Int("teams", len(teams)),
		logger.Int("categories", len(categories)),
		logger.Int("submissions", len(tasks)),
		logger.Int("workers", cfg.Workers))
	results := submitAll(ctx, cfg.Workers, asJudge, tasks, stats)
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	// Step 6: Re-send a subset and check nothing moved
	mismatches, err := resubmit(ctx, faker, cfg.Resubmit, asJudge, tasks, results, stats)
	if err != nil {
		return stats, err
	}
	stats.Mismatches = mismatches

	// Step 7: Fetch and verify the leaderboard
	board, err := asAdmin.Leaderboard(ctx)
	if err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	stats.BoardEntries = len(board)
	scores, unknown := expected(judges, tasks, results)
	verifyErr := Verify(teams, scores, board, unknown)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logStats(ctx, log, stats)

	if mismatches > 0 {
		verifyErr = errors.Join(verifyErr, fmt.Errorf("%w: %d submissions", ErrIdempotence, mismatches))
	}
	if verifyErr != nil {
		return stats, verifyErr
	}
	log.Info(ctx, "run completed successfully")
	return stats, nil
}

func buildRoster(cfg Config, faker *gofakeit.Faker) (Fixture, error) {
	if cfg.FixtureFile != "" {
		return LoadFixture(cfg.FixtureFile)
	}
	f := GenerateFixture(faker, cfg.Judges, cfg.Teams, cfg.Tag)
	if err := f.Validate(); err != nil {
		return f, err
	}
	return f, nil
}

// signIn retries fn while the server rate-limits sign-ins.
func signIn(ctx context.Context, wait time.Duration, fn func() (identity.Identity, error)) (identity.Identity, error) {
	var (
		id  identity.Identity
		err error
	)
	for range signInAttempts {
		id, err = fn()
		if !errors.Is(err, client.ErrRateLimited) {
			return id, err
		}
		select {
		case <-ctx.Done():
			return id, ctx.Err()
		case <-time.After(wait):
		}
	}
	return id, err
}

func seed(ctx context.Context, admin *client.Client, roster Fixture) ([]model.Judge, []model.Team, error) {
	judges := make([]model.Judge, 0, len(roster.Judges))
	for _, name := range roster.Judges {
		j, err := admin.CreateJudge(ctx, name)
		if err != nil {
			return nil, nil, fmt.Errorf("create judge %q: %w", name, err)
		}
		judges = append(judges, j)
	}
	teams := make([]model.Team, 0, len(roster.Teams))
	for _, name := range roster.Teams {
		t, err := admin.CreateTeam(ctx, name)
		if err != nil {
			return nil, nil, fmt.Errorf("create team %q: %w", name, err)
		}
		teams = append(teams, t)
	}
	return judges, teams, nil
}

// plan draws a score in [0, max] for every category of every pair.
func plan(faker *gofakeit.Faker, judges int, teams []model.Team, categories []model.Category, commentRate float64) []task {
	tasks := make([]task, 0, judges*len(teams))
	for j := range judges {
		for _, team := range teams {
			entries := make([]submission.Entry, 0, len(categories))
			for _, cat := range categories {
				entries = append(entries, submission.Entry{CategoryID: cat.ID, Score: faker.Number(0, cat.MaxScore)})
			}
			var comment string
			if faker.Float64Range(0, 1) < commentRate {
				comment = faker.Sentence(faker.Number(3, 12))
			}
			tasks = append(tasks, task{judge: j, team: team, entries: entries, comment: comment})
		}
	}
	return tasks
}

// submitAll sends tasks through a pool of workers. results[i] belongs to
// tasks[i].
func submitAll(ctx context.Context, workers int, asJudge []*client.Client, tasks []task, stats *Stats) []result {
	log := logger.Named("simulate")
	results := make([]result, len(tasks))

	var submitted, successful, partial, failed int64

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(reportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				log.Info(ctx, "progress",
					logger.Int("submitted", int(atomic.LoadInt64(&submitted))),
					logger.Int("total", len(tasks)),
					logger.Int("partial", int(atomic.LoadInt64(&partial))),
					logger.Int("failed", int(atomic.LoadInt64(&failed))))
			}
		}
	}()

	taskChan := make(chan int, workers*2)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range taskChan {
				t := tasks[i]
				sub, err := asJudge[t.judge].Submit(ctx, t.team.ID, t.entries, t.comment)
				results[i] = result{sub: sub, err: err}

				atomic.AddInt64(&submitted, 1)
				switch {
				case err == nil:
					atomic.AddInt64(&successful, 1)
				case errors.Is(err, client.ErrPartial):
					atomic.AddInt64(&partial, 1)
				default:
					atomic.AddInt64(&failed, 1)
					log.Debug(ctx, "submission failed", logger.String("team", t.team.Name), logger.Error(err))
				}
			}
		}()
	}

	go func() {
		defer close(taskChan)
		for i := range tasks {
			select {
			case <-ctx.Done():
				return
			case taskChan <- i:
			}
		}
	}()

	wg.Wait()
	close(done)

	stats.Submitted = int(submitted)
	stats.Successful = int(successful)
	stats.Partial = int(partial)
	stats.Failed = int(failed)
	return results
}

// resubmit re-sends a share of the fully stored submissions unchanged and
// counts those whose stored values differ afterwards.
func resubmit(ctx context.Context, faker *gofakeit.Faker, share float64, asJudge []*client.Client, tasks []task, results []result, stats *Stats) (int, error) {
	var ok []int
	for i, r := range results {
		if r.err == nil {
			ok = append(ok, i)
		}
	}
	n := int(float64(len(ok)) * min(max(share, 0), 1))
	if n == 0 {
		return 0, nil
	}
	faker.ShuffleAnySlice(ok)

	mismatches := 0
	for _, i := range ok[:n] {
		t := tasks[i]
		c := asJudge[t.judge]
		if _, err := c.Submit(ctx, t.team.ID, t.entries, t.comment); err != nil {
			return mismatches, fmt.Errorf("resubmit for team %q: %w", t.team.Name, err)
		}
		stats.Resubmitted++
		got, err := c.JudgeSubmission(ctx, t.team.ID)
		if err != nil {
			return mismatches, fmt.Errorf("read back submission for team %q: %w", t.team.Name, err)
		}
		if !sameValues(t.entries, got.Scores) {
			mismatches++
		}
	}
	return mismatches, nil
}

func sameValues(entries []submission.Entry, stored []model.Score) bool {
	if len(entries) != len(stored) {
		return false
	}
	want := make(map[string]int, len(entries))
	for _, e := range entries {
		want[e.CategoryID] = e.Score
	}
	for _, s := range stored {
		if v, ok := want[s.CategoryID]; !ok || v != s.Value {
			return false
		}
	}
	return true
}

// expected rebuilds the score rows the server should hold. Teams touched by
// a failed submission cannot be predicted and are returned in unknown.
func expected(judges []model.Judge, tasks []task, results []result) ([]model.Score, map[string]bool) {
	var scores []model.Score
	unknown := make(map[string]bool)
	for i, t := range tasks {
		judgeID := judges[t.judge].ID
		r := results[i]
		switch {
		case r.err == nil:
			for _, e := range t.entries {
				scores = append(scores, model.Score{TeamID: t.team.ID, JudgeID: judgeID, CategoryID: e.CategoryID, Value: e.Score})
			}
		case errors.Is(r.err, client.ErrPartial) && r.sub.Report != nil:
			for _, w := range r.sub.Report.Succeeded() {
				if w.Kind == submission.KindScore {
					scores = append(scores, model.Score{TeamID: t.team.ID, JudgeID: judgeID, CategoryID: w.CategoryID, Value: w.Score})
				}
			}
		default:
			unknown[t.team.ID] = true
		}
	}
	return scores, unknown
}

func logStats(ctx context.Context, log logger.Logger, s *Stats) {
	log.Info(ctx, "run statistics",
		logger.Int("judges", s.Judges),
		logger.Int("teams", s.Teams),
		logger.Int("submitted", s.Submitted),
		logger.Int("successful", s.Successful),
		logger.Int("partial", s.Partial),
		logger.Int("failed", s.Failed),
		logger.Int("resubmitted", s.Resubmitted),
		logger.Int("mismatches", s.Mismatches),
		logger.Int("leaderboard_entries", s.BoardEntries),
		logger.Duration("duration", s.Duration))
}
