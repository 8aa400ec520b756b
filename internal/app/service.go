// Package service provides the scoring service behind the HTTP API: admin
// management, score submission, leaderboard computation and sign-in.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/judgeboard/internal/adapters/authjwt"
	"github.com/okian/judgeboard/internal/adapters/idp"
	"github.com/okian/judgeboard/internal/adapters/mq/notify"
	"github.com/okian/judgeboard/internal/adapters/repository"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/ranking"
	"github.com/okian/judgeboard/internal/domain/submission"
	"github.com/okian/judgeboard/pkg/logger"
	"github.com/okian/judgeboard/pkg/metrics"
)

const tracerName = "github.com/okian/judgeboard/internal/app"

// Notifier announces session changes to other instances.
type Notifier interface {
	Publish(ctx context.Context, n notify.Notification) error
}

// Service implements the API dependencies for the scoring system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	engine   *ranking.Engine
	gate     *submission.Gate
	tokens   *authjwt.Issuer
	admins   idp.Provider
	notifier Notifier

	// Configuration
	categories map[string]int
	instanceID string

	// State
	started bool

	logger logger.Logger
	tracer trace.Tracer
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the data service. Defaults to an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithRanking sets the ranking engine.
func WithRanking(engine *ranking.Engine) Option {
	return func(s *Service) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// WithScorePolicy sets what happens to out-of-range values.
func WithScorePolicy(policy submission.Policy) Option {
	return func(s *Service) {
		s.gate = submission.NewGate(policy)
	}
}

// WithCategories sets the categories seeded at start, by name and ceiling.
func WithCategories(maxByName map[string]int) Option {
	return func(s *Service) {
		s.categories = maxByName
	}
}

// WithTokenIssuer sets the access token issuer. Required.
func WithTokenIssuer(tokens *authjwt.Issuer) Option {
	return func(s *Service) {
		s.tokens = tokens
	}
}

// WithIdentityProvider sets the admin identity provider. Required.
func WithIdentityProvider(p idp.Provider) Option {
	return func(s *Service) {
		s.admins = p
	}
}

// WithNotifier sets where sign-outs are announced.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer sets the tracer. Defaults to the global otel provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		engine:     ranking.New(),
		gate:       submission.NewGate(submission.PolicyReject),
		instanceID: uuid.NewString(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start checks dependencies, seeds categories and marks the service ready.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	if s.tokens == nil {
		return fmt.Errorf("%w: token issuer", ErrNotConfigured)
	}
	if s.admins == nil {
		return fmt.Errorf("%w: identity provider", ErrNotConfigured)
	}
	if s.store == nil {
		s.store = repository.Instrument(repository.NewMemoryStore())
		s.logger.Info(ctx, "using in-memory store")
	}

	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	cats, err := s.store.SeedCategories(ctx, s.categories)
	if err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}

	s.started = true
	s.logger.Info(ctx, "scoring service started",
		logger.Int("categories", len(cats)),
		logger.String("policy", string(s.gate.Policy())),
		logger.String("instance", s.instanceID),
	)
	return nil
}

// Stop closes the store. It is safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(context.Background(), "closing store failed", logger.Error(err))
	}
	s.started = false
	s.logger.Info(context.Background(), "scoring service stopped")
}

// Started reports whether Start succeeded and Stop has not been called.
func (s *Service) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// InstanceID identifies this process in session-change notifications.
func (s *Service) InstanceID() string { return s.instanceID }

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	if !s.Started() {
		return ErrNotStarted
	}
	return s.store.Ping(ctx)
}

// Stats is a point-in-time summary for operators. Counts the store could
// not produce stay zero and the failure is listed in Errors.
type Stats struct {
	Started    bool     `json:"started"`
	Instance   string   `json:"instance"`
	Policy     string   `json:"policy"`
	Judges     int      `json:"judges"`
	Teams      int      `json:"teams"`
	Categories int      `json:"categories"`
	ScoreRows  int      `json:"score_rows"`
	Errors     []string `json:"errors,omitempty"`
}

// GetStats counts what the store holds.
func (s *Service) GetStats(ctx context.Context) Stats {
	stats := Stats{
		Started:  s.Started(),
		Instance: s.instanceID,
		Policy:   string(s.gate.Policy()),
	}
	if !stats.Started {
		return stats
	}
	count := func(what string, n int, err error) int {
		if err != nil {
			stats.Errors = append(stats.Errors, what+": "+err.Error())
			return 0
		}
		return n
	}

	judges, err := s.store.ListJudges(ctx)
	stats.Judges = count("judges", len(judges), err)
	if err == nil {
		metrics.UpdateJudgeCount(len(judges))
	}
	teams, err := s.store.ListTeams(ctx)
	stats.Teams = count("teams", len(teams), err)
	cats, err := s.store.ListCategories(ctx)
	stats.Categories = count("categories", len(cats), err)
	scores, err := s.store.ListScores(ctx)
	stats.ScoreRows = count("scores", len(scores), err)
	return stats
}

// span starts a span for op and returns a finisher that records err.
func (s *Service) span(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func (s *Service) ready() error {
	if !s.Started() {
		return ErrNotStarted
	}
	return nil
}

func since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

// outcome maps err to a metrics outcome label.
func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	if errors.Is(err, model.ErrValidation) {
		return metrics.OutcomeSkipped
	}
	return metrics.OutcomeError
}
