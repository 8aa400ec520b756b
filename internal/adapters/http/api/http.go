// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	service "github.com/okian/judgeboard/internal/app"
	"github.com/okian/judgeboard/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Each handler only sees the slice
// of the service it needs.
type Dependencies interface {
	AuthDependencies
	AdminDependencies
	ScoringDependencies
	LeaderboardDependencies
	StatsProvider
	Ping(ctx context.Context) error
}

// Option configures a Server.
type Option func(*Server)

// WithSignInLimit sets the per-client sign-in rate. Non-positive values
// disable limiting.
func WithSignInLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond <= 0 || burst <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = NewIPRateLimiter(rate.Limit(perSecond), burst)
	}
}

// WithAllowedOrigins sets the origins allowed by CORS.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithRoutes mounts extra routes (site, docs) on the router.
func WithRoutes(register func(chi.Router)) Option {
	return func(s *Server) {
		if register != nil {
			s.extra = append(s.extra, register)
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps    Dependencies
	limiter *IPRateLimiter
	origins []string
	extra   []func(chi.Router)

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	authHandler        *AuthHandler
	adminHandler       *AdminHandler
	scoringHandler     *ScoringHandler
	leaderboardHandler *LeaderboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	v := validator.New()
	s := &Server{
		deps:               deps,
		limiter:            NewIPRateLimiter(rate.Limit(1), 5),
		healthHandler:      NewHealthHandler(deps),
		statsHandler:       NewStatsHandler(deps),
		authHandler:        NewAuthHandler(deps, v),
		adminHandler:       NewAdminHandler(deps, v),
		scoringHandler:     NewScoringHandler(deps, v),
		leaderboardHandler: NewLeaderboardHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router with every route.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(CORSMiddleware(s.origins))

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Handle("/metrics", s.healthHandler.MetricsHandler())
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(s.deps))

		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(RateLimitMiddleware(s.limiter))
			}
			r.Post("/auth/admin", s.authHandler.HandleAdminSignIn)
			r.Post("/auth/judge", s.authHandler.HandleJudgeSignIn)
			r.Post("/auth/team", s.authHandler.HandleTeamSignIn)
		})
		r.Post("/auth/signout", s.authHandler.HandleSignOut)
		r.Get("/auth/me", s.authHandler.HandleMe)

		r.Get("/judges", s.adminHandler.HandleListJudges)
		r.Post("/judges", s.adminHandler.HandleCreateJudge)
		r.Delete("/judges/{id}", s.adminHandler.HandleDeleteJudge)
		r.Get("/teams", s.adminHandler.HandleListTeams)
		r.Post("/teams", s.adminHandler.HandleCreateTeam)
		r.Delete("/teams/{id}", s.adminHandler.HandleDeleteTeam)
		r.Get("/categories", s.adminHandler.HandleCategories)

		r.Get("/teams/{id}/submission", s.scoringHandler.HandleGetSubmission)
		r.Put("/teams/{id}/submission", s.scoringHandler.HandlePutSubmission)
		r.Get("/me/scores", s.scoringHandler.HandleMyScores)

		r.Get("/leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
		r.Get("/leaderboard.xlsx", s.leaderboardHandler.HandleExport("xlsx"))
		r.Get("/leaderboard.png", s.leaderboardHandler.HandleExport("png"))
	})

	for _, register := range s.extra {
		register(r)
	}
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeErr classifies err and writes it. Server faults are logged with the
// cause and answered with a generic message.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code, label := status(err)
	if code >= statusInternalError {
		logger.Get().Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.Int("status", code),
			logger.Error(err))
		if code == statusInternalError {
			err = nil
		}
	}
	writeError(w, code, label, err)
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, v *validator.Validate, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: field %s failed %q", ErrBadRequest, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

// isPartial reports whether err is a submission that only partly persisted.
func isPartial(err error) bool {
	return errors.Is(err, service.ErrPartialWrite)
}
