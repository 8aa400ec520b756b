// Package site serves the public HTML leaderboard.
package site

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/pkg/logger"
)

// Error constants
var (
	ErrRender = errors.New("leaderboard page render failed")
)

const refreshSeconds = 30

//go:embed templates/leaderboard.html
var templatesFS embed.FS

var page = template.Must(template.ParseFS(templatesFS, "templates/leaderboard.html"))

// Leaderboard supplies the ranked entries.
type Leaderboard interface {
	Leaderboard(ctx context.Context) ([]model.LeaderboardEntry, error)
}

// Register attaches the leaderboard page at / to r.
func Register(_ context.Context, r chi.Router, lb Leaderboard, title string) {
	if r == nil {
		panic("router is nil")
	}
	r.Get("/", NewRootHandler(lb, title).HandleRoot)
}

// RootHandler handles root path requests
type RootHandler struct {
	lb    Leaderboard
	title string
}

// NewRootHandler creates a new root handler
func NewRootHandler(lb Leaderboard, title string) *RootHandler {
	if title == "" {
		title = "Leaderboard"
	}
	return &RootHandler{lb: lb, title: title}
}

type pageData struct {
	Title   string
	Refresh int
	Entries []model.LeaderboardEntry
}

// HandleRoot handles GET / and renders the current standings.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	entries, err := h.lb.Leaderboard(r.Context())
	if err != nil {
		logger.Get().Error(r.Context(), "leaderboard unavailable for page", logger.Error(err))
		http.Error(w, "leaderboard temporarily unavailable", http.StatusServiceUnavailable)
		return
	}
	var buf bytes.Buffer
	if err := page.Execute(&buf, pageData{Title: h.title, Refresh: refreshSeconds, Entries: entries}); err != nil {
		logger.Get().Error(r.Context(), "render leaderboard page", logger.Error(errors.Join(ErrRender, err)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
