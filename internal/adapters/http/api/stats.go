package api

import (
	"context"
	"net/http"

	service "github.com/okian/judgeboard/internal/app"
)

// StatsProvider reports service counters.
type StatsProvider interface {
	GetStats(ctx context.Context) service.Stats
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a stats handler over provider.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats answers 503 with the same body while the service is stopped.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.provider.GetStats(r.Context())
	w.Header().Set("Cache-Control", "no-store")
	code := http.StatusOK
	if !stats.Started {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, stats)
}
