package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/okian/judgeboard/internal/adapters/export"
	"github.com/okian/judgeboard/internal/domain/model"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context) ([]model.LeaderboardEntry, error)
	ExportLeaderboard(ctx context.Context, format string, w io.Writer) error
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// HandleGetLeaderboard handles GET /api/leaderboard?limit=N. Without a
// limit every team is returned.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeErr(w, r, NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}
	entries, err := h.deps.Leaderboard(r.Context())
	if err != nil {
		writeErr(w, r, Wrap(op, err))
		return
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleExport returns a handler for GET /api/leaderboard.{format}. The
// file is rendered into memory first so a failure still yields a JSON error.
func (h *LeaderboardHandler) HandleExport(format string) http.HandlerFunc {
	contentType := export.ContentTypePNG
	if format == export.FormatXLSX {
		contentType = export.ContentTypeXLSX
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := h.deps.ExportLeaderboard(r.Context(), format, &buf); err != nil {
			writeErr(w, r, Wrap("api.export_leaderboard", err))
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="leaderboard.%s"`, format))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		_, _ = buf.WriteTo(w)
	}
}
