package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/okian/judgeboard/internal/domain/model"
)

// AdminDependencies is the judge and team management slice of the service.
type AdminDependencies interface {
	ListJudges(ctx context.Context) ([]model.Judge, error)
	CreateJudge(ctx context.Context, name string) (model.Judge, error)
	DeleteJudge(ctx context.Context, id string) error
	ListTeams(ctx context.Context) ([]model.Team, error)
	CreateTeam(ctx context.Context, name string) (model.Team, error)
	DeleteTeam(ctx context.Context, id string) error
	Categories(ctx context.Context) ([]model.Category, error)
}

// AdminHandler handles judge, team and category requests.
type AdminHandler struct {
	deps     AdminDependencies
	validate *validator.Validate
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies, v *validator.Validate) *AdminHandler {
	return &AdminHandler{deps: deps, validate: v}
}

// HandleListJudges handles GET /api/judges.
func (h *AdminHandler) HandleListJudges(w http.ResponseWriter, r *http.Request) {
	judges, err := h.deps.ListJudges(r.Context())
	if err != nil {
		writeErr(w, r, Wrap("api.list_judges", err))
		return
	}
	writeJSON(w, http.StatusOK, judges)
}

// HandleCreateJudge handles POST /api/judges.
func (h *AdminHandler) HandleCreateJudge(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_judge"
	var req nameRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeErr(w, r, Wrap(op, err))
		return
	}
	j, err := h.deps.CreateJudge(r.Context(), req.Name)
	if err != nil {
		writeErr(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

// HandleDeleteJudge handles DELETE /api/judges/{id}.
func (h *AdminHandler) HandleDeleteJudge(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteJudge(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErr(w, r, Wrap("api.delete_judge", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListTeams handles GET /api/teams.
func (h *AdminHandler) HandleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.deps.ListTeams(r.Context())
	if err != nil {
		writeErr(w, r, Wrap("api.list_teams", err))
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

// HandleCreateTeam handles POST /api/teams.
func (h *AdminHandler) HandleCreateTeam(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_team"
	var req nameRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeErr(w, r, Wrap(op, err))
		return
	}
	t, err := h.deps.CreateTeam(r.Context(), req.Name)
	if err != nil {
		writeErr(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// HandleDeleteTeam handles DELETE /api/teams/{id}.
func (h *AdminHandler) HandleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteTeam(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErr(w, r, Wrap("api.delete_team", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCategories handles GET /api/categories.
func (h *AdminHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.deps.Categories(r.Context())
	if err != nil {
		writeErr(w, r, Wrap("api.categories", err))
		return
	}
	writeJSON(w, http.StatusOK, cats)
}
