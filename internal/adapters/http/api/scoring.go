package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	service "github.com/okian/judgeboard/internal/app"
	"github.com/okian/judgeboard/internal/domain/submission"
)

// ScoringDependencies is the submission slice of the service.
type ScoringDependencies interface {
	SubmitScores(ctx context.Context, teamID string, entries []submission.Entry, comment string) (service.Submission, error)
	JudgeSubmission(ctx context.Context, teamID string) (service.Submission, error)
	MyScores(ctx context.Context) (service.TeamScores, error)
}

// submissionRequest mirrors the OpenAPI schema for PUT /api/teams/{id}/submission.
type submissionRequest struct {
	Scores  []submission.Entry `json:"scores" validate:"dive"`
	Comment string             `json:"comment" validate:"max=4000"`
}

// ScoringHandler handles judge submissions and team score views.
type ScoringHandler struct {
	deps     ScoringDependencies
	validate *validator.Validate
}

// NewScoringHandler creates a new scoring handler.
func NewScoringHandler(deps ScoringDependencies, v *validator.Validate) *ScoringHandler {
	return &ScoringHandler{deps: deps, validate: v}
}

// HandleGetSubmission handles GET /api/teams/{id}/submission.
func (h *ScoringHandler) HandleGetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.deps.JudgeSubmission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, Wrap("api.get_submission", err))
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// HandlePutSubmission handles PUT /api/teams/{id}/submission. A submission
// that only partly persisted is answered 207 with its write report; one where
// nothing landed maps through the error kinds like any other failure.
func (h *ScoringHandler) HandlePutSubmission(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_submission"
	var req submissionRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeErr(w, r, Wrap(op, err))
		return
	}
	sub, err := h.deps.SubmitScores(r.Context(), chi.URLParam(r, "id"), req.Scores, req.Comment)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, sub)
	case isPartial(err) && sub.Report != nil && sub.Report.Partial():
		writeJSON(w, http.StatusMultiStatus, sub)
	default:
		writeErr(w, r, Wrap(op, err))
	}
}

// HandleMyScores handles GET /api/me/scores.
func (h *ScoringHandler) HandleMyScores(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.MyScores(r.Context())
	if err != nil {
		writeErr(w, r, Wrap("api.my_scores", err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}
