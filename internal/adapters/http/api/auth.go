package api

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/okian/judgeboard/internal/domain/identity"
	"github.com/okian/judgeboard/internal/domain/model"
)

// AuthDependencies is the sign-in slice of the service.
type AuthDependencies interface {
	Authenticator
	SignInAdmin(ctx context.Context, email, password string) (identity.Identity, error)
	SignInJudge(ctx context.Context, name string) (identity.Identity, error)
	SignInTeam(ctx context.Context, name string) (identity.Identity, error)
	SignOut(ctx context.Context) error
}

type adminSignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type nameRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// AuthHandler handles sign-in and session requests.
type AuthHandler struct {
	deps     AuthDependencies
	validate *validator.Validate
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(deps AuthDependencies, v *validator.Validate) *AuthHandler {
	return &AuthHandler{deps: deps, validate: v}
}

// HandleAdminSignIn handles POST /api/auth/admin.
func (h *AuthHandler) HandleAdminSignIn(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_sign_in"
	var req adminSignInRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeErr(w, r, Wrap(op, err))
		return
	}
	id, err := h.deps.SignInAdmin(r.Context(), req.Email, req.Password)
	if err != nil {
		writeErr(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, id)
}

// HandleJudgeSignIn handles POST /api/auth/judge.
func (h *AuthHandler) HandleJudgeSignIn(w http.ResponseWriter, r *http.Request) {
	h.nameSignIn(w, r, "api.judge_sign_in", h.deps.SignInJudge)
}

// HandleTeamSignIn handles POST /api/auth/team.
func (h *AuthHandler) HandleTeamSignIn(w http.ResponseWriter, r *http.Request) {
	h.nameSignIn(w, r, "api.team_sign_in", h.deps.SignInTeam)
}

func (h *AuthHandler) nameSignIn(w http.ResponseWriter, r *http.Request, op string,
	signIn func(context.Context, string) (identity.Identity, error),
) {
	var req nameRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeErr(w, r, Wrap(op, err))
		return
	}
	id, err := signIn(r.Context(), req.Name)
	if err != nil {
		writeErr(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, id)
}

// HandleSignOut handles POST /api/auth/signout.
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	const op = "api.sign_out"
	if err := h.deps.SignOut(r.Context()); err != nil {
		writeErr(w, r, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe handles GET /api/auth/me.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	const op = "api.me"
	id, ok := identity.FromContext(r.Context())
	if !ok {
		writeErr(w, r, NewKind(op, model.ErrUnauthorized))
		return
	}
	id.Token = ""
	writeJSON(w, http.StatusOK, id)
}
