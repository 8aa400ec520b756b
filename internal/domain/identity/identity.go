// Package identity holds who is acting: the three roles, the per-request
// identity carried in context and the long-lived client session.
package identity

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/okian/judgeboard/internal/domain/model"
)

// Kind is the role of a signed-in subject.
type Kind string

// Roles.
const (
	KindAdmin Kind = "admin"
	KindJudge Kind = "judge"
	KindTeam  Kind = "team"
)

// ParseKind parses a role name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindAdmin, KindJudge, KindTeam:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", model.ErrValidation, s)
	}
}

// Identity is a resolved subject. Judges and teams carry their row id as
// Subject; admins carry the identity provider's subject.
type Identity struct {
	Kind      Kind      `json:"kind"`
	Subject   string    `json:"subject"`
	Name      string    `json:"name"`
	Token     string    `json:"token,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsZero reports whether id is the empty identity.
func (id Identity) IsZero() bool {
	return id.Kind == "" && id.Subject == ""
}

// Expired reports whether id has a deadline that has passed at now.
func (id Identity) Expired(now time.Time) bool {
	return !id.ExpiresAt.IsZero() && !now.Before(id.ExpiresAt)
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && !id.IsZero()
}

// Require returns the identity in ctx when its kind is one of kinds.
// No identity yields ErrUnauthorized; the wrong kind yields ErrForbidden.
func Require(ctx context.Context, kinds ...Kind) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return Identity{}, fmt.Errorf("%w: sign-in required", model.ErrUnauthorized)
	}
	if len(kinds) > 0 && !slices.Contains(kinds, id.Kind) {
		return Identity{}, fmt.Errorf("%w: %s may not do this", model.ErrForbidden, id.Kind)
	}
	return id, nil
}
