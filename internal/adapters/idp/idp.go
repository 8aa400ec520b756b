// Package idp exchanges admin credentials with an identity provider.
package idp

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/judgeboard/internal/domain/model"
)

// Sentinel kinds for provider failures.
var (
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", model.ErrUnauthorized)
	ErrUnavailable        = fmt.Errorf("identity provider unavailable: %w", model.ErrUpstream)
	ErrUnknownProvider    = errors.New("unknown identity provider")
)

// Subject is who the provider vouched for.
type Subject struct {
	ID    string
	Name  string
	Email string
}

// Provider authenticates an admin by email and password.
type Provider interface {
	Authenticate(ctx context.Context, email, password string) (Subject, error)
}

// Config selects and configures a provider.
type Config struct {
	Kind          string
	AdminEmail    string
	AdminPassword string
	TokenURL      string
	ClientID      string
	ClientSecret  string
	Scopes        []string
}

// New builds the provider named by cfg.Kind: "local" or "oauth2".
func New(cfg Config) (Provider, error) {
	switch cfg.Kind {
	case "", "local":
		return NewLocal(cfg.AdminEmail, cfg.AdminPassword)
	case "oauth2":
		return NewOAuth2(cfg.TokenURL, cfg.ClientID, cfg.ClientSecret, cfg.Scopes...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Kind)
	}
}
