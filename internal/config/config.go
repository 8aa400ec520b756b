// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Title heads the public leaderboard page.
	Title string `koanf:"title"`

	// Store selects the data service: memory or postgres.
	Store       string `koanf:"store"`
	PostgresDSN string `koanf:"postgres_dsn"`

	// ScorePolicy is reject or clamp.
	ScorePolicy string `koanf:"score_policy"`

	// Categories maps category names to their maximum score.
	Categories map[string]int `koanf:"categories"`

	// TieBreak orders teams with equal totals; only "name" is supported.
	TieBreak string `koanf:"tie_break"`

	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`

	// IDP selects the admin identity provider: local or oauth2.
	IDP               string `koanf:"idp"`
	AdminEmail        string `koanf:"admin_email"`
	AdminPassword     string `koanf:"admin_password"`
	OAuthTokenURL     string `koanf:"oauth_token_url"`
	OAuthClientID     string `koanf:"oauth_client_id"`
	OAuthClientSecret string `koanf:"oauth_client_secret"`

	// NatsURL enables session-change notifications when set.
	NatsURL        string `koanf:"nats_url"`
	SessionSubject string `koanf:"session_subject"`

	// SignInRate is sign-in attempts per second per client; SignInBurst
	// allows short spikes.
	SignInRate  float64 `koanf:"signin_rate"`
	SignInBurst int     `koanf:"signin_burst"`

	AllowedOrigins []string `koanf:"allowed_origins"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:    "info",
		Addr:        ":9080",
		Title:       "Leaderboard",
		Store:       StoreMemory,
		ScorePolicy: "reject",
		Categories: map[string]int{
			"Innovation": 10,
			"Design":     10,
			"Impact":     10,
		},
		TieBreak:       "name",
		TokenTTL:       12 * time.Hour,
		IDP:            "local",
		SessionSubject: "judgeboard.session.changed",
		SignInRate:     1,
		SignInBurst:    5,
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var err error
	problem := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}
	if c.Addr == "" {
		problem("addr must not be empty")
	}
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.PostgresDSN == "" {
			problem("postgres_dsn is required for the postgres store")
		}
	default:
		problem("unknown store %q", c.Store)
	}
	if c.ScorePolicy != "reject" && c.ScorePolicy != "clamp" {
		problem("unknown score_policy %q", c.ScorePolicy)
	}
	if c.TieBreak != "name" {
		problem("unknown tie_break %q", c.TieBreak)
	}
	if len(c.Categories) == 0 {
		problem("at least one category is required")
	}
	for name, maxScore := range c.Categories {
		if strings.TrimSpace(name) == "" || maxScore < 0 {
			problem("invalid category %q: %d", name, maxScore)
		}
	}
	if len(c.JWTSecret) < 16 {
		problem("jwt_secret must be at least 16 bytes")
	}
	if c.TokenTTL <= 0 {
		problem("token_ttl must be positive")
	}
	switch c.IDP {
	case "local":
		if c.AdminEmail == "" || c.AdminPassword == "" {
			problem("admin_email and admin_password are required for the local idp")
		}
	case "oauth2":
		if c.OAuthTokenURL == "" || c.OAuthClientID == "" {
			problem("oauth_token_url and oauth_client_id are required for the oauth2 idp")
		}
	default:
		problem("unknown idp %q", c.IDP)
	}
	return err
}
