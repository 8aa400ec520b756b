// Package authjwt issues and verifies signed access tokens and tracks
// per-subject session revocations.
package authjwt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/okian/judgeboard/internal/domain/identity"
)

const issuer = "judgeboard"

// claims is the token payload. Gen is the subject's session generation at
// issue time; a later revocation bumps the generation.
type claims struct {
	jwt.RegisteredClaims
	Kind string `json:"kind"`
	Name string `json:"name"`
	Gen  uint64 `json:"gen"`
}

// Option applies a configuration option to the Issuer.
type Option func(*Issuer)

// WithTTL sets how long issued tokens stay valid.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// Issuer signs tokens with HS256 and verifies them. Safe for concurrent use.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu   sync.RWMutex
	gens map[string]uint64
}

// NewIssuer creates an Issuer. The secret must not be empty.
func NewIssuer(secret string, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	i := &Issuer{
		secret: []byte(secret),
		ttl:    12 * time.Hour,
		now:    time.Now,
		gens:   make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue signs a token for id and returns id with Token, IssuedAt and
// ExpiresAt filled in.
func (i *Issuer) Issue(id identity.Identity) (identity.Identity, error) {
	now := i.now().UTC().Truncate(time.Second)
	exp := now.Add(i.ttl)
	c := &claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   id.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Kind: string(id.Kind),
		Name: id.Name,
		Gen:  i.generation(id.Subject),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("failed to sign token: %w", err)
	}
	id.Token = signed
	id.IssuedAt = now
	id.ExpiresAt = exp
	return id, nil
}

// Verify parses token and returns the identity it carries. Expired, forged
// and revoked tokens are refused.
func (i *Issuer) Verify(token string) (identity.Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return i.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(i.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return identity.Identity{}, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return identity.Identity{}, ErrInvalidSignature
		default:
			return identity.Identity{}, ErrInvalidToken
		}
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return identity.Identity{}, ErrInvalidToken
	}
	kind, err := identity.ParseKind(c.Kind)
	if err != nil || c.Subject == "" {
		return identity.Identity{}, ErrInvalidToken
	}
	if c.Gen < i.generation(c.Subject) {
		return identity.Identity{}, ErrRevokedToken
	}

	id := identity.Identity{Kind: kind, Subject: c.Subject, Name: c.Name, Token: token}
	if c.IssuedAt != nil {
		id.IssuedAt = c.IssuedAt.Time.UTC()
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time.UTC()
	}
	return id, nil
}

// Revoke ends every session of subject issued so far. Tokens issued after
// the call are unaffected.
func (i *Issuer) Revoke(subject string) {
	i.mu.Lock()
	i.gens[subject]++
	i.mu.Unlock()
}

func (i *Issuer) generation(subject string) uint64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.gens[subject]
}
