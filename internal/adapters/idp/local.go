package idp

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
)

// Local checks credentials against one configured admin account.
type Local struct {
	email    []byte
	password []byte
}

// NewLocal creates a provider for a single admin.
func NewLocal(email, password string) (*Local, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, errors.New("local identity provider needs admin email and password")
	}
	return &Local{email: []byte(email), password: []byte(password)}, nil
}

// Authenticate implements Provider.
func (l *Local) Authenticate(_ context.Context, email, password string) (Subject, error) {
	e := []byte(strings.ToLower(strings.TrimSpace(email)))
	emailOK := subtle.ConstantTimeCompare(e, l.email)
	passOK := subtle.ConstantTimeCompare([]byte(password), l.password)
	if emailOK&passOK != 1 {
		return Subject{}, ErrInvalidCredentials
	}
	addr := string(l.email)
	return Subject{ID: addr, Name: addr, Email: addr}, nil
}
