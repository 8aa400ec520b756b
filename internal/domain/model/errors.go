package model

import "errors"

// Error kinds shared by every layer. Adapters wrap their failures onto these
// with %w; the HTTP layer maps them to status codes with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrUpstream     = errors.New("upstream failure")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)
