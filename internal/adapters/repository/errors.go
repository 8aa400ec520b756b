package repository

import (
	"fmt"

	"github.com/okian/judgeboard/internal/domain/model"
)

// Sentinel kinds for store errors. They wrap the shared model kinds so
// callers may test either.
var (
	ErrNotFound  = fmt.Errorf("record %w", model.ErrNotFound)
	ErrConflict  = fmt.Errorf("record %w", model.ErrConflict)
	ErrEmptyName = fmt.Errorf("%w: name is empty", model.ErrValidation)
	ErrClosed    = fmt.Errorf("%w: store closed", model.ErrUpstream)
)
