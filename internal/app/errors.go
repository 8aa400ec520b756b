package service

import (
	"errors"
	"fmt"

	"github.com/okian/judgeboard/internal/domain/model"
)

// Sentinel kinds for service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrNotConfigured  = errors.New("service dependency not configured")
	ErrUnknownFormat  = fmt.Errorf("%w: unknown export format", model.ErrValidation)
	ErrAmbiguousName  = fmt.Errorf("%w: name matches more than one record", model.ErrNotFound)
	ErrPartialWrite   = errors.New("some writes failed")
	ErrEmptyName      = fmt.Errorf("%w: name is required", model.ErrValidation)
	ErrEmptyTeamID    = fmt.Errorf("%w: team id is required", model.ErrValidation)
	ErrNameNotMatched = fmt.Errorf("%w: no record with that name", model.ErrNotFound)
)
