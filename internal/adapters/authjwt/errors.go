package authjwt

import (
	"fmt"

	"github.com/okian/judgeboard/internal/domain/model"
)

// Sentinel kinds for token errors. All of them are unauthorized.
var (
	ErrInvalidToken     = fmt.Errorf("invalid token: %w", model.ErrUnauthorized)
	ErrExpiredToken     = fmt.Errorf("token expired: %w", model.ErrUnauthorized)
	ErrInvalidSignature = fmt.Errorf("invalid token signature: %w", model.ErrUnauthorized)
	ErrRevokedToken     = fmt.Errorf("session ended: %w", model.ErrUnauthorized)
)
