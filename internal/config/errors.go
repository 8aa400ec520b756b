package config

import "errors"

var (
	// ErrInvalidConfig is wrapped by every problem Validate reports.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps file and environment provider failures.
	ErrLoadConfig = errors.New("load config failed")
)
