package repository

import (
	"time"

	"github.com/google/uuid"
)

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithClock sets the time source used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator sets the id generator for new rows.
func WithIDGenerator(newID func() string) Option {
	return func(s *MemoryStore) {
		if newID != nil {
			s.newID = newID
		}
	}
}

func defaultID() string { return uuid.NewString() }
