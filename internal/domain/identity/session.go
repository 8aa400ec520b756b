package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/judgeboard/internal/domain/model"
)

// Slot is durable storage for at most one identity.
type Slot interface {
	// Load returns the stored identity or model.ErrNotFound when empty.
	Load(ctx context.Context) (Identity, error)
	Save(ctx context.Context, id Identity) error
	Clear(ctx context.Context) error
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithOnChange registers a callback run after every state change with the
// new identity (zero after sign-out or invalidation).
func WithOnChange(fn func(Identity)) SessionOption {
	return func(s *Session) {
		if fn != nil {
			s.onChange = append(s.onChange, fn)
		}
	}
}

// Session is the current identity of one client process. It is created
// once, loaded from its Slot at startup and updated on sign-in, sign-out
// and session-change notifications. Safe for concurrent use.
type Session struct {
	mu       sync.RWMutex
	slot     Slot
	current  Identity
	now      func() time.Time
	onChange []func(Identity)
}

// NewSession creates an empty session backed by slot.
func NewSession(slot Slot, opts ...SessionOption) *Session {
	s := &Session{slot: slot, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load rehydrates the session from its slot. An empty slot or an expired
// identity leaves the session signed out; an expired identity is also
// cleared from the slot.
func (s *Session) Load(ctx context.Context) error {
	id, err := s.slot.Load(ctx)
	switch {
	case errors.Is(err, model.ErrNotFound):
		s.set(Identity{})
		return nil
	case err != nil:
		return fmt.Errorf("load session: %w", err)
	}
	if id.Expired(s.now()) {
		s.set(Identity{})
		if err := s.slot.Clear(ctx); err != nil {
			return fmt.Errorf("clear expired session: %w", err)
		}
		return nil
	}
	s.set(id)
	return nil
}

// SignIn persists id and makes it current. The in-memory state only changes
// when the slot write succeeds.
func (s *Session) SignIn(ctx context.Context, id Identity) error {
	if id.IsZero() {
		return fmt.Errorf("%w: empty identity", model.ErrValidation)
	}
	if err := s.slot.Save(ctx, id); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.set(id)
	return nil
}

// SignOut clears the session. The in-memory identity is dropped even when
// the slot cannot be cleared.
func (s *Session) SignOut(ctx context.Context) error {
	s.set(Identity{})
	if err := s.slot.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Invalidate handles a session-change notification for subject. When the
// current identity belongs to subject it is signed out and true is
// returned. An empty subject invalidates whatever is current.
func (s *Session) Invalidate(ctx context.Context, subject string) (bool, error) {
	cur, ok := s.Current()
	if !ok || (subject != "" && cur.Subject != subject) {
		return false, nil
	}
	return true, s.SignOut(ctx)
}

// Current returns the signed-in identity, if any and not expired.
func (s *Session) Current() (Identity, bool) {
	s.mu.RLock()
	id := s.current
	s.mu.RUnlock()
	if id.IsZero() || id.Expired(s.now()) {
		return Identity{}, false
	}
	return id, true
}

// Context returns ctx carrying the current identity when there is one.
func (s *Session) Context(ctx context.Context) context.Context {
	if id, ok := s.Current(); ok {
		return WithIdentity(ctx, id)
	}
	return ctx
}

func (s *Session) set(id Identity) {
	s.mu.Lock()
	changed := s.current != id
	s.current = id
	hooks := s.onChange
	s.mu.Unlock()
	if !changed {
		return
	}
	for _, fn := range hooks {
		fn(id)
	}
}

// MemorySlot is a process-local Slot.
type MemorySlot struct {
	mu sync.Mutex
	id *Identity
}

// Load implements Slot.
func (m *MemorySlot) Load(context.Context) (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.id == nil {
		return Identity{}, model.ErrNotFound
	}
	return *m.id, nil
}

// Save implements Slot.
func (m *MemorySlot) Save(_ context.Context, id Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = &id
	return nil
}

// Clear implements Slot.
func (m *MemorySlot) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = nil
	return nil
}
