// Package notify carries session-change notifications over NATS.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/okian/judgeboard/pkg/logger"
)

// DefaultSubject is where session changes are announced.
const DefaultSubject = "judgeboard.session.changed"

const flushTimeout = 5 * time.Second

// Reasons a session changed.
const (
	ReasonSignOut        = "sign_out"
	ReasonPasswordChange = "password_change"
	ReasonDisabled       = "disabled"
)

// ErrEmptySubject is returned for a notification naming no subject.
var ErrEmptySubject = errors.New("notification has no subject")

// Notification announces that every session of Subject issued so far has
// ended. Origin names the publishing instance so it can skip its own echo.
type Notification struct {
	Subject string    `json:"subject"`
	Reason  string    `json:"reason,omitempty"`
	Origin  string    `json:"origin,omitempty"`
	At      time.Time `json:"at"`
}

// Decode parses a notification payload.
func Decode(data []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	n.Subject = strings.TrimSpace(n.Subject)
	if n.Subject == "" {
		return Notification{}, ErrEmptySubject
	}
	return n, nil
}

// Handler reacts to one notification.
type Handler func(ctx context.Context, n Notification) error

// Option applies a configuration option to the Bus.
type Option func(*Bus)

// WithSubject overrides DefaultSubject.
func WithSubject(subject string) Option {
	return func(b *Bus) {
		if subject != "" {
			b.subject = subject
		}
	}
}

// WithConnName sets the client name reported to the server.
func WithConnName(name string) Option {
	return func(b *Bus) {
		if name != "" {
			b.name = name
		}
	}
}

// Bus publishes and receives notifications on one NATS subject.
type Bus struct {
	nc      *nats.Conn
	subject string
	name    string
	log     logger.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

// Connect dials url.
func Connect(url string, opts ...Option) (*Bus, error) {
	b := &Bus{subject: DefaultSubject, name: "judgeboard", log: logger.Named("notify")}
	for _, opt := range opts {
		opt(b)
	}
	nc, err := nats.Connect(url,
		nats.Name(b.name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.log.Warn(context.Background(), "nats disconnected", logger.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			b.log.Info(context.Background(), "nats reconnected", logger.String("url", c.ConnectedUrlRedacted()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	b.nc = nc
	return b, nil
}

// Subject returns the subject the bus uses.
func (b *Bus) Subject() string { return b.subject }

// Subscribe runs h for every notification until Close. Handler errors and
// malformed payloads are logged and dropped; there is no redelivery.
func (b *Bus) Subscribe(ctx context.Context, h Handler) error {
	sub, err := b.nc.Subscribe(b.subject, func(m *nats.Msg) {
		n, err := Decode(m.Data)
		if err != nil {
			b.log.Warn(ctx, "dropping malformed notification", logger.Error(err))
			return
		}
		if err := h(ctx, n); err != nil {
			b.log.Error(ctx, "notification handler failed",
				logger.String("subject", n.Subject),
				logger.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.subject, err)
	}
	if err := b.flush(ctx); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("register %s: %w", b.subject, err)
	}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return nil
}

// Publish announces n and waits for the server to acknowledge the flush.
func (b *Bus) Publish(ctx context.Context, n Notification) error {
	if strings.TrimSpace(n.Subject) == "" {
		return ErrEmptySubject
	}
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := b.nc.Publish(b.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", b.subject, err)
	}
	if err := b.flush(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", b.subject, err)
	}
	return nil
}

// flush waits for the server to process everything sent so far, bounded by
// ctx's deadline or flushTimeout.
func (b *Bus) flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); ok {
		return b.nc.FlushWithContext(ctx)
	}
	return b.nc.FlushTimeout(flushTimeout)
}

// Close drains subscriptions and closes the connection.
func (b *Bus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()
	for _, s := range subs {
		_ = s.Unsubscribe()
	}
	if err := b.nc.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("drain nats: %w", err)
	}
	return nil
}
