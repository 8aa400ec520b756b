// Package sessionstore keeps a client's signed-in identity in a local SQLite
// file so it survives restarts.
package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/okian/judgeboard/internal/domain/identity"
	"github.com/okian/judgeboard/internal/domain/model"
)

const schemaSQL = `
create table if not exists session (
    slot       integer primary key check (slot = 1),
    kind       text not null,
    subject    text not null,
    name       text not null,
    token      text not null,
    issued_at  timestamp not null,
    expires_at timestamp not null,
    saved_at   timestamp not null
)
`

const saveSQL = `
insert into session (slot, kind, subject, name, token, issued_at, expires_at, saved_at)
values (1, :kind, :subject, :name, :token, :issued_at, :expires_at, :saved_at)
on conflict (slot) do update set
    kind = excluded.kind,
    subject = excluded.subject,
    name = excluded.name,
    token = excluded.token,
    issued_at = excluded.issued_at,
    expires_at = excluded.expires_at,
    saved_at = excluded.saved_at
`

const loadSQL = `
select kind, subject, name, token, issued_at, expires_at
from session
where slot = 1
`

type row struct {
	Kind      string    `db:"kind"`
	Subject   string    `db:"subject"`
	Name      string    `db:"name"`
	Token     string    `db:"token"`
	IssuedAt  time.Time `db:"issued_at"`
	ExpiresAt time.Time `db:"expires_at"`
	SavedAt   time.Time `db:"saved_at"`
}

// Slot is an identity.Slot stored in a single-row SQLite table.
type Slot struct {
	db *sqlx.DB
}

var _ identity.Slot = (*Slot)(nil)

// Open opens (creating if needed) the SQLite file at path. Use ":memory:"
// for a process-local slot.
func Open(ctx context.Context, path string) (*Slot, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serialises writers.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create session table: %w", err)
	}
	return &Slot{db: db}, nil
}

// Load implements identity.Slot.
func (s *Slot) Load(ctx context.Context) (identity.Identity, error) {
	var r row
	if err := s.db.GetContext(ctx, &r, loadSQL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return identity.Identity{}, fmt.Errorf("session: %w", model.ErrNotFound)
		}
		return identity.Identity{}, fmt.Errorf("could not execute loadSQL: %w", err)
	}
	kind, err := identity.ParseKind(r.Kind)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("stored session: %w", err)
	}
	return identity.Identity{
		Kind:      kind,
		Subject:   r.Subject,
		Name:      r.Name,
		Token:     r.Token,
		IssuedAt:  r.IssuedAt.UTC(),
		ExpiresAt: r.ExpiresAt.UTC(),
	}, nil
}

// Save implements identity.Slot.
func (s *Slot) Save(ctx context.Context, id identity.Identity) error {
	query, args, err := s.db.BindNamed(saveSQL, row{
		Kind:      string(id.Kind),
		Subject:   id.Subject,
		Name:      id.Name,
		Token:     id.Token,
		IssuedAt:  id.IssuedAt.UTC(),
		ExpiresAt: id.ExpiresAt.UTC(),
		SavedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("could not bind saveSQL: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("could not execute saveSQL: %w", err)
	}
	return nil
}

// Clear implements identity.Slot.
func (s *Slot) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `delete from session`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Slot) Close() error {
	return s.db.Close()
}
