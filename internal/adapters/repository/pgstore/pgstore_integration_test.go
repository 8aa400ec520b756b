//go:build integration

package pgstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/okian/judgeboard/internal/adapters/repository"
	"github.com/okian/judgeboard/internal/adapters/repository/pgstore"
	"github.com/okian/judgeboard/internal/adapters/repository/storetest"
	"github.com/okian/judgeboard/pkg/logger"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("judgeboard"),
		postgres.WithUsername("judgeboard"),
		postgres.WithPassword("judgeboard"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	return dsn
}

func TestStore_Contract(t *testing.T) {
	if err := logger.Init(); err != nil {
		t.Fatalf("init logger: %v", err)
	}
	ctx := context.Background()
	dsn := startPostgres(t)

	setup, err := pgstore.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := setup.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// A second run is a no-op.
	if err := setup.Migrate(ctx); err != nil {
		t.Fatalf("migrate again: %v", err)
	}
	_ = setup.Close()

	storetest.Run(t, func(t *testing.T) repository.Store {
		s, err := pgstore.Open(ctx, dsn)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if _, err := s.DB().ExecContext(ctx, `TRUNCATE comments, scores, score_categories, teams, judges`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return s
	})
}
