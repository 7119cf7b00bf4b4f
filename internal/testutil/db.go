// Package testutil provides a shared Postgres harness for integration
// tests. It prefers TEST_DATABASE_URL when set, otherwise it starts a
// throwaway container; tests are skipped when neither is available.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"storefront-payments/migrations"
)

// NewTestDB returns a migrated database handle for integration tests.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		container, err := startPostgres(ctx)
		if err != nil {
			t.Skipf("skipping Postgres integration tests: %v", err)
		}
		t.Cleanup(func() {
			_ = testcontainers.TerminateContainer(container)
		})

		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("container connection string: %v", err)
		}
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := db.PingContext(ctx); err != nil {
		t.Skipf("skipping Postgres integration tests: %v", err)
	}

	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	TruncateAll(t, ctx, db)

	return db
}

// startPostgres launches the throwaway container. testcontainers panics
// (rather than returning an error) when no Docker host can be detected at
// all; recover so NewTestDB can skip as documented instead of failing.
func startPostgres(ctx context.Context) (container *tcpostgres.PostgresContainer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("start postgres container: %v", r)
		}
	}()
	return tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("payments_test"),
		tcpostgres.WithUsername("payments"),
		tcpostgres.WithPassword("payments"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
}

func TruncateAll(t *testing.T, ctx context.Context, db *sql.DB) {
	t.Helper()
	if _, err := db.ExecContext(ctx, `TRUNCATE payment_transactions, orders CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}
