//go:build integration

package repositories_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/agentstore/storefront-auth/internal/database"
)

// testDB is a migrated Postgres testcontainer
type testDB struct {
	container testcontainers.Container
	pool      *pgxpool.Pool
}

// setupTestDatabase starts Postgres, applies migrations and registers teardown
func setupTestDatabase(t *testing.T) *testDB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}
	t.Cleanup(pool.Close)

	// goose needs a database/sql handle
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()
	if err := database.MigrateDB(ctx, sqlDB); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return &testDB{container: container, pool: pool}
}

// truncate empties the given tables between tests
func (db *testDB) truncate(t *testing.T, tables ...string) {
	t.Helper()
	for _, table := range tables {
		if _, err := db.pool.Exec(context.Background(), fmt.Sprintf("TRUNCATE TABLE %s", table)); err != nil {
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}
}
