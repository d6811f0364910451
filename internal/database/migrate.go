package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/agentstore/storefront-auth/internal/config"
	"github.com/agentstore/storefront-auth/migrations"
)

// Migrate applies the embedded goose migrations to the database at dsn
func Migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	return MigrateDB(ctx, db)
}

// MigrateDB applies the embedded goose migrations over an open connection
func MigrateDB(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(log.New(log.Writer(), "migrate: ", 0))
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// MigrateConfig is Migrate for a loaded database config
func MigrateConfig(ctx context.Context, cfg *config.DatabaseConfig) error {
	return Migrate(ctx, cfg.DSN())
}
