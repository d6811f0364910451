package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/samber/oops"

	"github.com/agentstore/storefront-auth/internal/config"
	"github.com/agentstore/storefront-auth/internal/database"
	"github.com/agentstore/storefront-auth/internal/repositories"
	"github.com/agentstore/storefront-auth/internal/services"
	pkglogger "github.com/agentstore/storefront-auth/pkg/logger"
)

// Deps contains injectable dependencies for attemptctl.
// Nil fields use their default implementations.
type Deps struct {
	// OpenStore connects to the attempt store. The returned func releases it.
	// Default: Postgres from DB_* environment variables
	OpenStore func(ctx context.Context) (services.AttemptStore, func(), error)

	// Migrate applies schema migrations.
	// Default: database.MigrateConfig with DB_* environment variables
	Migrate func(ctx context.Context) error

	// LogOutput receives the JSON log stream. Default: os.Stderr
	LogOutput io.Writer
}

func (d Deps) withDefaults() Deps {
	if d.LogOutput == nil {
		d.LogOutput = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(d.LogOutput, nil))

	if d.OpenStore == nil {
		d.OpenStore = func(ctx context.Context) (services.AttemptStore, func(), error) {
			cfg, err := config.LoadDatabase()
			if err != nil {
				return nil, nil, oops.Code("CONFIG_INVALID").Wrap(err)
			}
			db, err := database.NewConnection(ctx, cfg, logger)
			if err != nil {
				return nil, nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
			}
			return repositories.NewLoginAttemptRepository(db.Pool), db.Close, nil
		}
	}
	if d.Migrate == nil {
		d.Migrate = func(ctx context.Context) error {
			cfg, err := config.LoadDatabase()
			if err != nil {
				return oops.Code("CONFIG_INVALID").Wrap(err)
			}
			return database.MigrateConfig(ctx, cfg)
		}
	}
	return d
}

// openTracker builds a tracker over the configured store
func (d Deps) openTracker(ctx context.Context) (*services.AttemptTracker, func(), error) {
	store, closeFn, err := d.OpenStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewJSONHandler(d.LogOutput, nil))
	tracker := services.NewAttemptTracker(store, services.NewLogLockoutNotifier(logger), logger, pkglogger.NewAuditLogger(logger))
	return tracker, closeFn, nil
}
