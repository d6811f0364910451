package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper deletes login attempt records older than the retention period
type Sweeper interface {
	Sweep(ctx context.Context, retention time.Duration) (int64, error)
}

// CleanupManager periodically sweeps stale login attempt records
type CleanupManager struct {
	sweeper   Sweeper
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(sweeper Sweeper, logger *slog.Logger, interval, retention time.Duration) *CleanupManager {
	return &CleanupManager{
		sweeper:   sweeper,
		logger:    logger,
		interval:  interval,
		retention: retention,
		stopCh:    make(chan struct{}),
	}
}

// Start runs the sweep immediately and then on every interval until ctx is
// cancelled or Stop is called. It blocks; run it on its own goroutine.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := cm.sweeper.Sweep(cleanupCtx, cm.retention)
	if err != nil {
		cm.logger.Error("failed to sweep login attempts", slog.Any("error", err))
		return
	}

	if rowsDeleted > 0 {
		cm.logger.Info("login attempt sweep completed", slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
