package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/agentstore/storefront-auth/internal/metrics"
	"github.com/agentstore/storefront-auth/internal/models"
	pkgauth "github.com/agentstore/storefront-auth/pkg/auth"
	pkglogger "github.com/agentstore/storefront-auth/pkg/logger"
)

// AttemptStore persists login attempt records. Mutate must run the mutation
// atomically with respect to other calls for the same email.
type AttemptStore interface {
	Get(ctx context.Context, email string) (*models.LoginAttemptRecord, error)
	Mutate(ctx context.Context, email string, fn models.AttemptMutation) (*models.LoginAttemptRecord, error)
	MarkSuccess(ctx context.Context, email string, at time.Time) error
	Unlock(ctx context.Context, email string) (bool, error)
	DeleteStale(ctx context.Context, before, now time.Time) (int64, error)
}

// LockoutNotifier is told when an email becomes locked
type LockoutNotifier interface {
	NotifyLockout(ctx context.Context, email string, lockout time.Duration) error
}

// AttemptStatus describes the lockout state of a single email
type AttemptStatus struct {
	Email     string
	Record    *models.LoginAttemptRecord
	Locked    bool
	Remaining time.Duration
}

// AttemptTracker enforces the per-email progressive lockout policy
type AttemptTracker struct {
	store       AttemptStore
	notifier    LockoutNotifier
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

// NewAttemptTracker creates a new AttemptTracker. notifier may be nil.
func NewAttemptTracker(store AttemptStore, notifier LockoutNotifier, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AttemptTracker {
	return &AttemptTracker{
		store:       store,
		notifier:    notifier,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// WithClock replaces the tracker's time source
func (t *AttemptTracker) WithClock(now func() time.Time) *AttemptTracker {
	t.now = now
	return t
}

// RecordFailedAttempt counts a failed sign-in for email and returns the new count.
// It returns a *models.LockoutError when the email is already locked (the count is
// left unchanged) or when this failure locks it.
func (t *AttemptTracker) RecordFailedAttempt(ctx context.Context, email string) (int, error) {
	email, err := normalizeTrackedEmail(email)
	if err != nil {
		return 0, err
	}

	now := t.now()
	rec, err := t.store.Mutate(ctx, email, func(current *models.LoginAttemptRecord) (*models.LoginAttemptRecord, error) {
		return nextAttempt(current, email, now)
	})
	if err != nil {
		return 0, err
	}

	if !rec.IsLocked {
		return rec.AttemptCount, nil
	}

	lockout := LockoutDuration(rec.AttemptCount)
	metrics.RecordLockout(strconv.Itoa(int(lockout / time.Minute)))
	t.logger.Warn("account locked",
		pkglogger.EmailAttr(email),
		slog.Int("attempt_count", rec.AttemptCount),
		slog.Duration("lockout", lockout))
	t.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventAccountLocked,
		Email:         email,
		FailureReason: fmt.Sprintf("%d failed attempts", rec.AttemptCount),
		Metadata:      map[string]string{"lockout_minutes": strconv.Itoa(int(lockout / time.Minute))},
	})

	if t.notifier != nil {
		if err := t.notifier.NotifyLockout(ctx, email, lockout); err != nil {
			pkglogger.LogError(t.logger, "failed to send lockout notice", err, pkglogger.EmailAttr(email))
		}
	}

	return rec.AttemptCount, &models.LockoutError{Remaining: lockout, Attempts: rec.AttemptCount}
}

// nextAttempt applies one failed attempt to current
func nextAttempt(current *models.LoginAttemptRecord, email string, now time.Time) (*models.LoginAttemptRecord, error) {
	if current == nil {
		return &models.LoginAttemptRecord{Email: email, AttemptCount: 1, LastAttempt: now}, nil
	}

	elapsed := now.Sub(current.LastAttempt)
	if current.IsLocked {
		if window := LockoutDuration(current.AttemptCount); elapsed < window {
			return nil, &models.LockoutError{Remaining: window - elapsed, Attempts: current.AttemptCount}
		}
	}

	newCount := current.AttemptCount + 1
	if elapsed > StaleWindow && newCount < MaxTierThreshold {
		newCount = 1
	}

	return &models.LoginAttemptRecord{
		Email:               email,
		AttemptCount:        newCount,
		LastAttempt:         now,
		IsLocked:            newCount >= LockThreshold,
		LastSuccessfulLogin: current.LastSuccessfulLogin,
	}, nil
}

// CheckLocked returns a *models.LockoutError if email is inside a lockout window.
// Store failures are logged and treated as unlocked.
func (t *AttemptTracker) CheckLocked(ctx context.Context, email string) error {
	email, err := normalizeTrackedEmail(email)
	if err != nil {
		return err
	}

	status, err := t.status(ctx, email)
	if err != nil {
		pkglogger.LogError(t.logger, "failed to check lockout state", err, pkglogger.EmailAttr(email))
		return nil
	}
	if status.Locked {
		return &models.LockoutError{Remaining: status.Remaining, Attempts: status.Record.AttemptCount}
	}
	return nil
}

// ResetOnSuccess clears the counter for email after a successful sign-in
func (t *AttemptTracker) ResetOnSuccess(ctx context.Context, email string) error {
	email, err := normalizeTrackedEmail(email)
	if err != nil {
		return err
	}
	return t.store.MarkSuccess(ctx, email, t.now())
}

// Status reports the stored record and lockout state for email
func (t *AttemptTracker) Status(ctx context.Context, email string) (*AttemptStatus, error) {
	email, err := normalizeTrackedEmail(email)
	if err != nil {
		return nil, err
	}
	return t.status(ctx, email)
}

func (t *AttemptTracker) status(ctx context.Context, email string) (*AttemptStatus, error) {
	rec, err := t.store.Get(ctx, email)
	if err != nil {
		return nil, err
	}

	status := &AttemptStatus{Email: email, Record: rec}
	if rec == nil || !rec.IsLocked {
		return status, nil
	}

	elapsed := t.now().Sub(rec.LastAttempt)
	if window := LockoutDuration(rec.AttemptCount); elapsed < window {
		status.Locked = true
		status.Remaining = window - elapsed
	}
	return status, nil
}

// Unlock clears the counter for email without recording a sign-in.
// Returns models.ErrNotFound when the email has no record.
func (t *AttemptTracker) Unlock(ctx context.Context, email string) error {
	email, err := normalizeTrackedEmail(email)
	if err != nil {
		return err
	}

	ok, err := t.store.Unlock(ctx, email)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrNotFound
	}

	t.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventUnlock,
		Email:     email,
		Success:   true,
	})
	return nil
}

// Sweep deletes records whose last attempt is older than retention
func (t *AttemptTracker) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	now := t.now()
	deleted, err := t.store.DeleteStale(ctx, now.Add(-retention), now)
	if err != nil {
		return 0, err
	}
	metrics.RecordSweep(deleted)
	return deleted, nil
}

func normalizeTrackedEmail(email string) (string, error) {
	clean, ok := pkgauth.CleanEmail(email)
	if !ok {
		return "", fmt.Errorf("%w: invalid email address", models.ErrInvalidInput)
	}
	return clean, nil
}
