package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/agentstore/storefront-auth/internal/models"
)

// pgxPool is the subset of *pgxpool.Pool used by the repositories.
// pgxmock.PgxPoolIface satisfies it as well.
type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectAttemptColumns = `SELECT email, attempt_count, last_attempt, is_locked, last_successful_login FROM login_attempts`

// LoginAttemptRepository persists per-email failed login counters
type LoginAttemptRepository struct {
	pool pgxPool
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(pool pgxPool) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: pool}
}

// Get returns the record for email, or nil when none exists
func (r *LoginAttemptRepository) Get(ctx context.Context, email string) (*models.LoginAttemptRecord, error) {
	rec, err := scanAttempt(r.pool.QueryRow(ctx, selectAttemptColumns+` WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("LOGIN_ATTEMPT_GET_FAILED").With("operation", "get login attempt").Wrap(err)
	}
	return rec, nil
}

// Mutate runs fn against the current record while holding its row lock and writes
// the result back in the same transaction. An error from fn rolls back and is
// returned unchanged.
func (r *LoginAttemptRepository) Mutate(ctx context.Context, email string, fn models.AttemptMutation) (*models.LoginAttemptRecord, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, oops.Code("LOGIN_ATTEMPT_TX_FAILED").With("operation", "begin transaction").Wrap(err)
	}

	next, err := mutateInTx(ctx, tx, email, fn)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, oops.Code("LOGIN_ATTEMPT_TX_FAILED").With("operation", "commit transaction").Wrap(err)
	}
	return next, nil
}

func mutateInTx(ctx context.Context, tx pgx.Tx, email string, fn models.AttemptMutation) (*models.LoginAttemptRecord, error) {
	// The placeholder row serialises concurrent first failures for the same email.
	tag, err := tx.Exec(ctx,
		`INSERT INTO login_attempts (email, attempt_count, last_attempt, is_locked)
		 VALUES ($1, 0, NOW(), FALSE)
		 ON CONFLICT (email) DO NOTHING`,
		email)
	if err != nil {
		return nil, oops.Code("LOGIN_ATTEMPT_WRITE_FAILED").With("operation", "reserve login attempt").Wrap(err)
	}

	var current *models.LoginAttemptRecord
	if tag.RowsAffected() == 0 {
		current, err = scanAttempt(tx.QueryRow(ctx, selectAttemptColumns+` WHERE email = $1 FOR UPDATE`, email))
		if err != nil {
			return nil, oops.Code("LOGIN_ATTEMPT_GET_FAILED").With("operation", "lock login attempt").Wrap(err)
		}
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE login_attempts
		 SET attempt_count = $2, last_attempt = $3, is_locked = $4, last_successful_login = $5
		 WHERE email = $1`,
		email, next.AttemptCount, next.LastAttempt, next.IsLocked, next.LastSuccessfulLogin)
	if err != nil {
		return nil, oops.Code("LOGIN_ATTEMPT_WRITE_FAILED").With("operation", "update login attempt").Wrap(err)
	}
	return next, nil
}

// MarkSuccess clears the counter after a successful sign-in. Emails without a
// record are left alone.
func (r *LoginAttemptRepository) MarkSuccess(ctx context.Context, email string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE login_attempts
		 SET attempt_count = 0, is_locked = FALSE, last_successful_login = $2
		 WHERE email = $1`,
		email, at)
	if err != nil {
		return oops.Code("LOGIN_ATTEMPT_WRITE_FAILED").With("operation", "mark login success").Wrap(err)
	}
	return nil
}

// Unlock clears the counter without recording a successful login.
// Returns false when no record exists.
func (r *LoginAttemptRepository) Unlock(ctx context.Context, email string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE login_attempts SET attempt_count = 0, is_locked = FALSE WHERE email = $1`,
		email)
	if err != nil {
		return false, oops.Code("LOGIN_ATTEMPT_WRITE_FAILED").With("operation", "unlock").Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteStale removes records last touched before the cutoff. Records still
// serving a 24 hour lockout as of now are kept.
func (r *LoginAttemptRepository) DeleteStale(ctx context.Context, before, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM login_attempts
		 WHERE last_attempt < $1
		   AND NOT (is_locked AND attempt_count >= 10 AND last_attempt > $2)`,
		before, now.Add(-24*time.Hour))
	if err != nil {
		return 0, oops.Code("LOGIN_ATTEMPT_DELETE_FAILED").With("operation", "delete stale login attempts").Wrap(err)
	}
	return tag.RowsAffected(), nil
}

func scanAttempt(row pgx.Row) (*models.LoginAttemptRecord, error) {
	var rec models.LoginAttemptRecord
	err := row.Scan(&rec.Email, &rec.AttemptCount, &rec.LastAttempt, &rec.IsLocked, &rec.LastSuccessfulLogin)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
