package models

import "time"

// LoginAttemptRecord is the per-email failed login counter stored in login_attempts
type LoginAttemptRecord struct {
	Email               string     `db:"email"`
	AttemptCount        int        `db:"attempt_count"`
	LastAttempt         time.Time  `db:"last_attempt"`
	IsLocked            bool       `db:"is_locked"`
	LastSuccessfulLogin *time.Time `db:"last_successful_login"`
}

// AttemptMutation computes the next state of a record inside a single locked read-modify-write.
// current is nil when no record exists yet. Returning an error aborts the write.
type AttemptMutation func(current *LoginAttemptRecord) (*LoginAttemptRecord, error)
