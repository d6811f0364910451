package services

import "time"

const (
	// LockThreshold is the failed attempt count at which an email becomes locked.
	LockThreshold = 3
	// MaxTierThreshold is the count at which the 24 hour tier applies and
	// stale-window forgiveness stops.
	MaxTierThreshold = 10
	// StaleWindow is how long an email must go without a failed attempt before
	// its counter starts over.
	StaleWindow = 60 * time.Minute
)

// LockoutDuration maps a cumulative failed attempt count to its lockout tier.
func LockoutDuration(attemptCount int) time.Duration {
	switch {
	case attemptCount < LockThreshold:
		return 0
	case attemptCount <= 4:
		return 5 * time.Minute
	case attemptCount <= 7:
		return 15 * time.Minute
	case attemptCount < MaxTierThreshold:
		return 60 * time.Minute
	default:
		return 24 * time.Hour
	}
}

// AttemptsRemaining is the number of failures left before the first lockout.
func AttemptsRemaining(attemptCount int) int {
	if attemptCount >= LockThreshold {
		return 0
	}
	return LockThreshold - attemptCount
}
