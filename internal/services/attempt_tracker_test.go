package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstore/storefront-auth/internal/models"
	"github.com/agentstore/storefront-auth/internal/repositories"
)

func newTestTracker(store AttemptStore, notifier LockoutNotifier, clock *testClock) *AttemptTracker {
	logger := newTestLogger()
	return NewAttemptTracker(store, notifier, logger, newTestAuditLogger(logger)).WithClock(clock.Now)
}

func seedAttempt(t *testing.T, store AttemptStore, rec models.LoginAttemptRecord) {
	t.Helper()
	_, err := store.Mutate(context.Background(), rec.Email, func(*models.LoginAttemptRecord) (*models.LoginAttemptRecord, error) {
		return &rec, nil
	})
	require.NoError(t, err)
}

func requireLockout(t *testing.T, err error) *models.LockoutError {
	t.Helper()
	require.Error(t, err)
	var lockErr *models.LockoutError
	require.True(t, errors.As(err, &lockErr), "expected *models.LockoutError, got %v", err)
	assert.ErrorIs(t, err, models.ErrAccountLocked)
	return lockErr
}

func TestLockoutDuration(t *testing.T) {
	tests := []struct {
		count int
		want  time.Duration
	}{
		{0, 0},
		{2, 0},
		{3, 5 * time.Minute},
		{4, 5 * time.Minute},
		{5, 15 * time.Minute},
		{7, 15 * time.Minute},
		{8, 60 * time.Minute},
		{9, 60 * time.Minute},
		{10, 24 * time.Hour},
		{42, 24 * time.Hour},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LockoutDuration(tt.count), "count %d", tt.count)
	}
}

func TestAttemptsRemaining(t *testing.T) {
	assert.Equal(t, 2, AttemptsRemaining(1))
	assert.Equal(t, 1, AttemptsRemaining(2))
	assert.Equal(t, 0, AttemptsRemaining(3))
	assert.Equal(t, 0, AttemptsRemaining(11))
}

func TestAttemptTracker_ProgressiveLockoutScenario(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := repositories.NewMemoryLoginAttemptStore()
	tracker := newTestTracker(store, nil, clock)
	email := "fresh@example.com"

	count, err := tracker.RecordFailedAttempt(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	clock.Advance(20 * time.Second)
	count, err = tracker.RecordFailedAttempt(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	clock.Advance(20 * time.Second)
	count, err = tracker.RecordFailedAttempt(ctx, email)
	lockErr := requireLockout(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 5*time.Minute, lockErr.Remaining)
	assert.Equal(t, 5, lockErr.RemainingMinutes())

	// Still locked: the counter must not move.
	clock.Advance(2 * time.Minute)
	_, err = tracker.RecordFailedAttempt(ctx, email)
	lockErr = requireLockout(t, err)
	assert.Equal(t, 3, lockErr.RemainingMinutes())

	rec, err := store.Get(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.AttemptCount)

	// Window over: attempt 4 is recorded and locks again for the same tier.
	clock.Advance(3 * time.Minute)
	count, err = tracker.RecordFailedAttempt(ctx, email)
	lockErr = requireLockout(t, err)
	assert.Equal(t, 4, count)
	assert.Equal(t, 5*time.Minute, lockErr.Remaining)

	rec, err = store.Get(ctx, email)
	require.NoError(t, err)
	assert.True(t, rec.IsLocked)
	assert.Equal(t, 4, rec.AttemptCount)
}

func TestAttemptTracker_ResetOnSuccess(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := repositories.NewMemoryLoginAttemptStore()
	tracker := newTestTracker(store, nil, clock)
	email := "user@example.com"

	for i := 0; i < 2; i++ {
		_, err := tracker.RecordFailedAttempt(ctx, email)
		require.NoError(t, err)
	}

	clock.Advance(time.Minute)
	require.NoError(t, tracker.ResetOnSuccess(ctx, email))

	rec, err := store.Get(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.AttemptCount)
	assert.False(t, rec.IsLocked)
	require.NotNil(t, rec.LastSuccessfulLogin)
	assert.Equal(t, clock.Now(), *rec.LastSuccessfulLogin)

	count, err := tracker.RecordFailedAttempt(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	rec, err = store.Get(ctx, email)
	require.NoError(t, err)
	assert.NotNil(t, rec.LastSuccessfulLogin, "failure must keep the last successful login")
}

func TestAttemptTracker_StaleWindowForgiveness(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()

	tests := []struct {
		name       string
		seed       models.LoginAttemptRecord
		wantCount  int
		wantLocked bool
	}{
		{
			name:      "warning state after 90 minutes",
			seed:      models.LoginAttemptRecord{AttemptCount: 2, LastAttempt: clock.Now().Add(-90 * time.Minute)},
			wantCount: 1,
		},
		{
			name:      "exactly the stale window is not forgiven",
			seed:      models.LoginAttemptRecord{AttemptCount: 1, LastAttempt: clock.Now().Add(-StaleWindow)},
			wantCount: 2,
		},
		{
			name:      "expired lockout past the stale window",
			seed:      models.LoginAttemptRecord{AttemptCount: 3, IsLocked: true, LastAttempt: clock.Now().Add(-61 * time.Minute)},
			wantCount: 1,
		},
		{
			name:       "no forgiveness once the top tier is reached",
			seed:       models.LoginAttemptRecord{AttemptCount: 9, IsLocked: true, LastAttempt: clock.Now().Add(-61 * time.Minute)},
			wantCount:  10,
			wantLocked: true,
		},
		{
			name:       "top tier keeps counting after its window",
			seed:       models.LoginAttemptRecord{AttemptCount: 10, IsLocked: true, LastAttempt: clock.Now().Add(-25 * time.Hour)},
			wantCount:  11,
			wantLocked: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repositories.NewMemoryLoginAttemptStore()
			tracker := newTestTracker(store, nil, clock)
			tt.seed.Email = "stale@example.com"
			seedAttempt(t, store, tt.seed)

			count, err := tracker.RecordFailedAttempt(ctx, "stale@example.com")
			assert.Equal(t, tt.wantCount, count)
			if tt.wantLocked {
				lockErr := requireLockout(t, err)
				assert.Equal(t, LockoutDuration(tt.wantCount), lockErr.Remaining)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAttemptTracker_NormalizesEmail(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryLoginAttemptStore()
	tracker := newTestTracker(store, nil, newTestClock())

	_, err := tracker.RecordFailedAttempt(ctx, "  Mixed@Example.COM ")
	require.NoError(t, err)
	count, err := tracker.RecordFailedAttempt(ctx, "mixed@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAttemptTracker_InvalidEmail(t *testing.T) {
	ctx := context.Background()
	store := &MockAttemptStore{}
	tracker := newTestTracker(store, nil, newTestClock())

	for _, email := range []string{"", "user@example.com<script>", "a..b@example.com"} {
		_, err := tracker.RecordFailedAttempt(ctx, email)
		assert.ErrorIs(t, err, models.ErrInvalidInput, "email %q", email)
		assert.ErrorIs(t, tracker.CheckLocked(ctx, email), models.ErrInvalidInput)
		assert.ErrorIs(t, tracker.ResetOnSuccess(ctx, email), models.ErrInvalidInput)
	}
	assert.Zero(t, store.MutateCalls, "invalid email must not reach the store")
}

func TestAttemptTracker_StoreErrorPropagates(t *testing.T) {
	storeErr := errors.New("connection refused")
	store := &MockAttemptStore{
		MutateFunc: func(ctx context.Context, email string, fn models.AttemptMutation) (*models.LoginAttemptRecord, error) {
			return nil, storeErr
		},
	}
	tracker := newTestTracker(store, nil, newTestClock())

	_, err := tracker.RecordFailedAttempt(context.Background(), "user@example.com")
	assert.ErrorIs(t, err, storeErr)
}

func TestAttemptTracker_CheckLocked(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := repositories.NewMemoryLoginAttemptStore()
	tracker := newTestTracker(store, nil, clock)

	assert.NoError(t, tracker.CheckLocked(ctx, "nobody@example.com"))

	seedAttempt(t, store, models.LoginAttemptRecord{
		Email: "locked@example.com", AttemptCount: 5, IsLocked: true, LastAttempt: clock.Now().Add(-10 * time.Minute),
	})
	lockErr := requireLockout(t, tracker.CheckLocked(ctx, "locked@example.com"))
	assert.Equal(t, 5*time.Minute, lockErr.Remaining)

	clock.Advance(5 * time.Minute)
	assert.NoError(t, tracker.CheckLocked(ctx, "locked@example.com"), "expired window is not locked")

	rec, err := store.Get(ctx, "locked@example.com")
	require.NoError(t, err)
	assert.Equal(t, 5, rec.AttemptCount, "CheckLocked must not write")
}

func TestAttemptTracker_CheckLocked_FailsOpenOnStoreError(t *testing.T) {
	store := &MockAttemptStore{
		GetFunc: func(ctx context.Context, email string) (*models.LoginAttemptRecord, error) {
			return nil, errors.New("timeout")
		},
	}
	tracker := newTestTracker(store, nil, newTestClock())

	assert.NoError(t, tracker.CheckLocked(context.Background(), "user@example.com"))
}

func TestAttemptTracker_NotifiesOnLock(t *testing.T) {
	ctx := context.Background()
	notifier := &MockLockoutNotifier{}
	tracker := newTestTracker(repositories.NewMemoryLoginAttemptStore(), notifier, newTestClock())

	for i := 0; i < 2; i++ {
		_, err := tracker.RecordFailedAttempt(ctx, "user@example.com")
		require.NoError(t, err)
	}
	assert.Empty(t, notifier.Calls)

	_, err := tracker.RecordFailedAttempt(ctx, "user@example.com")
	requireLockout(t, err)
	require.Len(t, notifier.Calls, 1)
	assert.Equal(t, "user@example.com", notifier.Calls[0].Email)
	assert.Equal(t, 5*time.Minute, notifier.Calls[0].Lockout)

	// Rejected while locked: no second notice.
	_, err = tracker.RecordFailedAttempt(ctx, "user@example.com")
	requireLockout(t, err)
	assert.Len(t, notifier.Calls, 1)
}

func TestAttemptTracker_NotifierErrorDoesNotMaskLockout(t *testing.T) {
	notifier := &MockLockoutNotifier{Err: errors.New("ses throttled")}
	store := repositories.NewMemoryLoginAttemptStore()
	clock := newTestClock()
	tracker := newTestTracker(store, notifier, clock)
	seedAttempt(t, store, models.LoginAttemptRecord{Email: "user@example.com", AttemptCount: 2, LastAttempt: clock.Now()})

	count, err := tracker.RecordFailedAttempt(context.Background(), "user@example.com")
	assert.Equal(t, 3, count)
	requireLockout(t, err)
}

func TestAttemptTracker_StatusAndUnlock(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := repositories.NewMemoryLoginAttemptStore()
	tracker := newTestTracker(store, nil, clock)

	status, err := tracker.Status(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Nil(t, status.Record)
	assert.False(t, status.Locked)

	assert.ErrorIs(t, tracker.Unlock(ctx, "user@example.com"), models.ErrNotFound)

	seedAttempt(t, store, models.LoginAttemptRecord{
		Email: "user@example.com", AttemptCount: 8, IsLocked: true, LastAttempt: clock.Now().Add(-15 * time.Minute),
	})

	status, err = tracker.Status(ctx, "User@Example.com")
	require.NoError(t, err)
	assert.True(t, status.Locked)
	assert.Equal(t, 45*time.Minute, status.Remaining)

	require.NoError(t, tracker.Unlock(ctx, "user@example.com"))
	assert.NoError(t, tracker.CheckLocked(ctx, "user@example.com"))

	count, err := tracker.RecordFailedAttempt(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAttemptTracker_Sweep(t *testing.T) {
	clock := newTestClock()
	var gotBefore, gotNow time.Time
	store := &MockAttemptStore{
		DeleteStaleFunc: func(ctx context.Context, before, now time.Time) (int64, error) {
			gotBefore, gotNow = before, now
			return 3, nil
		},
	}
	tracker := newTestTracker(store, nil, clock)

	deleted, err := tracker.Sweep(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.Equal(t, clock.Now().Add(-30*24*time.Hour), gotBefore)
	assert.Equal(t, clock.Now(), gotNow)
}
