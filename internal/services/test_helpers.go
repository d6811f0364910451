package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/agentstore/storefront-auth/internal/models"
	pkglogger "github.com/agentstore/storefront-auth/pkg/logger"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestAuditLogger(logger *slog.Logger) *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(logger)
}

// testClock is a manually advanced time source
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockAttemptStore implements AttemptStore for testing
type MockAttemptStore struct {
	GetFunc         func(ctx context.Context, email string) (*models.LoginAttemptRecord, error)
	MutateFunc      func(ctx context.Context, email string, fn models.AttemptMutation) (*models.LoginAttemptRecord, error)
	MarkSuccessFunc func(ctx context.Context, email string, at time.Time) error
	UnlockFunc      func(ctx context.Context, email string) (bool, error)
	DeleteStaleFunc func(ctx context.Context, before, now time.Time) (int64, error)

	MutateCalls int
}

func (m *MockAttemptStore) Get(ctx context.Context, email string) (*models.LoginAttemptRecord, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, email)
	}
	return nil, nil
}

func (m *MockAttemptStore) Mutate(ctx context.Context, email string, fn models.AttemptMutation) (*models.LoginAttemptRecord, error) {
	m.MutateCalls++
	if m.MutateFunc != nil {
		return m.MutateFunc(ctx, email, fn)
	}
	return fn(nil)
}

func (m *MockAttemptStore) MarkSuccess(ctx context.Context, email string, at time.Time) error {
	if m.MarkSuccessFunc != nil {
		return m.MarkSuccessFunc(ctx, email, at)
	}
	return nil
}

func (m *MockAttemptStore) Unlock(ctx context.Context, email string) (bool, error) {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, email)
	}
	return false, nil
}

func (m *MockAttemptStore) DeleteStale(ctx context.Context, before, now time.Time) (int64, error) {
	if m.DeleteStaleFunc != nil {
		return m.DeleteStaleFunc(ctx, before, now)
	}
	return 0, nil
}

type lockoutNotice struct {
	Email   string
	Lockout time.Duration
}

// MockLockoutNotifier records lockout notices
type MockLockoutNotifier struct {
	Calls []lockoutNotice
	Err   error
}

func (m *MockLockoutNotifier) NotifyLockout(ctx context.Context, email string, lockout time.Duration) error {
	m.Calls = append(m.Calls, lockoutNotice{Email: email, Lockout: lockout})
	return m.Err
}

// MockAuthProvider implements AuthProvider for testing
type MockAuthProvider struct {
	SignInWithPasswordFunc    func(ctx context.Context, email, password string) (*models.Session, error)
	SignUpFunc                func(ctx context.Context, email, password string, metadata map[string]string) (*models.ProviderUser, error)
	SignOutFunc               func(ctx context.Context, accessToken string) error
	ResetPasswordForEmailFunc func(ctx context.Context, email, redirectTo string) error

	SignInCalls int
}

func (m *MockAuthProvider) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	m.SignInCalls++
	if m.SignInWithPasswordFunc != nil {
		return m.SignInWithPasswordFunc(ctx, email, password)
	}
	return nil, &models.ProviderError{StatusCode: 400, Code: "invalid_credentials", Message: "Invalid login credentials"}
}

func (m *MockAuthProvider) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*models.ProviderUser, error) {
	if m.SignUpFunc != nil {
		return m.SignUpFunc(ctx, email, password, metadata)
	}
	return &models.ProviderUser{ID: "user-1", Email: email}, nil
}

func (m *MockAuthProvider) SignOut(ctx context.Context, accessToken string) error {
	if m.SignOutFunc != nil {
		return m.SignOutFunc(ctx, accessToken)
	}
	return nil
}

func (m *MockAuthProvider) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	if m.ResetPasswordForEmailFunc != nil {
		return m.ResetPasswordForEmailFunc(ctx, email, redirectTo)
	}
	return nil
}

// memoryLocalStore is a map-backed LocalStore
type memoryLocalStore struct {
	values map[string]string
}

func newMemoryLocalStore(seed map[string]string) *memoryLocalStore {
	values := make(map[string]string, len(seed))
	for k, v := range seed {
		values[k] = v
	}
	return &memoryLocalStore{values: values}
}

func (s *memoryLocalStore) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *memoryLocalStore) Set(key, value string) {
	s.values[key] = value
}

func (s *memoryLocalStore) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *memoryLocalStore) Remove(key string) {
	delete(s.values, key)
}

// MockReviewRepository implements ReviewRepository for testing
type MockReviewRepository struct {
	CreateFunc    func(ctx context.Context, review *models.Review) (*models.Review, error)
	ListByAppFunc func(ctx context.Context, appID string, limit, offset int) ([]*models.Review, error)
}

func (m *MockReviewRepository) Create(ctx context.Context, review *models.Review) (*models.Review, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, review)
	}
	return review, nil
}

func (m *MockReviewRepository) ListByApp(ctx context.Context, appID string, limit, offset int) ([]*models.Review, error) {
	if m.ListByAppFunc != nil {
		return m.ListByAppFunc(ctx, appID, limit, offset)
	}
	return []*models.Review{}, nil
}
