package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/agentstore/storefront-auth/internal/models"
)

// MemoryLoginAttemptStore keeps login attempt records in process memory.
// It backs unit tests of the tracker, the CLI and the assembled app.
type MemoryLoginAttemptStore struct {
	mu      sync.Mutex
	records map[string]models.LoginAttemptRecord
}

func NewMemoryLoginAttemptStore() *MemoryLoginAttemptStore {
	return &MemoryLoginAttemptStore{
		records: make(map[string]models.LoginAttemptRecord),
	}
}

func (s *MemoryLoginAttemptStore) Get(_ context.Context, email string) (*models.LoginAttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[email]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryLoginAttemptStore) Mutate(_ context.Context, email string, fn models.AttemptMutation) (*models.LoginAttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current *models.LoginAttemptRecord
	if rec, ok := s.records[email]; ok {
		current = &rec
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}

	stored := *next
	stored.Email = email
	s.records[email] = stored
	return &stored, nil
}

func (s *MemoryLoginAttemptStore) MarkSuccess(_ context.Context, email string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[email]
	if !ok {
		return nil
	}
	rec.AttemptCount = 0
	rec.IsLocked = false
	rec.LastSuccessfulLogin = &at
	s.records[email] = rec
	return nil
}

func (s *MemoryLoginAttemptStore) Unlock(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[email]
	if !ok {
		return false, nil
	}
	rec.AttemptCount = 0
	rec.IsLocked = false
	s.records[email] = rec
	return true, nil
}

func (s *MemoryLoginAttemptStore) DeleteStale(_ context.Context, before, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	guard := now.Add(-24 * time.Hour)
	var deleted int64
	for email, rec := range s.records {
		if !rec.LastAttempt.Before(before) {
			continue
		}
		if rec.IsLocked && rec.AttemptCount >= 10 && rec.LastAttempt.After(guard) {
			continue
		}
		delete(s.records, email)
		deleted++
	}
	return deleted, nil
}
