package lockout

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	failCount     int
	lockedUntil   *time.Time
	lastFailure   time.Time
	lastLoginTime time.Time
	lastLoginIP   string
}

// MemoryStore is a mutex-guarded in-process store used in tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*memoryRecord
}

func NewMemoryStore(usernames ...string) *MemoryStore {
	records := make(map[string]*memoryRecord, len(usernames))
	for _, username := range usernames {
		records[username] = &memoryRecord{}
	}
	return &MemoryStore{records: records}
}

func (s *MemoryStore) Status(ctx context.Context, username string) (int, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[username]
	if !ok {
		return 0, nil, ErrAccountNotFound
	}
	return rec.failCount, rec.lockedUntil, nil
}

func (s *MemoryStore) RecordFailure(ctx context.Context, username string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[username]
	if !ok {
		return 0, ErrAccountNotFound
	}
	rec.failCount++
	rec.lastFailure = at
	return rec.failCount, nil
}

func (s *MemoryStore) RecordSuccess(ctx context.Context, username string, ip string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[username]
	if !ok {
		return ErrAccountNotFound
	}
	rec.failCount = 0
	rec.lockedUntil = nil
	rec.lastLoginTime = at
	rec.lastLoginIP = ip
	return nil
}

func (s *MemoryStore) Lock(ctx context.Context, username string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[username]
	if !ok {
		return ErrAccountNotFound
	}
	rec.lockedUntil = &until
	return nil
}
