// Package lockout tracks failed login attempts per account and enforces
// temporary lockout windows. Expiry is evaluated lazily at read time; there
// is no background sweep.
package lockout

import (
	"context"
	"errors"
	"time"
)

var ErrAccountNotFound = errors.New("account not found")

// Status is a point-in-time view of an account's lockout state.
type Status struct {
	Locked    bool
	Until     time.Time
	FailCount int
}

// Store persists the per-account counters. Implementations must serialize
// concurrent failure increments for the same account so no update is lost.
type Store interface {
	Status(ctx context.Context, username string) (failCount int, lockedUntil *time.Time, err error)
	// RecordFailure atomically increments the failure counter and returns
	// the new count.
	RecordFailure(ctx context.Context, username string, at time.Time) (int, error)
	RecordSuccess(ctx context.Context, username string, ip string, at time.Time) error
	Lock(ctx context.Context, username string, until time.Time) error
}

type Service struct {
	store           Store
	maxAttempts     int
	lockoutDuration time.Duration
}

func NewService(store Store, maxAttempts int, lockoutDuration time.Duration) *Service {
	return &Service{
		store:           store,
		maxAttempts:     maxAttempts,
		lockoutDuration: lockoutDuration,
	}
}

// Check reports whether the account is currently locked. Accounts whose
// lockout window has elapsed are treated as unlocked.
func (s *Service) Check(ctx context.Context, username string) (Status, error) {
	failCount, until, err := s.store.Status(ctx, username)
	if err != nil {
		return Status{}, err
	}
	status := Status{FailCount: failCount}
	if until != nil && time.Now().Before(*until) {
		status.Locked = true
		status.Until = *until
	}
	return status, nil
}

// RecordSuccess resets the failure counter and stamps the login time/ip.
func (s *Service) RecordSuccess(ctx context.Context, username string, ip string) error {
	return s.store.RecordSuccess(ctx, username, ip, time.Now())
}

// RecordFailure counts a failed attempt. When the counter reaches the
// configured maximum the account is locked for the lockout duration and
// locked=true is returned.
func (s *Service) RecordFailure(ctx context.Context, username string) (locked bool, err error) {
	now := time.Now()
	count, err := s.store.RecordFailure(ctx, username, now)
	if err != nil {
		return false, err
	}
	if count < s.maxAttempts {
		return false, nil
	}
	if err := s.store.Lock(ctx, username, now.Add(s.lockoutDuration)); err != nil {
		return false, err
	}
	return true, nil
}
