package lockout

import (
	"context"
	"errors"
	"time"

	"github.com/nomcebo/bankauth/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps the counters on the user row itself. Failure increments
// run inside a transaction holding a row lock so concurrent attempts for
// the same account cannot under-count.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Status(ctx context.Context, username string) (int, *time.Time, error) {
	var user model.User
	err := s.db.WithContext(ctx).
		Select("failed_login_attempts", "locked_until").
		Where("username = ?", username).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil, ErrAccountNotFound
	}
	if err != nil {
		return 0, nil, err
	}
	return user.FailedLoginAttempts, user.LockedUntil, nil
}

func (s *GormStore) RecordFailure(ctx context.Context, username string, at time.Time) (int, error) {
	var count int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user model.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("username = ?", username).
			First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return err
		}
		count = user.FailedLoginAttempts + 1
		return tx.Model(&user).Updates(map[string]interface{}{
			"failed_login_attempts":  count,
			"last_failed_login_time": at,
		}).Error
	})
	return count, err
}

func (s *GormStore) RecordSuccess(ctx context.Context, username string, ip string, at time.Time) error {
	ret := s.db.WithContext(ctx).Model(&model.User{}).
		Where("username = ?", username).
		Updates(map[string]interface{}{
			"failed_login_attempts": 0,
			"locked_until":          nil,
			"last_login_time":       at,
			"last_login_ip":         ip,
		})
	if ret.Error != nil {
		return ret.Error
	}
	if ret.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *GormStore) Lock(ctx context.Context, username string, until time.Time) error {
	return s.db.WithContext(ctx).Model(&model.User{}).
		Where("username = ?", username).
		Update("locked_until", until).Error
}
