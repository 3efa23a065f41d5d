package users

import (
	"context"

	"github.com/nomcebo/bankauth/model"
	"gorm.io/gorm"
)

type UserRepository interface {
	First(ctx context.Context, conds ...interface{}) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	// Delete permanently removes the row, freeing its unique indexes. A
	// soft delete would keep username/email/national_id occupied and block
	// the person from ever registering again.
	Delete(ctx context.Context, user *model.User) error
}

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) First(ctx context.Context, conds ...interface{}) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, conds...).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) Delete(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Unscoped().Delete(user).Error
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}
