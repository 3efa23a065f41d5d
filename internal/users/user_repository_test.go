package users

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nomcebo/bankauth/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "users.db")), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}))
	return db
}

func newTestUser() *model.User {
	return &model.User{
		Username:     "thandi",
		Email:        "thandi@example.com",
		NationalID:   "9001015009081",
		FirstName:    "Thandi",
		LastName:     "Nkosi",
		PasswordHash: "x",
	}
}

func TestRepositoryRoundTrip(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	user := newTestUser()
	require.NoError(t, repo.Create(ctx, user))
	require.NotZero(t, user.ID)

	found, err := repo.First(ctx, "username = ?", "thandi")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "thandi@example.com", found.Email)

	_, err = repo.First(ctx, "username = ?", "nobody")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// A compensated registration must leave the unique indexes free, so the
// delete has to remove the row outright rather than soft-delete it.
func TestDeleteFreesUniqueIndexes(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := newTestUser()
	require.NoError(t, repo.Create(ctx, user))
	require.NoError(t, repo.Delete(ctx, user))

	var count int64
	require.NoError(t, db.Unscoped().Model(&model.User{}).Count(&count).Error)
	assert.Zero(t, count, "no row may survive the compensation")

	_, err := repo.First(ctx, "username = ?", "thandi")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.NoError(t, repo.Create(ctx, newTestUser()), "same username/email/national id must be insertable again")
}

func TestCompensatedUserCanRegisterAgain(t *testing.T) {
	svc := NewUserService(NewUserRepository(newTestDB(t)))
	ctx := context.Background()

	opts := CreateUserOptions{
		Username:   "thandi",
		Email:      "thandi@example.com",
		NationalID: "9001015009081",
		FirstName:  "Thandi",
		LastName:   "Nkosi",
		Password:   "S3cret!pass",
	}
	user, err := svc.CreateUser(ctx, opts)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteUser(ctx, user))

	assert.NoError(t, svc.CheckUserExists(ctx, opts.Email, opts.Username, opts.NationalID))

	again, err := svc.CreateUser(ctx, opts)
	require.NoError(t, err)
	assert.NotZero(t, again.ID)
}
