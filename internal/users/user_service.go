package users

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/nomcebo/bankauth/model"
	"github.com/nomcebo/bankauth/params"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Unique index names as produced by the singular-table naming strategy.
// Used to map duplicate-key violations back to a specific conflict.
const (
	idxUserUsername   = "idx_user_username"
	idxUserEmail      = "idx_user_email"
	idxUserNationalID = "idx_user_national_id"
)

type CreateUserOptions struct {
	Username    string
	Email       string
	NationalID  string
	FirstName   string
	LastName    string
	PhoneNumber string
	DateOfBirth time.Time
	Gender      string
	Address     string
	City        string
	Province    string
	PostalCode  string
	Password    string
	Roles       []string
	IP          string
}

type UserService struct {
	userRepo UserRepository
}

func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := s.userRepo.First(ctx, "username = ?", username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrUserNotFound
	}
	user, err := s.userRepo.First(ctx, "email = ?", email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// CheckUserExists reports a conflict when the email, username or national
// id is already registered. This is a pre-check only; the unique indexes
// remain the authoritative guard against concurrent registrations.
func (s *UserService) CheckUserExists(ctx context.Context, email, username, nationalID string) error {
	existing, err := s.userRepo.First(ctx,
		"email = ? OR username = ? OR national_id = ?", email, username, nationalID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	switch {
	case existing.Username == username:
		return ErrUsernameTaken
	case existing.Email == email:
		return ErrEmailRegistered
	default:
		return ErrNationalIDRegistered
	}
}

// CreateUser persists a new account with a bcrypt password hash. A
// duplicate-key violation is translated into the matching conflict error.
func (s *UserService) CreateUser(ctx context.Context, opts CreateUserOptions) (*model.User, error) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), params.PasswordHashCost)
	if err != nil {
		return nil, err
	}

	user := model.User{
		Username:        opts.Username,
		Email:           opts.Email,
		NationalID:      opts.NationalID,
		FirstName:       opts.FirstName,
		LastName:        opts.LastName,
		PhoneNumber:     opts.PhoneNumber,
		DateOfBirth:     opts.DateOfBirth,
		Gender:          opts.Gender,
		Address:         opts.Address,
		City:            opts.City,
		Province:        opts.Province,
		PostalCode:      opts.PostalCode,
		PasswordHash:    string(passwordHash),
		IsActive:        true,
		IsEmailVerified: false,
		RegistrationIP:  opts.IP,
	}
	user.SetRoles(opts.Roles)

	err = s.userRepo.Create(ctx, &user)
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		switch {
		case strings.Contains(mysqlErr.Message, idxUserUsername):
			return nil, ErrUsernameTaken
		case strings.Contains(mysqlErr.Message, idxUserEmail):
			return nil, ErrEmailRegistered
		case strings.Contains(mysqlErr.Message, idxUserNationalID):
			return nil, ErrNationalIDRegistered
		}
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser permanently removes a local account. Used to compensate a
// registration whose identity provider step failed after the local row was
// written; the removal must free the unique indexes so the person can
// register again.
func (s *UserService) DeleteUser(ctx context.Context, user *model.User) error {
	return s.userRepo.Delete(ctx, user)
}

func NewUserService(userRepo UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}
