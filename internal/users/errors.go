package users

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUsernameTaken        = errors.New("username already taken")
	ErrEmailRegistered      = errors.New("email already registered")
	ErrNationalIDRegistered = errors.New("national id already registered")
)
