package auth

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidID          = errors.New("invalid south african id number")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// DependencyError marks a failed call to an external collaborator
// (identity provider, persistence, mail). Outside the explicitly
// best-effort paths it aborts the enclosing flow.
type DependencyError struct {
	Collaborator string
	Err          error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Collaborator, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

func dependencyErr(collaborator string, err error) *DependencyError {
	return &DependencyError{Collaborator: collaborator, Err: err}
}
