// Package keycloak implements the identity provider collaborator against
// the Keycloak admin REST API. The gateway delegates credential checks,
// account provisioning and session invalidation here; it never implements
// an identity provider itself.
package keycloak

import (
	"context"
	"errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found in identity provider")
)

// DependencyError wraps a transport or unexpected-status failure talking
// to the identity provider so callers can tell it apart from a credential
// rejection.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return "identity provider: " + e.Op + ": " + e.Err.Error()
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

type CreateUserInput struct {
	Username   string
	Email      string
	FirstName  string
	LastName   string
	NationalID string
	Password   string
}

type ProviderUser struct {
	ID       string
	Username string
	Email    string
	Enabled  bool
}

// IdentityProvider is the collaborator interface the orchestrator consumes.
type IdentityProvider interface {
	// CreateUser provisions an account with the password credential and the
	// national id stored as a custom attribute.
	CreateUser(ctx context.Context, input CreateUserInput) error
	// VerifyCredentials returns nil on a correct username/password pair,
	// ErrInvalidCredentials on rejection, a *DependencyError otherwise.
	VerifyCredentials(ctx context.Context, username, password string) error
	// InvalidateSessions logs the user out of every active session.
	InvalidateSessions(ctx context.Context, username string) error
	// ListUsers searches provider accounts by username or email.
	ListUsers(ctx context.Context, search string) ([]ProviderUser, error)
}
