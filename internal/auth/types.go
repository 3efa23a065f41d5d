package auth

import "time"

type RegisterRequest struct {
	Username    string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
	NationalID  string
	Address     string
	City        string
	Province    string
	PostalCode  string
}

type RegisterResult struct {
	UserID                    string
	Email                     string
	Message                   string
	EmailVerificationRequired bool
}

// UserSummary is the safe subset of account data returned to clients.
// It never carries the password hash.
type UserSummary struct {
	Username    string
	Email       string
	FirstName   string
	LastName    string
	PhoneNumber string
	NationalID  string
	DateOfBirth *time.Time
	Roles       []string
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	User         UserSummary
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
}

type ValidationResult struct {
	Valid       bool
	Username    string
	Authorities []string
	ExpiresAt   time.Time
}

type LogoutResult struct {
	Message   string
	Timestamp time.Time
}

// ResetRequest is the value stored against an outstanding single-use
// password reset token.
type ResetRequest struct {
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}
