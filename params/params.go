package params

import "time"

const (
	ServerBodyLimit    = 1048576 // 1 MiB
	ServerIdleTimeout  = 30 * time.Second
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second

	HealthCheckServerAddr = ":3001" // health check server address

	ResetTokenKeyPrefix = "pr:"

	DefaultMaxLoginAttempts = 5                  // failed logins before the account is locked
	DefaultLockoutDuration  = 30 * time.Minute   // how long a locked account stays locked
	AccessTokenValidity     = 15 * time.Minute   // access token lifetime
	RefreshTokenValidity    = 7 * 24 * time.Hour // refresh token lifetime
	ResetTokenValidity      = 1 * time.Hour      // password reset token lifetime

	PasswordHashCost = 10 // bcrypt cost for stored credentials

	CollaboratorTimeout = 10 * time.Second // per-call deadline for identity provider requests
	ResetTokenLength    = 32               // length of generated password reset tokens
)
