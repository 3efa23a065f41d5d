// Package auth coordinates registration, login, token and password reset
// flows. Each flow is a short-lived saga: it consults the lockout ledger,
// delegates credential checks to the identity provider, collects audit
// events into a trail and flushes the trail once at the end.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/nomcebo/bankauth/internal/audit"
	"github.com/nomcebo/bankauth/internal/common"
	"github.com/nomcebo/bankauth/internal/keycloak"
	"github.com/nomcebo/bankauth/internal/lockout"
	"github.com/nomcebo/bankauth/internal/mail"
	"github.com/nomcebo/bankauth/internal/said"
	"github.com/nomcebo/bankauth/internal/store"
	"github.com/nomcebo/bankauth/internal/tokens"
	"github.com/nomcebo/bankauth/internal/users"
	"github.com/nomcebo/bankauth/model"
	"github.com/nomcebo/bankauth/params"
)

const (
	registerMessage = "Registration successful. Please check your email to verify your account."
	resetMessage    = "If an account with this email exists, you will receive a password reset link."
	logoutMessage   = "Logout successful"

	defaultRole = "USER"
)

type AuthService struct {
	userService *users.UserService
	ledger      *lockout.Service
	idp         keycloak.IdentityProvider
	issuer      *tokens.TokenIssuer
	recorder    audit.Recorder
	mailSender  mail.MailSender
	resetTokens *store.Store[ResetRequest]
	baseURL     string
}

func NewAuthService(
	userService *users.UserService,
	ledger *lockout.Service,
	idp keycloak.IdentityProvider,
	issuer *tokens.TokenIssuer,
	recorder audit.Recorder,
	mailSender mail.MailSender,
	resetTokens *store.Store[ResetRequest],
	baseURL string,
) *AuthService {
	return &AuthService{
		userService: userService,
		ledger:      ledger,
		idp:         idp,
		issuer:      issuer,
		recorder:    recorder,
		mailSender:  mailSender,
		resetTokens: resetTokens,
		baseURL:     baseURL,
	}
}

// Register creates a new account after national id validation and
// uniqueness checks. The local row is compensated away when the identity
// provider account cannot be created, so no orphaned local user survives a
// partial registration.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest, ip string) (*RegisterResult, error) {
	trail := audit.NewTrail()
	defer trail.Flush(ctx, s.recorder)

	if !said.Validate(req.NationalID) {
		trail.Add(audit.EventRegistrationFailed, req.Email, ip, "Invalid SA ID number format")
		return nil, ErrInvalidID
	}

	if err := s.userService.CheckUserExists(ctx, req.Email, req.Username, req.NationalID); err != nil {
		if isConflict(err) {
			trail.Add(audit.EventRegistrationFailed, req.Email, ip, "User already exists")
			return nil, ErrUserExists
		}
		return nil, dependencyErr("persistence", err)
	}

	ident, err := said.Decode(req.NationalID)
	if err != nil {
		trail.Add(audit.EventRegistrationFailed, req.Email, ip, "Invalid SA ID number format")
		return nil, ErrInvalidID
	}

	user, err := s.userService.CreateUser(ctx, users.CreateUserOptions{
		Username:    req.Username,
		Email:       req.Email,
		NationalID:  req.NationalID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		DateOfBirth: ident.DateOfBirth,
		Gender:      ident.Gender,
		Address:     req.Address,
		City:        req.City,
		Province:    req.Province,
		PostalCode:  req.PostalCode,
		Password:    req.Password,
		Roles:       []string{defaultRole},
		IP:          ip,
	})
	if err != nil {
		if isConflict(err) {
			trail.Add(audit.EventRegistrationFailed, req.Email, ip, "User already exists")
			return nil, ErrUserExists
		}
		return nil, dependencyErr("persistence", err)
	}

	if err := s.idp.CreateUser(ctx, keycloak.CreateUserInput{
		Username:   req.Username,
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		NationalID: req.NationalID,
		Password:   req.Password,
	}); err != nil {
		if delErr := s.userService.DeleteUser(ctx, user); delErr != nil {
			slog.Error("Failed to compensate local user after identity provider failure",
				"username", req.Username, "error", delErr)
		}
		trail.Add(audit.EventRegistrationFailed, req.Email, ip, "Identity provider account creation failed")
		return nil, dependencyErr("identity provider", err)
	}

	// Welcome mail is best-effort and must not block the response.
	go func() {
		verifyURL := fmt.Sprintf("%s/verify?email=%s", s.baseURL, url.QueryEscape(req.Email))
		if err := mail.SendWelcome(s.mailSender, req.Email, req.FirstName, verifyURL); err != nil {
			slog.Warn("Failed to send welcome email", "email", req.Email, "error", err)
		}
	}()

	trail.Add(audit.EventRegistrationSuccess, req.Email, ip, "User registered successfully")
	return &RegisterResult{
		UserID:                    fmt.Sprintf("%d", user.ID),
		Email:                     user.Email,
		Message:                   registerMessage,
		EmailVerificationRequired: true,
	}, nil
}

// Login authenticates a user against the identity provider, guarded by the
// lockout ledger. A locked account is rejected without contacting the
// provider. The error never reveals whether the username exists.
func (s *AuthService) Login(ctx context.Context, username, password, ip string) (*LoginResult, error) {
	trail := audit.NewTrail()
	defer trail.Flush(ctx, s.recorder)

	user, err := s.userService.GetUserByUsername(ctx, username)
	if err != nil && !errors.Is(err, users.ErrUserNotFound) {
		return nil, dependencyErr("persistence", err)
	}

	if user != nil {
		status, err := s.ledger.Check(ctx, username)
		if err != nil && !errors.Is(err, lockout.ErrAccountNotFound) {
			return nil, dependencyErr("persistence", err)
		}
		if status.Locked {
			trail.Add(audit.EventLoginFailedLocked, username, ip, "Account locked due to multiple failed attempts")
			return nil, ErrAccountLocked
		}
	}

	if err := s.idp.VerifyCredentials(ctx, username, password); err != nil {
		if !errors.Is(err, keycloak.ErrInvalidCredentials) {
			return nil, dependencyErr("identity provider", err)
		}
		if user != nil {
			locked, recErr := s.ledger.RecordFailure(ctx, username)
			if recErr != nil {
				slog.Error("Failed to record login failure", "username", username, "error", recErr)
			}
			if locked {
				trail.Add(audit.EventAccountLocked, username, ip,
					"Account locked due to repeated failed attempts")
			}
		}
		trail.Add(audit.EventLoginFailed, username, ip, "Authentication failed")
		return nil, ErrInvalidCredentials
	}

	roles := []string{defaultRole}
	if user != nil {
		if userRoles := user.RoleList(); len(userRoles) > 0 {
			roles = userRoles
		}
		if err := s.ledger.RecordSuccess(ctx, username, ip); err != nil {
			slog.Error("Failed to reset login failure counter", "username", username, "error", err)
		}
	}

	accessToken, err := s.issuer.IssueAccessToken(username, roles)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, err := s.issuer.IssueRefreshToken(username, roles)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	trail.Add(audit.EventLoginSuccess, username, ip, "User authenticated successfully")
	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.issuer.AccessTokenValidity(),
		User:         buildUserSummary(username, roles, user),
	}, nil
}

// Refresh exchanges a valid refresh token for a new access/refresh pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	trail := audit.NewTrail()
	defer trail.Flush(ctx, s.recorder)

	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		trail.Add(audit.EventTokenRefreshFailed, "unknown", "unknown", "Invalid refresh token")
		return nil, ErrInvalidToken
	}

	accessToken, err := s.issuer.IssueAccessToken(claims.Subject, claims.Roles)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	newRefreshToken, err := s.issuer.IssueRefreshToken(claims.Subject, claims.Roles)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	trail.Add(audit.EventTokenRefreshSuccess, claims.Subject, "unknown", "Token refreshed successfully")
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.issuer.AccessTokenValidity(),
	}, nil
}

// Validate checks an access token and returns the identity it carries.
func (s *AuthService) Validate(ctx context.Context, accessToken string) (*ValidationResult, error) {
	claims, err := s.issuer.Verify(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return &ValidationResult{
		Valid:       true,
		Username:    claims.Subject,
		Authorities: claims.Roles,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// Logout invalidates the user's identity provider sessions. Both the
// subject extraction and the provider call are best-effort: a bad token or
// an unreachable provider never fails the logout itself. Note that already
// issued tokens stay cryptographically valid until they expire; only the
// provider session check can block them earlier.
func (s *AuthService) Logout(ctx context.Context, refreshToken, ip string) *LogoutResult {
	trail := audit.NewTrail()
	defer trail.Flush(ctx, s.recorder)

	username := s.issuer.Subject(refreshToken)
	if username == "" {
		username = "unknown"
	} else if err := s.idp.InvalidateSessions(ctx, username); err != nil {
		slog.Warn("Failed to invalidate identity provider sessions", "username", username, "error", err)
	}

	trail.Add(audit.EventLogoutSuccess, username, ip, "User logged out successfully")
	return &LogoutResult{
		Message:   logoutMessage,
		Timestamp: time.Now(),
	}
}

// ResetPassword starts a password reset. The response is identical whether
// or not the email belongs to an account, so the endpoint cannot be used
// to probe for registered addresses.
func (s *AuthService) ResetPassword(ctx context.Context, email, ip string) (string, error) {
	trail := audit.NewTrail()
	defer trail.Flush(ctx, s.recorder)

	user, err := s.userService.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return resetMessage, nil
		}
		return "", dependencyErr("persistence", err)
	}

	token, err := common.GenerateSecret(params.ResetTokenLength)
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	if err := s.resetTokens.Set(token, ResetRequest{
		Email:     user.Email,
		Username:  user.Username,
		CreatedAt: time.Now(),
	}, params.ResetTokenValidity); err != nil {
		return "", dependencyErr("persistence", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, url.QueryEscape(token))
	if err := mail.SendPasswordReset(s.mailSender, user.Email, user.FirstName, resetURL); err != nil {
		return "", dependencyErr("mail", err)
	}

	trail.Add(audit.EventPasswordResetInitiated, email, ip, "Password reset initiated")
	return resetMessage, nil
}

func isConflict(err error) bool {
	return errors.Is(err, users.ErrUsernameTaken) ||
		errors.Is(err, users.ErrEmailRegistered) ||
		errors.Is(err, users.ErrNationalIDRegistered)
}

func buildUserSummary(username string, roles []string, user *model.User) UserSummary {
	if user == nil {
		return UserSummary{Username: username, Roles: roles}
	}
	dob := user.DateOfBirth
	return UserSummary{
		Username:    user.Username,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		PhoneNumber: user.PhoneNumber,
		NationalID:  user.NationalID,
		DateOfBirth: &dob,
		Roles:       roles,
	}
}
