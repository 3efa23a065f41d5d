package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/storage/memory/v2"
	"github.com/nomcebo/bankauth/internal/audit"
	"github.com/nomcebo/bankauth/internal/keycloak"
	"github.com/nomcebo/bankauth/internal/lockout"
	"github.com/nomcebo/bankauth/internal/mail"
	"github.com/nomcebo/bankauth/internal/store"
	"github.com/nomcebo/bankauth/internal/tokens"
	"github.com/nomcebo/bankauth/internal/users"
	"github.com/nomcebo/bankauth/model"
	"github.com/nomcebo/bankauth/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const validID = "9001015009081"

// fakeUserRepo keeps users in memory and interprets the few query shapes
// the user service issues.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  []*model.User
	nextID uint
}

func (r *fakeUserRepo) First(ctx context.Context, conds ...interface{}) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cond := conds[0].(string)
	for _, user := range r.users {
		var match bool
		switch cond {
		case "username = ?":
			match = user.Username == conds[1].(string)
		case "email = ?":
			match = user.Email == conds[1].(string)
		case "email = ? OR username = ? OR national_id = ?":
			match = user.Email == conds[1].(string) ||
				user.Username == conds[2].(string) ||
				user.NationalID == conds[3].(string)
		}
		if match {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	user.ID = r.nextID
	copied := *user
	r.users = append(r.users, &copied)
	return nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.users {
		if existing.ID == user.ID {
			r.users = append(r.users[:i], r.users[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

type fakeIdentityProvider struct {
	mu          sync.Mutex
	createErr   error
	verifyErr   error
	created     []keycloak.CreateUserInput
	verified    []string
	invalidated []string
}

func (p *fakeIdentityProvider) CreateUser(ctx context.Context, input keycloak.CreateUserInput) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return p.createErr
	}
	p.created = append(p.created, input)
	return nil
}

func (p *fakeIdentityProvider) VerifyCredentials(ctx context.Context, username, password string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verified = append(p.verified, username)
	return p.verifyErr
}

func (p *fakeIdentityProvider) InvalidateSessions(ctx context.Context, username string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalidated = append(p.invalidated, username)
	return nil
}

func (p *fakeIdentityProvider) ListUsers(ctx context.Context, search string) ([]keycloak.ProviderUser, error) {
	return nil, nil
}

type fakeMailSender struct {
	mu   sync.Mutex
	sent []*mail.Message
	err  error
}

func (s *fakeMailSender) Send(message *mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, message)
	return nil
}

func (s *fakeMailSender) sentTo() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var addrs []string
	for _, msg := range s.sent {
		addrs = append(addrs, msg.To...)
	}
	return addrs
}

type fakeAuditRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *fakeAuditRecorder) Record(ctx context.Context, event audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *fakeAuditRecorder) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var types []string
	for _, event := range r.events {
		types = append(types, event.EventType)
	}
	return types
}

type testHarness struct {
	service  *AuthService
	userRepo *fakeUserRepo
	idp      *fakeIdentityProvider
	mails    *fakeMailSender
	recorder *fakeAuditRecorder
	ledger   *lockout.MemoryStore
}

func newTestHarness(t *testing.T, usernames ...string) *testHarness {
	t.Helper()
	userRepo := &fakeUserRepo{}
	idp := &fakeIdentityProvider{}
	mails := &fakeMailSender{}
	recorder := &fakeAuditRecorder{}
	ledgerStore := lockout.NewMemoryStore(usernames...)

	service := NewAuthService(
		users.NewUserService(userRepo),
		lockout.NewService(ledgerStore, params.DefaultMaxLoginAttempts, params.DefaultLockoutDuration),
		idp,
		tokens.NewTokenIssuer("test-secret", 15*time.Minute, 7*24*time.Hour),
		recorder,
		mails,
		store.New[ResetRequest](memory.New(), params.ResetTokenKeyPrefix),
		"https://bank.example.com",
	)
	return &testHarness{
		service:  service,
		userRepo: userRepo,
		idp:      idp,
		mails:    mails,
		recorder: recorder,
		ledger:   ledgerStore,
	}
}

func registerRequest() RegisterRequest {
	return RegisterRequest{
		Username:    "thandi",
		Email:       "thandi@example.com",
		Password:    "S3cret!pass",
		FirstName:   "Thandi",
		LastName:    "Nkosi",
		PhoneNumber: "+27821234567",
		NationalID:  validID,
		Address:     "12 Long Street",
		City:        "Cape Town",
		Province:    "Western Cape",
		PostalCode:  "8001",
	}
}

func (h *testHarness) register(t *testing.T) *RegisterResult {
	t.Helper()
	result, err := h.service.Register(context.Background(), registerRequest(), "10.0.0.1")
	require.NoError(t, err)
	return result
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		h := newTestHarness(t)
		result := h.register(t)

		assert.NotEmpty(t, result.UserID)
		assert.Equal(t, "thandi@example.com", result.Email)
		assert.True(t, result.EmailVerificationRequired)
		assert.Equal(t, 1, h.userRepo.count())

		require.Len(t, h.idp.created, 1)
		assert.Equal(t, "thandi", h.idp.created[0].Username)
		assert.Equal(t, validID, h.idp.created[0].NationalID)

		assert.Contains(t, h.recorder.eventTypes(), audit.EventRegistrationSuccess)

		// Birth details come from the id number, not the request.
		user, err := h.userRepo.First(ctx, "username = ?", "thandi")
		require.NoError(t, err)
		assert.Equal(t, 1990, user.DateOfBirth.Year())
		assert.Equal(t, "M", user.Gender)
		assert.NotEqual(t, "S3cret!pass", user.PasswordHash)
	})

	t.Run("invalid id number", func(t *testing.T) {
		h := newTestHarness(t)
		req := registerRequest()
		req.NationalID = "9001015009082"

		_, err := h.service.Register(ctx, req, "10.0.0.1")
		assert.ErrorIs(t, err, ErrInvalidID)
		assert.Equal(t, 0, h.userRepo.count())
		assert.Empty(t, h.idp.created)
		assert.Contains(t, h.recorder.eventTypes(), audit.EventRegistrationFailed)
	})

	t.Run("duplicate username", func(t *testing.T) {
		h := newTestHarness(t)
		h.register(t)

		req := registerRequest()
		req.Email = "other@example.com"
		req.NationalID = "8001015009083"

		_, err := h.service.Register(ctx, req, "10.0.0.1")
		assert.ErrorIs(t, err, ErrUserExists)
		assert.Equal(t, 1, h.userRepo.count())
	})

	t.Run("identity provider failure compensates local row", func(t *testing.T) {
		h := newTestHarness(t)
		h.idp.createErr = errors.New("keycloak down")

		_, err := h.service.Register(ctx, registerRequest(), "10.0.0.1")

		var depErr *DependencyError
		require.ErrorAs(t, err, &depErr)
		assert.Equal(t, 0, h.userRepo.count(), "local row must be rolled back")
		assert.Contains(t, h.recorder.eventTypes(), audit.EventRegistrationFailed)

		// Once the provider recovers, the same person can register again.
		h.idp.createErr = nil
		result, err := h.service.Register(ctx, registerRequest(), "10.0.0.1")
		require.NoError(t, err)
		assert.NotEmpty(t, result.UserID)
		assert.Equal(t, 1, h.userRepo.count())
	})

	t.Run("welcome mail is sent", func(t *testing.T) {
		h := newTestHarness(t)
		h.register(t)

		require.Eventually(t, func() bool {
			return len(h.mails.sentTo()) == 1
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, []string{"thandi@example.com"}, h.mails.sentTo())
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("success issues token pair", func(t *testing.T) {
		h := newTestHarness(t, "thandi")
		h.register(t)

		result, err := h.service.Login(ctx, "thandi", "S3cret!pass", "10.0.0.1")
		require.NoError(t, err)

		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)
		assert.Equal(t, "Bearer", result.TokenType)
		assert.Equal(t, int64(900), result.ExpiresIn)
		assert.Equal(t, "thandi", result.User.Username)
		assert.Equal(t, []string{"USER"}, result.User.Roles)
		assert.Contains(t, h.recorder.eventTypes(), audit.EventLoginSuccess)
	})

	t.Run("wrong password counts a failure", func(t *testing.T) {
		h := newTestHarness(t, "thandi")
		h.register(t)
		h.idp.verifyErr = keycloak.ErrInvalidCredentials

		_, err := h.service.Login(ctx, "thandi", "wrong", "10.0.0.1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Contains(t, h.recorder.eventTypes(), audit.EventLoginFailed)

		count, _, err := h.ledger.Status(ctx, "thandi")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("unknown username is indistinguishable", func(t *testing.T) {
		h := newTestHarness(t)
		h.idp.verifyErr = keycloak.ErrInvalidCredentials

		_, err := h.service.Login(ctx, "nobody", "whatever", "10.0.0.1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("account locks after repeated failures", func(t *testing.T) {
		h := newTestHarness(t, "thandi")
		h.register(t)
		h.idp.verifyErr = keycloak.ErrInvalidCredentials

		for i := 0; i < params.DefaultMaxLoginAttempts; i++ {
			_, err := h.service.Login(ctx, "thandi", "wrong", "10.0.0.1")
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		}
		assert.Contains(t, h.recorder.eventTypes(), audit.EventAccountLocked)

		// The locked account is rejected before the provider is consulted,
		// even with the correct password.
		h.idp.verifyErr = nil
		verifiedBefore := len(h.idp.verified)
		_, err := h.service.Login(ctx, "thandi", "S3cret!pass", "10.0.0.1")
		assert.ErrorIs(t, err, ErrAccountLocked)
		assert.Len(t, h.idp.verified, verifiedBefore)
		assert.Contains(t, h.recorder.eventTypes(), audit.EventLoginFailedLocked)
	})

	t.Run("success resets the failure counter", func(t *testing.T) {
		h := newTestHarness(t, "thandi")
		h.register(t)

		h.idp.verifyErr = keycloak.ErrInvalidCredentials
		_, err := h.service.Login(ctx, "thandi", "wrong", "10.0.0.1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		h.idp.verifyErr = nil
		_, err = h.service.Login(ctx, "thandi", "S3cret!pass", "10.0.0.1")
		require.NoError(t, err)

		count, _, err := h.ledger.Status(ctx, "thandi")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("provider outage does not count a failure", func(t *testing.T) {
		h := newTestHarness(t, "thandi")
		h.register(t)
		h.idp.verifyErr = &keycloak.DependencyError{Op: "token", Err: errors.New("connection refused")}

		_, err := h.service.Login(ctx, "thandi", "S3cret!pass", "10.0.0.1")
		var depErr *DependencyError
		assert.ErrorAs(t, err, &depErr)

		count, _, err := h.ledger.Status(ctx, "thandi")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("valid refresh token yields a new pair", func(t *testing.T) {
		h := newTestHarness(t, "thandi")
		h.register(t)
		login, err := h.service.Login(ctx, "thandi", "S3cret!pass", "10.0.0.1")
		require.NoError(t, err)

		pair, err := h.service.Refresh(ctx, login.RefreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
		assert.Contains(t, h.recorder.eventTypes(), audit.EventTokenRefreshSuccess)

		validation, err := h.service.Validate(ctx, pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "thandi", validation.Username)
		assert.Equal(t, []string{"USER"}, validation.Authorities)
	})

	t.Run("access token is rejected", func(t *testing.T) {
		h := newTestHarness(t, "thandi")
		h.register(t)
		login, err := h.service.Login(ctx, "thandi", "S3cret!pass", "10.0.0.1")
		require.NoError(t, err)

		_, err = h.service.Refresh(ctx, login.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.Contains(t, h.recorder.eventTypes(), audit.EventTokenRefreshFailed)
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		h := newTestHarness(t)
		_, err := h.service.Refresh(ctx, "garbage")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, "thandi")
	h.register(t)
	login, err := h.service.Login(ctx, "thandi", "S3cret!pass", "10.0.0.1")
	require.NoError(t, err)

	result, err := h.service.Validate(ctx, login.AccessToken)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "thandi", result.Username)
	assert.True(t, result.ExpiresAt.After(time.Now()))

	_, err = h.service.Validate(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = h.service.Validate(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("invalidates provider sessions", func(t *testing.T) {
		h := newTestHarness(t, "thandi")
		h.register(t)
		login, err := h.service.Login(ctx, "thandi", "S3cret!pass", "10.0.0.1")
		require.NoError(t, err)

		result := h.service.Logout(ctx, login.RefreshToken, "10.0.0.1")
		assert.NotEmpty(t, result.Message)
		assert.Equal(t, []string{"thandi"}, h.idp.invalidated)
		assert.Contains(t, h.recorder.eventTypes(), audit.EventLogoutSuccess)
	})

	t.Run("bad token still succeeds", func(t *testing.T) {
		h := newTestHarness(t)
		result := h.service.Logout(ctx, "garbage", "10.0.0.1")
		assert.NotEmpty(t, result.Message)
		assert.Empty(t, h.idp.invalidated)
		assert.Contains(t, h.recorder.eventTypes(), audit.EventLogoutSuccess)
	})
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("known email sends reset mail", func(t *testing.T) {
		h := newTestHarness(t)
		h.register(t)

		message, err := h.service.ResetPassword(ctx, "thandi@example.com", "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, resetMessage, message)

		require.Eventually(t, func() bool {
			return len(h.mails.sentTo()) >= 2 // welcome + reset
		}, time.Second, 10*time.Millisecond)
		assert.Contains(t, h.recorder.eventTypes(), audit.EventPasswordResetInitiated)
	})

	t.Run("unknown email gets the identical response", func(t *testing.T) {
		h := newTestHarness(t)

		message, err := h.service.ResetPassword(ctx, "nobody@example.com", "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, resetMessage, message)
		assert.Empty(t, h.mails.sentTo())
		assert.NotContains(t, h.recorder.eventTypes(), audit.EventPasswordResetInitiated)
	})

	t.Run("mail outage surfaces a dependency error", func(t *testing.T) {
		h := newTestHarness(t)
		h.register(t)
		require.Eventually(t, func() bool {
			return len(h.mails.sentTo()) == 1 // wait out the welcome mail
		}, time.Second, 10*time.Millisecond)

		h.mails.err = errors.New("smtp down")
		_, err := h.service.ResetPassword(ctx, "thandi@example.com", "10.0.0.1")
		var depErr *DependencyError
		assert.ErrorAs(t, err, &depErr)
	})
}
