package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-secret"

func newTestIssuer() *TokenIssuer {
	return NewTokenIssuer(testSecret, 15*time.Minute, 7*24*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	issuer := newTestIssuer()

	tokenStr, err := issuer.IssueAccessToken("alice", []string{"USER", "ADMIN"})
	require.NoError(t, err)

	claims, err := issuer.Verify(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, []string{"USER", "ADMIN"}, claims.Roles)
	assert.Equal(t, TokenTypeAccess, claims.Type)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	issuer := newTestIssuer()

	tokenStr, err := issuer.IssueRefreshToken("alice", []string{"USER"})
	require.NoError(t, err)

	claims, err := issuer.VerifyRefresh(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestTokenTypeEnforcement(t *testing.T) {
	issuer := newTestIssuer()

	accessToken, err := issuer.IssueAccessToken("alice", nil)
	require.NoError(t, err)
	refreshToken, err := issuer.IssueRefreshToken("alice", nil)
	require.NoError(t, err)

	_, err = issuer.Verify(refreshToken)
	assert.ErrorIs(t, err, ErrWrongType, "refresh token must not pass access verification")

	_, err = issuer.VerifyRefresh(accessToken)
	assert.ErrorIs(t, err, ErrWrongType, "access token must not pass refresh verification")
}

func TestExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, -time.Minute, -time.Minute)

	tokenStr, err := issuer.IssueAccessToken("alice", nil)
	require.NoError(t, err)

	_, err = issuer.Verify(tokenStr)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestBadSignature(t *testing.T) {
	issuer := newTestIssuer()
	other := NewTokenIssuer("some-other-secret", 15*time.Minute, time.Hour)

	tokenStr, err := other.IssueAccessToken("alice", nil)
	require.NoError(t, err)

	_, err = issuer.Verify(tokenStr)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestMalformedToken(t *testing.T) {
	issuer := newTestIssuer()

	for _, tokenStr := range []string{"", "garbage", "a.b.c"} {
		_, err := issuer.Verify(tokenStr)
		assert.ErrorIs(t, err, ErrMalformed, "input %q", tokenStr)
	}
}

func TestSubject(t *testing.T) {
	issuer := newTestIssuer()

	tokenStr, err := issuer.IssueRefreshToken("alice", nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", issuer.Subject(tokenStr))

	// Subject skips signature verification so a foreign key still yields
	// the subject, while garbage yields empty.
	foreign, err := NewTokenIssuer("other", time.Minute, time.Minute).IssueRefreshToken("bob", nil)
	require.NoError(t, err)
	assert.Equal(t, "bob", issuer.Subject(foreign))
	assert.Equal(t, "", issuer.Subject("garbage"))
}

func TestAccessTokenValidity(t *testing.T) {
	issuer := newTestIssuer()
	assert.Equal(t, int64(900), issuer.AccessTokenValidity())
}
