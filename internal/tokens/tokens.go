// Package tokens issues and verifies the self-contained bearer tokens
// used by the authentication gateway. Tokens are HS512 signed JWTs and are
// never stored server side; verification is signature plus expiry only.
package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrMalformed    = errors.New("token is malformed")
	ErrBadSignature = errors.New("token signature mismatch")
	ErrExpired      = errors.New("token expired")
	ErrWrongType    = errors.New("unexpected token type")
)

type Claims struct {
	Roles []string `json:"roles"`
	Type  string   `json:"type"`
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	secret          []byte
	accessValidity  time.Duration
	refreshValidity time.Duration
}

func NewTokenIssuer(secret string, accessValidity, refreshValidity time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:          []byte(secret),
		accessValidity:  accessValidity,
		refreshValidity: refreshValidity,
	}
}

// AccessTokenValidity returns the access token lifetime in seconds, as
// reported to clients in the expiresIn response field.
func (t *TokenIssuer) AccessTokenValidity() int64 {
	return int64(t.accessValidity.Seconds())
}

func (t *TokenIssuer) IssueAccessToken(subject string, roles []string) (string, error) {
	return t.issue(subject, roles, TokenTypeAccess, t.accessValidity)
}

func (t *TokenIssuer) IssueRefreshToken(subject string, roles []string) (string, error) {
	return t.issue(subject, roles, TokenTypeRefresh, t.refreshValidity)
}

func (t *TokenIssuer) issue(subject string, roles []string, tokenType string, validity time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Roles: roles,
		Type:  tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString(t.secret)
}

// Verify checks signature and expiry and requires an access token.
func (t *TokenIssuer) Verify(tokenStr string) (*Claims, error) {
	claims, err := t.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeAccess {
		return nil, ErrWrongType
	}
	return claims, nil
}

// VerifyRefresh checks signature and expiry and requires a refresh token.
func (t *TokenIssuer) VerifyRefresh(tokenStr string) (*Claims, error) {
	claims, err := t.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeRefresh {
		return nil, ErrWrongType
	}
	return claims, nil
}

// Subject extracts the subject without verifying the signature. Used on
// the logout path where a bad token must not abort the flow.
func (t *TokenIssuer) Subject(tokenStr string) string {
	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, &claims); err != nil {
		return ""
	}
	return claims.Subject
}

func (t *TokenIssuer) parse(tokenStr string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadSignature
		}
		return t.secret, nil
	})
	switch {
	case err == nil && token.Valid:
		return &claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrBadSignature
	default:
		return nil, ErrMalformed
	}
}
