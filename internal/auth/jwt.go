// Package auth provides password hashing, signed session tokens, the
// session middleware and optional GitHub sign-in.
//
// SESSION FLOW:
//  1. POST /login checks the password and issues a session token.
//  2. The token is stored in the HttpOnly "session" cookie.
//  3. Session middleware validates the cookie on every request and puts the
//     user id in the request context.
//  4. GET /logout deletes the cookie.
//
// The token is an HS256 JWT signed with SECRET_KEY: the user id in "sub",
// a random "jti" and an expiry. No server-side session table is kept.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const issuer = "inkwell"

// ErrInvalidToken is returned for any token that fails validation.
var ErrInvalidToken = errors.New("auth: invalid session token")

// TokenService signs and validates session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService requires a secret of at least 16 characters.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: secret key must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: session lifetime must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for userID that expires after the service's TTL.
func (s *TokenService) Issue(userID int64) (string, error) {
	return s.IssueWithTTL(userID, s.ttl)
}

// IssueWithTTL signs a token with a custom lifetime. A negative ttl yields
// an already-expired token, which tests use.
func (s *TokenService) IssueWithTTL(userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	c := jwt.RegisteredClaims{
		ID:        xid.New().String(),
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies the signature, issuer, algorithm and expiry and returns
// the user id. Any failure wraps ErrInvalidToken.
func (s *TokenService) Validate(tokenStr string) (int64, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return 0, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, c.Subject)
	}
	return userID, nil
}
