// Package auth issues and validates the credentials behind every connection.
// Passwords are hashed with bcrypt, tokens are signed JWTs carrying the user
// id, and each issued token has a matching Redis session so it can be revoked
// before it expires.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/session"
)

// ErrInvalidToken is returned when a token fails validation or has been
// revoked.
var ErrInvalidToken = errors.New("auth: invalid token")

// ErrInvalidCredentials is returned when an email/password pair does not
// match a registered user.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Service issues and validates tokens. The session store is optional: when
// nil, tokens are validated by signature and expiry alone.
type Service struct {
	secret   []byte
	tokenTTL time.Duration
	sessions *session.Store
}

// NewService creates an auth service with the given signing secret and token
// lifetime.
func NewService(secret string, tokenTTL time.Duration, sessions *session.Store) *Service {
	return &Service{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		sessions: sessions,
	}
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IssueToken signs a JWT for userID and records the matching session.
func (s *Service) IssueToken(ctx context.Context, userID string) (string, error) {
	tokenID := uuid.New().String()
	now := time.Now()

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        tokenID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}

	if s.sessions != nil {
		if err := s.sessions.Create(ctx, tokenID, userID); err != nil {
			// Session tracking is best-effort: the token still validates by
			// signature, it just cannot be revoked early.
			log.Printf("auth: failed to record session %s: %v", tokenID, err)
		}
	}
	return token, nil
}

// Authenticate validates a token and returns the user id it was issued for.
// Revoked tokens fail even when the signature is still valid; a Redis outage
// degrades to signature-only validation.
func (s *Service) Authenticate(ctx context.Context, tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", ErrInvalidToken
	}

	claims, err := s.parseClaims(tokenStr)
	if err != nil {
		return "", err
	}

	if s.sessions != nil {
		sess, err := s.sessions.Get(ctx, claims.ID)
		if err != nil {
			log.Printf("auth: session lookup failed for %s: %v (falling back to signature)", claims.ID, err)
		} else if sess == nil {
			return "", ErrInvalidToken
		}
	}
	return claims.Subject, nil
}

// Revoke deletes the session behind a token so it no longer authenticates.
func (s *Service) Revoke(ctx context.Context, tokenStr string) error {
	claims, err := s.parseClaims(tokenStr)
	if err != nil {
		return err
	}
	if s.sessions == nil {
		return nil
	}
	return s.sessions.Delete(ctx, claims.ID)
}

func (s *Service) parseClaims(tokenStr string) (*jwt.RegisteredClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
