package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Test: Token round trip without a session store
// ---------------------------------------------------------------------------

func TestIssueAndAuthenticate(t *testing.T) {
	svc := NewService("test-secret", time.Hour, nil)
	ctx := context.Background()

	token, err := svc.IssueToken(ctx, "user-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	userID, err := svc.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if userID != "user-42" {
		t.Errorf("expected user-42, got %q", userID)
	}
}

// ---------------------------------------------------------------------------
// Test: Invalid tokens are rejected
// ---------------------------------------------------------------------------

func TestAuthenticate_Invalid(t *testing.T) {
	svc := NewService("test-secret", time.Hour, nil)
	ctx := context.Background()

	cases := []string{
		"",
		"not-a-jwt",
		"eyJhbGciOiJIUzI1NiJ9.e30.bogus",
	}
	for _, token := range cases {
		if _, err := svc.Authenticate(ctx, token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestAuthenticate_WrongSecret(t *testing.T) {
	issuer := NewService("secret-a", time.Hour, nil)
	verifier := NewService("secret-b", time.Hour, nil)
	ctx := context.Background()

	token, err := issuer.IssueToken(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := verifier.Authenticate(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestAuthenticate_Expired(t *testing.T) {
	svc := NewService("test-secret", -time.Minute, nil)
	ctx := context.Background()

	token, err := svc.IssueToken(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Authenticate(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Test: Password hashing
// ---------------------------------------------------------------------------

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("hash should not equal the plaintext password")
	}
	if !CheckPassword(hash, "hunter2") {
		t.Error("expected correct password to verify")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("expected wrong password to fail")
	}
}
