package auth_test

import (
	"testing"
	"time"

	"github.com/spendtrack/spendtrack/internal/auth"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	m := auth.NewManager("test-secret", time.Hour)

	token, err := m.IssueSessionToken(42, "a@gmail.com")

	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := m.VerifySessionToken(token)

	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if claims.UserID != 42 {
		t.Fatalf("got user id %d, want 42", claims.UserID)
	}

	if claims.Email != "a@gmail.com" {
		t.Fatalf("got email %q, want a@gmail.com", claims.Email)
	}

	if claims.JTI == "" {
		t.Fatalf("expected a non-empty jti")
	}
}

func TestSessionTokenExpiry(t *testing.T) {
	// negative TTL issues an already-expired token
	m := auth.NewManager("test-secret", -time.Minute)

	token, err := m.IssueSessionToken(7, "b@gmail.com")

	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	_, err = m.VerifySessionToken(token)

	if err != auth.ErrInvalidToken {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestSessionTokenVerifyRejections(t *testing.T) {
	issuer := auth.NewManager("issuer-secret", time.Hour)

	good, err := issuer.IssueSessionToken(1, "c@gmail.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	tests := []struct {
		name     string
		verifier *auth.Manager
		token    string
	}{
		{
			name:     "wrong secret",
			verifier: auth.NewManager("other-secret", time.Hour),
			token:    good,
		},
		{
			name:     "garbage token",
			verifier: issuer,
			token:    "not-a-jwt",
		},
		{
			name:     "tampered payload",
			verifier: issuer,
			token:    good[:len(good)-4] + "AAAA",
		},
		{
			name:     "empty token",
			verifier: issuer,
			token:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.verifier.VerifySessionToken(tt.token)

			if err != auth.ErrInvalidToken {
				t.Fatalf("got %v, want ErrInvalidToken", err)
			}
		})
	}
}
