package auth

import (
	"strings"
	"testing"
	"time"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewManager("test-secret", 15*time.Minute)

	token, err := m.GenerateAccessToken("u1", "maria@example.com", "tutor", true)

	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	claims, err := m.VerifyAccessToken(token)

	if err != nil {
		t.Fatalf("VerifyAccessToken failed: %v", err)
	}

	if claims.UserID != "u1" {
		t.Fatalf("got sub %q, want u1", claims.UserID)
	}

	if claims.Email != "maria@example.com" {
		t.Fatalf("got email %q", claims.Email)
	}

	if claims.Role != "tutor" {
		t.Fatalf("got role %q", claims.Role)
	}

	if !claims.IsAdmin {
		t.Fatal("admin flag lost in transit")
	}

	if claims.JTI == "" {
		t.Fatal("expected a jti claim")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	m := NewManager("test-secret", -time.Minute)

	token, err := m.GenerateAccessToken("u1", "maria@example.com", "tutor", false)

	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := m.VerifyAccessToken(token); err == nil {
		t.Fatal("expired token must not verify")
	}
}

func TestVerifyTamperedToken(t *testing.T) {
	m := NewManager("test-secret", 15*time.Minute)

	token, err := m.GenerateAccessToken("u1", "maria@example.com", "tutor", false)

	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	// flip a character in the signature
	tampered := token[:len(token)-2] + strings.Repeat("x", 2)

	if _, err := m.VerifyAccessToken(tampered); err == nil {
		t.Fatal("tampered token must not verify")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := NewManager("secret-a", 15*time.Minute)
	verifier := NewManager("secret-b", 15*time.Minute)

	token, err := issuer.GenerateAccessToken("u1", "maria@example.com", "tutor", false)

	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := verifier.VerifyAccessToken(token); err == nil {
		t.Fatal("token signed with another secret must not verify")
	}
}
