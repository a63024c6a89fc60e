package security

import (
	"strings"
	"testing"
)

func TestGenerateResetToken(t *testing.T) {
	token, err := GenerateResetToken()

	if err != nil {
		t.Fatalf("GenerateResetToken failed: %v", err)
	}

	// 32 random bytes, base64url without padding => 43 chars
	if len(token) != 43 {
		t.Fatalf("got token length %d, want 43", len(token))
	}

	// must be safe to drop into a URL query string untouched
	if strings.ContainsAny(token, "+/=?&") {
		t.Fatalf("token contains non URL-safe characters: %q", token)
	}
}

func TestGenerateResetTokenUnique(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		token, err := GenerateResetToken()

		if err != nil {
			t.Fatalf("GenerateResetToken failed: %v", err)
		}

		if seen[token] {
			t.Fatalf("duplicate token generated: %q", token)
		}

		seen[token] = true
	}
}
