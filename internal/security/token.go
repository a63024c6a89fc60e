package security

import (
	"crypto/rand"
	"encoding/base64"
)

// 32 bytes = 256 bits of entropy, well above the 128-bit floor for a bearer
// token. The value is URL-safe so it can ride in a reset link query string.
const resetTokenBytes = 32

// GenerateResetToken returns a cryptographically random, URL-safe token for
// the password reset flow. Deliberately independent of the password hasher:
// bcrypt salts are not bearer tokens.
func GenerateResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)

	_, err := rand.Read(buf)

	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}
