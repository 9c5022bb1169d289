package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const tokenSecretBytes = 32

// GenerateTokenSecret returns a URL-safe random secret for refresh and
// password reset tokens. Only its hash is ever stored.
func GenerateTokenSecret() (string, error) {
	raw := make([]byte, tokenSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate token secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashTokenSecret returns the hex-encoded SHA-256 digest used for at-rest
// storage and lookup of a token secret.
func HashTokenSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
