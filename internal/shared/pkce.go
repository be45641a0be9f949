package shared

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// possible is the PKCE-safe alphabet used for verifiers and state nonces.
const possible = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateRandomString returns a high-entropy random string of the given length drawn from the unreserved character set.
//
// Used for PKCE code verifiers and anti-forgery state nonces.
func GenerateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("%w: length must be positive", ErrInvalidInput)
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	for i, b := range buf {
		buf[i] = possible[int(b)%len(possible)]
	}

	return string(buf), nil
}

// CodeChallenge derives the S256 PKCE code challenge from a verifier: base64url(SHA256(verifier)) without padding.
func CodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
