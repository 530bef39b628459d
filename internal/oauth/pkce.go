package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// RFC 7636 bounds on code verifier length.
const (
	minVerifierLength = 43
	maxVerifierLength = 128

	// defaultVerifierBytes yields an 86-character verifier after base64url
	// encoding, comfortably inside the RFC 7636 range.
	defaultVerifierBytes = 64
)

// GenerateCodeVerifier produces a high-entropy PKCE code verifier.
func GenerateCodeVerifier() (string, error) {
	buf := make([]byte, defaultVerifierBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate code verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(buf)
	if len(verifier) < minVerifierLength || len(verifier) > maxVerifierLength {
		return "", fmt.Errorf("generated verifier length %d outside RFC 7636 bounds", len(verifier))
	}
	return verifier, nil
}

// ChallengeS256 derives the S256 code challenge for a verifier.
func ChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
