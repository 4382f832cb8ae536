package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
)

const (
	// stateBytes is the entropy of a CSRF state token (256 bits).
	stateBytes = 32

	// verifierBytes is the entropy of a PKCE verifier (256 bits, 43 chars encoded).
	verifierBytes = 32
)

// GenerateState returns a URL-safe CSRF state token with 256 bits of entropy.
func GenerateState() (string, error) {
	return generateRandomString(stateBytes)
}

// GeneratePKCE returns a fresh verifier with its S256 challenge.
func GeneratePKCE() (*domain.PKCE, error) {
	verifier, err := generateRandomString(verifierBytes)
	if err != nil {
		return nil, fmt.Errorf("generate code verifier: %w", err)
	}
	return &domain.PKCE{
		Verifier:  verifier,
		Challenge: CodeChallenge(verifier),
		Method:    domain.ChallengeMethodS256,
	}, nil
}

// CodeChallenge derives the S256 challenge for a verifier:
// base64url(SHA-256(verifier)) without padding.
func CodeChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// generateRandomString returns n random bytes encoded as unpadded base64url.
func generateRandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
