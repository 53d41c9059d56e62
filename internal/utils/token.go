package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewOpaqueToken returns a cryptographically secure random token encoded as
// 64 hex characters. It is used for password-reset and email-verification
// credentials; the database stores only the SHA-256 hash of the value.
func NewOpaqueToken() (string, error) {
	return randomHex(32)
}

// NewTokenID mints the ledger identifier embedded in a refresh token's jti
// claim.
func NewTokenID() string {
	return uuid.NewString()
}

// NewSessionToken mints an independent session identifier. Session identity
// is never derived from token-signing internals.
func NewSessionToken() string {
	return uuid.NewString()
}

// HashToken returns the SHA-256 hash of a token value as a hex string.
// Storing only the hash prevents stolen database rows from being replayed
// as live credentials.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
