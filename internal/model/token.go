package model

import "time"

// RefreshToken models an entry in the `refresh_tokens` ledger. Each entry
// records one issued refresh credential and its revocation state. The plain
// token is not stored; only its SHA-256 hash.
//
// A token is single-use for rotation: exchanging it marks the entry revoked
// in the same transaction that inserts its successor, so at most one of two
// racing exchanges can win.
type RefreshToken struct {
	ID         uint64     // refresh_tokens.id
	UserID     uint64     // refresh_tokens.user_id
	TokenHash  string     // refresh_tokens.token_hash
	DeviceInfo *string    // refresh_tokens.device_info (nullable JSON blob)
	ExpiresAt  time.Time  // refresh_tokens.expires_at
	RevokedAt  *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt  time.Time  // refresh_tokens.created_at
}

// Live reports whether the entry can still be exchanged at t.
func (rt *RefreshToken) Live(t time.Time) bool {
	return rt.RevokedAt == nil && t.Before(rt.ExpiresAt)
}

// PasswordReset models a single-use password-reset credential. UsedAt acts
// as the consumed flag: once set, the token never again authorizes a reset,
// even while the row still exists.
type PasswordReset struct {
	ID        uint64     // password_resets.id
	UserID    uint64     // password_resets.user_id
	TokenHash string     // password_resets.token_hash
	ExpiresAt time.Time  // password_resets.expires_at
	UsedAt    *time.Time // password_resets.used_at (nullable)
	CreatedAt time.Time  // password_resets.created_at
}

// EmailVerification models a single-use email-verification credential. The
// email is captured at issue time so a later address change cannot verify
// the wrong address.
type EmailVerification struct {
	ID        uint64     // email_verifications.id
	UserID    uint64     // email_verifications.user_id
	TokenHash string     // email_verifications.token_hash
	Email     string     // email_verifications.email
	ExpiresAt time.Time  // email_verifications.expires_at
	UsedAt    *time.Time // email_verifications.used_at (nullable)
	CreatedAt time.Time  // email_verifications.created_at
}
