package model

import "time"

// Session represents one authenticated device/browser context, independent
// of the refresh-token ledger. Sessions back the "active sessions" listing
// and forced sign-out; they do not participate in token rotation. The token
// is an independently minted random identifier, never derived from the
// access token.
type Session struct {
	ID             uint64     // sessions.id
	UserID         uint64     // sessions.user_id
	Token          string     // sessions.token
	DeviceInfo     *string    // sessions.device_info (nullable JSON blob)
	IPAddress      *string    // sessions.ip_address (nullable)
	UserAgent      *string    // sessions.user_agent (nullable)
	IsActive       bool       // sessions.is_active
	ExpiresAt      time.Time  // sessions.expires_at
	LastActivityAt time.Time  // sessions.last_activity_at
	CreatedAt      time.Time  // sessions.created_at
}
