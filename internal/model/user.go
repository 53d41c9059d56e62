package model

import "time"

// Provider identifies a supported OAuth provider. The set is closed: lookup
// and storage are parameterized by provider name, and each provider maps to
// one fixed nullable column on the users table.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderApple  Provider = "apple"
)

// Valid reports whether p names a supported provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGoogle, ProviderApple:
		return true
	}
	return false
}

// User represents an application user record as stored in the `users`
// table. PasswordHash is nil for OAuth-only accounts; at least one of
// {PasswordHash, a provider id} must be set for the user to authenticate.
//
// Fields:
//
//	ID              – primary key identifier of the user.
//	Email           – unique email address, stored lower-cased.
//	Username        – optional unique handle ([A-Za-z0-9_-], 3–30 chars).
//	PasswordHash    – bcrypt hash; nil when the account is OAuth-only.
//	FirstName       – optional given name.
//	LastName        – optional family name.
//	IsEmailVerified – whether the address has been confirmed.
//	IsActive        – whether the account may authenticate.
//	LastLoginAt     – timestamp of the most recent successful login.
//	GoogleID        – Google subject id when the account is linked.
//	AppleID         – Apple subject id when the account is linked.
//	CreatedAt       – timestamp of creation.
//	UpdatedAt       – timestamp of last update.
type User struct {
	ID              uint64     // users.id
	Email           string     // users.email
	Username        *string    // users.username (nullable)
	PasswordHash    *string    // users.password_hash (nullable)
	FirstName       *string    // users.first_name (nullable)
	LastName        *string    // users.last_name (nullable)
	IsEmailVerified bool       // users.is_email_verified
	IsActive        bool       // users.is_active
	LastLoginAt     *time.Time // users.last_login_at (nullable)
	GoogleID        *string    // users.google_id (nullable)
	AppleID         *string    // users.apple_id (nullable)
	CreatedAt       time.Time  // users.created_at
	UpdatedAt       time.Time  // users.updated_at

	Profile  *Profile  // loaded on demand, nil otherwise
	Settings *Settings // loaded on demand, nil otherwise
}

// ProviderID returns the stored subject id for the given provider, or nil
// when the account is not linked to it.
func (u *User) ProviderID(p Provider) *string {
	switch p {
	case ProviderGoogle:
		return u.GoogleID
	case ProviderApple:
		return u.AppleID
	}
	return nil
}

// CanAuthenticate reports whether the record satisfies the credential
// invariant: a password hash or at least one linked provider.
func (u *User) CanAuthenticate() bool {
	return u.PasswordHash != nil || u.GoogleID != nil || u.AppleID != nil
}

// Profile mirrors the `user_profiles` table. One row is created per user
// during registration.
type Profile struct {
	ID              uint64    // user_profiles.id
	UserID          uint64    // user_profiles.user_id
	Language        string    // user_profiles.language
	DifficultyLevel string    // user_profiles.difficulty_level
	Bio             *string   // user_profiles.bio (nullable)
	CreatedAt       time.Time // user_profiles.created_at
	UpdatedAt       time.Time // user_profiles.updated_at
}

// Settings mirrors the `user_settings` table. One row is created per user
// during registration with defaults applied by the schema.
type Settings struct {
	ID                 uint64    // user_settings.id
	UserID             uint64    // user_settings.user_id
	EmailNotifications bool      // user_settings.email_notifications
	Theme              string    // user_settings.theme
	CreatedAt          time.Time // user_settings.created_at
	UpdatedAt          time.Time // user_settings.updated_at
}
