package service

import (
	"errors"
	"strings"
)

// Sentinel errors returned by the auth service. Handlers map these onto the
// response envelope; anything else becomes a 500 without leaking internals.
var (
	// ErrInvalidCredentials covers unknown email, passwordless account and
	// wrong password alike. The collapse is deliberate: login failures must
	// not reveal whether an account exists.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountDeactivated is returned whenever the acting account has
	// is_active cleared, regardless of credential validity.
	ErrAccountDeactivated = errors.New("account deactivated")

	ErrEmailExists    = errors.New("email already registered")
	ErrUsernameExists = errors.New("username already taken")

	ErrInvalidRefreshToken = errors.New("refresh token invalid or revoked")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	ErrInvalidResetToken        = errors.New("reset token invalid or already used")
	ErrResetTokenExpired        = errors.New("reset token expired")
	ErrInvalidVerificationToken = errors.New("verification token invalid or already used")
	ErrVerificationTokenExpired = errors.New("verification token expired")

	ErrUserNotFound         = errors.New("user not found")
	ErrEmailAlreadyVerified = errors.New("email already verified")
)

// ValidationError carries the individual reasons a request body failed
// validation.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Reasons, "; ")
}
