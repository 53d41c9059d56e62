package utils

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// ErrMalformedHash signals that a stored hash could not be parsed. It is
// distinct from a plain mismatch, which is not an error.
var ErrMalformedHash = errors.New("malformed password hash")

// Password length bounds enforced by strength validation.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// commonPasswords are rejected outright regardless of composition.
var commonPasswords = map[string]bool{
	"password": true, "123456": true, "123456789": true, "qwerty": true,
	"abc123": true, "password123": true, "admin": true, "letmein": true,
	"welcome": true, "monkey": true,
}

// HashPassword returns a bcrypt hash using the given cost. Each call salts
// independently, so hashing the same password twice yields different hashes.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword compares a bcrypt hash with a plain password. A mismatch
// returns (false, nil); only a hash that bcrypt cannot parse produces an
// error.
func VerifyPassword(hash, plain string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, ErrMalformedHash
	}
}

// PasswordStrength is the result of ValidatePasswordStrength. Score counts
// satisfied rules; Valid requires zero errors. The tier derived from Score
// is a UX hint, not a security decision.
type PasswordStrength struct {
	Valid  bool
	Errors []string
	Score  int
}

// ValidatePasswordStrength evaluates length bounds, character-class
// coverage, common-password rejection and repeated-character rejection.
// Each satisfied rule adds one point to the score.
func ValidatePasswordStrength(password string) PasswordStrength {
	var errs []string
	score := 0

	// Length bounds count characters, not bytes: a multibyte password is
	// as long as the user sees it.
	runes := utf8.RuneCountInString(password)
	if runes < MinPasswordLength {
		errs = append(errs, "password must be at least 8 characters long")
	} else {
		score++
	}
	if runes > MaxPasswordLength {
		errs = append(errs, "password must be no more than 128 characters long")
	} else {
		score++
	}
	if !strings.ContainsFunc(password, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
		errs = append(errs, "password must contain at least one uppercase letter")
	} else {
		score++
	}
	if !strings.ContainsFunc(password, func(r rune) bool { return r >= 'a' && r <= 'z' }) {
		errs = append(errs, "password must contain at least one lowercase letter")
	} else {
		score++
	}
	if !strings.ContainsFunc(password, func(r rune) bool { return r >= '0' && r <= '9' }) {
		errs = append(errs, "password must contain at least one number")
	} else {
		score++
	}
	if !strings.ContainsAny(password, "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?") {
		errs = append(errs, "password must contain at least one special character")
	} else {
		score++
	}
	if commonPasswords[strings.ToLower(password)] {
		errs = append(errs, "password is too common")
	} else {
		score++
	}
	if hasTripleRepeat(password) {
		errs = append(errs, "password cannot contain more than 2 consecutive identical characters")
	} else {
		score++
	}

	return PasswordStrength{Valid: len(errs) == 0, Errors: errs, Score: score}
}

// PasswordStrengthLevel buckets a strength score into a display tier.
func PasswordStrengthLevel(score int) string {
	switch {
	case score < 4:
		return "weak"
	case score < 6:
		return "medium"
	case score < 8:
		return "strong"
	default:
		return "very-strong"
	}
}

// hasTripleRepeat reports whether the string contains three or more
// consecutive identical bytes.
func hasTripleRepeat(s string) bool {
	for i := 2; i < len(s); i++ {
		if s[i] == s[i-1] && s[i] == s[i-2] {
			return true
		}
	}
	return false
}
