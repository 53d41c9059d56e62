package utils // package utils provides helpers for token signing and hashing

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/writewave/user-service/internal/logger"
)

// Issuer and Audience are fixed claims for every token this service signs.
const (
	Issuer   = "writewave"
	Audience = "writewave-users"
)

// ErrInvalidToken is returned for every verification failure. Signature and
// expiry failures are deliberately not distinguished to the caller; the
// specific cause is only logged server-side.
var ErrInvalidToken = errors.New("invalid or expired token")

// AccessClaims are the verified contents of an access token.
type AccessClaims struct {
	UserID uint64
	Email  string
}

// RefreshClaims are the verified contents of a refresh token. TokenID is
// the ledger identifier minted when the token was issued.
type RefreshClaims struct {
	UserID  uint64
	TokenID string
}

// Signer issues and verifies HS256 tokens for the two token classes. Each
// class uses its own secret so a refresh token can never be replayed as an
// access token even though algorithm and encoding are shared.
type Signer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewSigner builds a Signer from the two class secrets and lifetime strings
// (see ParseExpiry for the accepted format).
func NewSigner(accessSecret, refreshSecret, accessTTL, refreshTTL string) (*Signer, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("signing secrets must not be empty")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	return &Signer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     ParseExpiry(accessTTL),
		refreshTTL:    ParseExpiry(refreshTTL),
	}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (s *Signer) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (s *Signer) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccess signs an access token for the user. The token carries the
// subject, email, issuer, audience, issued-at and absolute expiry.
func (s *Signer) IssueAccess(userID uint64, email string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(s.accessTTL)
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"iss":   Issuer,
		"aud":   Audience,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IssueRefresh signs a refresh token for the user. tokenID identifies the
// ledger entry that tracks this token's revocation state.
func (s *Signer) IssueRefresh(userID uint64, tokenID string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(s.refreshTTL)
	claims := jwt.MapClaims{
		"sub": userID,
		"jti": tokenID,
		"iss": Issuer,
		"aud": Audience,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.refreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccess validates signature, issuer, audience and expiry of an
// access token and returns its claims.
func (s *Signer) VerifyAccess(token string) (AccessClaims, error) {
	claims, err := s.verify(token, s.accessSecret)
	if err != nil {
		logger.Warn().Err(err).Msg("access token verification failed")
		return AccessClaims{}, ErrInvalidToken
	}
	email, _ := claims["email"].(string)
	return AccessClaims{UserID: claimUserID(claims), Email: email}, nil
}

// VerifyRefresh validates signature, issuer, audience and expiry of a
// refresh token and returns its claims.
func (s *Signer) VerifyRefresh(token string) (RefreshClaims, error) {
	claims, err := s.verify(token, s.refreshSecret)
	if err != nil {
		logger.Warn().Err(err).Msg("refresh token verification failed")
		return RefreshClaims{}, ErrInvalidToken
	}
	tokenID, _ := claims["jti"].(string)
	return RefreshClaims{UserID: claimUserID(claims), TokenID: tokenID}, nil
}

func (s *Signer) verify(token string, secret []byte) (jwt.MapClaims, error) {
	tok, err := jwt.Parse(token,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return secret, nil
		},
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return nil, errors.New("invalid claims")
	}
	return claims, nil
}

// claimUserID reads the numeric subject claim. JSON numbers decode as
// float64; string subjects are parsed for interoperability.
func claimUserID(claims jwt.MapClaims) uint64 {
	switch v := claims["sub"].(type) {
	case float64:
		return uint64(v)
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// ParseExpiry converts a lifetime string of the form "<n><unit>" where unit
// is one of s, m, h, d. An unrecognized unit falls back to parsing the
// whole string as raw seconds; on failure the default is one hour.
func ParseExpiry(expiry string) time.Duration {
	const fallback = 3600 * time.Second
	if expiry == "" {
		return fallback
	}
	unit := expiry[len(expiry)-1]
	value, err := strconv.Atoi(expiry[:len(expiry)-1])
	if err == nil {
		switch unit {
		case 's':
			return time.Duration(value) * time.Second
		case 'm':
			return time.Duration(value) * time.Minute
		case 'h':
			return time.Duration(value) * time.Hour
		case 'd':
			return time.Duration(value) * 24 * time.Hour
		}
	}
	if secs, err := strconv.Atoi(expiry); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
