// Package service implements the authentication flows: registration, login,
// OAuth, refresh rotation, logout, password reset, email verification and
// session listing. It depends only on the narrow store interfaces defined in
// store.go, so every collaborator is injected and replaceable in tests.
package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/writewave/user-service/internal/logger"
	"github.com/writewave/user-service/internal/model"
	"github.com/writewave/user-service/internal/queue"
	"github.com/writewave/user-service/internal/repository"
	"github.com/writewave/user-service/internal/utils"
)

// Lifetimes of the opaque credentials and device sessions.
const (
	ResetTokenTTL        = time.Hour
	VerificationTokenTTL = 24 * time.Hour
	SessionTTL           = 24 * time.Hour
)

var (
	emailRx    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernameRx = regexp.MustCompile(`^[A-Za-z0-9_-]{3,30}$`)
)

// AuthService orchestrates every authentication flow. All persistence,
// signing, mail and event dependencies are injected.
type AuthService struct {
	users         UserStore
	tokens        RefreshTokenStore
	sessions      SessionStore
	resets        ResetStore
	verifications VerificationStore
	signer        *utils.Signer
	mailer        Mailer
	events        EventPublisher
	bcryptCost    int
}

// Deps collects the collaborators of AuthService.
type Deps struct {
	Users         UserStore
	Tokens        RefreshTokenStore
	Sessions      SessionStore
	Resets        ResetStore
	Verifications VerificationStore
	Signer        *utils.Signer
	Mailer        Mailer
	Events        EventPublisher
	BcryptCost    int
}

func NewAuthService(d Deps) *AuthService {
	return &AuthService{
		users:         d.Users,
		tokens:        d.Tokens,
		sessions:      d.Sessions,
		resets:        d.Resets,
		verifications: d.Verifications,
		signer:        d.Signer,
		mailer:        d.Mailer,
		events:        d.Events,
		bcryptCost:    d.BcryptCost,
	}
}

// DeviceContext carries per-request client details recorded on refresh
// tokens and sessions.
type DeviceContext struct {
	DeviceInfo *string
	IPAddress  *string
	UserAgent  *string
}

// TokenPair is an access/refresh token pair. ExpiresIn is the access-token
// lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// ProfileSummary is the client-facing shape of a profile row.
type ProfileSummary struct {
	Language        string  `json:"language"`
	DifficultyLevel string  `json:"difficultyLevel"`
	Bio             *string `json:"bio,omitempty"`
}

// SettingsSummary is the client-facing shape of a settings row.
type SettingsSummary struct {
	EmailNotifications bool   `json:"emailNotifications"`
	Theme              string `json:"theme"`
}

// UserSummary is the client-facing shape of a user. It never carries the
// password hash or provider subject ids.
type UserSummary struct {
	ID              uint64           `json:"id"`
	Email           string           `json:"email"`
	Username        *string          `json:"username,omitempty"`
	FirstName       *string          `json:"firstName,omitempty"`
	LastName        *string          `json:"lastName,omitempty"`
	IsEmailVerified bool             `json:"isEmailVerified"`
	IsActive        bool             `json:"isActive"`
	LastLoginAt     *time.Time       `json:"lastLoginAt,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	Profile         *ProfileSummary  `json:"profile,omitempty"`
	Settings        *SettingsSummary `json:"settings,omitempty"`
}

// NewUserSummary projects a user record onto its client-facing shape.
func NewUserSummary(u model.User) UserSummary {
	s := UserSummary{
		ID:              u.ID,
		Email:           u.Email,
		Username:        u.Username,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		IsEmailVerified: u.IsEmailVerified,
		IsActive:        u.IsActive,
		LastLoginAt:     u.LastLoginAt,
		CreatedAt:       u.CreatedAt,
	}
	if u.Profile != nil {
		s.Profile = &ProfileSummary{
			Language:        u.Profile.Language,
			DifficultyLevel: u.Profile.DifficultyLevel,
			Bio:             u.Profile.Bio,
		}
	}
	if u.Settings != nil {
		s.Settings = &SettingsSummary{
			EmailNotifications: u.Settings.EmailNotifications,
			Theme:              u.Settings.Theme,
		}
	}
	return s
}

// AuthResult is the outcome of a flow that authenticates a user.
type AuthResult struct {
	User      UserSummary `json:"user"`
	Tokens    TokenPair   `json:"tokens"`
	IsNewUser bool        `json:"isNewUser,omitempty"`
}

// RegisterInput carries a registration request body.
type RegisterInput struct {
	Email     string
	Username  *string
	Password  string
	FirstName *string
	LastName  *string
}

// Register creates a password account, issues its first token pair and
// kicks off email verification. Conflicts surface as ErrEmailExists or
// ErrUsernameExists even when two registrations race; the unique indexes
// are the final arbiter.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, device DeviceContext) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	var reasons []string
	if !emailRx.MatchString(email) {
		reasons = append(reasons, "a valid email address is required")
	}
	if in.Username != nil && !usernameRx.MatchString(*in.Username) {
		reasons = append(reasons, "username must be 3-30 characters of letters, numbers, underscore or hyphen")
	}
	if ps := utils.ValidatePasswordStrength(in.Password); !ps.Valid {
		reasons = append(reasons, ps.Errors...)
	}
	if len(reasons) > 0 {
		return nil, &ValidationError{Reasons: reasons}
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if in.Username != nil {
		if _, err := s.users.GetByUsername(ctx, *in.Username); err == nil {
			return nil, ErrUsernameExists
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	id, err := s.users.Create(ctx, repository.CreateParams{
		Email:        email,
		Username:     in.Username,
		PasswordHash: &hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return nil, ErrEmailExists
		case errors.Is(err, repository.ErrUsernameExists):
			return nil, ErrUsernameExists
		}
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	logger.Auth("user registered", user.ID).Str("email", user.Email).Send()

	s.startVerification(ctx, user, true)
	s.publish(ctx, queue.UserEvent{
		Type:       queue.TypeUserCreated,
		UserID:     user.ID,
		Email:      user.Email,
		Username:   user.Username,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})

	tokens, err := s.issueTokens(ctx, user, device)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: NewUserSummary(user), Tokens: tokens}, nil
}

// LoginInput carries a login request body.
type LoginInput struct {
	Email    string
	Password string
}

// Login authenticates an email/password pair. Unknown email, missing
// password hash and wrong password all collapse to ErrInvalidCredentials;
// the distinction is only logged.
func (s *AuthService) Login(ctx context.Context, in LoginInput, device DeviceContext) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, &ValidationError{Reasons: []string{"email and password are required"}}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Warn().Str("email", email).Msg("login failed: unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}
	if user.PasswordHash == nil {
		logger.Warn().Uint64("user_id", user.ID).Msg("login failed: oauth-only account")
		return nil, ErrInvalidCredentials
	}
	ok, err := utils.VerifyPassword(*user.PasswordHash, in.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		logger.Warn().Uint64("user_id", user.ID).Msg("login failed: wrong password")
		return nil, ErrInvalidCredentials
	}

	s.stampLoginAndSession(ctx, &user, device)
	tokens, err := s.issueTokens(ctx, user, device)
	if err != nil {
		return nil, err
	}
	logger.Auth("user logged in", user.ID).Send()
	return &AuthResult{User: NewUserSummary(user), Tokens: tokens}, nil
}

// OAuthInput carries a provider-asserted identity.
type OAuthInput struct {
	Provider   model.Provider
	ProviderID string
	Email      string
	FirstName  *string
	LastName   *string
}

// OAuthLogin signs in (or up) a user asserted by an OAuth provider. A new
// account is created when neither the provider subject nor the email
// matches; an email-matched account gets the provider linked and its email
// marked verified.
func (s *AuthService) OAuthLogin(ctx context.Context, in OAuthInput, device DeviceContext) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !in.Provider.Valid() || in.ProviderID == "" || !emailRx.MatchString(email) {
		return nil, &ValidationError{Reasons: []string{"provider, provider id and email are required"}}
	}

	isNew := false
	user, err := s.users.FindByProviderOrEmail(ctx, in.Provider, in.ProviderID, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		id, err := s.users.Create(ctx, repository.CreateParams{
			Email:         email,
			FirstName:     in.FirstName,
			LastName:      in.LastName,
			EmailVerified: true, // the provider vouches for the address
			Provider:      in.Provider,
			ProviderID:    &in.ProviderID,
		})
		if err != nil {
			return nil, err
		}
		user, err = s.users.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		isNew = true
		logger.Auth("oauth user created", user.ID).Str("provider", string(in.Provider)).Send()
		s.publish(ctx, queue.UserEvent{
			Type:       queue.TypeUserCreated,
			UserID:     user.ID,
			Email:      user.Email,
			OccurredAt: time.Now().UTC().Format(time.RFC3339),
		})
	case err != nil:
		return nil, err
	default:
		if !user.IsActive {
			return nil, ErrAccountDeactivated
		}
		if user.ProviderID(in.Provider) == nil {
			if err := s.users.LinkProvider(ctx, user.ID, in.Provider, in.ProviderID); err != nil {
				return nil, err
			}
			user.IsEmailVerified = true
			logger.Auth("oauth provider linked", user.ID).Str("provider", string(in.Provider)).Send()
		}
	}

	s.stampLoginAndSession(ctx, &user, device)
	tokens, err := s.issueTokens(ctx, user, device)
	if err != nil {
		return nil, err
	}
	logger.Auth("oauth login", user.ID).Str("provider", string(in.Provider)).Send()
	return &AuthResult{User: NewUserSummary(user), Tokens: tokens, IsNewUser: isNew}, nil
}

// Refresh exchanges a live refresh token for a new pair. Rotation is
// guarded in the ledger: when two exchanges race on the same token exactly
// one wins and the loser gets ErrInvalidRefreshToken.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*TokenPair, error) {
	if rawToken == "" {
		return nil, &ValidationError{Reasons: []string{"refresh token is required"}}
	}
	claims, err := s.signer.VerifyRefresh(rawToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	oldHash := utils.HashToken(rawToken)
	entry, err := s.tokens.GetByHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if entry.RevokedAt != nil {
		logger.Warn().Uint64("user_id", entry.UserID).Msg("revoked refresh token presented")
		return nil, ErrInvalidRefreshToken
	}
	if time.Now().UTC().After(entry.ExpiresAt) {
		return nil, ErrRefreshTokenExpired
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	access, _, err := s.signer.IssueAccess(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.signer.IssueRefresh(user.ID, utils.NewTokenID())
	if err != nil {
		return nil, err
	}
	// Device info carries over from the rotated entry.
	err = s.tokens.Rotate(ctx, oldHash, user.ID, utils.HashToken(refresh), entry.DeviceInfo, refreshExp)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.signer.AccessTTL().Seconds()),
	}, nil
}

// Logout revokes the presented refresh token. Unknown and already-revoked
// tokens are treated as success; logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return &ValidationError{Reasons: []string{"refresh token is required"}}
	}
	return s.tokens.Revoke(ctx, utils.HashToken(rawToken))
}

// LogoutAll revokes every refresh token and deactivates every session of
// the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID uint64) error {
	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}
	if err := s.sessions.DeactivateAll(ctx, userID); err != nil {
		return err
	}
	logger.Auth("logout all devices", userID).Send()
	return nil
}

// RequestPasswordReset creates a reset credential and emails it. Callers
// always receive the same nil outcome whether or not the account exists, so
// the endpoint cannot be used to enumerate addresses.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailRx.MatchString(email) {
		return &ValidationError{Reasons: []string{"a valid email address is required"}}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Info().Str("email", email).Msg("password reset requested for unknown email")
			return nil
		}
		return err
	}
	if !user.IsActive {
		logger.Info().Uint64("user_id", user.ID).Msg("password reset requested for deactivated account")
		return nil
	}

	token, err := utils.NewOpaqueToken()
	if err != nil {
		return err
	}
	exp := time.Now().UTC().Add(ResetTokenTTL)
	if err := s.resets.Create(ctx, user.ID, utils.HashToken(token), exp); err != nil {
		return err
	}
	if err := s.mailer.SendPasswordReset(ctx, user.Email, displayName(user), token); err != nil {
		logger.Error().Err(err).Uint64("user_id", user.ID).Msg("reset email failed")
	}
	logger.Auth("password reset requested", user.ID).Send()
	return nil
}

// ConfirmPasswordReset validates a reset token, sets the new password and
// revokes every refresh token and session of the user. The token is
// single-use even under concurrent replay.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, rawToken, newPassword string) error {
	if rawToken == "" {
		return &ValidationError{Reasons: []string{"reset token is required"}}
	}
	if ps := utils.ValidatePasswordStrength(newPassword); !ps.Valid {
		return &ValidationError{Reasons: ps.Errors}
	}

	rec, err := s.resets.GetByHash(ctx, utils.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	if rec.UsedAt != nil {
		return ErrInvalidResetToken
	}
	if time.Now().UTC().After(rec.ExpiresAt) {
		return ErrResetTokenExpired
	}
	user, err := s.users.GetByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	if !user.IsActive {
		return ErrAccountDeactivated
	}

	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.resets.Consume(ctx, rec.ID, user.ID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken // lost the replay race
		}
		return err
	}
	if err := s.sessions.DeactivateAll(ctx, user.ID); err != nil {
		logger.Error().Err(err).Uint64("user_id", user.ID).Msg("session deactivation after reset failed")
	}

	if err := s.mailer.SendPasswordChanged(ctx, user.Email, displayName(user)); err != nil {
		logger.Error().Err(err).Uint64("user_id", user.ID).Msg("password-changed email failed")
	}
	s.publish(ctx, queue.UserEvent{
		Type:       queue.TypePasswordChanged,
		UserID:     user.ID,
		Email:      user.Email,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})
	logger.Auth("password reset completed", user.ID).Send()
	return nil
}

// VerifyEmail consumes a verification token and marks the address verified.
func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return &ValidationError{Reasons: []string{"verification token is required"}}
	}
	rec, err := s.verifications.GetByHash(ctx, utils.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidVerificationToken
		}
		return err
	}
	if rec.UsedAt != nil {
		return ErrInvalidVerificationToken
	}
	if time.Now().UTC().After(rec.ExpiresAt) {
		return ErrVerificationTokenExpired
	}
	if err := s.verifications.Consume(ctx, rec.ID, rec.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidVerificationToken
		}
		return err
	}
	logger.Auth("email verified", rec.UserID).Str("email", rec.Email).Send()
	return nil
}

// ResendVerification issues a fresh verification token for an unverified
// account.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailRx.MatchString(email) {
		return &ValidationError{Reasons: []string{"a valid email address is required"}}
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.IsEmailVerified {
		return ErrEmailAlreadyVerified
	}
	s.startVerification(ctx, user, false)
	return nil
}

// Sessions lists the user's active sessions, most recently used first.
func (s *AuthService) Sessions(ctx context.Context, userID uint64) ([]model.Session, error) {
	return s.sessions.ListActive(ctx, userID)
}

// PurgeExpired deletes expired refresh tokens, sessions, reset and
// verification records. Intended to run periodically in the background.
func (s *AuthService) PurgeExpired(ctx context.Context) error {
	var errs []error
	if n, err := s.tokens.DeleteExpired(ctx); err != nil {
		errs = append(errs, err)
	} else if n > 0 {
		logger.Info().Int64("count", n).Msg("purged expired refresh tokens")
	}
	if n, err := s.sessions.DeleteExpired(ctx); err != nil {
		errs = append(errs, err)
	} else if n > 0 {
		logger.Info().Int64("count", n).Msg("purged expired sessions")
	}
	if n, err := s.resets.DeleteExpired(ctx); err != nil {
		errs = append(errs, err)
	} else if n > 0 {
		logger.Info().Int64("count", n).Msg("purged expired password resets")
	}
	if n, err := s.verifications.DeleteExpired(ctx); err != nil {
		errs = append(errs, err)
	} else if n > 0 {
		logger.Info().Int64("count", n).Msg("purged expired email verifications")
	}
	return errors.Join(errs...)
}

// issueTokens mints an access/refresh pair and records the refresh token in
// the ledger.
func (s *AuthService) issueTokens(ctx context.Context, user model.User, device DeviceContext) (TokenPair, error) {
	access, _, err := s.signer.IssueAccess(user.ID, user.Email)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.signer.IssueRefresh(user.ID, utils.NewTokenID())
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.tokens.Store(ctx, user.ID, utils.HashToken(refresh), device.DeviceInfo, refreshExp); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.signer.AccessTTL().Seconds()),
	}, nil
}

// stampLoginAndSession records the login timestamp and opens a device
// session. Both are best-effort; a failure never blocks the login.
func (s *AuthService) stampLoginAndSession(ctx context.Context, user *model.User, device DeviceContext) {
	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		logger.Error().Err(err).Uint64("user_id", user.ID).Msg("last-login update failed")
	} else {
		user.LastLoginAt = &now
	}
	token := utils.NewSessionToken()
	if err := s.sessions.Create(ctx, user.ID, token, device.DeviceInfo, device.IPAddress, device.UserAgent, now.Add(SessionTTL)); err != nil {
		logger.Error().Err(err).Uint64("user_id", user.ID).Msg("session create failed")
	}
}

// startVerification mints and emails a verification token. welcome selects
// the welcome template used on first registration.
func (s *AuthService) startVerification(ctx context.Context, user model.User, welcome bool) {
	token, err := utils.NewOpaqueToken()
	if err != nil {
		logger.Error().Err(err).Uint64("user_id", user.ID).Msg("verification token mint failed")
		return
	}
	exp := time.Now().UTC().Add(VerificationTokenTTL)
	if err := s.verifications.Create(ctx, user.ID, utils.HashToken(token), user.Email, exp); err != nil {
		logger.Error().Err(err).Uint64("user_id", user.ID).Msg("verification record create failed")
		return
	}
	name := displayName(user)
	if welcome {
		err = s.mailer.SendWelcome(ctx, user.Email, name, token)
	} else {
		err = s.mailer.SendVerification(ctx, user.Email, name, token)
	}
	if err != nil {
		logger.Error().Err(err).Uint64("user_id", user.ID).Msg("verification email failed")
	}
}

func (s *AuthService) publish(ctx context.Context, ev queue.UserEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		logger.Error().Err(err).Str("event", ev.Type).Msg("event publish failed")
	}
}

// displayName picks the friendliest available name for email salutations.
func displayName(u model.User) string {
	if u.FirstName != nil && *u.FirstName != "" {
		return *u.FirstName
	}
	if u.Username != nil && *u.Username != "" {
		return *u.Username
	}
	if i := strings.IndexByte(u.Email, '@'); i > 0 {
		return u.Email[:i]
	}
	return u.Email
}
