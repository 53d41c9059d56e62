package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/writewave/user-service/internal/model"
	"github.com/writewave/user-service/internal/queue"
	"github.com/writewave/user-service/internal/repository"
	"github.com/writewave/user-service/internal/service"
	"github.com/writewave/user-service/internal/utils"
)

// ---- in-memory fakes -------------------------------------------------------

type fakeUsers struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]*model.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: make(map[uint64]*model.User)}
}

func (f *fakeUsers) Create(_ context.Context, p repository.CreateParams) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(p.Email))
	for _, u := range f.byID {
		if u.Email == email {
			return 0, repository.ErrEmailExists
		}
		if p.Username != nil && u.Username != nil && *u.Username == *p.Username {
			return 0, repository.ErrUsernameExists
		}
	}
	f.nextID++
	now := time.Now().UTC()
	u := &model.User{
		ID:              f.nextID,
		Email:           email,
		Username:        p.Username,
		PasswordHash:    p.PasswordHash,
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		IsEmailVerified: p.EmailVerified,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if p.ProviderID != nil {
		switch p.Provider {
		case model.ProviderGoogle:
			u.GoogleID = p.ProviderID
		case model.ProviderApple:
			u.AppleID = p.ProviderID
		}
	}
	f.byID[u.ID] = u
	return u.ID, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range f.byID {
		if u.Email == email {
			return *u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		return *u, nil
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Username != nil && *u.Username == username {
			return *u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) FindByProviderOrEmail(_ context.Context, provider model.Provider, providerID, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if pid := u.ProviderID(provider); pid != nil && *pid == providerID {
			return *u, nil
		}
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range f.byID {
		if u.Email == email {
			return *u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) GetWithRelations(ctx context.Context, id uint64) (model.User, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeUsers) LinkProvider(_ context.Context, userID uint64, provider model.Provider, providerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	switch provider {
	case model.ProviderGoogle:
		u.GoogleID = &providerID
	case model.ProviderApple:
		u.AppleID = &providerID
	}
	u.IsEmailVerified = true
	return nil
}

func (f *fakeUsers) UpdateLastLogin(_ context.Context, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[userID]; ok {
		now := time.Now().UTC()
		u.LastLoginAt = &now
	}
	return nil
}

func (f *fakeUsers) setPassword(userID uint64, hash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[userID]; ok {
		u.PasswordHash = &hash
	}
}

func (f *fakeUsers) setVerified(userID uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[userID]; ok {
		u.IsEmailVerified = true
	}
}

func (f *fakeUsers) deactivate(userID uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[userID]; ok {
		u.IsActive = false
	}
}

type fakeTokens struct {
	mu     sync.Mutex
	nextID uint64
	byHash map[string]*model.RefreshToken
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{byHash: make(map[string]*model.RefreshToken)}
}

func (f *fakeTokens) Store(_ context.Context, userID uint64, tokenHash string, deviceInfo *string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.byHash[tokenHash] = &model.RefreshToken{
		ID: f.nextID, UserID: userID, TokenHash: tokenHash,
		DeviceInfo: deviceInfo, ExpiresAt: exp, CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (f *fakeTokens) GetByHash(_ context.Context, tokenHash string) (model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rt, ok := f.byHash[tokenHash]; ok {
		return *rt, nil
	}
	return model.RefreshToken{}, repository.ErrNotFound
}

func (f *fakeTokens) Rotate(_ context.Context, oldHash string, userID uint64, newHash string, deviceInfo *string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.byHash[oldHash]
	if !ok || old.RevokedAt != nil {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	old.RevokedAt = &now
	f.nextID++
	f.byHash[newHash] = &model.RefreshToken{
		ID: f.nextID, UserID: userID, TokenHash: newHash,
		DeviceInfo: deviceInfo, ExpiresAt: exp, CreatedAt: now,
	}
	return nil
}

func (f *fakeTokens) Revoke(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rt, ok := f.byHash[tokenHash]; ok && rt.RevokedAt == nil {
		now := time.Now().UTC()
		rt.RevokedAt = &now
	}
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokeAllLocked(userID)
	return nil
}

func (f *fakeTokens) revokeAllLocked(userID uint64) {
	now := time.Now().UTC()
	for _, rt := range f.byHash {
		if rt.UserID == userID && rt.RevokedAt == nil {
			rt.RevokedAt = &now
		}
	}
}

func (f *fakeTokens) DeleteExpired(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for h, rt := range f.byHash {
		if rt.ExpiresAt.Before(now) {
			delete(f.byHash, h)
			n++
		}
	}
	return n, nil
}

func (f *fakeTokens) liveCount(userID uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, rt := range f.byHash {
		if rt.UserID == userID && rt.RevokedAt == nil {
			n++
		}
	}
	return n
}

type fakeSessions struct {
	mu       sync.Mutex
	nextID   uint64
	sessions []*model.Session
}

func (f *fakeSessions) Create(_ context.Context, userID uint64, token string, deviceInfo, ipAddress, userAgent *string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	now := time.Now().UTC()
	f.sessions = append(f.sessions, &model.Session{
		ID: f.nextID, UserID: userID, Token: token,
		DeviceInfo: deviceInfo, IPAddress: ipAddress, UserAgent: userAgent,
		IsActive: true, ExpiresAt: exp, LastActivityAt: now, CreatedAt: now,
	})
	return nil
}

func (f *fakeSessions) ListActive(_ context.Context, userID uint64) ([]model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Session
	now := time.Now().UTC()
	for _, s := range f.sessions {
		if s.UserID == userID && s.IsActive && s.ExpiresAt.After(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessions) DeactivateAll(_ context.Context, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.UserID == userID {
			s.IsActive = false
		}
	}
	return nil
}

func (f *fakeSessions) DeleteExpired(_ context.Context) (int64, error) { return 0, nil }

type fakeResets struct {
	mu      sync.Mutex
	nextID  uint64
	records map[uint64]*model.PasswordReset
	users   *fakeUsers
	tokens  *fakeTokens
}

func newFakeResets(users *fakeUsers, tokens *fakeTokens) *fakeResets {
	return &fakeResets{records: make(map[uint64]*model.PasswordReset), users: users, tokens: tokens}
}

func (f *fakeResets) Create(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.records[f.nextID] = &model.PasswordReset{
		ID: f.nextID, UserID: userID, TokenHash: tokenHash,
		ExpiresAt: exp, CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (f *fakeResets) GetByHash(_ context.Context, tokenHash string) (model.PasswordReset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.TokenHash == tokenHash {
			return *r, nil
		}
	}
	return model.PasswordReset{}, repository.ErrNotFound
}

func (f *fakeResets) Consume(_ context.Context, resetID, userID uint64, newPasswordHash string) error {
	f.mu.Lock()
	r, ok := f.records[resetID]
	if !ok || r.UsedAt != nil {
		f.mu.Unlock()
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	r.UsedAt = &now
	f.mu.Unlock()

	f.users.setPassword(userID, newPasswordHash)
	return f.tokens.RevokeAllForUser(context.Background(), userID)
}

func (f *fakeResets) DeleteExpired(_ context.Context) (int64, error) { return 0, nil }

type fakeVerifications struct {
	mu      sync.Mutex
	nextID  uint64
	records map[uint64]*model.EmailVerification
	users   *fakeUsers
}

func newFakeVerifications(users *fakeUsers) *fakeVerifications {
	return &fakeVerifications{records: make(map[uint64]*model.EmailVerification), users: users}
}

func (f *fakeVerifications) Create(_ context.Context, userID uint64, tokenHash, email string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.records[f.nextID] = &model.EmailVerification{
		ID: f.nextID, UserID: userID, TokenHash: tokenHash, Email: email,
		ExpiresAt: exp, CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (f *fakeVerifications) GetByHash(_ context.Context, tokenHash string) (model.EmailVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.TokenHash == tokenHash {
			return *r, nil
		}
	}
	return model.EmailVerification{}, repository.ErrNotFound
}

func (f *fakeVerifications) Consume(_ context.Context, verificationID, userID uint64) error {
	f.mu.Lock()
	r, ok := f.records[verificationID]
	if !ok || r.UsedAt != nil {
		f.mu.Unlock()
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	r.UsedAt = &now
	f.mu.Unlock()

	f.users.setVerified(userID)
	return nil
}

func (f *fakeVerifications) DeleteExpired(_ context.Context) (int64, error) { return 0, nil }

// fakeMailer records every send and the last token of each kind.
type fakeMailer struct {
	mu                sync.Mutex
	welcomeToken      string
	verificationToken string
	resetToken        string
	passwordChanged   int
}

func (m *fakeMailer) SendWelcome(_ context.Context, _, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcomeToken = token
	return nil
}

func (m *fakeMailer) SendVerification(_ context.Context, _, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verificationToken = token
	return nil
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, _, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetToken = token
	return nil
}

func (m *fakeMailer) SendPasswordChanged(_ context.Context, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passwordChanged++
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []queue.UserEvent
}

func (f *fakeEvents) Publish(_ context.Context, ev queue.UserEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEvents) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	return out
}

// ---- fixture ---------------------------------------------------------------

type fixture struct {
	users    *fakeUsers
	tokens   *fakeTokens
	sessions *fakeSessions
	resets   *fakeResets
	ver      *fakeVerifications
	mailer   *fakeMailer
	events   *fakeEvents
	svc      *service.AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	signer, err := utils.NewSigner("test-access-secret", "test-refresh-secret", "15m", "7d")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	users := newFakeUsers()
	tokens := newFakeTokens()
	f := &fixture{
		users:    users,
		tokens:   tokens,
		sessions: &fakeSessions{},
		resets:   newFakeResets(users, tokens),
		ver:      newFakeVerifications(users),
		mailer:   &fakeMailer{},
		events:   &fakeEvents{},
	}
	f.svc = service.NewAuthService(service.Deps{
		Users:         f.users,
		Tokens:        f.tokens,
		Sessions:      f.sessions,
		Resets:        f.resets,
		Verifications: f.ver,
		Signer:        signer,
		Mailer:        f.mailer,
		Events:        f.events,
		BcryptCost:    4, // minimum bcrypt cost keeps the suite fast
	})
	return f
}

const goodPassword = "Go0d&Strong!"

func (f *fixture) register(t *testing.T, email string) *service.AuthResult {
	t.Helper()
	res, err := f.svc.Register(context.Background(), service.RegisterInput{
		Email:    email,
		Password: goodPassword,
	}, service.DeviceContext{})
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return res
}

// ---- tests -----------------------------------------------------------------

func TestRegister(t *testing.T) {
	f := newFixture(t)
	res := f.register(t, "new@example.com")

	if res.User.Email != "new@example.com" {
		t.Errorf("email = %q", res.User.Email)
	}
	if res.User.IsEmailVerified {
		t.Error("fresh account reported verified")
	}
	if res.Tokens.AccessToken == "" || res.Tokens.RefreshToken == "" {
		t.Error("token pair incomplete")
	}
	if f.mailer.welcomeToken == "" {
		t.Error("no welcome email sent")
	}
	if got := f.events.types(); len(got) != 1 || got[0] != queue.TypeUserCreated {
		t.Errorf("events = %v, want [user.created]", got)
	}
	// The ledger must hold the hash, never the raw token.
	if _, err := f.tokens.GetByHash(context.Background(), utils.HashToken(res.Tokens.RefreshToken)); err != nil {
		t.Errorf("ledger entry for refresh hash missing: %v", err)
	}
	if _, err := f.tokens.GetByHash(context.Background(), res.Tokens.RefreshToken); err == nil {
		t.Error("ledger stores the raw refresh token")
	}
}

func TestRegisterNormalizesEmail(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Register(context.Background(), service.RegisterInput{
		Email:    "  MiXeD@Example.COM ",
		Password: goodPassword,
	}, service.DeviceContext{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.User.Email != "mixed@example.com" {
		t.Errorf("email = %q, want lower-cased trimmed", res.User.Email)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), service.RegisterInput{
		Email:    "weak@example.com",
		Password: "short",
	}, service.DeviceContext{})
	var ve *service.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(ve.Reasons) == 0 {
		t.Error("validation error carries no reasons")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "dup@example.com")
	_, err := f.svc.Register(context.Background(), service.RegisterInput{
		Email:    "dup@example.com",
		Password: goodPassword,
	}, service.DeviceContext{})
	if !errors.Is(err, service.ErrEmailExists) {
		t.Errorf("err = %v, want ErrEmailExists", err)
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "login@example.com")

	res, err := f.svc.Login(context.Background(), service.LoginInput{
		Email:    "login@example.com",
		Password: goodPassword,
	}, service.DeviceContext{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.User.ID != reg.User.ID {
		t.Errorf("user id = %d, want %d", res.User.ID, reg.User.ID)
	}
	if res.User.LastLoginAt == nil {
		t.Error("LastLoginAt not stamped")
	}
	sessions, _ := f.sessions.ListActive(context.Background(), reg.User.ID)
	if len(sessions) != 1 {
		t.Errorf("active sessions = %d, want 1", len(sessions))
	}
}

// Unknown email and wrong password must be indistinguishable to the caller.
func TestLoginFailuresCollapse(t *testing.T) {
	f := newFixture(t)
	f.register(t, "exists@example.com")

	_, errUnknown := f.svc.Login(context.Background(), service.LoginInput{
		Email: "nobody@example.com", Password: goodPassword,
	}, service.DeviceContext{})
	_, errWrong := f.svc.Login(context.Background(), service.LoginInput{
		Email: "exists@example.com", Password: "Wr0ng&Password!",
	}, service.DeviceContext{})

	if !errors.Is(errUnknown, service.ErrInvalidCredentials) {
		t.Errorf("unknown email err = %v", errUnknown)
	}
	if !errors.Is(errWrong, service.ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v", errWrong)
	}
}

func TestLoginDeactivatedAccount(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "inactive@example.com")
	f.users.deactivate(reg.User.ID)

	_, err := f.svc.Login(context.Background(), service.LoginInput{
		Email: "inactive@example.com", Password: goodPassword,
	}, service.DeviceContext{})
	if !errors.Is(err, service.ErrAccountDeactivated) {
		t.Errorf("err = %v, want ErrAccountDeactivated", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "rotate@example.com")
	first := reg.Tokens.RefreshToken

	pair, err := f.svc.Refresh(context.Background(), first)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if pair.RefreshToken == first {
		t.Error("rotation returned the same refresh token")
	}

	// The consumed token is dead; replaying it must fail.
	if _, err := f.svc.Refresh(context.Background(), first); !errors.Is(err, service.ErrInvalidRefreshToken) {
		t.Errorf("replay err = %v, want ErrInvalidRefreshToken", err)
	}
	// The successor still works.
	if _, err := f.svc.Refresh(context.Background(), pair.RefreshToken); err != nil {
		t.Errorf("successor refresh failed: %v", err)
	}
}

func TestRefreshRejectsGarbage(t *testing.T) {
	f := newFixture(t)
	for _, token := range []string{"not-a-jwt", "aaaa.bbbb.cccc"} {
		if _, err := f.svc.Refresh(context.Background(), token); !errors.Is(err, service.ErrInvalidRefreshToken) {
			t.Errorf("Refresh(%q) err = %v, want ErrInvalidRefreshToken", token, err)
		}
	}
}

func TestRefreshDeactivatedAccount(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "deadrefresh@example.com")
	f.users.deactivate(reg.User.ID)

	_, err := f.svc.Refresh(context.Background(), reg.Tokens.RefreshToken)
	if !errors.Is(err, service.ErrAccountDeactivated) {
		t.Errorf("err = %v, want ErrAccountDeactivated", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "logout@example.com")

	if err := f.svc.Logout(context.Background(), reg.Tokens.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := f.svc.Logout(context.Background(), reg.Tokens.RefreshToken); err != nil {
		t.Errorf("second Logout: %v", err)
	}
	if _, err := f.svc.Refresh(context.Background(), reg.Tokens.RefreshToken); !errors.Is(err, service.ErrInvalidRefreshToken) {
		t.Errorf("refresh after logout err = %v, want ErrInvalidRefreshToken", err)
	}
}

func TestLogoutAll(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "all@example.com")
	login, err := f.svc.Login(context.Background(), service.LoginInput{
		Email: "all@example.com", Password: goodPassword,
	}, service.DeviceContext{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := f.svc.LogoutAll(context.Background(), reg.User.ID); err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if n := f.tokens.liveCount(reg.User.ID); n != 0 {
		t.Errorf("live tokens = %d, want 0", n)
	}
	for _, token := range []string{reg.Tokens.RefreshToken, login.Tokens.RefreshToken} {
		if _, err := f.svc.Refresh(context.Background(), token); !errors.Is(err, service.ErrInvalidRefreshToken) {
			t.Errorf("refresh after logout-all err = %v", err)
		}
	}
	sessions, _ := f.sessions.ListActive(context.Background(), reg.User.ID)
	if len(sessions) != 0 {
		t.Errorf("active sessions = %d, want 0", len(sessions))
	}
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "reset@example.com")

	if err := f.svc.RequestPasswordReset(context.Background(), "reset@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	token := f.mailer.resetToken
	if token == "" {
		t.Fatal("no reset email sent")
	}

	const newPassword = "N3w&Better!Pass"
	if err := f.svc.ConfirmPasswordReset(context.Background(), token, newPassword); err != nil {
		t.Fatalf("ConfirmPasswordReset: %v", err)
	}

	// Old refresh tokens are revoked by the reset.
	if _, err := f.svc.Refresh(context.Background(), reg.Tokens.RefreshToken); !errors.Is(err, service.ErrInvalidRefreshToken) {
		t.Errorf("refresh after reset err = %v", err)
	}
	// Old password no longer works, the new one does.
	if _, err := f.svc.Login(context.Background(), service.LoginInput{
		Email: "reset@example.com", Password: goodPassword,
	}, service.DeviceContext{}); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Errorf("old password login err = %v", err)
	}
	if _, err := f.svc.Login(context.Background(), service.LoginInput{
		Email: "reset@example.com", Password: newPassword,
	}, service.DeviceContext{}); err != nil {
		t.Errorf("new password login failed: %v", err)
	}
	if f.mailer.passwordChanged != 1 {
		t.Errorf("password-changed emails = %d, want 1", f.mailer.passwordChanged)
	}

	// The token is single-use.
	err := f.svc.ConfirmPasswordReset(context.Background(), token, "An0ther&Pass!")
	if !errors.Is(err, service.ErrInvalidResetToken) {
		t.Errorf("replayed confirm err = %v, want ErrInvalidResetToken", err)
	}
}

// The endpoint must answer identically whether or not the email exists.
func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.RequestPasswordReset(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if f.mailer.resetToken != "" {
		t.Error("reset email sent for unknown address")
	}
}

func TestConfirmPasswordResetRejectsWeakPassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, "weakreset@example.com")
	f.svc.RequestPasswordReset(context.Background(), "weakreset@example.com")

	err := f.svc.ConfirmPasswordReset(context.Background(), f.mailer.resetToken, "short")
	var ve *service.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestVerifyEmailFlow(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "verify@example.com")
	token := f.mailer.welcomeToken

	if err := f.svc.VerifyEmail(context.Background(), token); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	user, _ := f.users.GetByID(context.Background(), reg.User.ID)
	if !user.IsEmailVerified {
		t.Error("user not marked verified")
	}

	// The token is single-use.
	if err := f.svc.VerifyEmail(context.Background(), token); !errors.Is(err, service.ErrInvalidVerificationToken) {
		t.Errorf("replayed verify err = %v, want ErrInvalidVerificationToken", err)
	}
}

func TestVerifyEmailRejectsUnknownToken(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.VerifyEmail(context.Background(), "deadbeef"); !errors.Is(err, service.ErrInvalidVerificationToken) {
		t.Errorf("err = %v, want ErrInvalidVerificationToken", err)
	}
}

func TestResendVerification(t *testing.T) {
	f := newFixture(t)
	f.register(t, "resend@example.com")

	if err := f.svc.ResendVerification(context.Background(), "resend@example.com"); err != nil {
		t.Fatalf("ResendVerification: %v", err)
	}
	if f.mailer.verificationToken == "" {
		t.Error("no verification email sent")
	}

	if err := f.svc.VerifyEmail(context.Background(), f.mailer.verificationToken); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if err := f.svc.ResendVerification(context.Background(), "resend@example.com"); !errors.Is(err, service.ErrEmailAlreadyVerified) {
		t.Errorf("err = %v, want ErrEmailAlreadyVerified", err)
	}
	if err := f.svc.ResendVerification(context.Background(), "ghost@example.com"); !errors.Is(err, service.ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}

func TestOAuthLoginCreatesAccount(t *testing.T) {
	f := newFixture(t)
	given := "Ada"
	res, err := f.svc.OAuthLogin(context.Background(), service.OAuthInput{
		Provider:   model.ProviderGoogle,
		ProviderID: "google-sub-1",
		Email:      "oauth@example.com",
		FirstName:  &given,
	}, service.DeviceContext{})
	if err != nil {
		t.Fatalf("OAuthLogin: %v", err)
	}
	if !res.IsNewUser {
		t.Error("IsNewUser = false for fresh account")
	}
	if !res.User.IsEmailVerified {
		t.Error("provider-asserted email not marked verified")
	}
	if res.Tokens.RefreshToken == "" {
		t.Error("no refresh token issued")
	}
}

func TestOAuthLoginLinksExistingAccount(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "linkme@example.com")

	res, err := f.svc.OAuthLogin(context.Background(), service.OAuthInput{
		Provider:   model.ProviderGoogle,
		ProviderID: "google-sub-2",
		Email:      "linkme@example.com",
	}, service.DeviceContext{})
	if err != nil {
		t.Fatalf("OAuthLogin: %v", err)
	}
	if res.IsNewUser {
		t.Error("IsNewUser = true for existing account")
	}
	if res.User.ID != reg.User.ID {
		t.Errorf("user id = %d, want %d", res.User.ID, reg.User.ID)
	}
	user, _ := f.users.GetByID(context.Background(), reg.User.ID)
	if user.GoogleID == nil || *user.GoogleID != "google-sub-2" {
		t.Error("provider not linked")
	}
	if !user.IsEmailVerified {
		t.Error("linking did not mark email verified")
	}
}

func TestOAuthLoginRejectsUnknownProvider(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.OAuthLogin(context.Background(), service.OAuthInput{
		Provider:   model.Provider("github"),
		ProviderID: "x",
		Email:      "x@example.com",
	}, service.DeviceContext{})
	var ve *service.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

func TestSessionsListing(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "sessions@example.com")
	for i := 0; i < 2; i++ {
		if _, err := f.svc.Login(context.Background(), service.LoginInput{
			Email: "sessions@example.com", Password: goodPassword,
		}, service.DeviceContext{}); err != nil {
			t.Fatalf("Login: %v", err)
		}
	}
	sessions, err := f.svc.Sessions(context.Background(), reg.User.ID)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("sessions = %d, want 2", len(sessions))
	}
}
