package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/writewave/user-service/internal/model"
)

// UserRepo persists users together with their profile and settings rows.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id, email, username, password_hash, first_name, last_name,
	is_email_verified, is_active, last_login_at, google_id, apple_id, created_at, updated_at`

// CreateParams carries the fields needed to insert a new user row.
// PasswordHash is nil for OAuth-only accounts; ProviderID is set only for
// OAuth registration.
type CreateParams struct {
	Email         string
	Username      *string
	PasswordHash  *string
	FirstName     *string
	LastName      *string
	EmailVerified bool
	Provider      model.Provider
	ProviderID    *string
}

// Create inserts the user plus its default profile and settings rows in one
// transaction, so a valid registration always yields exactly one of each.
func (r *UserRepo) Create(ctx context.Context, p CreateParams) (uint64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	email := strings.ToLower(strings.TrimSpace(p.Email))
	cols := []string{"email", "username", "password_hash", "first_name", "last_name", "is_email_verified", "is_active"}
	args := []any{email, p.Username, p.PasswordHash, p.FirstName, p.LastName, p.EmailVerified, true}
	if p.ProviderID != nil {
		col, err := providerColumn(p.Provider)
		if err != nil {
			return 0, err
		}
		cols = append(cols, col)
		args = append(args, p.ProviderID)
	}
	q := "INSERT INTO users (" + strings.Join(cols, ",") + ") VALUES (" +
		strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",") + ")"

	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, duplicateErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	uid := uint64(id)

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO user_profiles (user_id, language, difficulty_level) VALUES (?,?,?)",
		uid, "en", "beginner"); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO user_settings (user_id) VALUES (?)", uid); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return uid, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

// GetByUsername fetches a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", username)
}

// FindByProviderOrEmail looks up a user by (provider, providerID) first,
// then by email. Used by OAuth login to match linked or pre-existing
// accounts.
func (r *UserRepo) FindByProviderOrEmail(ctx context.Context, provider model.Provider, providerID, email string) (model.User, error) {
	col, err := providerColumn(provider)
	if err != nil {
		return model.User{}, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	return r.getOne(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+col+"=? OR email=? ORDER BY ("+col+"=?) DESC LIMIT 1",
		providerID, email, providerID)
}

// GetWithRelations fetches a user along with its profile and settings rows.
func (r *UserRepo) GetWithRelations(ctx context.Context, id uint64) (model.User, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}

	var p model.Profile
	err = r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, language, difficulty_level, bio, created_at, updated_at FROM user_profiles WHERE user_id=? LIMIT 1",
		id).Scan(&p.ID, &p.UserID, &p.Language, &p.DifficultyLevel, &p.Bio, &p.CreatedAt, &p.UpdatedAt)
	if err == nil {
		u.Profile = &p
	} else if !errors.Is(err, sql.ErrNoRows) {
		return model.User{}, err
	}

	var s model.Settings
	err = r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, email_notifications, theme, created_at, updated_at FROM user_settings WHERE user_id=? LIMIT 1",
		id).Scan(&s.ID, &s.UserID, &s.EmailNotifications, &s.Theme, &s.CreatedAt, &s.UpdatedAt)
	if err == nil {
		u.Settings = &s
	} else if !errors.Is(err, sql.ErrNoRows) {
		return model.User{}, err
	}
	return u, nil
}

// LinkProvider records a provider subject id on an existing account and
// marks the email verified, trusting the provider's verification.
func (r *UserRepo) LinkProvider(ctx context.Context, userID uint64, provider model.Provider, providerID string) error {
	col, err := providerColumn(provider)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE users SET "+col+"=?, is_email_verified=1 WHERE id=?",
		providerID, userID)
	return err
}

// UpdateLastLogin stamps the most recent successful login.
func (r *UserRepo) UpdateLastLogin(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET last_login_at=? WHERE id=?", time.Now().UTC(), userID)
	return err
}

func (r *UserRepo) getOne(ctx context.Context, query string, args ...any) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.IsEmailVerified, &u.IsActive, &u.LastLoginAt, &u.GoogleID, &u.AppleID,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// providerColumn maps a provider to its fixed column. The closed enum keeps
// lookups free of dynamically assembled field names.
func providerColumn(p model.Provider) (string, error) {
	switch p {
	case model.ProviderGoogle:
		return "google_id", nil
	case model.ProviderApple:
		return "apple_id", nil
	}
	return "", errors.New("unsupported oauth provider")
}

// duplicateErr translates a MySQL duplicate-key error (1062) into the
// matching sentinel based on the violated unique index.
func duplicateErr(err error) error {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "1062") {
		return err
	}
	if strings.Contains(msg, "username") {
		return ErrUsernameExists
	}
	return ErrEmailExists
}
