package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/writewave/user-service/internal/model"
)

// ResetRepo persists password-reset credentials. Tokens are stored hashed
// and are single-use: consumption is guarded so a replayed confirm loses.
type ResetRepo struct{ DB *sql.DB }

func NewResetRepo(db *sql.DB) *ResetRepo { return &ResetRepo{DB: db} }

// Create inserts a reset record. Older records for the same user stay in
// place; their own used/expiry state keeps them inert.
func (r *ResetRepo) Create(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO password_resets (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp)
	return err
}

// GetByHash returns the reset record for a token hash.
func (r *ResetRepo) GetByHash(ctx context.Context, tokenHash string) (model.PasswordReset, error) {
	var pr model.PasswordReset
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token_hash, expires_at, used_at, created_at FROM password_resets WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&pr.ID, &pr.UserID, &pr.TokenHash, &pr.ExpiresAt, &pr.UsedAt, &pr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PasswordReset{}, ErrNotFound
	}
	return pr, err
}

// Consume applies a confirmed reset in one transaction: the new password
// hash is written, the token is marked used, and every refresh token of the
// user is revoked so all devices must log in again. The used_at guard makes
// the token single-use even under replay; the second caller gets
// ErrNotFound.
func (r *ResetRepo) Consume(ctx context.Context, resetID, userID uint64, newPasswordHash string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE password_resets SET used_at=NOW() WHERE id=? AND used_at IS NULL", resetID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=?", newPasswordHash, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE user_id=? AND revoked_at IS NULL", userID); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteExpired purges records past their expiry.
func (r *ResetRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM password_resets WHERE expires_at < NOW()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
