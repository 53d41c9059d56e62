package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/writewave/user-service/internal/model"
)

// VerificationRepo persists email-verification credentials, stored hashed
// like every other opaque token.
type VerificationRepo struct{ DB *sql.DB }

func NewVerificationRepo(db *sql.DB) *VerificationRepo { return &VerificationRepo{DB: db} }

// Create inserts a verification record capturing the address it certifies.
func (r *VerificationRepo) Create(ctx context.Context, userID uint64, tokenHash, email string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO email_verifications (user_id, token_hash, email, expires_at) VALUES (?,?,?,?)",
		userID, tokenHash, email, exp)
	return err
}

// GetByHash returns the verification record for a token hash.
func (r *VerificationRepo) GetByHash(ctx context.Context, tokenHash string) (model.EmailVerification, error) {
	var ev model.EmailVerification
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token_hash, email, expires_at, used_at, created_at FROM email_verifications WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&ev.ID, &ev.UserID, &ev.TokenHash, &ev.Email, &ev.ExpiresAt, &ev.UsedAt, &ev.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.EmailVerification{}, ErrNotFound
	}
	return ev, err
}

// Consume marks the email verified and the token used in one transaction.
// The used_at guard keeps the token single-use; a replayed confirm gets
// ErrNotFound.
func (r *VerificationRepo) Consume(ctx context.Context, verificationID, userID uint64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE email_verifications SET used_at=NOW() WHERE id=? AND used_at IS NULL", verificationID)
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
		"UPDATE users SET is_email_verified=1 WHERE id=?", userID); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteExpired purges records past their expiry.
func (r *VerificationRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM email_verifications WHERE expires_at < NOW()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
