package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/writewave/user-service/internal/model"
)

// TokenRepo persists the refresh-token ledger. Only the SHA-256 hash of a
// token value is stored.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Store inserts a ledger entry for a newly issued refresh token.
func (r *TokenRepo) Store(ctx context.Context, userID uint64, tokenHash string, deviceInfo *string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, device_info, expires_at) VALUES (?,?,?,?)",
		userID, tokenHash, deviceInfo, exp)
	return err
}

// GetByHash returns the ledger entry for a token hash regardless of its
// revocation state; the caller decides how to treat revoked or expired
// entries.
func (r *TokenRepo) GetByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	var rt model.RefreshToken
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token_hash, device_info, expires_at, revoked_at, created_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&rt.ID, &rt.UserID, &rt.TokenHash, &rt.DeviceInfo, &rt.ExpiresAt, &rt.RevokedAt, &rt.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RefreshToken{}, ErrNotFound
	}
	return rt, err
}

// Rotate revokes the old entry and inserts its successor in one
// transaction. The revoke is guarded on revoked_at IS NULL, so of two
// exchanges racing on the same token exactly one commits; the loser gets
// ErrNotFound.
func (r *TokenRepo) Rotate(ctx context.Context, oldHash string, userID uint64, newHash string, deviceInfo *string, exp time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE token_hash=? AND revoked_at IS NULL",
		oldHash)
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
		"INSERT INTO refresh_tokens (user_id, token_hash, device_info, expires_at) VALUES (?,?,?,?)",
		userID, newHash, deviceInfo, exp); err != nil {
		return err
	}
	return tx.Commit()
}

// Revoke marks a single token as revoked. Revoking an unknown or
// already-revoked token is not an error; logout is idempotent.
func (r *TokenRepo) Revoke(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE token_hash=? AND revoked_at IS NULL",
		tokenHash)
	return err
}

// RevokeAllForUser revokes every live token owned by the user. Used by
// logout-all, password changes and deactivation.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE user_id=? AND revoked_at IS NULL",
		userID)
	return err
}

// DeleteExpired purges entries past their expiry. Revocation state is
// irrelevant once a token can no longer verify.
func (r *TokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at < NOW()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
