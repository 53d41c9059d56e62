package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/writewave/user-service/internal/model"
)

// SessionRepo persists device sessions, which back the active-session
// listing and mass sign-out independently of the refresh ledger.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Create inserts a session row for a fresh login.
func (r *SessionRepo) Create(ctx context.Context, userID uint64, token string, deviceInfo, ipAddress, userAgent *string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO sessions (user_id, token, device_info, ip_address, user_agent, is_active, expires_at, last_activity_at)
		 VALUES (?,?,?,?,?,1,?,NOW())`,
		userID, token, deviceInfo, ipAddress, userAgent, exp)
	return err
}

// ListActive returns the user's active, unexpired sessions ordered by most
// recent activity.
func (r *SessionRepo) ListActive(ctx context.Context, userID uint64) ([]model.Session, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, user_id, token, device_info, ip_address, user_agent, is_active, expires_at, last_activity_at, created_at
		 FROM sessions WHERE user_id=? AND is_active=1 AND expires_at > NOW()
		 ORDER BY last_activity_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		var s model.Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.Token, &s.DeviceInfo, &s.IPAddress, &s.UserAgent,
			&s.IsActive, &s.ExpiresAt, &s.LastActivityAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeactivateAll marks every session of the user inactive. Used by
// logout-all and account deactivation.
func (r *SessionRepo) DeactivateAll(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET is_active=0 WHERE user_id=? AND is_active=1", userID)
	return err
}

// DeleteExpired purges sessions past their expiry.
func (r *SessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < NOW()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
