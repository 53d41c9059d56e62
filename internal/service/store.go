package service

import (
	"context"
	"time"

	"github.com/writewave/user-service/internal/model"
	"github.com/writewave/user-service/internal/queue"
	"github.com/writewave/user-service/internal/repository"
)

// Narrow persistence interfaces consumed by the auth service. The repository
// types satisfy them; tests substitute in-memory fakes. Each interface lists
// only what the service actually calls.

type UserStore interface {
	Create(ctx context.Context, p repository.CreateParams) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	FindByProviderOrEmail(ctx context.Context, provider model.Provider, providerID, email string) (model.User, error)
	GetWithRelations(ctx context.Context, id uint64) (model.User, error)
	LinkProvider(ctx context.Context, userID uint64, provider model.Provider, providerID string) error
	UpdateLastLogin(ctx context.Context, userID uint64) error
}

type RefreshTokenStore interface {
	Store(ctx context.Context, userID uint64, tokenHash string, deviceInfo *string, exp time.Time) error
	GetByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	Rotate(ctx context.Context, oldHash string, userID uint64, newHash string, deviceInfo *string, exp time.Time) error
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type SessionStore interface {
	Create(ctx context.Context, userID uint64, token string, deviceInfo, ipAddress, userAgent *string, exp time.Time) error
	ListActive(ctx context.Context, userID uint64) ([]model.Session, error)
	DeactivateAll(ctx context.Context, userID uint64) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type ResetStore interface {
	Create(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	GetByHash(ctx context.Context, tokenHash string) (model.PasswordReset, error)
	Consume(ctx context.Context, resetID, userID uint64, newPasswordHash string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type VerificationStore interface {
	Create(ctx context.Context, userID uint64, tokenHash, email string, exp time.Time) error
	GetByHash(ctx context.Context, tokenHash string) (model.EmailVerification, error)
	Consume(ctx context.Context, verificationID, userID uint64) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// EventPublisher delivers user events to the broker. Publish failures are
// logged and swallowed by the service; events are best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, event queue.UserEvent) error
}
