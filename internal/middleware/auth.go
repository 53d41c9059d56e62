// Package middleware provides the request guards mounted ahead of the
// handlers: bearer-token authentication and rate limiting.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/writewave/user-service/internal/logger"
	"github.com/writewave/user-service/internal/model"
	"github.com/writewave/user-service/internal/repository"
	"github.com/writewave/user-service/internal/response"
	"github.com/writewave/user-service/internal/utils"
)

// userKey is the echo context key holding the authenticated *model.User.
const userKey = "auth_user"

// UserLoader fetches the acting user with profile and settings attached.
type UserLoader interface {
	GetWithRelations(ctx context.Context, id uint64) (model.User, error)
}

// Guard authenticates requests from a bearer access token. Every failure
// mode (missing header, bad signature, expiry, unknown subject) answers
// 401 with the same body; the cause is only logged.
type Guard struct {
	signer *utils.Signer
	users  UserLoader
}

func NewGuard(signer *utils.Signer, users UserLoader) *Guard {
	return &Guard{signer: signer, users: users}
}

// Authenticate requires a valid access token and an active account. The
// loaded user is stored in the request context for handlers.
func (g *Guard) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := g.resolve(c)
		if err != nil {
			if errors.Is(err, errDeactivated) {
				return response.Fail(c, http.StatusForbidden, response.CodeAccountDeactivated, "account is deactivated")
			}
			return response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
		}
		c.Set(userKey, user)
		return next(c)
	}
}

// OptionalAuth resolves the user when a valid token is presented and
// proceeds anonymously otherwise. A deactivated account is still rejected;
// a token for a dead account must not degrade into an anonymous request.
func (g *Guard) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if bearerToken(c) == "" {
			return next(c)
		}
		user, err := g.resolve(c)
		if err != nil {
			if errors.Is(err, errDeactivated) {
				return response.Fail(c, http.StatusForbidden, response.CodeAccountDeactivated, "account is deactivated")
			}
			return next(c)
		}
		c.Set(userKey, user)
		return next(c)
	}
}

var errDeactivated = errors.New("account deactivated")

func (g *Guard) resolve(c echo.Context) (*model.User, error) {
	token := bearerToken(c)
	if token == "" {
		return nil, errors.New("missing bearer token")
	}
	claims, err := g.signer.VerifyAccess(token)
	if err != nil {
		return nil, err
	}
	user, err := g.users.GetWithRelations(c.Request().Context(), claims.UserID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Error().Err(err).Uint64("user_id", claims.UserID).Msg("auth guard: user load failed")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, errDeactivated
	}
	return &user, nil
}

// bearerToken extracts the token from the Authorization header; empty when
// the header is missing or not a Bearer scheme.
func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// CurrentUser returns the authenticated user stored by the guard, or nil
// for anonymous requests.
func CurrentUser(c echo.Context) *model.User {
	u, _ := c.Get(userKey).(*model.User)
	return u
}
