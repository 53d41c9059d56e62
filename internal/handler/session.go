package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/writewave/user-service/internal/middleware"
	"github.com/writewave/user-service/internal/model"
	"github.com/writewave/user-service/internal/response"
	"github.com/writewave/user-service/internal/service"
)

// SessionHandler serves the /v1/sessions endpoints.
type SessionHandler struct {
	svc *service.AuthService
}

func NewSessionHandler(svc *service.AuthService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// sessionView is the client-facing shape of a session. The session token
// itself is never returned.
type sessionView struct {
	ID             uint64    `json:"id"`
	DeviceInfo     *string   `json:"deviceInfo,omitempty"`
	IPAddress      *string   `json:"ipAddress,omitempty"`
	UserAgent      *string   `json:"userAgent,omitempty"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

func newSessionView(s model.Session) sessionView {
	return sessionView{
		ID:             s.ID,
		DeviceInfo:     s.DeviceInfo,
		IPAddress:      s.IPAddress,
		UserAgent:      s.UserAgent,
		LastActivityAt: s.LastActivityAt,
		ExpiresAt:      s.ExpiresAt,
		CreatedAt:      s.CreatedAt,
	}
}

// List handles GET /v1/sessions: the caller's active sessions, most
// recently used first.
func (h *SessionHandler) List(c echo.Context) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
	}
	sessions, err := h.svc.Sessions(c.Request().Context(), user.ID)
	if err != nil {
		return writeServiceError(c, err)
	}
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, newSessionView(s))
	}
	return response.OK(c, http.StatusOK, "active sessions", views)
}

// DeleteAll handles DELETE /v1/sessions: mass sign-out of every device,
// equivalent to logout-all.
func (h *SessionHandler) DeleteAll(c echo.Context) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
	}
	if err := h.svc.LogoutAll(c.Request().Context(), user.ID); err != nil {
		return writeServiceError(c, err)
	}
	return response.OK(c, http.StatusOK, "all sessions terminated", nil)
}
