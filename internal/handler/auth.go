// Package handler contains the echo HTTP handlers. Handlers bind and
// validate request shapes, delegate to the service layer, and translate
// service errors onto the response envelope.
package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/writewave/user-service/internal/logger"
	"github.com/writewave/user-service/internal/middleware"
	"github.com/writewave/user-service/internal/response"
	"github.com/writewave/user-service/internal/service"
)

// AuthHandler serves the /v1/auth endpoints.
type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// device captures the client details recorded on tokens and sessions.
func device(c echo.Context) service.DeviceContext {
	d := service.DeviceContext{}
	if v := c.Request().Header.Get("X-Device-Info"); v != "" {
		d.DeviceInfo = &v
	} else if ua := c.Request().UserAgent(); ua != "" {
		d.DeviceInfo = &ua
	}
	if ip := c.RealIP(); ip != "" {
		d.IPAddress = &ip
	}
	if ua := c.Request().UserAgent(); ua != "" {
		d.UserAgent = &ua
	}
	return d
}

type registerRequest struct {
	Email     string  `json:"email"`
	Username  *string `json:"username"`
	Password  string  `json:"password"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

// Register handles POST /v1/auth/register.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, response.CodeValidation, "invalid request body")
	}
	result, err := h.svc.Register(c.Request().Context(), service.RegisterInput{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}, device(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return response.OK(c, http.StatusCreated, "registration successful", result)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, response.CodeValidation, "invalid request body")
	}
	result, err := h.svc.Login(c.Request().Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	}, device(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return response.OK(c, http.StatusOK, "login successful", result)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh handles POST /v1/auth/refresh-token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, response.CodeValidation, "invalid request body")
	}
	pair, err := h.svc.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return writeServiceError(c, err)
	}
	return response.OK(c, http.StatusOK, "token refreshed", pair)
}

// Logout handles POST /v1/auth/logout. The endpoint is idempotent: an
// unknown or already-revoked token still answers success.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, response.CodeValidation, "invalid request body")
	}
	if err := h.svc.Logout(c.Request().Context(), req.RefreshToken); err != nil {
		return writeServiceError(c, err)
	}
	return response.OK(c, http.StatusOK, "logged out", nil)
}

// LogoutAll handles POST /v1/auth/logout-all. Requires authentication.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
	}
	if err := h.svc.LogoutAll(c.Request().Context(), user.ID); err != nil {
		return writeServiceError(c, err)
	}
	return response.OK(c, http.StatusOK, "logged out from all devices", nil)
}

type emailRequest struct {
	Email string `json:"email"`
}

// ForgotPassword handles POST /v1/auth/forgot-password. The response is
// identical whether or not the email maps to an account.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailRequest
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, response.CodeValidation, "invalid request body")
	}
	if err := h.svc.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return writeServiceError(c, err)
	}
	return response.OK(c, http.StatusOK, "if the email is registered, a reset link has been sent", nil)
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// ResetPassword handles POST /v1/auth/reset-password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, response.CodeValidation, "invalid request body")
	}
	if err := h.svc.ConfirmPasswordReset(c.Request().Context(), req.Token, req.NewPassword); err != nil {
		return writeServiceError(c, err)
	}
	return response.OK(c, http.StatusOK, "password has been reset, please log in again", nil)
}

type tokenRequest struct {
	Token string `json:"token"`
}

// VerifyEmail handles POST /v1/auth/verify-email. The token is accepted
// from the body or, for link clicks, the query string.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, response.CodeValidation, "invalid request body")
	}
	if req.Token == "" {
		req.Token = c.QueryParam("token")
	}
	if err := h.svc.VerifyEmail(c.Request().Context(), req.Token); err != nil {
		return writeServiceError(c, err)
	}
	return response.OK(c, http.StatusOK, "email verified", nil)
}

// ResendVerification handles POST /v1/auth/resend-verification.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailRequest
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, response.CodeValidation, "invalid request body")
	}
	if err := h.svc.ResendVerification(c.Request().Context(), req.Email); err != nil {
		return writeServiceError(c, err)
	}
	return response.OK(c, http.StatusOK, "verification email sent", nil)
}

// Me handles GET /v1/me. Requires authentication; the guard loads profile
// and settings alongside the user.
func (h *AuthHandler) Me(c echo.Context) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
	}
	return response.OK(c, http.StatusOK, "current user", service.NewUserSummary(*user))
}

// writeServiceError translates service-layer errors onto the envelope.
// Anything unrecognized is logged and answered as a plain 500.
func writeServiceError(c echo.Context, err error) error {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return response.FailWith(c, http.StatusBadRequest, "validation failed",
			&response.ErrBody{Code: response.CodeValidation, Details: ve.Reasons})
	}
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return response.Fail(c, http.StatusUnauthorized, response.CodeInvalidCredentials, "invalid email or password")
	case errors.Is(err, service.ErrAccountDeactivated):
		return response.Fail(c, http.StatusForbidden, response.CodeAccountDeactivated, "account is deactivated")
	case errors.Is(err, service.ErrEmailExists):
		return response.Fail(c, http.StatusConflict, response.CodeConflict, "email is already registered")
	case errors.Is(err, service.ErrUsernameExists):
		return response.Fail(c, http.StatusConflict, response.CodeConflict, "username is already taken")
	case errors.Is(err, service.ErrInvalidRefreshToken):
		return response.Fail(c, http.StatusUnauthorized, response.CodeInvalidRefreshToken, "refresh token is invalid or revoked")
	case errors.Is(err, service.ErrRefreshTokenExpired):
		return response.Fail(c, http.StatusUnauthorized, response.CodeRefreshTokenExpired, "refresh token has expired")
	case errors.Is(err, service.ErrInvalidResetToken):
		return response.Fail(c, http.StatusBadRequest, response.CodeInvalidResetToken, "reset token is invalid or already used")
	case errors.Is(err, service.ErrResetTokenExpired):
		return response.Fail(c, http.StatusBadRequest, response.CodeResetTokenExpired, "reset token has expired")
	case errors.Is(err, service.ErrInvalidVerificationToken):
		return response.Fail(c, http.StatusBadRequest, response.CodeInvalidVerifyToken, "verification token is invalid or already used")
	case errors.Is(err, service.ErrVerificationTokenExpired):
		return response.Fail(c, http.StatusBadRequest, response.CodeVerifyTokenExpired, "verification token has expired")
	case errors.Is(err, service.ErrUserNotFound):
		return response.Fail(c, http.StatusNotFound, response.CodeNotFound, "user not found")
	case errors.Is(err, service.ErrEmailAlreadyVerified):
		return response.Fail(c, http.StatusConflict, response.CodeConflict, "email is already verified")
	}
	logger.Error().Err(err).Str("path", c.Path()).Msg("unhandled service error")
	return response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "internal server error")
}
