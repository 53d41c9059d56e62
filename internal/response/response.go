// Package response defines the JSON envelope every endpoint answers with
// and the stable machine-readable error codes clients switch on.
package response

import (
	"time"

	"github.com/labstack/echo/v4"
)

// Stable error codes. Clients branch on Code, never on Message text.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeAccountDeactivated  = "ACCOUNT_DEACTIVATED"
	CodeConflict            = "CONFLICT"
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	CodeRefreshTokenExpired = "REFRESH_TOKEN_EXPIRED"
	CodeInvalidResetToken   = "INVALID_RESET_TOKEN"
	CodeResetTokenExpired   = "RESET_TOKEN_EXPIRED"
	CodeInvalidVerifyToken  = "INVALID_VERIFICATION_TOKEN"
	CodeVerifyTokenExpired  = "VERIFICATION_TOKEN_EXPIRED"
	CodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	CodeNotFound            = "NOT_FOUND"
	CodeInternal            = "INTERNAL_ERROR"
)

// Envelope is the uniform response body. Data is present on success,
// Error on failure, never both.
type Envelope struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Error     *ErrBody  `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrBody carries the stable code plus optional per-field details such as
// validation reasons or a retry-after hint.
type ErrBody struct {
	Code       string   `json:"code"`
	Details    []string `json:"details,omitempty"`
	RetryAfter int      `json:"retryAfter,omitempty"` // seconds
}

// OK writes a success envelope with the given status, message and payload.
func OK(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, Envelope{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// Fail writes an error envelope with the given status, code and message.
func Fail(c echo.Context, status int, code, message string) error {
	return FailWith(c, status, message, &ErrBody{Code: code})
}

// FailWith writes an error envelope with a fully populated error body.
func FailWith(c echo.Context, status int, message string, body *ErrBody) error {
	return c.JSON(status, Envelope{
		Success:   false,
		Message:   message,
		Error:     body,
		Timestamp: time.Now().UTC(),
	})
}
