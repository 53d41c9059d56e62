package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/writewave/user-service/internal/config"
	"github.com/writewave/user-service/internal/logger"
	"github.com/writewave/user-service/internal/ratelimit"
	"github.com/writewave/user-service/internal/response"
)

// RateLimiter applies the configured request budgets. Buckets are
// independent: the general budget covers the whole surface while the
// login, register and reset buckets add stricter counters on their
// endpoints.
type RateLimiter struct {
	limiter ratelimit.Limiter
	cfg     config.RateLimitConfig
}

func NewRateLimiter(limiter ratelimit.Limiter, cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{limiter: limiter, cfg: cfg}
}

// General counts every request against the ip-keyed general budget.
func (r *RateLimiter) General() echo.MiddlewareFunc {
	return r.bucket("general", r.cfg.Max, r.cfg.Window, keyIP)
}

// Login counts attempts against the ip+email budget, so one address
// hammering one account is throttled without penalizing the whole ip.
func (r *RateLimiter) Login() echo.MiddlewareFunc {
	return r.bucket("login", r.cfg.LoginMax, r.cfg.LoginWindow, keyIPEmail)
}

// Register counts registrations per ip.
func (r *RateLimiter) Register() echo.MiddlewareFunc {
	return r.bucket("register", r.cfg.RegisterMax, r.cfg.RegisterWindow, keyIP)
}

// Reset counts password-reset requests per ip+email.
func (r *RateLimiter) Reset() echo.MiddlewareFunc {
	return r.bucket("reset", r.cfg.ResetMax, r.cfg.ResetWindow, keyIPEmail)
}

type keyFunc func(c echo.Context) string

func (r *RateLimiter) bucket(name string, limit int, window time.Duration, key keyFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !r.cfg.Enabled {
				return next(c)
			}
			k := r.cfg.Prefix + ":" + name + ":" + key(c)
			res, err := r.limiter.Check(c.Request().Context(), k, limit, window)
			if err != nil {
				// Counting is best-effort; an unreachable backend never
				// takes the API down with it.
				logger.Error().Err(err).Str("bucket", name).Msg("rate limit check failed")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retry := int(res.RetryAfter(time.Now()).Seconds()) + 1
				h.Set("Retry-After", strconv.Itoa(retry))
				logger.Warn().Str("bucket", name).Str("key", k).Msg("rate limit exceeded")
				return response.FailWith(c, http.StatusTooManyRequests,
					"too many requests, please try again later",
					&response.ErrBody{Code: response.CodeRateLimitExceeded, RetryAfter: retry})
			}
			return next(c)
		}
	}
}

func keyIP(c echo.Context) string {
	return c.RealIP()
}

// keyIPEmail appends the request's email field to the caller ip. When no
// email can be read from the body the key degrades to ip-only.
func keyIPEmail(c echo.Context) string {
	ip := c.RealIP()
	email := peekEmail(c)
	if email == "" {
		return ip
	}
	return ip + ":" + email
}

// peekEmail reads the email field out of a JSON body without consuming it:
// the whole body is buffered and re-armed so the handler binds exactly what
// the client sent. Request size is bounded by the router's body limit, so
// reading it all here is safe.
func peekEmail(c echo.Context) string {
	req := c.Request()
	if req.Body == nil {
		return ""
	}
	buf, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(buf))
	if err != nil {
		return ""
	}
	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(buf, &body) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Email))
}
