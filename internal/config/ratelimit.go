package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig defines the sliding-window budgets applied to the auth
// surface. Each bucket is an independent (limit, window) pair keyed on the
// caller; see internal/middleware/ratelimit.go for the key strategies.
type RateLimitConfig struct {
	Enabled bool
	Prefix  string

	// General budget applied to every request under /v1.
	Window time.Duration
	Max    int

	// Stricter budgets for sensitive endpoints.
	LoginWindow    time.Duration
	LoginMax       int
	RegisterWindow time.Duration
	RegisterMax    int
	ResetWindow    time.Duration
	ResetMax       int
}

// LoadRateLimitConfig reads rate-limit settings from environment variables.
// Defaults follow the service's production profile: 100 requests per 15
// minutes generally, 5 login attempts per 15 minutes, 3 registrations and 3
// password-reset requests per hour.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "ratelimit"),
		Window:         envDur("RATE_LIMIT_WINDOW", 15*time.Minute),
		Max:            envInt("RATE_LIMIT_MAX_REQUESTS", 100),
		LoginWindow:    envDur("RATE_LIMIT_LOGIN_WINDOW", 15*time.Minute),
		LoginMax:       envInt("RATE_LIMIT_LOGIN_MAX", 5),
		RegisterWindow: envDur("RATE_LIMIT_REGISTER_WINDOW", time.Hour),
		RegisterMax:    envInt("RATE_LIMIT_REGISTER_MAX", 3),
		ResetWindow:    envDur("RATE_LIMIT_RESET_WINDOW", time.Hour),
		ResetMax:       envInt("RATE_LIMIT_RESET_MAX", 3),
	}
	if cfg.Max < 1 {
		cfg.Max = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	return cfg
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
		// bare numbers are read as milliseconds (RATE_LIMIT_WINDOW_MS style)
		return time.Duration(ms) * time.Millisecond
	}
	return d
}
