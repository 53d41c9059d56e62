package config

import (
	"testing"
	"time"
)

func TestClampBcryptCost(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{10, 10},
		{12, 12},
		{14, 14},
		{9, DefaultBcryptCost},
		{15, DefaultBcryptCost},
		{0, DefaultBcryptCost},
		{-1, DefaultBcryptCost},
	}
	for _, tt := range tests {
		if got := ClampBcryptCost(tt.in); got != tt.want {
			t.Errorf("ClampBcryptCost(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestLoadRateLimitConfigDefaults(t *testing.T) {
	cfg := LoadRateLimitConfig()
	if !cfg.Enabled {
		t.Error("rate limiting disabled by default")
	}
	if cfg.Max != 100 || cfg.Window != 15*time.Minute {
		t.Errorf("general bucket = %d/%v, want 100/15m", cfg.Max, cfg.Window)
	}
	if cfg.LoginMax != 5 || cfg.LoginWindow != 15*time.Minute {
		t.Errorf("login bucket = %d/%v, want 5/15m", cfg.LoginMax, cfg.LoginWindow)
	}
	if cfg.RegisterMax != 3 || cfg.RegisterWindow != time.Hour {
		t.Errorf("register bucket = %d/%v, want 3/1h", cfg.RegisterMax, cfg.RegisterWindow)
	}
	if cfg.ResetMax != 3 || cfg.ResetWindow != time.Hour {
		t.Errorf("reset bucket = %d/%v, want 3/1h", cfg.ResetMax, cfg.ResetWindow)
	}
}

func TestLoadRedisConfigDefaults(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("REDIS_PORT", "")

	cfg := LoadRedisConfig()
	if cfg.Addr != "localhost:6379" {
		t.Errorf("Addr = %q, want localhost:6379", cfg.Addr)
	}
	if cfg.DB != 0 || cfg.TLS {
		t.Errorf("DB/TLS = %d/%v, want 0/false", cfg.DB, cfg.TLS)
	}
}

func TestLoadRedisConfigHostPortOverridesAddr(t *testing.T) {
	t.Setenv("REDIS_ADDR", "ignored:1111")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_TLS", "true")

	cfg := LoadRedisConfig()
	if cfg.Addr != "cache.internal:6380" {
		t.Errorf("Addr = %q, want cache.internal:6380", cfg.Addr)
	}
	if cfg.DB != 3 {
		t.Errorf("DB = %d, want 3", cfg.DB)
	}
	if !cfg.TLS {
		t.Error("TLS not enabled")
	}
}

func TestLoadRateLimitConfigOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "7")
	t.Setenv("RATE_LIMIT_LOGIN_WINDOW", "60000") // bare numbers read as milliseconds

	cfg := LoadRateLimitConfig()
	if cfg.Window != 30*time.Second {
		t.Errorf("Window = %v, want 30s", cfg.Window)
	}
	if cfg.Max != 7 {
		t.Errorf("Max = %d, want 7", cfg.Max)
	}
	if cfg.LoginWindow != time.Minute {
		t.Errorf("LoginWindow = %v, want 1m", cfg.LoginWindow)
	}
}
