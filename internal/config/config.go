package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Bcrypt cost bounds accepted at configuration time. Values outside the
// range are replaced with the safe default; the hasher itself never rejects
// a cost at runtime.
const (
	MinBcryptCost     = 10
	MaxBcryptCost     = 14
	DefaultBcryptCost = 12
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. The two token classes are signed with different
// secrets so that a refresh token can never be replayed as an access token.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string
	DBPass string // optional
	DBHost string
	DBPort string
	DBName string

	DBMaxOpenConns int           // connection pool ceiling
	DBMaxIdleConns int           // idle connections kept warm
	DBConnLifetime time.Duration // connections are recycled after this age

	AccessSecret  string // secret used to sign access tokens
	RefreshSecret string // secret used to sign refresh tokens
	AccessTTL     string // access token lifetime, e.g. "15m"
	RefreshTTL    string // refresh token lifetime, e.g. "7d"

	BcryptCost int // bcrypt work factor, clamped to [MinBcryptCost, MaxBcryptCost]

	FrontendURL string // base URL used in OAuth redirects and email links

	SMTP   SMTPConfig
	Google GoogleOAuthConfig
}

// SMTPConfig carries outbound mail settings. When Host is empty the mailer
// is disabled and send attempts become no-ops.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	FromName string
}

// GoogleOAuthConfig carries the Google OAuth client registration. When
// ClientID is empty the /auth/google routes are not mounted.
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           envStr("APP_PORT", "8001"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		DBMaxOpenConns: envInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: envInt("DB_MAX_IDLE_CONNS", 25),
		DBConnLifetime: envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		AccessSecret:   must("JWT_ACCESS_SECRET"),
		RefreshSecret:  must("JWT_REFRESH_SECRET"),
		AccessTTL:      envStr("JWT_ACCESS_TTL", "15m"),
		RefreshTTL:     envStr("JWT_REFRESH_TTL", "7d"),
		BcryptCost:     envInt("BCRYPT_COST", DefaultBcryptCost),
		FrontendURL:    envStr("FRONTEND_URL", "http://localhost:3000"),
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envInt("SMTP_PORT", 587),
			User:     os.Getenv("SMTP_USER"),
			Pass:     os.Getenv("SMTP_PASS"),
			From:     envStr("FROM_EMAIL", "noreply@writewave.app"),
			FromName: envStr("FROM_NAME", "WriteWave"),
		},
		Google: GoogleOAuthConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			CallbackURL:  envStr("GOOGLE_CALLBACK_URL", "http://localhost:8001/v1/auth/google/callback"),
		},
	}

	if cfg.AccessSecret == cfg.RefreshSecret {
		log.Fatal("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	cfg.BcryptCost = ClampBcryptCost(cfg.BcryptCost)
	return cfg
}

// ClampBcryptCost replaces an out-of-range work factor with the safe
// default. Configuration load is the only place the cost is validated.
func ClampBcryptCost(cost int) int {
	if cost < MinBcryptCost || cost > MaxBcryptCost {
		log.Printf("bcrypt cost %d outside [%d,%d], using %d", cost, MinBcryptCost, MaxBcryptCost, DefaultBcryptCost)
		return DefaultBcryptCost
	}
	return cost
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}
