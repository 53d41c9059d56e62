package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/writewave/user-service/internal/config"
	"github.com/writewave/user-service/internal/database"
	"github.com/writewave/user-service/internal/handler"
	"github.com/writewave/user-service/internal/logger"
	"github.com/writewave/user-service/internal/middleware"
	"github.com/writewave/user-service/internal/queue"
	"github.com/writewave/user-service/internal/ratelimit"
	"github.com/writewave/user-service/internal/repository"
	"github.com/writewave/user-service/internal/router"
	"github.com/writewave/user-service/internal/service"
	"github.com/writewave/user-service/internal/utils"
)

const purgeInterval = time.Hour

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly

	cfg := config.Load()
	logger.Init(os.Getenv("LOG_LEVEL"))

	db, err := database.Open(database.Config{
		User:            cfg.DBUser,
		Pass:            cfg.DBPass,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	signer, err := utils.NewSigner(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("token signer setup failed")
	}

	// Redis backs the rate-limit counters; without it the in-process
	// limiter is used, which is only correct for a single instance.
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	var limiter ratelimit.Limiter
	if rdb != nil {
		limiter = ratelimit.NewRedisLimiter(rdb)
		logger.Info().Msg("rate limiting backed by redis")
	} else {
		limiter = ratelimit.NewMemoryLimiter()
		logger.Warn().Msg("redis unavailable, using in-process rate limiter (single instance only)")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	sessions := repository.NewSessionRepo(db)
	resets := repository.NewResetRepo(db)
	verifications := repository.NewVerificationRepo(db)

	svc := service.NewAuthService(service.Deps{
		Users:         users,
		Tokens:        tokens,
		Sessions:      sessions,
		Resets:        resets,
		Verifications: verifications,
		Signer:        signer,
		Mailer:        service.NewSMTPMailer(cfg.SMTP, cfg.FrontendURL),
		Events:        queue.NewPublisher(),
		BcryptCost:    cfg.BcryptCost,
	})

	deps := router.Deps{
		Auth:     handler.NewAuthHandler(svc),
		Sessions: handler.NewSessionHandler(svc),
		Health:   handler.NewHealthHandler(db, rdb),
		Guard:    middleware.NewGuard(signer, users),
		Limits:   middleware.NewRateLimiter(limiter, config.LoadRateLimitConfig()),
	}
	if cfg.Google.ClientID != "" {
		deps.Google = handler.NewGoogleOAuthHandler(svc, cfg.Google, cfg.FrontendURL)
	} else {
		logger.Info().Msg("google oauth not configured, routes disabled")
	}

	e := echo.New()
	e.HideBanner = true
	router.Register(e, deps)

	go queue.StartAuditConsumer()
	go purgeLoop(svc)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server start failed")
		}
	}()
	logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("user service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("user service stopped")
}

// purgeLoop periodically deletes expired refresh tokens, sessions, reset
// and verification records.
func purgeLoop(svc *service.AuthService) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		if err := svc.PurgeExpired(ctx); err != nil {
			logger.Error().Err(err).Msg("expired-record purge failed")
		}
		cancel()
	}
}
