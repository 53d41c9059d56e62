// Package router wires handlers, guards and rate-limit buckets onto the
// echo route tree.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/writewave/user-service/internal/handler"
	"github.com/writewave/user-service/internal/middleware"
)

// Deps collects everything the route tree mounts. Google is nil when no
// OAuth client is configured; its routes are then not registered.
type Deps struct {
	Auth     *handler.AuthHandler
	Sessions *handler.SessionHandler
	Google   *handler.GoogleOAuthHandler
	Health   *handler.HealthHandler
	Guard    *middleware.Guard
	Limits   *middleware.RateLimiter
}

// Register mounts all routes. The general rate-limit bucket covers the
// whole /v1 surface; login, register and reset add their stricter buckets
// on top.
func Register(e *echo.Echo, d Deps) {
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.BodyLimit("1M"))

	e.GET("/healthz", d.Health.Check)

	v1 := e.Group("/v1", d.Limits.General())

	auth := v1.Group("/auth")
	auth.POST("/register", d.Auth.Register, d.Limits.Register())
	auth.POST("/login", d.Auth.Login, d.Limits.Login())
	auth.POST("/refresh-token", d.Auth.Refresh)
	auth.POST("/logout", d.Auth.Logout, d.Guard.Authenticate)
	auth.POST("/logout-all", d.Auth.LogoutAll, d.Guard.Authenticate)
	auth.POST("/forgot-password", d.Auth.ForgotPassword, d.Limits.Reset())
	auth.POST("/reset-password", d.Auth.ResetPassword)
	auth.POST("/verify-email", d.Auth.VerifyEmail)
	auth.POST("/resend-verification", d.Auth.ResendVerification)

	if d.Google != nil {
		auth.GET("/google", d.Google.Start)
		auth.GET("/google/callback", d.Google.Callback)
	}

	v1.GET("/me", d.Auth.Me, d.Guard.Authenticate)
	v1.GET("/sessions", d.Sessions.List, d.Guard.Authenticate)
	v1.DELETE("/sessions", d.Sessions.DeleteAll, d.Guard.Authenticate)
}
