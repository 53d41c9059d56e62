package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/writewave/user-service/internal/response"
)

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	db  *sql.DB
	rdb *redis.Client // nil when redis is not configured
}

func NewHealthHandler(db *sql.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb}
}

// Check handles GET /healthz. The database must answer for the service to
// report healthy; redis is reported but never fails the check since the
// service degrades gracefully without it.
func (h *HealthHandler) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"service": "user-service", "database": "up", "redis": "disabled"}

	if err := h.db.PingContext(ctx); err != nil {
		status["database"] = "down"
		return response.FailWith(c, http.StatusServiceUnavailable, "service unhealthy",
			&response.ErrBody{Code: response.CodeInternal})
	}
	if h.rdb != nil {
		status["redis"] = "up"
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			status["redis"] = "down"
		}
	}
	return response.OK(c, http.StatusOK, "healthy", status)
}
