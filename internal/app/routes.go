package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/accounts/internal/plugins/admin"
	"github.com/keyxmakerx/accounts/internal/plugins/audit"
	"github.com/keyxmakerx/accounts/internal/plugins/auth"
)

// healthTimeout bounds each dependency probe behind /healthz.
const healthTimeout = 2 * time.Second

// RegisterRoutes sets up all application routes. It registers public routes
// directly and delegates to each plugin's route registration function.
//
// This is the single place where all routes are aggregated. When a new
// plugin is added, its routes are registered here.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// Health check endpoint for container orchestration.
	e.GET("/healthz", healthHandler(a.checks))

	users := e.Group("/api/user")

	// auth plugin (public: register, login, refresh; authenticated: the rest)
	auth.RegisterRoutes(users, auth.NewHandler(a.AuthService), a.AuthService)

	// audit plugin (admin-only login history)
	audit.RegisterRoutes(users, audit.NewHandler(a.AuditRepo), auth.RequireAdmin(a.AuthService))

	// admin plugin (parameterized /:id routes go last)
	admin.RegisterRoutes(users, admin.NewHandler(a.AuthService), a.AuthService)
}

// healthHandler reports 200 when every probe succeeds and 503 otherwise,
// naming the failed dependencies.
func healthHandler(checks map[string]func(ctx context.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()

		failed := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				slog.Warn("health check failed", slog.String("dependency", name), slog.Any("error", err))
				failed[name] = "unavailable"
			}
		}

		if len(failed) > 0 {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "unavailable",
				"checks": failed,
			})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}
