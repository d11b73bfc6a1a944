package admin

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/accounts/internal/plugins/auth"
)

// RegisterRoutes sets up the admin user management routes on the /api/user
// group. Every route requires an active admin.
//
// Register these after the auth routes: static paths such as /profile win
// over /:id in Echo's router regardless of order, but keeping the
// parameterized routes last makes the table easier to read.
func RegisterRoutes(g *echo.Group, h *Handler, authService auth.AuthService) {
	admin := auth.RequireAdmin(authService)

	g.GET("", h.Users, admin)
	g.GET("/", h.Users, admin)
	g.GET("/:id", h.User, admin)
	g.POST("/:id/block", h.Block, admin)
	g.POST("/:id/unblock", h.Unblock, admin)
}
