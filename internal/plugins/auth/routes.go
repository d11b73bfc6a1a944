package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/accounts/internal/middleware"
)

// RegisterRoutes sets up the auth and self-service routes on the /api/user
// group.
//
// POST endpoints that accept credentials are rate-limited to slow down
// brute-force and credential stuffing: 10 attempts per IP per minute for
// login, 5 for register.
func RegisterRoutes(g *echo.Group, h *Handler, svc AuthService) {
	strict := RequireAuth(svc)
	allowBlocked := Chain(BearerGuard(svc, AllowBlocked))

	// Public routes -- no auth required.
	g.POST("/register", h.Register, middleware.RateLimit(5, time.Minute))
	g.POST("/login", h.Login, middleware.RateLimit(10, time.Minute))
	g.POST("/refresh", h.Refresh)

	g.POST("/logout", h.Logout, strict)
	g.GET("/profile", h.Profile, strict)
	g.POST("/me/block", h.BlockSelf, strict)

	// Blocked users must still be able to undo a self-block.
	g.POST("/me/unblock", h.UnblockSelf, allowBlocked)
}
