package audit

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts the audit listing on the given group. The caller
// supplies the guard middleware so this package stays independent of auth.
func RegisterRoutes(g *echo.Group, h *Handler, guards ...echo.MiddlewareFunc) {
	g.GET("/audit/logins", h.LoginEvents, guards...)
}
