// Package admin provides user management for administrators. Admin routes
// require an active user holding the admin role and operate on any account
// through the auth service.
package admin

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/accounts/internal/apperror"
	"github.com/keyxmakerx/accounts/internal/plugins/auth"
)

// Handler handles admin HTTP requests. Depends on the auth service via its
// interface -- no direct repo access.
type Handler struct {
	authService auth.AuthService
}

// NewHandler creates a new admin handler.
func NewHandler(authService auth.AuthService) *Handler {
	return &Handler{authService: authService}
}

// User returns any user's profile (GET /api/user/:id).
func (h *Handler) User(c echo.Context) error {
	id, err := userIDParam(c)
	if err != nil {
		return err
	}

	user, err := h.authService.Profile(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Users returns a page of users (GET /api/user?page=&perPage=).
func (h *Handler) Users(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, _ := strconv.Atoi(c.QueryParam("perPage"))

	result, err := h.authService.ListUsers(c.Request().Context(), page, perPage)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Block deactivates a user (POST /api/user/:id/block).
func (h *Handler) Block(c echo.Context) error {
	return h.setActive(c, false)
}

// Unblock reactivates a user (POST /api/user/:id/unblock).
func (h *Handler) Unblock(c echo.Context) error {
	return h.setActive(c, true)
}

func (h *Handler) setActive(c echo.Context, active bool) error {
	id, err := userIDParam(c)
	if err != nil {
		return err
	}

	user, err := h.authService.BlockOrUnblockUser(c.Request().Context(), id, active)
	if err != nil {
		return err
	}

	slog.Info("admin changed user active flag",
		slog.String("target_user", id),
		slog.Bool("active", active),
		slog.String("by", auth.GetUserID(c)),
	)

	return c.JSON(http.StatusOK, user)
}

// userIDParam reads and validates the :id path parameter.
func userIDParam(c echo.Context) (string, error) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", apperror.NewValidationFields("request validation failed", map[string]string{
			"id": "must be a valid UUID",
		})
	}
	return id, nil
}
