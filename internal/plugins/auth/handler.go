package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/accounts/internal/apperror"
	"github.com/keyxmakerx/accounts/internal/validation"
)

// Handler handles HTTP requests for authentication and the caller's own
// account. Handlers are thin: they bind the request, call the service, and
// render the response. No business logic lives here.
type Handler struct {
	service AuthService
}

// NewHandler creates a new auth handler with the given service.
func NewHandler(service AuthService) *Handler {
	return &Handler{service: service}
}

// Register creates an account (POST /api/user/register).
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}

	birthDate, err := ParseDate(req.BirthDate)
	if err != nil {
		return apperror.NewValidationFields("request validation failed", map[string]string{
			"birthDate": "must be a date in YYYY-MM-DD format",
		})
	}

	user, err := h.service.Register(c.Request().Context(), RegisterInput{
		FullName:  req.FullName,
		BirthDate: birthDate,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, user)
}

// Login exchanges credentials for a token pair (POST /api/user/login).
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}

	pair, err := h.service.Login(c.Request().Context(), LoginInput{
		Email:    req.Email,
		Password: req.Password,
	}, c.RealIP())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, pair)
}

// Refresh rotates a refresh token (POST /api/user/refresh).
func (h *Handler) Refresh(c echo.Context) error {
	var req TokenRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}

	pair, err := h.service.Refresh(c.Request().Context(), req.Token)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, pair)
}

// Logout ends a refresh session (POST /api/user/logout).
func (h *Handler) Logout(c echo.Context) error {
	var req TokenRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}

	if err := h.service.Logout(c.Request().Context(), req.Token); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]bool{"result": true})
}

// Profile returns the caller's own profile (GET /api/user/profile).
func (h *Handler) Profile(c echo.Context) error {
	user, err := h.service.Profile(c.Request().Context(), GetUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// BlockSelf deactivates the caller's account (POST /api/user/me/block).
func (h *Handler) BlockSelf(c echo.Context) error {
	return h.setSelfActive(c, false)
}

// UnblockSelf reactivates the caller's account (POST /api/user/me/unblock).
// Reached through the allow-blocked guard.
func (h *Handler) UnblockSelf(c echo.Context) error {
	return h.setSelfActive(c, true)
}

func (h *Handler) setSelfActive(c echo.Context, active bool) error {
	user, err := h.service.BlockOrUnblockUser(c.Request().Context(), GetUserID(c), active)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}
