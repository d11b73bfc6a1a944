package audit

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/accounts/internal/apperror"
)

// Handler serves the admin view of the login audit trail. Handlers are
// thin: bind the query, call the repository, render JSON.
type Handler struct {
	repo Repository
}

// NewHandler creates a new audit handler.
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// LoginEvents returns recent login attempts (GET /api/user/audit/logins).
// Accepts ?email= to narrow to one account and ?page= for paging.
func (h *Handler) LoginEvents(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	email := strings.ToLower(strings.TrimSpace(c.QueryParam("email")))

	events, total, err := h.repo.ListRecent(c.Request().Context(), email, perPage, (page-1)*perPage)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("listing login audit: %w", err))
	}
	if events == nil {
		events = []LoginAuditEvent{}
	}

	return c.JSON(http.StatusOK, EventPage{
		Events:  events,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	})
}
