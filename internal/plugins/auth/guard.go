package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/accounts/internal/apperror"
)

// contextKeyUser is the Echo context key holding the authenticated user.
// Other plugins read it through GetUser and GetUserID.
const contextKeyUser = "auth_user"

// msgAuthRequired is the single message for every bearer rejection, so a
// client can't tell a bad token from a missing or blocked user.
const msgAuthRequired = "authentication required"

// Decision is the outcome of a Guard. A denied decision carries the error
// rendered to the client.
type Decision struct {
	Allowed bool
	Reason  error
}

// Allow lets the request continue.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny stops the request with reason.
func Deny(reason error) Decision {
	return Decision{Reason: reason}
}

// Guard inspects a request and decides whether it may proceed. Guards may
// store values on the context for later guards and handlers.
type Guard func(c echo.Context) Decision

// Chain turns guards into one middleware. Guards run in order and the
// first denial ends the request.
func Chain(guards ...Guard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, g := range guards {
				if d := g(c); !d.Allowed {
					if d.Reason == nil {
						return apperror.NewForbidden("access denied")
					}
					return d.Reason
				}
			}
			return next(c)
		}
	}
}

// Policy controls whether a bearer guard admits blocked users.
type Policy int

const (
	// RequireActive rejects users whose account is blocked.
	RequireActive Policy = iota

	// AllowBlocked admits blocked users so they can unblock themselves.
	AllowBlocked
)

// BearerGuard authenticates the "Authorization: Bearer <access token>"
// header and stores the user on the context. Every failure is the same
// Unauthorized error.
func BearerGuard(svc AuthService, policy Policy) Guard {
	return func(c echo.Context) Decision {
		token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			return Deny(apperror.NewUnauthorized(msgAuthRequired))
		}

		user, err := svc.AuthenticateAccess(c.Request().Context(), token)
		if err != nil {
			return Deny(apperror.NewUnauthorized(msgAuthRequired))
		}
		if policy == RequireActive && !user.IsActive {
			return Deny(apperror.NewUnauthorized(msgAuthRequired))
		}

		c.Set(contextKeyUser, user)
		return Allow()
	}
}

// RoleGuard requires a user loaded by an earlier bearer guard holding role.
func RoleGuard(role Role) Guard {
	return func(c echo.Context) Decision {
		user := GetUser(c)
		if user == nil || user.Role != role {
			return Deny(apperror.NewForbidden("insufficient permissions"))
		}
		return Allow()
	}
}

// RequireAuth returns the strict bearer middleware for routes that need an
// active user.
func RequireAuth(svc AuthService) echo.MiddlewareFunc {
	return Chain(BearerGuard(svc, RequireActive))
}

// RequireAdmin returns middleware that requires an active admin.
func RequireAdmin(svc AuthService) echo.MiddlewareFunc {
	return Chain(BearerGuard(svc, RequireActive), RoleGuard(RoleAdmin))
}

// bearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// --- Exported getters for other plugins ---

// GetUser retrieves the authenticated user from the Echo context.
// Returns nil if no bearer guard ran on this request.
func GetUser(c echo.Context) *User {
	user, ok := c.Get(contextKeyUser).(*User)
	if !ok {
		return nil
	}
	return user
}

// GetUserID retrieves the authenticated user's ID from the Echo context.
// Returns empty string if the request is not authenticated.
func GetUserID(c echo.Context) string {
	if user := GetUser(c); user != nil {
		return user.ID
	}
	return ""
}
