package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/accounts/internal/apperror"
)

// runGuarded sends a request with the given Authorization header through mw
// and reports whether the handler was reached along with the middleware error.
func runGuarded(t *testing.T, mw echo.MiddlewareFunc, header string) (echo.Context, bool, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	c := e.NewContext(req, httptest.NewRecorder())

	reached := false
	err := mw(func(echo.Context) error {
		reached = true
		return nil
	})(c)
	return c, reached, err
}

func accessTokenFor(t *testing.T, env *testEnv) string {
	t.Helper()
	token, err := env.tokens.Issue(testUserID, AccessToken)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return token
}

func TestBearerGuard_MissingOrMalformedHeader(t *testing.T) {
	env := newTestAuthService(t, activeRepo())
	token := accessTokenFor(t, env)

	for name, header := range map[string]string{
		"missing":      "",
		"wrong scheme": "Basic " + token,
		"no token":     "Bearer ",
		"bare token":   token,
		"garbage":      "Bearer not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, reached, err := runGuarded(t, RequireAuth(env.svc), header)
			assertAppError(t, err, http.StatusUnauthorized)
			if reached {
				t.Error("handler must not run")
			}
		})
	}
}

func TestBearerGuard_RefreshTokenRejected(t *testing.T) {
	env := newTestAuthService(t, activeRepo())
	refresh, err := env.tokens.Issue(testUserID, RefreshToken)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, _, err = runGuarded(t, RequireAuth(env.svc), "Bearer "+refresh)
	assertAppError(t, err, http.StatusUnauthorized)
}

func TestBearerGuard_SchemeCaseInsensitive(t *testing.T) {
	env := newTestAuthService(t, activeRepo())

	c, reached, err := runGuarded(t, RequireAuth(env.svc), "bearer "+accessTokenFor(t, env))
	if err != nil || !reached {
		t.Fatalf("expected request through, err=%v", err)
	}
	if GetUserID(c) != testUserID {
		t.Errorf("expected user on context, got %q", GetUserID(c))
	}
}

func TestBearerGuard_UserDeleted(t *testing.T) {
	env := newTestAuthService(t, &mockUserRepo{})

	_, _, err := runGuarded(t, RequireAuth(env.svc), "Bearer "+accessTokenFor(t, env))
	assertAppError(t, err, http.StatusUnauthorized)
}

func TestBearerGuard_BlockedUserPolicy(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(_ context.Context, _ string) (*User, error) {
			return testUser(false), nil
		},
	}
	env := newTestAuthService(t, repo)
	header := "Bearer " + accessTokenFor(t, env)

	_, reached, err := runGuarded(t, Chain(BearerGuard(env.svc, RequireActive)), header)
	assertAppError(t, err, http.StatusUnauthorized)
	if reached {
		t.Error("strict guard must reject a blocked user")
	}

	c, reached, err := runGuarded(t, Chain(BearerGuard(env.svc, AllowBlocked)), header)
	if err != nil || !reached {
		t.Fatalf("allow-blocked guard must admit a blocked user, err=%v", err)
	}
	if user := GetUser(c); user == nil || user.IsActive {
		t.Errorf("expected blocked user on context, got %+v", user)
	}
}

func TestRequireAdmin(t *testing.T) {
	admin := testUser(true)
	admin.Role = RoleAdmin

	tests := []struct {
		name     string
		user     *User
		wantCode int
	}{
		{"regular user", testUser(true), http.StatusForbidden},
		{"admin", admin, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockUserRepo{
				findByIDFn: func(_ context.Context, _ string) (*User, error) {
					return tt.user, nil
				},
			}
			env := newTestAuthService(t, repo)

			_, reached, err := runGuarded(t, RequireAdmin(env.svc), "Bearer "+accessTokenFor(t, env))
			if tt.wantCode == 0 {
				if err != nil || !reached {
					t.Fatalf("expected admin through, err=%v", err)
				}
				return
			}
			assertAppError(t, err, tt.wantCode)
		})
	}
}

func TestChain_StopsAtFirstDenial(t *testing.T) {
	var calls []string
	guard := func(name string, d Decision) Guard {
		return func(echo.Context) Decision {
			calls = append(calls, name)
			return d
		}
	}

	mw := Chain(
		guard("first", Allow()),
		guard("second", Deny(apperror.NewForbidden("nope"))),
		guard("third", Allow()),
	)
	_, reached, err := runGuarded(t, mw, "")

	assertAppError(t, err, http.StatusForbidden)
	if reached {
		t.Error("handler must not run after a denial")
	}
	if len(calls) != 2 || calls[1] != "second" {
		t.Errorf("expected evaluation to stop at second guard, got %v", calls)
	}
}

func TestChain_DenialWithoutReason(t *testing.T) {
	_, _, err := runGuarded(t, Chain(func(echo.Context) Decision { return Decision{} }), "")
	assertAppError(t, err, http.StatusForbidden)
}

func TestRoleGuard_NoUserOnContext(t *testing.T) {
	_, _, err := runGuarded(t, Chain(RoleGuard(RoleAdmin)), "")
	assertAppError(t, err, http.StatusForbidden)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"BEARER  abc ", "abc", true},
		{"Token abc", "", false},
		{"Bearer", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
