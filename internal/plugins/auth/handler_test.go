package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/accounts/internal/apperror"
	"github.com/keyxmakerx/accounts/internal/validation"
)

// newTestServer mounts the auth routes on a fresh Echo instance whose error
// handler renders AppError status codes.
func newTestServer(t *testing.T, env *testEnv) *echo.Echo {
	t.Helper()
	e := echo.New()
	e.Validator = validation.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			_ = c.JSON(appErr.Code, appErr)
			return
		}
		e.DefaultHTTPErrorHandler(err, c)
	}
	RegisterRoutes(e.Group("/api/user"), NewHandler(env.svc), env.svc)
	return e
}

func doJSON(e *echo.Echo, method, path, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Register(t *testing.T) {
	env := newTestAuthService(t, &mockUserRepo{})
	e := newTestServer(t, env)

	rec := doJSON(e, http.MethodPost, "/api/user/register",
		`{"fullName":"Ada Lovelace","birthDate":"1815-12-10","email":"ada@example.com","password":"s3cret-pass"}`, "")

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Errorf("response leaks password material: %s", rec.Body.String())
	}

	var user User
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if user.BirthDate.String() != "1815-12-10" || user.Role != RoleUser || !user.IsActive {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestHandler_RegisterValidation(t *testing.T) {
	env := newTestAuthService(t, &mockUserRepo{})
	e := newTestServer(t, env)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"fullName":`, http.StatusBadRequest},
		{"short name", `{"fullName":"Al","birthDate":"1990-01-01","email":"al@example.com","password":"secret1"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"fullName":"Alan","birthDate":"01/01/1990","email":"al@example.com","password":"secret1"}`, http.StatusUnprocessableEntity},
		{"bad email", `{"fullName":"Alan","birthDate":"1990-01-01","email":"nope","password":"secret1"}`, http.StatusUnprocessableEntity},
		{"long password", `{"fullName":"Alan","birthDate":"1990-01-01","email":"al@example.com","password":"` + strings.Repeat("x", 21) + `"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(e, http.MethodPost, "/api/user/register", tt.body, "")
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_LoginRefreshLogout(t *testing.T) {
	env := newTestAuthService(t, activeRepo())
	e := newTestServer(t, env)

	rec := doJSON(e, http.MethodPost, "/api/user/login", `{"email":"ada@example.com","password":"s3cret-pass"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var pair TokenPair
	if err := json.Unmarshal(rec.Body.Bytes(), &pair); err != nil {
		t.Fatalf("decoding pair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", pair)
	}

	rec = doJSON(e, http.MethodPost, "/api/user/refresh", `{"token":"`+pair.RefreshToken+`"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var rotated TokenPair
	if err := json.Unmarshal(rec.Body.Bytes(), &rotated); err != nil {
		t.Fatalf("decoding rotated pair: %v", err)
	}

	// The old refresh token was consumed.
	rec = doJSON(e, http.MethodPost, "/api/user/refresh", `{"token":"`+pair.RefreshToken+`"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("reused refresh: expected 401, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPost, "/api/user/logout", `{"token":"`+rotated.RefreshToken+`"}`, rotated.AccessToken)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"result":true}` {
		t.Fatalf("logout: got %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(e, http.MethodPost, "/api/user/refresh", `{"token":"`+rotated.RefreshToken+`"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("refresh after logout: expected 401, got %d", rec.Code)
	}
}

func TestHandler_LogoutRequiresBearer(t *testing.T) {
	env := newTestAuthService(t, activeRepo())
	e := newTestServer(t, env)

	rec := doJSON(e, http.MethodPost, "/api/user/logout", `{"token":"x"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestHandler_LoginFailureIsGeneric(t *testing.T) {
	env := newTestAuthService(t, activeRepo())
	e := newTestServer(t, env)

	wrong := doJSON(e, http.MethodPost, "/api/user/login", `{"email":"ada@example.com","password":"wrong-pass"}`, "")

	env.repo.findByEmailFn = nil
	unknown := doJSON(e, http.MethodPost, "/api/user/login", `{"email":"bob@example.com","password":"wrong-pass"}`, "")

	if wrong.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401s, got %d and %d", wrong.Code, unknown.Code)
	}
	if wrong.Body.String() != unknown.Body.String() {
		t.Errorf("failure bodies differ: %q vs %q", wrong.Body.String(), unknown.Body.String())
	}
}

func TestHandler_Profile(t *testing.T) {
	env := newTestAuthService(t, activeRepo())
	e := newTestServer(t, env)

	rec := doJSON(e, http.MethodGet, "/api/user/profile", "", accessTokenFor(t, env))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var user User
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if user.ID != testUserID || user.Email != "ada@example.com" {
		t.Errorf("unexpected profile: %+v", user)
	}
}

func TestHandler_SelfBlockAndUnblock(t *testing.T) {
	current := testUser(true)
	snapshot := func(context.Context, string) (*User, error) {
		cp := *current
		return &cp, nil
	}
	repo := &mockUserRepo{
		findByIDFn:    snapshot,
		findByEmailFn: snapshot,
		updateIsActiveFn: func(_ context.Context, _ string, active bool) error {
			current.IsActive = active
			return nil
		},
	}
	env := newTestAuthService(t, repo)
	e := newTestServer(t, env)
	token := accessTokenFor(t, env)

	rec := doJSON(e, http.MethodPost, "/api/user/me/block", "", token)
	if rec.Code != http.StatusOK || current.IsActive {
		t.Fatalf("block: got %d, active=%v", rec.Code, current.IsActive)
	}

	// Blocked users are shut out of strict routes...
	rec = doJSON(e, http.MethodGet, "/api/user/profile", "", token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("profile while blocked: expected 401, got %d", rec.Code)
	}

	credentials := `{"email":"ada@example.com","password":"s3cret-pass"}`
	rec = doJSON(e, http.MethodPost, "/api/user/login", credentials, "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("login while blocked: expected 403, got %d", rec.Code)
	}

	// ...but can still undo the block.
	rec = doJSON(e, http.MethodPost, "/api/user/me/unblock", "", token)
	if rec.Code != http.StatusOK || !current.IsActive {
		t.Fatalf("unblock: got %d, active=%v", rec.Code, current.IsActive)
	}

	rec = doJSON(e, http.MethodPost, "/api/user/login", credentials, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login after unblock: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var pair TokenPair
	if err := json.Unmarshal(rec.Body.Bytes(), &pair); err != nil {
		t.Fatalf("decoding pair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Errorf("expected both tokens, got %+v", pair)
	}
}
