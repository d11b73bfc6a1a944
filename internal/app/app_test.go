package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/accounts/internal/apperror"
)

func renderError(t *testing.T, method string, err error) (int, map[string]any) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(method, "/x", nil), rec)

	errorHandler(err, c)

	if rec.Body.Len() == 0 {
		return rec.Code, nil
	}
	var body map[string]any
	if jerr := json.Unmarshal(rec.Body.Bytes(), &body); jerr != nil {
		t.Fatalf("decoding body %q: %v", rec.Body.String(), jerr)
	}
	return rec.Code, body
}

func TestErrorHandler_AppError(t *testing.T) {
	code, body := renderError(t, http.MethodGet, apperror.NewConflict("email taken"))

	if code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}
	if body["error"] != "Conflict" || body["message"] != "email taken" {
		t.Errorf("unexpected body %v", body)
	}
	if _, ok := body["fields"]; ok {
		t.Error("fields must be omitted when empty")
	}
}

func TestErrorHandler_ValidationFields(t *testing.T) {
	err := apperror.NewValidationFields("request validation failed", map[string]string{"email": "is required"})
	code, body := renderError(t, http.MethodPost, err)

	if code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", code)
	}
	fields, ok := body["fields"].(map[string]any)
	if !ok || fields["email"] != "is required" {
		t.Errorf("expected field detail, got %v", body)
	}
}

func TestErrorHandler_InternalHidesCause(t *testing.T) {
	code, body := renderError(t, http.MethodGet, apperror.NewInternal(errors.New("dial tcp: secret-host")))

	if code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", code)
	}
	if msg, _ := body["message"].(string); msg == "" || msg == "dial tcp: secret-host" {
		t.Errorf("internal cause leaked or message missing: %v", body)
	}
}

func TestErrorHandler_EchoAndUnknownErrors(t *testing.T) {
	code, body := renderError(t, http.MethodGet, echo.ErrNotFound)
	if code != http.StatusNotFound || body["error"] != "Not Found" {
		t.Errorf("echo error: got %d %v", code, body)
	}

	code, body = renderError(t, http.MethodGet, errors.New("boom"))
	if code != http.StatusInternalServerError || body["message"] != defaultErrorMessage(http.StatusInternalServerError) {
		t.Errorf("plain error: got %d %v", code, body)
	}
}

func TestErrorHandler_HeadHasNoBody(t *testing.T) {
	code, body := renderError(t, http.MethodHead, apperror.NewNotFound("gone"))
	if code != http.StatusNotFound || body != nil {
		t.Errorf("expected bare 404, got %d %v", code, body)
	}
}

func TestHealthHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name     string
		checks   map[string]func(context.Context) error
		wantCode int
	}{
		{"all healthy", map[string]func(context.Context) error{"mariadb": ok, "redis": ok}, http.StatusOK},
		{"redis down", map[string]func(context.Context) error{"mariadb": ok, "redis": down}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)

			if err := healthHandler(tt.checks)(c); err != nil {
				t.Fatalf("handler: %v", err)
			}
			if rec.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantCode != http.StatusOK {
				var body struct {
					Checks map[string]string `json:"checks"`
				}
				_ = json.Unmarshal(rec.Body.Bytes(), &body)
				if _, ok := body.Checks["redis"]; !ok || len(body.Checks) != 1 {
					t.Errorf("expected only redis reported, got %v", body.Checks)
				}
			}
		})
	}
}
