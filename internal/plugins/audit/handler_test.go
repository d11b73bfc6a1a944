package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_LoginEvents(t *testing.T) {
	var gotEmail string
	var gotLimit, gotOffset int
	repo := &mockRepo{
		listFn: func(_ context.Context, email string, limit, offset int) ([]LoginAuditEvent, int, error) {
			gotEmail, gotLimit, gotOffset = email, limit, offset
			return []LoginAuditEvent{Succeeded("a@example.com", "1.1.1.1")}, 51, nil
		},
	}
	h := NewHandler(repo)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/user/audit/logins?page=2&email=+A@Example.com", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.LoginEvents(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@example.com", gotEmail)
	assert.Equal(t, perPage, gotLimit)
	assert.Equal(t, perPage, gotOffset)

	var page EventPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 51, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Len(t, page.Events, 1)
}

func TestHandler_LoginEventsEmpty(t *testing.T) {
	h := NewHandler(&mockRepo{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/user/audit/logins?page=-3", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.LoginEvents(e.NewContext(req, rec)))
	assert.JSONEq(t, `{"events":[],"total":0,"page":1,"perPage":50}`, rec.Body.String())
}
