package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/prode-predictions/internal/middleware"
)

// call runs h against a fresh request.  setup may seed the context the way
// the auth middleware would.
func call(t *testing.T, h echo.HandlerFunc, method, target, body string, setup func(c echo.Context)) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.Validator = NewRequestValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if setup != nil {
		setup(c)
	}
	require.NoError(t, h(c))
	return rec
}

func asUser(id uint64, role string) func(echo.Context) {
	return func(c echo.Context) {
		c.Set(middleware.CtxUserID, id)
		c.Set(middleware.CtxUsername, "ana")
		c.Set(middleware.CtxRole, role)
	}
}

func withParam(name, value string, next func(echo.Context)) func(echo.Context) {
	return func(c echo.Context) {
		c.SetParamNames(name)
		c.SetParamValues(value)
		if next != nil {
			next(c)
		}
	}
}

func TestParseKickoff(t *testing.T) {
	want := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	for _, raw := range []string{"2025-03-01T20:00:00Z", "2025-03-01T17:00:00-03:00", "2025-03-01 20:00:00", "2025-03-01T20:00"} {
		got, err := parseKickoff(raw)
		require.NoError(t, err, raw)
		assert.True(t, want.Equal(got), raw)
	}
	_, err := parseKickoff("tomorrow")
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	rec := call(t, Health, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestValidatorUsesJSONNames(t *testing.T) {
	err := NewRequestValidator().Validate(&submitReq{Result: "WIN"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matchId is required")
	assert.Contains(t, err.Error(), "result must satisfy oneof=HOME DRAW AWAY")
}
