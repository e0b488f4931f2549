// Package handler holds the Echo HTTP handlers.  Handlers translate JSON
// requests into service calls and service errors into status codes; they
// hold no business rules of their own.
package handler

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/prode-predictions/internal/middleware"
	"github.com/iliyamo/prode-predictions/internal/model"
)

// requestTimeout bounds the storage work of a single request.
const requestTimeout = 5 * time.Second

var errNoUser = errors.New("invalid user_id in context")

// getUserID extracts the user id stored by the JWT middleware.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get(middleware.CtxUserID).(type) {
	case uint64:
		if t > 0 {
			return t, nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, errNoUser
}

func getRole(c echo.Context) model.Role {
	s, _ := c.Get(middleware.CtxRole).(string)
	return model.Role(s)
}

func getUsername(c echo.Context) string {
	s, _ := c.Get(middleware.CtxUsername).(string)
	return s
}

// fail writes the {"success": false, "message": ...} envelope.
func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "message": msg})
}

func parseIDParam(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	return id, err == nil && id > 0
}

// parseKickoff accepts RFC 3339 or the "YYYY-MM-DD HH:MM:SS" storage form
// (read as UTC).
func parseKickoff(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02T15:04", raw); err == nil {
		return t.UTC(), nil
	}
	return time.ParseInLocation(model.DBTimeLayout, raw, time.UTC)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
