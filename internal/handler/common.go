package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slotforge/slot-engine/internal/engine"
)

// getUserID extracts the authenticated user ID stored in context by the
// JWT middleware. Claims arrive as float64 from the JSON decoder, so a
// few numeric shapes are accepted.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// principal assembles the engine principal from the JWT claims the
// middleware stored in context.
func principal(c echo.Context) (engine.Principal, error) {
	uid, err := getUserID(c)
	if err != nil {
		return engine.Principal{}, err
	}
	role, _ := c.Get("role").(string)
	return engine.Principal{ID: uid, Role: role}, nil
}

// requestMeta captures caller attribution copied into audit entries.
func requestMeta(c echo.Context) engine.RequestMeta {
	return engine.RequestMeta{
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}

// engineError translates the engine's error taxonomy into an HTTP
// response. Validation failures carry their per-field messages.
func engineError(c echo.Context, err error) error {
	if ve, ok := engine.AsValidation(err); ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": ve.Fields})
	}
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, engine.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, engine.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// parseDate parses a YYYY-MM-DD body value into a UTC date pointer.
// Empty input yields nil.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

// pathID parses the :id route parameter.
func pathID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}
