package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// requestTimeout bounds every storage call a handler makes.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// idParam parses a positive numeric path parameter.
func idParam(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// timeQuery reads an RFC 3339 or date-time query parameter, trying each
// name in turn.  Values without an offset are read in loc.  Missing values
// yield the zero time.
func timeQuery(c echo.Context, loc *time.Location, names ...string) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	for _, n := range names {
		v := c.QueryParam(n)
		if v == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.ParseInLocation(layout, v, loc); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}
	return time.Time{}, true
}
