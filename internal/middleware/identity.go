package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	userIDKey = "user_id"
	roleKey   = "role"
)

// UserID returns the authenticated user's id.  ok is false outside JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(userIDKey).(uint64)
	return id, ok && id != 0
}

// Role returns the authenticated user's role, or "" when unauthenticated.
func Role(c echo.Context) string {
	r, _ := c.Get(roleKey).(string)
	return r
}

// subject is the user component of rate limit keys; anonymous callers
// share "anon".
func subject(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
