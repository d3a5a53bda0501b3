package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/parkease/internal/utils"
)

// TokenFrom returns the raw access token of a request.  X-Auth-Token wins
// over an Authorization Bearer header.
func TokenFrom(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get("X-Auth-Token")); t != "" {
		return t
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// JWTAuth returns an Echo middleware that validates the access token and
// injects the user id (uint64) and role (string) into the request context
// under "user_id" and "role".  The secret must match the one used when
// issuing tokens.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := TokenFrom(c.Request())
			if raw == "" {
				return unauthorized(c, "missing token")
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return unauthorized(c, "invalid token")
			}
			c.Set(userIDKey, claims.UserID)
			c.Set(roleKey, claims.Role)
			return next(c)
		}
	}
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg, "code": "UNAUTHORIZED"})
}
