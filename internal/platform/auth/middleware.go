package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	userIDKey   = "user_id"
	userRoleKey = "user_role"
	userNameKey = "user_name"
)

// Middleware authenticates requests with a bearer access token and stores the
// caller's identity on the echo context.
func Middleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims, err := ValidateAccessToken(secret, strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}

			c.Set(userIDKey, claims.Subject)
			c.Set(userRoleKey, claims.Role)
			c.Set(userNameKey, claims.Name)
			return next(c)
		}
	}
}

// RequireRole rejects requests whose authenticated role is not in the allowed
// set. It must run after Middleware.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(userRoleKey).(string)
			if !allowed[role] {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
			}
			return next(c)
		}
	}
}

// UserID returns the authenticated caller's user id, if any.
func UserID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}

// UserRole returns the authenticated caller's role, if any.
func UserRole(c echo.Context) string {
	role, _ := c.Get(userRoleKey).(string)
	return role
}

// UserName returns the authenticated caller's display name, if any.
func UserName(c echo.Context) string {
	name, _ := c.Get(userNameKey).(string)
	return name
}
