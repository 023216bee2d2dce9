package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets security response headers on every request. The API
// serves JSON and WebSocket upgrades only; nothing it returns is meant to be
// rendered, embedded, or cached by a browser.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")

			// Consultation pages must not be framed by other origins.
			h.Set("X-Frame-Options", "DENY")

			// Legacy XSS filter off; the CSP below governs.
			h.Set("X-XSS-Protection", "0")

			// JSON-only responses: no resource loading, no embedding.
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

			h.Set("Referrer-Policy", "no-referrer")

			// Camera and microphone run against the media backend, never
			// through this API, so browser access stays disabled here.
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			// Presence data and message receipts must not be served stale
			// from an intermediary cache.
			h.Set("Cache-Control", "no-store")

			return next(c)
		}
	}
}
