package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RateLimit returns a per-client-IP token bucket limiter. Liveness probes are
// never limited. Rejected requests get a 429 with the proxy's JSON error body.
func RateLimit(rps float64) echo.MiddlewareFunc {
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/healthz"
		},
		Store: echomw.NewRateLimiterMemoryStore(rate.Limit(rps)),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, _ error) error {
			return c.JSON(http.StatusForbidden, map[string]any{"ok": false, "error": "client not identifiable"})
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]any{"ok": false, "error": "rate limit exceeded"})
		},
	})
}
