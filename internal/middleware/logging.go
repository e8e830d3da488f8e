// Package middleware provides Echo middleware for CORS, logging, metrics and
// security headers.
package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
)

// RouteKey is the echo.Context key under which the dispatcher stores the
// route kind it chose, for the access log.
const RouteKey = "route"

// RequestLogger returns an Echo middleware that logs each request with slog.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	logger = logger.With("component", "access_log")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			attrs := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"status", res.Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", res.Header().Get(echo.HeaderXRequestID),
				"remote_ip", c.RealIP(),
				"bytes_out", res.Size,
			}
			if kind, ok := c.Get(RouteKey).(string); ok {
				attrs = append(attrs, "route", kind)
			}

			logger.Info("request", attrs...)

			return err
		}
	}
}
