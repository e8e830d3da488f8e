package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Preflight header values. Every OPTIONS request gets exactly these.
const (
	AllowOrigin  = "*"
	AllowMethods = "GET,POST,PUT,DELETE,OPTIONS"
	AllowHeaders = "*"
	MaxAge       = "86400"
)

// CORS returns a pre-routing middleware that answers every OPTIONS request
// with a fixed 204 preflight and stamps Access-Control-Allow-Origin on every
// other response before any handler or error handler writes it.
//
// Register it with e.Pre so that 404, 405, 413 and 429 responses produced by
// echo itself carry the header too.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method == http.MethodOptions {
				return Preflight(c)
			}
			c.Response().Header().Set(echo.HeaderAccessControlAllowOrigin, AllowOrigin)
			return next(c)
		}
	}
}

// Preflight writes the permissive preflight response. It does not look at
// the request, so repeated calls produce identical responses.
func Preflight(c echo.Context) error {
	h := c.Response().Header()
	h.Set(echo.HeaderAccessControlAllowOrigin, AllowOrigin)
	h.Set(echo.HeaderAccessControlAllowMethods, AllowMethods)
	h.Set(echo.HeaderAccessControlAllowHeaders, AllowHeaders)
	h.Set(echo.HeaderAccessControlMaxAge, MaxAge)
	return c.NoContent(http.StatusNoContent)
}
