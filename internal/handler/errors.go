package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorHandler renders errors escaping the handler chain (recovered panics,
// oversized bodies, rate limiting) in the same {ok:false,error} shape the
// proxy uses for its own failures.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := "internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = http.StatusText(code)
			if he.Message != nil {
				if s := fmt.Sprint(he.Message); s != "" {
					msg = s
				}
			}
		}

		if code >= http.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", code,
				"error", err,
			)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = c.JSON(code, errorResponse{Error: msg})
		}
		if writeErr != nil {
			logger.Warn("write error response", "error", writeErr)
		}
	}
}
