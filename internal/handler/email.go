package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	"complaints-proxy/internal/email"
)

// EmailHandler serves POST /send-email.
type EmailHandler struct {
	sender *email.Sender
	logger *slog.Logger
}

// NewEmailHandler creates an EmailHandler.
func NewEmailHandler(sender *email.Sender, logger *slog.Logger) *EmailHandler {
	return &EmailHandler{
		sender: sender,
		logger: logger.With("component", "email_handler"),
	}
}

// Send decodes the request and runs the provider chain. Validation failures
// are 400, a body that is not JSON or a provider call that fails outright is
// 500, and everything else (including the mailto fallback) is 200.
func (h *EmailHandler) Send(c echo.Context) error {
	var req email.Request
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		h.logger.Warn("decoding email request", "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	out, err := h.sender.Send(c.Request().Context(), &req)
	if err != nil {
		var verr *email.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: verr.Error()})
		}
		h.logger.Error("sending email", "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, out)
}
