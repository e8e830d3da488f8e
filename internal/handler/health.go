package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"complaints-proxy/internal/config"
	"complaints-proxy/internal/email"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	sender  *email.Sender
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, sender *email.Sender, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, sender: sender, version: v}
}

// statusResponse is the body of GET /proxy/status. It never contains API keys.
type statusResponse struct {
	Status         string            `json:"status"`
	Version        string            `json:"version"`
	Upstreams      map[string]string `json:"upstreams"`
	EmailProviders []string          `json:"email_providers"`
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status reports the relay targets and which email providers have keys.
func (h *HealthHandler) Status(c echo.Context) error {
	upstreams := map[string]string{
		"anthropic": h.cfg.Upstream.AnthropicURL,
		"openai":    h.cfg.Upstream.OpenAIURL,
	}
	if h.cfg.Upstream.FirebaseURL != "" {
		upstreams["firebase"] = h.cfg.Upstream.FirebaseURL
	}

	return c.JSON(http.StatusOK, statusResponse{
		Status:         "ok",
		Version:        string(h.version),
		Upstreams:      upstreams,
		EmailProviders: h.sender.Configured(),
	})
}
