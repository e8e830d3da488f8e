package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"complaints-proxy/internal/config"
	"complaints-proxy/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance. Everything
// outside the reserved health, status and metrics routes goes to the proxy
// dispatcher.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, proxy *ProxyHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	e.Any("/*", proxy.Handle)
}
