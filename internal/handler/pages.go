package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"complaints-proxy/internal/pages"
)

// PageHandler serves the embedded static pages.
type PageHandler struct{}

// NewPageHandler creates a PageHandler.
func NewPageHandler() *PageHandler { return &PageHandler{} }

// Map serves the complaint map.
func (h *PageHandler) Map(c echo.Context) error {
	return c.Blob(http.StatusOK, pages.ContentType, pages.Map())
}

// Info serves the complaint infographic.
func (h *PageHandler) Info(c echo.Context) error {
	return c.Blob(http.StatusOK, pages.ContentType, pages.Info())
}
