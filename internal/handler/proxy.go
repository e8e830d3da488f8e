package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"

	"complaints-proxy/internal/middleware"
	"complaints-proxy/internal/model"
	"complaints-proxy/internal/route"
	"complaints-proxy/internal/service"
)

// secretParamPattern matches credential query parameters (Firebase auth
// tokens, Google API keys) in URLs embedded in error messages.
var secretParamPattern = regexp.MustCompile(`(?i)\b((?:auth|key|access_token)=)[^&\s"]+`)

// errorResponse is the JSON body of every failure produced by the proxy itself.
type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// ProxyHandler classifies every request that is not a reserved route and
// hands it to the email endpoint, a static page, or the upstream relay.
type ProxyHandler struct {
	service *service.ProxyService
	email   *EmailHandler
	pages   *PageHandler
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, email *EmailHandler, pages *PageHandler, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		email:   email,
		pages:   pages,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle routes the request by method and path.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()
	d := route.Classify(req.Method, req.URL.Path)
	c.Set(middleware.RouteKey, d.Kind.String())

	switch d.Kind {
	case route.Preflight:
		// Only reached when the router is wired without the CORS Pre
		// middleware, which answers OPTIONS before routing.
		return middleware.Preflight(c)
	case route.SendEmail:
		return h.email.Send(c)
	case route.MapPage:
		return h.pages.Map(c)
	case route.InfoPage:
		return h.pages.Info(c)
	default:
		return h.relay(c, d)
	}
}

// relay forwards the request upstream and streams the response back.
func (h *ProxyHandler) relay(c echo.Context, d route.Decision) error {
	req := c.Request()

	pr := &model.ProxyRequest{
		Ctx:           req.Context(),
		Method:        req.Method,
		Path:          req.URL.Path,
		RawPath:       req.URL.RawPath,
		RawQuery:      req.URL.RawQuery,
		Header:        req.Header,
		Body:          req.Body,
		ContentLength: req.ContentLength,
	}

	resp, err := h.service.Forward(pr, d)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Upstream headers replace anything set earlier under the same name.
	header := c.Response().Header()
	for key, vals := range resp.Header {
		header[key] = vals
	}

	c.Response().WriteHeader(resp.StatusCode)

	// The status is already on the wire, so a mid-stream failure can only
	// truncate the body. It is logged and otherwise ignored.
	if err := copyFlushing(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", sanitizeError(err),
			"target", d.Target.String(),
			"path", d.Path,
		)
	}

	return nil
}

// copyFlushing copies src to w, flushing after every chunk so streamed
// completions reach the client as they arrive.
func copyFlushing(w *echo.Response, src io.Reader) error {
	rc := http.NewResponseController(w)
	buf := make([]byte, 32*1024)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			_ = rc.Flush()
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	h.logger.Error("relay error",
		"err", sanitizeError(err),
		"path", c.Request().URL.Path,
	)

	if errors.Is(err, service.ErrUpstreamNotConfigured) {
		return c.JSON(http.StatusBadGateway, errorResponse{Error: "upstream not configured"})
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusGatewayTimeout, errorResponse{Error: "upstream timed out"})
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.JSON(http.StatusGatewayTimeout, errorResponse{Error: "upstream timed out"})
	}

	if errors.Is(err, context.Canceled) {
		return c.JSON(http.StatusBadGateway, errorResponse{Error: "client disconnected"})
	}

	return c.JSON(http.StatusBadGateway, errorResponse{Error: "upstream unreachable"})
}

// sanitizeError redacts credential query parameters from error messages
// that may contain upstream URLs.
func sanitizeError(err error) string {
	return secretParamPattern.ReplaceAllString(err.Error(), "${1}[REDACTED]")
}
