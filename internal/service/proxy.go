// Package service implements the upstream relay.
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"complaints-proxy/internal/client"
	"complaints-proxy/internal/config"
	"complaints-proxy/internal/model"
	"complaints-proxy/internal/route"
)

// ErrUpstreamNotConfigured is returned when a request targets an upstream with no base URL.
var ErrUpstreamNotConfigured = errors.New("upstream not configured")

// hopByHopHeaders are connection-scoped and never copied between legs.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ProxyService relays requests to the upstream selected by the router.
type ProxyService struct {
	client  *client.UpstreamClient
	logger  *slog.Logger
	targets map[route.Target]*url.URL
}

// NewProxyService creates a ProxyService. Upstreams with an empty base URL
// are left out; relaying to them fails with ErrUpstreamNotConfigured.
func NewProxyService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger) (*ProxyService, error) {
	bases := map[route.Target]string{
		route.Anthropic: cfg.Upstream.AnthropicURL,
		route.OpenAI:    cfg.Upstream.OpenAIURL,
		route.Firebase:  cfg.Upstream.FirebaseURL,
	}

	targets := make(map[route.Target]*url.URL, len(bases))
	for target, raw := range bases {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s upstream url: %w", target, err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("%s upstream url %q has no host", target, raw)
		}
		targets[target] = u
	}

	return &ProxyService{
		client:  c,
		logger:  logger.With("component", "proxy_service"),
		targets: targets,
	}, nil
}

// Forward relays pr to the upstream named by d and returns the upstream response
// with Access-Control-Allow-Origin forced to "*". d.Path replaces pr.Path.
// The caller is responsible for closing the response body.
func (s *ProxyService) Forward(pr *model.ProxyRequest, d route.Decision) (*model.ProxyResponse, error) {
	rawPath := rewriteRawPath(pr.Path, pr.RawPath, d.Path)
	upstreamURL, err := s.buildUpstreamURL(d.Target, d.Path, rawPath, pr.RawQuery)
	if err != nil {
		return nil, err
	}

	header := cloneRequestHeaders(pr.Header)

	// GET and HEAD never carry a body upstream.
	var body io.Reader
	if forwardsBody(pr.Method, pr.ContentLength) && pr.Body != nil {
		body = pr.Body
	}

	s.logger.Debug("forwarding request",
		"target", d.Target.String(),
		"method", pr.Method,
		"path", d.Path,
	)

	resp, err := s.client.DoStream(pr.Ctx, d.Target.String(), pr.Method, upstreamURL, header, body, pr.ContentLength)
	if err != nil {
		return nil, fmt.Errorf("forward to %s: %w", d.Target, err)
	}

	resp.Header = overlayResponseHeaders(resp.Header)
	return resp, nil
}

// buildUpstreamURL joins the target base with path and appends rawQuery verbatim.
// rawPath, when set, is the escaped form of path and is kept so that encoded
// characters such as %2F reach the upstream unchanged.
func (s *ProxyService) buildUpstreamURL(target route.Target, path, rawPath, rawQuery string) (string, error) {
	base, ok := s.targets[target]
	if !ok {
		return "", fmt.Errorf("%s: %w", target, ErrUpstreamNotConfigured)
	}

	u := *base
	u.Path = singleJoin(base.Path, path)
	u.RawPath = ""
	if rawPath != "" {
		u.RawPath = singleJoin(base.EscapedPath(), rawPath)
	}
	u.RawQuery = rawQuery
	return u.String(), nil
}

// rewriteRawPath applies the router's prefix strip to the escaped request
// path. It returns "" when there is no escaped form or the prefix was itself
// percent-encoded, in which case the decoded path is used.
func rewriteRawPath(path, rawPath, rewritten string) string {
	if rawPath == "" || !strings.HasSuffix(path, rewritten) {
		return ""
	}
	prefix := path[:len(path)-len(rewritten)]
	if !strings.HasPrefix(rawPath, prefix) {
		return ""
	}
	return rawPath[len(prefix):]
}

// singleJoin concatenates a base path and a request path without doubling the slash.
func singleJoin(basePath, path string) string {
	switch {
	case basePath == "" || basePath == "/":
		return path
	case basePath[len(basePath)-1] == '/' && len(path) > 0 && path[0] == '/':
		return basePath + path[1:]
	default:
		return basePath + path
	}
}

func forwardsBody(method string, contentLength int64) bool {
	if method == http.MethodGet || method == http.MethodHead {
		return false
	}
	return contentLength != 0
}

// cloneRequestHeaders copies every inbound header except hop-by-hop ones and Host.
func cloneRequestHeaders(src http.Header) http.Header {
	dst := src.Clone()
	if dst == nil {
		dst = make(http.Header)
	}
	for _, h := range hopByHopHeaders {
		dst.Del(h)
	}
	dst.Del("Host")
	return dst
}

// overlayResponseHeaders copies every upstream header except hop-by-hop ones,
// then forces the permissive allow-origin header.
func overlayResponseHeaders(src http.Header) http.Header {
	dst := src.Clone()
	if dst == nil {
		dst = make(http.Header)
	}
	for _, h := range hopByHopHeaders {
		dst.Del(h)
	}
	dst.Set("Access-Control-Allow-Origin", "*")
	return dst
}
