// Package client provides the pooled outbound HTTP client used by the relay.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"complaints-proxy/internal/config"
	"complaints-proxy/internal/metrics"
	"complaints-proxy/internal/model"
)

// UpstreamClient sends relayed requests to the AI and realtime-database upstreams.
type UpstreamClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewUpstreamClient creates an UpstreamClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
//
// upstream.timeout_seconds bounds the wait for response headers only, so a
// hung upstream fails while long streamed completions are left alone.
func NewUpstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	transport := &http.Transport{
		MaxIdleConns:          cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost:   cfg.Upstream.IdleConnections,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &UpstreamClient{
		httpClient: &http.Client{
			Transport: transport,
			// Redirects belong to the caller.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:  logger.With("component", "upstream_client"),
		metrics: m,
	}
}

// Do executes an HTTP request against an upstream and returns the raw response.
// target labels the upstream in metrics. The caller is responsible for closing
// the response body.
func (c *UpstreamClient) Do(req *http.Request, target string) (*model.ProxyResponse, error) {
	c.logger.Debug("upstream request",
		"target", target,
		"method", req.Method,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via ProxyResponse
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(req.Method)

	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamDuration.WithLabelValues(target, method).Observe(duration)
		}
		return nil, fmt.Errorf("upstream request: %w", err)
	}

	if c.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		c.metrics.UpstreamDuration.WithLabelValues(target, method).Observe(duration)
		c.metrics.UpstreamResponses.WithLabelValues(target, method, status).Inc()
	}

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// DoStream builds and executes a request, returning the response body as a stream.
// A nil body sends no body; contentLength is applied when positive. The Host
// sent upstream is always the host of rawURL.
// The provided context controls the lifetime of the upstream request:
// when the context is canceled (e.g. client disconnects), the upstream
// request is also canceled.
func (c *UpstreamClient) DoStream(ctx context.Context, target, method, rawURL string, header http.Header, body io.Reader, contentLength int64) (*model.ProxyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	if header != nil {
		req.Header = header
	}
	req.Header.Del("Host")
	req.Host = req.URL.Host
	if body != nil && contentLength > 0 {
		req.ContentLength = contentLength
	}

	return c.Do(req, target)
}
