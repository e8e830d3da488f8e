// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
)

// ProxyRequest represents a client request to be relayed upstream.
type ProxyRequest struct {
	Ctx           context.Context
	Method        string
	Path          string
	RawPath       string // escaped form of Path when it differs from the default encoding
	RawQuery      string // passed through unmodified
	Header        http.Header
	Body          io.ReadCloser
	ContentLength int64
}

// ProxyResponse represents the upstream response to be streamed back.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
