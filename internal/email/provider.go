package email

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// maxErrorBody caps how much of a provider error response is kept for logs.
const maxErrorBody = 512

// Message is a Request resolved against the configured sender identity.
type Message struct {
	FromName    string
	FromAddress string
	ToEmail     string
	ToName      string
	Subject     string
	Text        string
}

// Provider is one transactional email API in the delivery chain.
type Provider interface {
	// Name is reported to the caller as the delivery method.
	Name() string

	// Configured reports whether the provider has credentials. Unconfigured
	// providers are skipped without a call.
	Configured() bool

	// Send delivers msg. A non-2xx answer is returned as *StatusError; any
	// other error means the call itself failed.
	Send(ctx context.Context, msg *Message) error
}

// StatusError is a provider answer outside the 2xx range.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// postJSON sends payload as JSON to rawURL with the given extra headers.
func postJSON(ctx context.Context, client *http.Client, provider, rawURL string, header http.Header, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal payload: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", provider, err)
	}
	for k, vals := range header {
		req.Header[k] = vals
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send: %w", provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return nil
}

// joinURL appends path to base without doubling the slash.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
