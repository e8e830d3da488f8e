package email

import (
	"context"
	"net/http"
)

// BrevoName is the delivery method reported when Brevo accepts a message.
const BrevoName = "brevo"

// Brevo sends through the Brevo (ex-Sendinblue) transactional API.
type Brevo struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewBrevo creates a Brevo provider. An empty apiKey leaves it unconfigured.
func NewBrevo(apiKey, baseURL string, client *http.Client) *Brevo {
	return &Brevo{apiKey: apiKey, baseURL: baseURL, client: client}
}

type brevoContact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoPayload struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	TextContent string         `json:"textContent"`
}

// Name returns "brevo".
func (b *Brevo) Name() string { return BrevoName }

// Configured reports whether an API key is set.
func (b *Brevo) Configured() bool { return b.apiKey != "" }

// Send posts msg to /v3/smtp/email as plain text.
func (b *Brevo) Send(ctx context.Context, msg *Message) error {
	payload := brevoPayload{
		Sender:      brevoContact{Name: msg.FromName, Email: msg.FromAddress},
		To:          []brevoContact{{Name: msg.ToName, Email: msg.ToEmail}},
		Subject:     msg.Subject,
		TextContent: msg.Text,
	}
	header := http.Header{"Api-Key": {b.apiKey}}
	return postJSON(ctx, b.client, BrevoName, joinURL(b.baseURL, "/v3/smtp/email"), header, payload)
}
