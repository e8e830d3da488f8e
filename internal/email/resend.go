package email

import (
	"context"
	"fmt"
	"net/http"
)

// ResendName is the delivery method reported when Resend accepts a message.
const ResendName = "resend"

// Resend sends through the Resend email API.
type Resend struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewResend creates a Resend provider. An empty apiKey leaves it unconfigured.
func NewResend(apiKey, baseURL string, client *http.Client) *Resend {
	return &Resend{apiKey: apiKey, baseURL: baseURL, client: client}
}

type resendPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// Name returns "resend".
func (r *Resend) Name() string { return ResendName }

// Configured reports whether an API key is set.
func (r *Resend) Configured() bool { return r.apiKey != "" }

// Send posts msg to /emails. Resend takes the sender as one "Name <address>"
// string and the recipients as a list of addresses.
func (r *Resend) Send(ctx context.Context, msg *Message) error {
	payload := resendPayload{
		From:    fmt.Sprintf("%s <%s>", msg.FromName, msg.FromAddress),
		To:      []string{msg.ToEmail},
		Subject: msg.Subject,
		Text:    msg.Text,
	}
	header := http.Header{"Authorization": {"Bearer " + r.apiKey}}
	return postJSON(ctx, r.client, ResendName, joinURL(r.baseURL, "/emails"), header, payload)
}
