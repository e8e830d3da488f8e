package email

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
)

type capturedRequest struct {
	method string
	path   string
	header http.Header
	body   []byte
}

func captureServer(t *testing.T, status int) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.header = r.Header.Clone()
		captured.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message":"handled"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func testMessage() *Message {
	return &Message{
		FromName:    "Civic Complaints",
		FromAddress: "noreply@city.example",
		ToEmail:     "clerk@city.example",
		ToName:      "City Clerk",
		Subject:     "Pothole",
		Text:        "Deep pothole on 5th Ave",
	}
}

func TestBrevo_Send(t *testing.T) {
	srv, got := captureServer(t, http.StatusCreated)

	p := NewBrevo("xkeysib-test", srv.URL+"/", srv.Client())
	if err := p.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if got.method != http.MethodPost {
		t.Errorf("method = %s, want POST", got.method)
	}
	if got.path != "/v3/smtp/email" {
		t.Errorf("path = %s, want /v3/smtp/email", got.path)
	}
	if got.header.Get("api-key") != "xkeysib-test" {
		t.Errorf("api-key header = %q", got.header.Get("api-key"))
	}
	if got.header.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", got.header.Get("Content-Type"))
	}

	var payload brevoPayload
	if err := json.Unmarshal(got.body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Sender.Name != "Civic Complaints" || payload.Sender.Email != "noreply@city.example" {
		t.Errorf("sender = %+v", payload.Sender)
	}
	if len(payload.To) != 1 || payload.To[0].Email != "clerk@city.example" || payload.To[0].Name != "City Clerk" {
		t.Errorf("to = %+v", payload.To)
	}
	if payload.Subject != "Pothole" || payload.TextContent != "Deep pothole on 5th Ave" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestResend_Send(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK)

	p := NewResend("re_test", srv.URL, srv.Client())
	if err := p.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if got.path != "/emails" {
		t.Errorf("path = %s, want /emails", got.path)
	}
	if got.header.Get("Authorization") != "Bearer re_test" {
		t.Errorf("Authorization = %q", got.header.Get("Authorization"))
	}

	var raw map[string]any
	if err := json.Unmarshal(got.body, &raw); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if raw["from"] != "Civic Complaints <noreply@city.example>" {
		t.Errorf("from = %v", raw["from"])
	}
	to, ok := raw["to"].([]any)
	if !ok || len(to) != 1 || to[0] != "clerk@city.example" {
		t.Errorf("to = %v, want single-element address list", raw["to"])
	}
	if raw["subject"] != "Pothole" || raw["text"] != "Deep pothole on 5th Ave" {
		t.Errorf("payload = %v", raw)
	}
}

func TestProvider_NonSuccessIsStatusError(t *testing.T) {
	srv, _ := captureServer(t, http.StatusUnauthorized)

	providers := []Provider{
		NewBrevo("bad", srv.URL, srv.Client()),
		NewResend("bad", srv.URL, srv.Client()),
	}
	for _, p := range providers {
		t.Run(p.Name(), func(t *testing.T) {
			err := p.Send(context.Background(), testMessage())
			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("Send() error = %v, want *StatusError", err)
			}
			if statusErr.StatusCode != http.StatusUnauthorized {
				t.Errorf("StatusCode = %d, want 401", statusErr.StatusCode)
			}
			if statusErr.Provider != p.Name() {
				t.Errorf("Provider = %q, want %q", statusErr.Provider, p.Name())
			}
			if statusErr.Body != `{"message":"handled"}` {
				t.Errorf("Body = %q", statusErr.Body)
			}
		})
	}
}

func TestProvider_TransportErrorIsNotStatusError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewBrevo("key", url, http.DefaultClient).Send(context.Background(), testMessage())
	if err == nil {
		t.Fatal("Send() expected error for closed server")
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		t.Errorf("Send() error = %v, want transport error", err)
	}
}

func TestProvider_Configured(t *testing.T) {
	if NewBrevo("", "https://api.brevo.com", nil).Configured() {
		t.Error("Brevo without key reports configured")
	}
	if !NewBrevo("k", "https://api.brevo.com", nil).Configured() {
		t.Error("Brevo with key reports unconfigured")
	}
	if NewResend("", "https://api.resend.com", nil).Configured() {
		t.Error("Resend without key reports configured")
	}
}

func TestJoinURL(t *testing.T) {
	tests := []struct{ base, path, want string }{
		{"https://api.resend.com", "/emails", "https://api.resend.com/emails"},
		{"https://api.resend.com/", "/emails", "https://api.resend.com/emails"},
		{"http://127.0.0.1:9000//", "/v3/smtp/email", "http://127.0.0.1:9000/v3/smtp/email"},
	}
	for _, tt := range tests {
		if got := joinURL(tt.base, tt.path); got != tt.want {
			t.Errorf("joinURL(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
}
