package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"complaints-proxy/internal/config"
	"complaints-proxy/internal/email"
)

func TestHealthz(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	cfg := testConfig()
	h := NewHealthHandler(cfg, email.NewSender(cfg, testLogger(), nil), "test")
	if err := h.Healthz(c); err != nil {
		t.Fatalf("Healthz() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestStatus(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/proxy/status", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	cfg := testConfig()
	cfg.Upstream.FirebaseURL = "https://complaints.firebaseio.com"
	cfg.Email.Resend = config.ProviderConfig{APIKey: "re_secret", BaseURL: "https://api.resend.com"}
	h := NewHealthHandler(cfg, email.NewSender(cfg, testLogger(), nil), "1.2.3")
	if err := h.Status(c); err != nil {
		t.Fatalf("Status() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Status != "ok" || body.Version != "1.2.3" {
		t.Errorf("body = %+v", body)
	}
	if body.Upstreams["anthropic"] != "https://api.anthropic.com" {
		t.Errorf("upstreams.anthropic = %q", body.Upstreams["anthropic"])
	}
	if body.Upstreams["firebase"] != "https://complaints.firebaseio.com" {
		t.Errorf("upstreams.firebase = %q", body.Upstreams["firebase"])
	}
	if len(body.EmailProviders) != 1 || body.EmailProviders[0] != "resend" {
		t.Errorf("email_providers = %v, want [resend]", body.EmailProviders)
	}
	if strings.Contains(rec.Body.String(), "re_secret") {
		t.Error("status body leaks an API key")
	}
}
