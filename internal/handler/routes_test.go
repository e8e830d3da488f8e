package handler

import (
	"net/http"
	"strings"
	"testing"

	"complaints-proxy/internal/config"
	"complaints-proxy/internal/metrics"
)

func TestRegisterRoutes_Wiring(t *testing.T) {
	upstream := newTestUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	cfg := testConfig()
	cfg.Upstream.AnthropicURL = upstream.URL
	cfg.Upstream.OpenAIURL = upstream.URL
	e := newTestEcho(t, cfg)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"GET /healthz", http.MethodGet, "/healthz", http.StatusOK},
		{"GET /proxy/status", http.MethodGet, "/proxy/status", http.StatusOK},
		{"OPTIONS anything", http.MethodOptions, "/whatever", http.StatusNoContent},
		{"GET /map", http.MethodGet, "/map", http.StatusOK},
		{"POST /send-email invalid", http.MethodPost, "/send-email", http.StatusInternalServerError},
		{"POST /openai", http.MethodPost, "/openai/v1/chat/completions", http.StatusOK},
		{"DELETE unknown path relayed", http.MethodDelete, "/v1/files/abc", http.StatusOK},
		{"GET /metrics relayed when disabled", http.MethodGet, "/metrics", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, tt.method, tt.path, nil)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
				t.Error("Access-Control-Allow-Origin missing")
			}
		})
	}
}

func TestRegisterRoutes_Metrics(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics = config.MetricsConfig{Enabled: true, Path: "/internal/metrics"}

	m := metrics.New()
	m.EmailOutcomes.WithLabelValues("fallback").Inc()

	e := newTestEchoWithMetrics(t, cfg, m)
	rec := serve(e, http.MethodGet, "/internal/metrics", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `complaints_proxy_email_outcomes_total{outcome="fallback"} 1`) {
		t.Errorf("metrics output missing email outcome counter")
	}
}
