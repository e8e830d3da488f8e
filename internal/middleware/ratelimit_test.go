package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"complaints-proxy/internal/middleware"
)

func TestRateLimit_RejectsAfterBurst(t *testing.T) {
	e := echo.New()
	e.Pre(middleware.CORS())
	e.Use(middleware.RateLimit(1))
	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want %d", rec.Code, http.StatusOK)
	}

	var limited *httptest.ResponseRecorder
	for n := 0; n < 10; n++ {
		req = httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = rec
			break
		}
	}
	if limited == nil {
		t.Fatal("expected at least one 429 response after burst, got none")
	}
	if !strings.Contains(limited.Body.String(), `"ok":false`) {
		t.Errorf("body = %q, want JSON error", limited.Body.String())
	}
	if got := limited.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "*")
	}
}

func TestRateLimit_SkipsHealthz(t *testing.T) {
	e := echo.New()
	e.Use(middleware.RateLimit(1))
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, rec.Code, http.StatusOK)
		}
	}
}
