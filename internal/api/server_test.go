package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/costargen/costargen/internal/config"
	"github.com/costargen/costargen/internal/generate"
	"github.com/costargen/costargen/internal/json"
	"github.com/costargen/costargen/internal/provider"
	"github.com/costargen/costargen/internal/quota"
	"github.com/costargen/costargen/internal/usage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.NewDefault()
	cfg.APIKeys = []config.APIKey{
		{Key: "sk-test", Subject: "tester", Plan: "premium"},
	}
	cfg.AdminKeys = []string{"admin-secret"}
	cfg.RateLimit.Enabled = false

	registry := provider.NewRegistry(nil, nil)
	ledger := quota.NewLedger(quota.NewMemoryStore(), 0, 0)
	recorder := usage.NewRecorder(usage.NoopBackend{})
	service := generate.NewService(registry, ledger, recorder, generate.Options{
		AnonDailyLimit: cfg.Quota.AnonymousDailyLimit,
	})
	return NewServer(cfg, service, registry, recorder)
}

func doJSON(t *testing.T, s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestGenerateEndpointDegradedPath(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/v1/generate", "sk-test",
		`{"context":"a blog","objective":"write an intro"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp generateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Degraded || resp.ProviderUsed != generate.FallbackProvider {
		t.Errorf("response = %+v", resp)
	}
	if !strings.Contains(resp.RenderedText, "# COSTAR Prompt") {
		t.Errorf("rendered_text = %q", resp.RenderedText)
	}
}

func TestGenerateEndpointValidation(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/v1/generate", "sk-test", `{"style":"formal"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGenerateEndpointQuotaExceeded(t *testing.T) {
	s := newTestServer(t)
	body := `{"context":"c","objective":"o"}`

	// Anonymous callers share the daily allowance keyed by fingerprint.
	var last *httptest.ResponseRecorder
	for i := 0; i < 11; i++ {
		last = doJSON(t, s, http.MethodPost, "/v1/generate", "", body)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d after exceeding anon limit, body = %s", last.Code, last.Body.String())
	}
	if !strings.Contains(last.Body.String(), "reset_time") {
		t.Errorf("429 body missing reset_time: %s", last.Body.String())
	}
}

func TestInvalidAPIKeyRejected(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodPost, "/v1/generate", "sk-wrong", `{"context":"c","objective":"o"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestQuotaEndpoint(t *testing.T) {
	s := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/v1/generate", "sk-test", `{"context":"c","objective":"o"}`)
	w := doJSON(t, s, http.MethodGet, "/v1/quota", "sk-test", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var d quota.Decision
	if err := json.Unmarshal(w.Body.Bytes(), &d); err != nil {
		t.Fatal(err)
	}
	if d.Used != 1 || d.Limit != 500 {
		t.Errorf("decision = %+v", d)
	}
}

func TestProvidersEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/v1/providers", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "fallback_mode") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestUsageEndpointRequiresAdminKey(t *testing.T) {
	s := newTestServer(t)

	if w := doJSON(t, s, http.MethodGet, "/v1/usage", "", ""); w.Code != http.StatusForbidden {
		t.Errorf("unauthenticated status = %d, want 403", w.Code)
	}
	if w := doJSON(t, s, http.MethodGet, "/v1/usage", "sk-test", ""); w.Code != http.StatusForbidden {
		t.Errorf("non-admin status = %d, want 403", w.Code)
	}
	if w := doJSON(t, s, http.MethodGet, "/v1/usage", "admin-secret", ""); w.Code != http.StatusOK {
		t.Errorf("admin status = %d, want 200", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}
