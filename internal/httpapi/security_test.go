package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"liquorstock/backend/internal/domain"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)
	res := env.do(t, http.MethodGet, "/healthz", nil, nil)

	if got := res.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options nosniff, got %q", got)
	}
	if got := res.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := res.Header().Get("Referrer-Policy"); got == "" {
		t.Fatalf("expected Referrer-Policy to be set")
	}
}

func TestLoginRateLimitReturns429(t *testing.T) {
	env := newTestEnv(t)
	body, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "wrong-pass"})

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		res := httptest.NewRecorder()

		env.handler.ServeHTTP(res, req)

		if i < 5 && res.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d expected 401 before limit, got %d", i+1, res.Code)
		}
		if i == 5 && res.Code != http.StatusTooManyRequests {
			t.Fatalf("attempt 6 expected 429, got %d", res.Code)
		}
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	env := newTestEnv(t)
	veryLong := strings.Repeat("a", (1<<20)+1024)
	body := fmt.Sprintf(`{"username":"%s","password":"x"}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized body, got %d", res.Code)
	}
	if got := decodeBody(t, res)["error"]; got != "request body too large" {
		t.Fatalf("unexpected error %v", got)
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	env := newTestEnv(t)
	supervisor := env.login(t, "supervisor", supervisorPass)

	res := env.do(t, http.MethodPost, "/api/v1/sell-finance", map[string]any{
		"report_date": "2025-01-02",
		"cash":        "10",
		"tip":         "5",
	}, supervisor)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", res.Code)
	}
	if got := decodeBody(t, res)["code"]; got != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", got)
	}
}

func TestInvoiceDocumentsTolerateExtraFields(t *testing.T) {
	env := newTestEnv(t)
	supervisor := env.login(t, "supervisor", supervisorPass)

	doc := map[string]any{
		"invoice_meta": map[string]any{"invoice_number": "INV-9", "invoice_date": "01-Jan-2025", "ocr_confidence": 0.93},
		"retailer":     map[string]any{"name": "Sri Wines", "code": "2500552"},
		"items":        []any{},
		"totals":       map[string]any{"net_invoice_value": 0},
	}
	res := env.do(t, http.MethodPost, "/api/v1/invoices/preview", doc, supervisor)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for extracted document, got %d (%s)", res.Code, res.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sell-reports", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", res.Code)
	}
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
	if got := res.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "X-CSRF-Token") {
		t.Fatalf("expected X-CSRF-Token to be allowed, got %q", got)
	}
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	env := newTestEnv(t)
	res := env.do(t, http.MethodGet, "/api/v1/nothing-here", nil, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if got := decodeBody(t, res)["code"]; got != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %v", got)
	}
}
