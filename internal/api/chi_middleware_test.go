// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/lunametrics/internal/config"
	"github.com/tomtom215/lunametrics/internal/logging"
	"github.com/tomtom215/lunametrics/internal/metrics"
)

func TestNewChiMiddleware_DefaultConfig(t *testing.T) {
	m := NewChiMiddleware(nil)

	if m.config == nil {
		t.Fatal("config is nil")
	}
	// Default should be empty (secure by default - requires explicit configuration)
	if len(m.config.CORSAllowedOrigins) != 0 {
		t.Errorf("CORSAllowedOrigins = %v, want []", m.config.CORSAllowedOrigins)
	}
	if m.config.RateLimitRequests != 100 {
		t.Errorf("RateLimitRequests = %d, want 100", m.config.RateLimitRequests)
	}
	if m.expensive == nil {
		t.Error("expensive query limiter should be enabled by default")
	}
}

func TestNewChiMiddlewareFromConfig(t *testing.T) {
	cfg := &config.Config{
		Security: config.SecurityConfig{
			CORSOrigins:         []string{"https://dashboard.example.com"},
			RateLimitReqs:       20,
			RateLimitWindow:     30 * time.Second,
			ExpensiveQueryRPS:   0,
			ExpensiveQueryBurst: 3,
		},
	}

	m := NewChiMiddlewareFromConfig(cfg)

	if m.config.CORSAllowedOrigins[0] != "https://dashboard.example.com" {
		t.Errorf("CORSAllowedOrigins = %v", m.config.CORSAllowedOrigins)
	}
	if m.config.RateLimitRequests != 20 {
		t.Errorf("RateLimitRequests = %d, want 20", m.config.RateLimitRequests)
	}
	if m.config.RateLimitWindow != 30*time.Second {
		t.Errorf("RateLimitWindow = %v, want 30s", m.config.RateLimitWindow)
	}
	if m.expensive != nil {
		t.Error("zero expensive_query_rps should disable the limiter")
	}
}

func TestRateLimit_RejectsWithJSON(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitRequests: 1,
		RateLimitWindow:   time.Minute,
	})
	handler := m.RateLimit()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	before := testutil.ToFloat64(metrics.APIRateLimitHits.WithLabelValues("api"))

	var codes []int
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/engagement/trend", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			checkErrorCode(t, decodeResponse(t, w), ErrCodeRateLimitExceeded)
		}
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 429]", codes)
	}
	if got := testutil.ToFloat64(metrics.APIRateLimitHits.WithLabelValues("api")) - before; got != 1 {
		t.Errorf("rate limit hits delta = %v, want 1", got)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitRequests: 1, RateLimitWindow: time.Minute, RateLimitDisabled: true})
	handler := m.RateLimit()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}
}

func TestExpensiveQueryLimiter(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	h := setupTestHandler(t, store)
	mw := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitDisabled:   true,
		ExpensiveQueryRPS:   0.001,
		ExpensiveQueryBurst: 1,
	})
	router := NewRouter(h, mw).SetupChi()

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	checkStatus(t, get("/api/v1/engagement/audit"), http.StatusOK)

	w := get("/api/v1/engagement/overview")
	checkStatus(t, w, http.StatusTooManyRequests)
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	// Cheap reports do not draw from the bucket.
	checkStatus(t, get("/api/v1/engagement/trend"), http.StatusOK)
}

func TestRequestIDWithLogging(t *testing.T) {
	t.Run("generates id", func(t *testing.T) {
		var seen string
		handler := RequestIDWithLogging()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = logging.RequestIDFromContext(r.Context())
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if seen == "" {
			t.Fatal("request id missing from context")
		}
		if got := w.Header().Get(chimiddleware.RequestIDHeader); got != seen {
			t.Errorf("response header = %q, want %q", got, seen)
		}
	})

	t.Run("keeps caller id", func(t *testing.T) {
		var seen string
		handler := RequestIDWithLogging()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = logging.RequestIDFromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(chimiddleware.RequestIDHeader, "req-123")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if seen != "req-123" {
			t.Errorf("request id = %q, want req-123", seen)
		}
	})

	t.Run("echoed in response metadata", func(t *testing.T) {
		h := setupTestHandler(t, newFakeStore())
		router := NewRouter(h, NewChiMiddlewareFromConfig(h.config)).SetupChi()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
		req.Header.Set(chimiddleware.RequestIDHeader, "req-456")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got := decodeResponse(t, w).Metadata.RequestID; got != "req-456" {
			t.Errorf("metadata request_id = %q, want req-456", got)
		}
	})
}

func TestAPISecurityHeaders(t *testing.T) {
	handler := APISecurityHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	tests := []struct {
		name     string
		proto    string
		wantHSTS bool
	}{
		{"plain http", "", false},
		{"behind tls proxy", "https", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tt.proto)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("missing X-Content-Type-Options")
			}
			if w.Header().Get("X-Frame-Options") != "DENY" {
				t.Error("missing X-Frame-Options")
			}
			if got := w.Header().Get("Strict-Transport-Security") != ""; got != tt.wantHSTS {
				t.Errorf("HSTS present = %v, want %v", got, tt.wantHSTS)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	h := setupTestHandler(t, newFakeStore())
	cfg := testConfig()
	cfg.Security.CORSOrigins = []string{"https://dashboard.example.com"}
	router := NewRouter(h, NewChiMiddlewareFromConfig(cfg)).SetupChi()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/engagement/trend", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://dashboard.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
