// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"golang.org/x/time/rate"

	"github.com/tomtom215/lunametrics/internal/config"
	"github.com/tomtom215/lunametrics/internal/logging"
	"github.com/tomtom215/lunametrics/internal/metrics"
)

// ChiMiddlewareConfig holds configuration for Chi middleware factories.
type ChiMiddlewareConfig struct {
	// CORS configuration
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int // seconds

	// Per-IP rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool

	// Global token bucket for overview and audit queries. Zero disables it.
	ExpensiveQueryRPS   float64
	ExpensiveQueryBurst int
}

// DefaultChiMiddlewareConfig returns a secure default configuration.
// CORS origins default to empty, requiring explicit configuration.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{"GET", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		CORSMaxAge:         86400,

		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,

		ExpensiveQueryRPS:   5,
		ExpensiveQueryBurst: 10,
	}
}

// ChiMiddleware provides Chi-compatible middleware factories.
type ChiMiddleware struct {
	config    *ChiMiddlewareConfig
	cors      func(http.Handler) http.Handler
	expensive *rate.Limiter
}

// NewChiMiddleware creates a new Chi middleware factory with the given configuration.
func NewChiMiddleware(cfg *ChiMiddlewareConfig) *ChiMiddleware {
	if cfg == nil {
		cfg = DefaultChiMiddlewareConfig()
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: cfg.CORSAllowedMethods,
		AllowedHeaders: cfg.CORSAllowedHeaders,
		ExposedHeaders: []string{"X-Request-ID", "ETag"},
		MaxAge:         cfg.CORSMaxAge,
	})

	m := &ChiMiddleware{
		config: cfg,
		cors:   corsHandler,
	}
	if cfg.ExpensiveQueryRPS > 0 {
		burst := cfg.ExpensiveQueryBurst
		if burst < 1 {
			burst = 1
		}
		m.expensive = rate.NewLimiter(rate.Limit(cfg.ExpensiveQueryRPS), burst)
	}
	return m
}

// NewChiMiddlewareFromConfig bridges the security section of cfg to the
// middleware factories.
func NewChiMiddlewareFromConfig(cfg *config.Config) *ChiMiddleware {
	mwCfg := DefaultChiMiddlewareConfig()
	if cfg == nil {
		return NewChiMiddleware(mwCfg)
	}

	sec := cfg.Security
	mwCfg.CORSAllowedOrigins = sec.CORSOrigins
	if sec.RateLimitReqs > 0 {
		mwCfg.RateLimitRequests = sec.RateLimitReqs
	}
	if sec.RateLimitWindow > 0 {
		mwCfg.RateLimitWindow = sec.RateLimitWindow
	}
	mwCfg.RateLimitDisabled = sec.RateLimitDisabled
	mwCfg.ExpensiveQueryRPS = sec.ExpensiveQueryRPS
	mwCfg.ExpensiveQueryBurst = sec.ExpensiveQueryBurst

	return NewChiMiddleware(mwCfg)
}

// CORS returns a Chi-compatible CORS middleware using go-chi/cors.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns a per-IP rate limiter using go-chi/httprate. Rejections
// are answered with a JSON RATE_LIMIT_EXCEEDED error.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		m.config.RateLimitRequests,
		m.config.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.APIRateLimitHits.WithLabelValues("api").Inc()
			respondError(w, r, http.StatusTooManyRequests, ErrCodeRateLimitExceeded,
				"Too many requests, retry later", nil)
		}),
	)
}

// ExpensiveQueryLimiter bounds overview and audit queries across all
// clients with one token bucket. It never waits: a request without a token
// is answered 429 with a Retry-After hint.
func (m *ChiMiddleware) ExpensiveQueryLimiter() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m.expensive == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := m.expensive.Reserve()
			if delay := res.Delay(); delay > 0 {
				res.Cancel()
				endpoint := r.URL.Path
				if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
					endpoint = rctx.RoutePattern()
				}
				metrics.APIRateLimitHits.WithLabelValues(endpoint).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(int(delay/time.Second)+1))
				respondError(w, r, http.StatusTooManyRequests, ErrCodeRateLimitExceeded,
					"Expensive query budget exhausted, retry later", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDWithLogging returns a middleware that adds request ID to the context
// and integrates with the logging package for distributed tracing.
// This wraps chi's RequestID middleware and adds correlation_id and request_id
// to the logging context.
func RequestIDWithLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		chiRequestID := chimiddleware.RequestID(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(chimiddleware.RequestIDHeader)
			if requestID == "" {
				// chi would generate one, but the logging context needs it first
				requestID = logging.GenerateRequestID()
				r.Header.Set(chimiddleware.RequestIDHeader, requestID)
			}
			w.Header().Set(chimiddleware.RequestIDHeader, requestID)

			ctx := logging.ContextWithRequestID(r.Context(), requestID)
			ctx = logging.ContextWithNewCorrelationID(ctx)

			chiRequestID.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APISecurityHeaders returns a middleware that adds security headers to
// API responses.
//
// Headers added:
//   - X-Content-Type-Options: nosniff
//   - X-Frame-Options: DENY
//   - Referrer-Policy: strict-origin-when-cross-origin
//
// HSTS is added when the request is over HTTPS.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
