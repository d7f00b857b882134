// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/lunametrics/internal/middleware"
)

// Router wires handlers to routes.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil mw selects DefaultChiMiddlewareConfig.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi configures all HTTP routes using Chi router.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Applied to ALL routes in order
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1/engagement", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(chimiddleware.Compress(5, "application/json"))
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.handler.perfMon.Middleware)

		expensive := router.chiMiddleware.ExpensiveQueryLimiter()

		r.With(expensive).Get("/overview", router.handler.EngagementOverview)
		r.Get("/windows", router.handler.EngagementWindows)
		r.Get("/trend", router.handler.EngagementTrend)
		r.Get("/segments", router.handler.EngagementSegments)
		r.Get("/referrers", router.handler.EngagementReferrers)
		r.Get("/retention", router.handler.EngagementRetention)
		r.Get("/overlap", router.handler.EngagementOverlap)
		r.Get("/active-days", router.handler.EngagementActiveDays)
		r.Get("/engaged", router.handler.EngagementEngaged)
		r.Get("/funnel/grimoire", router.handler.EngagementGrimoireFunnel)
		r.Get("/influence", router.handler.EngagementInfluence)
		r.Get("/grimoire-health", router.handler.EngagementGrimoireHealth)
		r.Get("/features", router.handler.EngagementFeatures)

		r.With(expensive).Get("/audit", router.handler.EngagementAudit)
		r.With(expensive).Get("/audit/identity-links", router.handler.EngagementIdentityLinkAudit)
		r.Get("/identity/resolve", router.handler.EngagementResolveIdentity)
		r.Get("/snapshots", router.handler.EngagementSnapshots)
		r.Get("/snapshots/compare", router.handler.EngagementSnapshotCompare)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Route not found", nil)
	})

	return r
}
