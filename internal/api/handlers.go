// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package api

import (
	"context"
	"time"

	"github.com/tomtom215/lunametrics/internal/cache"
	"github.com/tomtom215/lunametrics/internal/config"
	"github.com/tomtom215/lunametrics/internal/database"
	"github.com/tomtom215/lunametrics/internal/identity"
	"github.com/tomtom215/lunametrics/internal/logging"
	"github.com/tomtom215/lunametrics/internal/middleware"
	"github.com/tomtom215/lunametrics/internal/models"
)

// EngagementStore is the read side of the engine the handlers depend on.
// *database.DB implements it.
type EngagementStore interface {
	Ping(ctx context.Context) error

	GetWindowCounts(ctx context.Context, types []string, anchor time.Time) (*models.WindowCounts, error)
	GetDailyActiveTrend(ctx context.Context, types []string, rng models.DateRange) ([]models.DailyActivePoint, error)
	GetUserSegments(ctx context.Context, types []string, rng models.DateRange) (*models.UserSegments, error)
	GetReferrerBreakdown(ctx context.Context, types []string, rng models.DateRange) (*models.ReferrerBreakdown, error)
	GetRetentionCohorts(ctx context.Context, types []string, rng models.DateRange) (*models.RetentionReport, error)
	GetWindowOverlap(ctx context.Context, types []string, anchor time.Time) (*models.WindowOverlap, error)
	GetActiveDaysDistribution(ctx context.Context, types []string, rng models.DateRange) (*models.ActiveDaysDistribution, error)

	GetEngagedReport(ctx context.Context, rng models.DateRange) (*models.EngagedReport, error)
	GetGrimoireFunnel(ctx context.Context, rng models.DateRange) (*models.GrimoireFunnel, error)
	GetConversionInfluence(ctx context.Context, rng models.DateRange) (*models.ConversionInfluence, error)
	GetGrimoireHealth(ctx context.Context, rng models.DateRange) (*models.GrimoireHealth, error)
	GetFeatureAdoption(ctx context.Context, rng models.DateRange) (*models.FeatureAdoption, error)

	GetAuditDiagnostics(ctx context.Context, types []string, rng models.DateRange) (*models.AuditDiagnostics, error)
	GetIdentityLinkAudit(ctx context.Context) (*models.IdentityLinkAudit, error)
	ResolveIdentity(ctx context.Context, userID, anonymousID string) (identity.Resolution, error)

	ListMetricSnapshots(ctx context.Context, periodType string, limit int) ([]models.MetricSnapshot, error)
	CompareSnapshots(ctx context.Context, periodType string) (*models.SnapshotComparison, error)

	GetEngagementOverview(ctx context.Context, rng models.DateRange) (*models.EngagementOverview, error)
}

var _ EngagementStore = (*database.DB)(nil)

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct and constructor (this file)
//   - handlers_helpers.go: response helpers
//   - handlers_health.go: liveness, readiness and status
//   - handlers_engagement.go: engagement report endpoints
//   - handlers_audit.go: diagnostics, identity and snapshot endpoints
type Handler struct {
	store     EngagementStore
	cache     cache.Cacher
	breaker   *StoreBreaker
	config    *config.Config
	perfMon   *middleware.PerformanceMonitor
	startTime time.Time

	// now is the clock for default ranges; tests pin it.
	now func() time.Time
}

// NewHandler creates the API handler. A nil cache disables result caching.
//
// Example:
//
//	h := api.NewHandler(db, cache.NewCacher(opts), cfg)
//	router := api.NewRouter(h, api.NewChiMiddlewareFromConfig(cfg))
//	srv := &http.Server{Handler: router.SetupChi()}
func NewHandler(store EngagementStore, c cache.Cacher, cfg *config.Config) *Handler {
	breakerCfg := config.BreakerConfig{}
	if cfg != nil {
		breakerCfg = cfg.Breaker
	}
	return &Handler{
		store:     store,
		cache:     c,
		breaker:   NewStoreBreaker(storeBreakerName, breakerCfg),
		config:    cfg,
		perfMon:   middleware.NewPerformanceMonitor(1000, middleware.DefaultSlowThreshold),
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Cache exposes the result cache so the cache warmer fills the same store
// the handlers read from.
func (h *Handler) Cache() cache.Cacher {
	return h.cache
}

// PerformanceMonitor returns the request monitor the router installs.
func (h *Handler) PerformanceMonitor() *middleware.PerformanceMonitor {
	return h.perfMon
}

// ClearCache drops every cached report. Call it after new events are
// ingested so the next request recomputes against fresh data.
func (h *Handler) ClearCache() {
	if h.cache != nil {
		h.cache.Clear()
		logging.Info().Str("component", "api").Msg("Engagement cache cleared")
	}
}
