// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/lunametrics/internal/api"
	"github.com/tomtom215/lunametrics/internal/cache"
	"github.com/tomtom215/lunametrics/internal/logging"
	"github.com/tomtom215/lunametrics/internal/metrics"
	"github.com/tomtom215/lunametrics/internal/models"
)

// OverviewSource computes the engagement overview. Satisfied by
// *database.DB.
type OverviewSource interface {
	GetEngagementOverview(ctx context.Context, rng models.DateRange) (*models.EngagementOverview, error)
}

// CacheWarmerService precomputes the overview of the trailing rangeDays
// and stores it under api.OverviewCacheKey, so the dashboard's default
// request is answered from cache. It warms once on start, then every
// interval.
//
// A failed run is logged and counted; the previous entry stays until its
// TTL expires. Failures never stop the loop.
type CacheWarmerService struct {
	source    OverviewSource
	cache     cache.Cacher
	interval  time.Duration
	rangeDays int
	now       func() time.Time
	logger    zerolog.Logger
}

// NewCacheWarmerService creates a warmer. rangeDays below 1 selects 30.
func NewCacheWarmerService(source OverviewSource, c cache.Cacher, interval time.Duration, rangeDays int) *CacheWarmerService {
	if rangeDays < 1 {
		rangeDays = 30
	}
	return &CacheWarmerService{
		source:    source,
		cache:     c,
		interval:  interval,
		rangeDays: rangeDays,
		now:       time.Now,
		logger:    logging.WithComponent("cache-warmer"),
	}
}

// Serve implements suture.Service.
func (s *CacheWarmerService) Serve(ctx context.Context) error {
	s.WarmOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.WarmOnce(ctx)
		}
	}
}

// WarmOnce computes and caches one overview. It reports whether the cache
// was filled.
func (s *CacheWarmerService) WarmOnce(ctx context.Context) bool {
	rng := models.TrailingDays(s.now(), s.rangeDays)
	start := time.Now()

	overview, err := s.source.GetEngagementOverview(ctx, rng)
	if err != nil {
		if ctx.Err() == nil {
			metrics.CacheWarmRuns.WithLabelValues("failure").Inc()
			s.logger.Warn().Err(err).
				Str("start", models.FormatDay(rng.Start)).
				Str("end", models.FormatDay(rng.End)).
				Msg("Overview warm failed")
		}
		return false
	}

	s.cache.Set(api.OverviewCacheKey(rng), overview)
	metrics.CacheWarmRuns.WithLabelValues("success").Inc()
	s.logger.Debug().
		Str("start", models.FormatDay(rng.Start)).
		Str("end", models.FormatDay(rng.End)).
		Dur("duration", time.Since(start)).
		Int("anomalies", len(overview.Anomalies)).
		Msg("Overview warmed")
	return true
}

// String names the service in supervisor logs.
func (s *CacheWarmerService) String() string {
	return "cache-warmer"
}
