// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package api

import (
	"context"
	"net/http"
)

// EngagementOverview returns the full engagement picture for a range:
// windows, stickiness, trend, segments, retention, conversion reports,
// anomalies and warnings.
//
// Method: GET
// Path: /api/v1/engagement/overview
//
// Query Parameters:
//   - start, end: RFC3339 or YYYY-MM-DD (default: trailing 30 days)
//   - range: shorthand such as 7d, 30d or 90d
//
// Overview results are shared with the cache warmer through OverviewCacheKey.
func (h *Handler) EngagementOverview(w http.ResponseWriter, r *http.Request) {
	req, ok := h.bindRangeRequest(w, r)
	if !ok {
		return
	}
	rng := dayRange(req.Range)
	NewQueryExecutor(h).execute(w, r, prefixOverview, OverviewCacheKey(rng), func(ctx context.Context) (interface{}, error) {
		return h.store.GetEngagementOverview(ctx, rng)
	})
}

// EngagementWindows returns DAU, WAU, MAU and stickiness for the windows
// ending on the anchor day.
//
// Method: GET
// Path: /api/v1/engagement/windows
//
// Query Parameters:
//   - anchor: RFC3339 or YYYY-MM-DD (default: today)
//   - event_type: activity event types, repeatable or comma separated
func (h *Handler) EngagementWindows(w http.ResponseWriter, r *http.Request) {
	req, ok := h.bindAnchorRequest(w, r)
	if !ok {
		return
	}
	NewQueryExecutor(h).Execute(w, r, prefixWindows, req, func(ctx context.Context) (interface{}, error) {
		return h.store.GetWindowCounts(ctx, req.EventTypes, req.Anchor)
	})
}

// EngagementTrend returns one point per day with DAU, WAU, MAU,
// stickiness and returning DAU.
//
// Method: GET
// Path: /api/v1/engagement/trend
func (h *Handler) EngagementTrend(w http.ResponseWriter, r *http.Request) {
	req, ok := h.bindRangeRequest(w, r)
	if !ok {
		return
	}
	NewQueryExecutor(h).Execute(w, r, prefixTrend, req, func(ctx context.Context) (interface{}, error) {
		return h.store.GetDailyActiveTrend(ctx, req.EventTypes, req.Range)
	})
}

// EngagementSegments separates new users from lifetime-returning and
// range-returning users.
//
// Method: GET
// Path: /api/v1/engagement/segments
func (h *Handler) EngagementSegments(w http.ResponseWriter, r *http.Request) {
	req, ok := h.bindRangeRequest(w, r)
	if !ok {
		return
	}
	NewQueryExecutor(h).Execute(w, r, prefixSegments, req, func(ctx context.Context) (interface{}, error) {
		return h.store.GetUserSegments(ctx, req.EventTypes, req.Range)
	})
}

// EngagementReferrers attributes range-returning identities to internal,
// organic or direct traffic.
//
// Method: GET
// Path: /api/v1/engagement/referrers
func (h *Handler) EngagementReferrers(w http.ResponseWriter, r *http.Request) {
	req, ok := h.bindRangeRequest(w, r)
	if !ok {
		return
	}
	NewQueryExecutor(h).Execute(w, r, prefixReferrers, req, func(ctx context.Context) (interface{}, error) {
		return h.store.GetReferrerBreakdown(ctx, req.EventTypes, req.Range)
	})
}

// EngagementRetention returns D1, D7 and D30 retention per signup cohort.
// Offsets not yet observable are reported as null.
//
// Method: GET
// Path: /api/v1/engagement/retention
func (h *Handler) EngagementRetention(w http.ResponseWriter, r *http.Request) {
	req, ok := h.bindRangeRequest(w, r)
	if !ok {
		return
	}
	NewQueryExecutor(h).Execute(w, r, prefixRetention, req, func(ctx context.Context) (interface{}, error) {
		return h.store.GetRetentionCohorts(ctx, req.EventTypes, req.Range)
	})
}

// EngagementOverlap returns how the DAU, WAU and MAU sets of the anchor
// day intersect.
//
// Method: GET
// Path: /api/v1/engagement/overlap
func (h *Handler) EngagementOverlap(w http.ResponseWriter, r *http.Request) {
	req, ok := h.bindAnchorRequest(w, r)
	if !ok {
		return
	}
	NewQueryExecutor(h).Execute(w, r, prefixOverlap, req, func(ctx context.Context) (interface{}, error) {
		return h.store.GetWindowOverlap(ctx, req.EventTypes, req.Anchor)
	})
}

// EngagementActiveDays buckets identities by how many days they were
// active in the range.
//
// Method: GET
// Path: /api/v1/engagement/active-days
func (h *Handler) EngagementActiveDays(w http.ResponseWriter, r *http.Request) {
	req, ok := h.bindRangeRequest(w, r)
	if !ok {
		return
	}
	NewQueryExecutor(h).Execute(w, r, prefixActiveDays, req, func(ctx context.Context) (interface{}, error) {
		return h.store.GetActiveDaysDistribution(ctx, req.EventTypes, req.Range)
	})
}

// EngagementEngaged counts identities performing key actions, with
// warnings when key actions are too broad to mean anything.
//
// Method: GET
// Path: /api/v1/engagement/engaged
func (h *Handler) EngagementEngaged(w http.ResponseWriter, r *http.Request) {
	req, ok := h.bindRangeRequest(w, r)
	if !ok {
		return
	}
	rng := dayRange(req.Range)
	NewQueryExecutor(h).Execute(w, r, prefixEngaged, rng, func(ctx context.Context) (interface{}, error) {
		return h.store.GetEngagedReport(ctx, rng)
	})
}

// EngagementGrimoireFunnel returns grimoire-to-app conversion.
//
// Method: GET
// Path: /api/v1/engagement/funnel/grimoire
func (h *Handler) EngagementGrimoireFunnel(w http.ResponseWriter, r *http.Request) {
	req, ok := h.bindRangeRequest(w, r)
	if !ok {
		return
	}
	rng := dayRange(req.Range)
	NewQueryExecutor(h).Execute(w, r, prefixFunnel, rng, func(ctx context.Context) (interface{}, error) {
		return h.store.GetGrimoireFunnel(ctx, rng)
	})
}

// EngagementInfluence measures how often grimoire reading precedes a
// subscription.
//
// Method: GET
// Path: /api/v1/engagement/influence
func (h *Handler) EngagementInfluence(w http.ResponseWriter, r *http.Request) {
	req, ok := h.bindRangeRequest(w, r)
	if !ok {
		return
	}
	rng := dayRange(req.Range)
	NewQueryExecutor(h).Execute(w, r, prefixInfluence, rng, func(ctx context.Context) (interface{}, error) {
		return h.store.GetConversionInfluence(ctx, rng)
	})
}

// EngagementGrimoireHealth summarises how the grimoire acquires and
// retains readers.
//
// Method: GET
// Path: /api/v1/engagement/grimoire-health
func (h *Handler) EngagementGrimoireHealth(w http.ResponseWriter, r *http.Request) {
	req, ok := h.bindRangeRequest(w, r)
	if !ok {
		return
	}
	rng := dayRange(req.Range)
	NewQueryExecutor(h).Execute(w, r, prefixGrimoireHealth, rng, func(ctx context.Context) (interface{}, error) {
		return h.store.GetGrimoireHealth(ctx, rng)
	})
}

// EngagementFeatures returns adoption of each configured feature event.
//
// Method: GET
// Path: /api/v1/engagement/features
func (h *Handler) EngagementFeatures(w http.ResponseWriter, r *http.Request) {
	req, ok := h.bindRangeRequest(w, r)
	if !ok {
		return
	}
	rng := dayRange(req.Range)
	NewQueryExecutor(h).Execute(w, r, prefixFeatures, rng, func(ctx context.Context) (interface{}, error) {
		return h.store.GetFeatureAdoption(ctx, rng)
	})
}
