// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/lunametrics/internal/cache"
	"github.com/tomtom215/lunametrics/internal/models"
	"github.com/tomtom215/lunametrics/internal/validation"
)

// defaultRangeDays is the window used when a request names no range.
const defaultRangeDays = 30

// Cache key prefixes, one per report.
const (
	prefixOverview       = "engagement:overview"
	prefixWindows        = "engagement:windows"
	prefixTrend          = "engagement:trend"
	prefixSegments       = "engagement:segments"
	prefixReferrers      = "engagement:referrers"
	prefixRetention      = "engagement:retention"
	prefixOverlap        = "engagement:overlap"
	prefixActiveDays     = "engagement:active_days"
	prefixEngaged        = "engagement:engaged"
	prefixFunnel         = "engagement:funnel_grimoire"
	prefixInfluence      = "engagement:influence"
	prefixGrimoireHealth = "engagement:grimoire_health"
	prefixFeatures       = "engagement:features"
)

// rangeRequest selects event types over a range of day buckets.
type rangeRequest struct {
	Range      models.DateRange `json:"range"`
	EventTypes []string         `json:"event_types,omitempty" query:"event_type" validate:"max=20,dive,eventtype"`
}

// anchorRequest selects event types for windows ending on an anchor day.
type anchorRequest struct {
	Anchor     time.Time `json:"anchor" query:"anchor" validate:"required"`
	EventTypes []string  `json:"event_types,omitempty" query:"event_type" validate:"max=20,dive,eventtype"`
}

// snapshotRequest selects stored period snapshots.
type snapshotRequest struct {
	Period string `query:"period" validate:"required,oneof=weekly monthly"`
	Limit  int    `query:"limit" validate:"gte=0,lte=104"`
}

// resolveRequest asks which canonical identity a raw id pair maps to.
type resolveRequest struct {
	UserID      string `query:"user_id" validate:"required_without=AnonymousID,max=256"`
	AnonymousID string `query:"anonymous_id" validate:"required_without=UserID,max=256"`
}

// OverviewCacheKey is the cache key of the overview for rng. The cache
// warmer stores under the same key the overview endpoint reads.
func OverviewCacheKey(rng models.DateRange) string {
	return cache.GenerateKey(prefixOverview, dayRange(rng))
}

// dayRange normalizes rng to its UTC day buckets so equivalent requests
// share a cache entry.
func dayRange(rng models.DateRange) models.DateRange {
	return models.DateRange{Start: rng.StartDay(), End: rng.EndDay()}
}

// parseTimeParam accepts RFC3339 timestamps and YYYY-MM-DD dates.
func parseTimeParam(key, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%s must be RFC3339 or YYYY-MM-DD", key)
}

// parseRangeShorthand parses "7d", "30d" and similar.
func parseRangeShorthand(value string) (int, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	n, err := strconv.Atoi(strings.TrimSuffix(value, "d"))
	if err != nil || !strings.HasSuffix(value, "d") {
		return 0, fmt.Errorf("range must look like 30d")
	}
	if n < 1 || n > validation.MaxRangeDays {
		return 0, fmt.Errorf("range must be between 1d and %dd", validation.MaxRangeDays)
	}
	return n, nil
}

// parseDateRange reads start, end and range from the query string.
//
// With no parameters the range is the trailing 30 days ending today. The
// range shorthand counts back from end, or from today. A lone start runs to
// today; a lone end covers the 30 days before it.
func (h *Handler) parseDateRange(r *http.Request) (models.DateRange, error) {
	q := r.URL.Query()
	today := models.Day(h.now())

	var rng models.DateRange
	if v := q.Get("end"); v != "" {
		end, err := parseTimeParam("end", v)
		if err != nil {
			return rng, err
		}
		rng.End = end
	}
	if v := q.Get("start"); v != "" {
		start, err := parseTimeParam("start", v)
		if err != nil {
			return rng, err
		}
		rng.Start = start
	}

	if v := q.Get("range"); v != "" {
		if !rng.Start.IsZero() {
			return rng, fmt.Errorf("range cannot be combined with start")
		}
		n, err := parseRangeShorthand(v)
		if err != nil {
			return rng, err
		}
		end := rng.End
		if end.IsZero() {
			end = today
		}
		return models.TrailingDays(end, n), nil
	}

	switch {
	case rng.Start.IsZero() && rng.End.IsZero():
		return models.TrailingDays(today, defaultRangeDays), nil
	case rng.End.IsZero():
		rng.End = today
	case rng.Start.IsZero():
		rng = models.TrailingDays(rng.End, defaultRangeDays)
	}
	return dayRange(rng), nil
}

// parseEventTypes collects repeated and comma separated event_type values.
func parseEventTypes(r *http.Request) []string {
	var types []string
	for _, v := range r.URL.Query()["event_type"] {
		types = append(types, parseCommaSeparated(v)...)
	}
	return types
}

// parseAnchor reads the anchor day, defaulting to today.
func (h *Handler) parseAnchor(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("anchor")
	if v == "" {
		return models.Day(h.now()), nil
	}
	t, err := parseTimeParam("anchor", v)
	if err != nil {
		return time.Time{}, err
	}
	return models.Day(t), nil
}

// bindRangeRequest parses and validates a rangeRequest. On failure it has
// already written the 400 response.
func (h *Handler) bindRangeRequest(w http.ResponseWriter, r *http.Request) (rangeRequest, bool) {
	rng, err := h.parseDateRange(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, err.Error(), nil)
		return rangeRequest{}, false
	}
	req := rangeRequest{Range: rng, EventTypes: parseEventTypes(r)}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return rangeRequest{}, false
	}
	return req, true
}

// bindAnchorRequest parses and validates an anchorRequest.
func (h *Handler) bindAnchorRequest(w http.ResponseWriter, r *http.Request) (anchorRequest, bool) {
	anchor, err := h.parseAnchor(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, err.Error(), nil)
		return anchorRequest{}, false
	}
	req := anchorRequest{Anchor: anchor, EventTypes: parseEventTypes(r)}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return anchorRequest{}, false
	}
	return req, true
}

// bindSnapshotRequest parses and validates a snapshotRequest.
func bindSnapshotRequest(w http.ResponseWriter, r *http.Request) (snapshotRequest, bool) {
	limit, err := getIntParam(r, "limit", 0)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, err.Error(), nil)
		return snapshotRequest{}, false
	}
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "weekly"
	}
	req := snapshotRequest{Period: period, Limit: limit}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return snapshotRequest{}, false
	}
	return req, true
}
