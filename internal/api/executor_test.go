// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/lunametrics/internal/config"
	"github.com/tomtom215/lunametrics/internal/database"
	"github.com/tomtom215/lunametrics/internal/models"
)

func TestQueryExecutor_CachesSuccessfulResults(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	h := setupTestHandler(t, store)

	first := serve(t, h, "/api/v1/engagement/segments?range=7d")
	checkStatus(t, first, http.StatusOK)
	if decodeResponse(t, first).Metadata.Cached {
		t.Error("first response should not be cached")
	}

	second := serve(t, h, "/api/v1/engagement/segments?range=7d")
	checkStatus(t, second, http.StatusOK)
	if !decodeResponse(t, second).Metadata.Cached {
		t.Error("second response should be cached")
	}

	if got := store.callCount("segments"); got != 1 {
		t.Errorf("store called %d times, want 1", got)
	}
}

func TestQueryExecutor_EquivalentRangesShareEntry(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	h := setupTestHandler(t, store)

	checkStatus(t, serve(t, h, "/api/v1/engagement/features?start=2026-03-01&end=2026-03-07"), http.StatusOK)
	w := serve(t, h, "/api/v1/engagement/features?start=2026-03-01T08:00:00Z&end=2026-03-07T22:00:00Z")
	checkStatus(t, w, http.StatusOK)

	if !decodeResponse(t, w).Metadata.Cached {
		t.Error("same day buckets should hit the cache")
	}
}

func TestQueryExecutor_DistinctParamsMiss(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	h := setupTestHandler(t, store)

	checkStatus(t, serve(t, h, "/api/v1/engagement/trend?range=7d"), http.StatusOK)
	checkStatus(t, serve(t, h, "/api/v1/engagement/trend?range=7d&event_type=app_opened"), http.StatusOK)

	if got := store.callCount("trend"); got != 2 {
		t.Errorf("store called %d times, want 2", got)
	}
}

func TestQueryExecutor_FailuresAreNotCached(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.setErr(database.ErrStoreUnavailable)
	h := setupTestHandler(t, store)

	checkStatus(t, serve(t, h, "/api/v1/engagement/windows"), http.StatusServiceUnavailable)

	store.setErr(nil)
	w := serve(t, h, "/api/v1/engagement/windows")
	checkStatus(t, w, http.StatusOK)
	if decodeResponse(t, w).Metadata.Cached {
		t.Error("a failed query must not leave a cache entry")
	}
}

func TestQueryExecutor_AuditIsNeverCached(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	h := setupTestHandler(t, store)

	checkStatus(t, serve(t, h, "/api/v1/engagement/audit"), http.StatusOK)
	checkStatus(t, serve(t, h, "/api/v1/engagement/audit"), http.StatusOK)

	if got := store.callCount("audit"); got != 2 {
		t.Errorf("audit called %d times, want 2", got)
	}
}

func TestQueryExecutor_NilCache(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	h := NewHandler(store, nil, testConfig())

	checkStatus(t, serve(t, h, "/api/v1/engagement/engaged"), http.StatusOK)
	checkStatus(t, serve(t, h, "/api/v1/engagement/engaged"), http.StatusOK)

	if got := store.callCount("engaged"); got != 2 {
		t.Errorf("engaged called %d times, want 2", got)
	}
}

func TestQueryExecutor_NilStore(t *testing.T) {
	t.Parallel()
	h := NewHandler(nil, nil, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	NewQueryExecutor(h).Execute(w, req, "test", nil, func(ctx context.Context) (interface{}, error) {
		t.Fatal("query must not run without a store")
		return nil, nil
	})

	checkStatus(t, w, http.StatusServiceUnavailable)
	checkErrorCode(t, decodeResponse(t, w), ErrCodeServiceUnavailable)
}

func TestOverviewCacheKey_MatchesEndpoint(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	h := setupTestHandler(t, store)

	rng := models.TrailingDays(testNow, 30)
	h.Cache().Set(OverviewCacheKey(rng), &models.EngagementOverview{Range: rng})

	w := serve(t, h, "/api/v1/engagement/overview")
	checkStatus(t, w, http.StatusOK)

	if !decodeResponse(t, w).Metadata.Cached {
		t.Error("overview should be served from the warmed entry")
	}
	if got := store.callCount("overview"); got != 0 {
		t.Errorf("store called %d times, want 0", got)
	}
}

func TestOverviewCacheKey_IgnoresTimeOfDay(t *testing.T) {
	t.Parallel()

	a := models.DateRange{
		Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC),
	}
	b := models.DateRange{
		Start: time.Date(2026, 1, 1, 9, 15, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 30, 23, 59, 0, 0, time.UTC),
	}
	if OverviewCacheKey(a) != OverviewCacheKey(b) {
		t.Error("keys differ for the same day buckets")
	}

	c := models.DateRange{Start: a.Start, End: a.End.AddDate(0, 0, 1)}
	if OverviewCacheKey(a) == OverviewCacheKey(c) {
		t.Error("keys equal for different ranges")
	}
}

func TestStoreBreaker_OpensAndRejects(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.setErr(database.ErrStoreUnavailable)

	cfg := testConfig()
	cfg.Breaker = config.BreakerConfig{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  2,
		FailureRatio: 0.5,
	}
	h := NewHandler(store, nil, cfg)

	for i := 0; i < 2; i++ {
		w := serve(t, h, "/api/v1/engagement/trend")
		checkStatus(t, w, http.StatusServiceUnavailable)
		checkErrorCode(t, decodeResponse(t, w), ErrCodeDatabase)
	}

	if h.breaker.State() != "open" {
		t.Fatalf("breaker state = %s, want open", h.breaker.State())
	}

	w := serve(t, h, "/api/v1/engagement/trend")
	checkStatus(t, w, http.StatusServiceUnavailable)
	checkErrorCode(t, decodeResponse(t, w), ErrCodeServiceUnavailable)

	if got := store.callCount("trend"); got != 2 {
		t.Errorf("store called %d times, want 2 (open breaker must not reach the store)", got)
	}
}

func TestStoreBreaker_IgnoresInvalidRangeAndCancellation(t *testing.T) {
	t.Parallel()
	b := NewStoreBreaker("test-ignores", config.BreakerConfig{MinRequests: 1, FailureRatio: 0.1})

	errs := []error{models.ErrInvalidRange, context.Canceled}
	for _, want := range errs {
		_, err := b.Execute(func() (interface{}, error) { return nil, want })
		if !errors.Is(err, want) {
			t.Errorf("err = %v, want %v", err, want)
		}
	}
	if b.State() != "closed" {
		t.Errorf("state = %s, want closed", b.State())
	}
}

func TestStoreBreaker_Defaults(t *testing.T) {
	t.Parallel()
	b := NewStoreBreaker("test-defaults", config.BreakerConfig{})

	for i := 0; i < 9; i++ {
		_, _ = b.Execute(func() (interface{}, error) { return nil, database.ErrStoreUnavailable })
	}
	if b.State() != "closed" {
		t.Errorf("state after 9 failures = %s, want closed (minimum is 10 requests)", b.State())
	}

	_, _ = b.Execute(func() (interface{}, error) { return nil, database.ErrStoreUnavailable })
	if b.State() != "open" {
		t.Errorf("state after 10 failures = %s, want open", b.State())
	}
}
