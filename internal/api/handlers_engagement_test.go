// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/tomtom215/lunametrics/internal/database"
	"github.com/tomtom215/lunametrics/internal/models"
)

func TestEngagementEndpoints_Success(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		op   string
	}{
		{"/api/v1/engagement/overview", "overview"},
		{"/api/v1/engagement/windows", "windows"},
		{"/api/v1/engagement/trend", "trend"},
		{"/api/v1/engagement/segments", "segments"},
		{"/api/v1/engagement/referrers", "referrers"},
		{"/api/v1/engagement/retention", "retention"},
		{"/api/v1/engagement/overlap", "overlap"},
		{"/api/v1/engagement/active-days", "active_days"},
		{"/api/v1/engagement/engaged", "engaged"},
		{"/api/v1/engagement/funnel/grimoire", "funnel"},
		{"/api/v1/engagement/influence", "influence"},
		{"/api/v1/engagement/grimoire-health", "grimoire_health"},
		{"/api/v1/engagement/features", "features"},
		{"/api/v1/engagement/audit", "audit"},
		{"/api/v1/engagement/audit/identity-links", "link_audit"},
		{"/api/v1/engagement/identity/resolve?user_id=u1", "resolve"},
		{"/api/v1/engagement/snapshots", "snapshots"},
		{"/api/v1/engagement/snapshots/compare?period=monthly", "compare"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			store := newFakeStore()
			h := setupTestHandler(t, store)

			w := serve(t, h, tt.path)
			checkStatus(t, w, http.StatusOK)

			resp := decodeResponse(t, w)
			if resp.Status != "success" {
				t.Errorf("status = %q, want success", resp.Status)
			}
			if resp.Data == nil {
				t.Error("data is nil")
			}
			if got := store.callCount(tt.op); got != 1 {
				t.Errorf("%s called %d times, want 1", tt.op, got)
			}
			if w.Header().Get("ETag") == "" {
				t.Error("missing ETag header")
			}
		})
	}
}

func TestEngagementTrend_DefaultRange(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	h := setupTestHandler(t, store)

	checkStatus(t, serve(t, h, "/api/v1/engagement/trend"), http.StatusOK)

	want := models.TrailingDays(testNow, 30)
	if !store.lastRange.Start.Equal(want.Start) || !store.lastRange.End.Equal(want.End) {
		t.Errorf("range = %v..%v, want %v..%v", store.lastRange.Start, store.lastRange.End, want.Start, want.End)
	}
}

func TestEngagementTrend_RangeParameters(t *testing.T) {
	t.Parallel()

	day := func(s string) time.Time {
		d, _ := time.Parse(time.DateOnly, s)
		return d
	}

	tests := []struct {
		name      string
		query     string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"shorthand 7d", "range=7d", day("2026-03-09"), day("2026-03-15")},
		{"shorthand with end", "range=7d&end=2026-02-07", day("2026-02-01"), day("2026-02-07")},
		{"date only bounds", "start=2026-01-01&end=2026-01-31", day("2026-01-01"), day("2026-01-31")},
		{"rfc3339 bounds truncate to days", "start=2026-01-01T23:30:00Z&end=2026-01-02T01:00:00Z", day("2026-01-01"), day("2026-01-02")},
		{"start only runs to today", "start=2026-03-10", day("2026-03-10"), day("2026-03-15")},
		{"end only covers 30 days", "end=2026-01-30", day("2026-01-01"), day("2026-01-30")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := newFakeStore()
			h := setupTestHandler(t, store)

			checkStatus(t, serve(t, h, "/api/v1/engagement/trend?"+tt.query), http.StatusOK)

			if !store.lastRange.Start.Equal(tt.wantStart) {
				t.Errorf("start = %v, want %v", store.lastRange.Start, tt.wantStart)
			}
			if !store.lastRange.End.Equal(tt.wantEnd) {
				t.Errorf("end = %v, want %v", store.lastRange.End, tt.wantEnd)
			}
		})
	}
}

func TestEngagementTrend_EventTypes(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	h := setupTestHandler(t, store)

	checkStatus(t, serve(t, h, "/api/v1/engagement/trend?event_type=app_opened,daily_horoscope_viewed&event_type=tarot_pull_completed"), http.StatusOK)

	want := []string{"app_opened", "daily_horoscope_viewed", "tarot_pull_completed"}
	if fmt.Sprint(store.lastTypes) != fmt.Sprint(want) {
		t.Errorf("types = %v, want %v", store.lastTypes, want)
	}
}

func TestEngagementWindows_Anchor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  time.Time
	}{
		{"default today", "", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"date", "?anchor=2026-02-01", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"timestamp truncated", "?anchor=2026-02-01T18:45:00Z", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := newFakeStore()
			h := setupTestHandler(t, store)

			checkStatus(t, serve(t, h, "/api/v1/engagement/windows"+tt.query), http.StatusOK)
			if !store.lastAnchor.Equal(tt.want) {
				t.Errorf("anchor = %v, want %v", store.lastAnchor, tt.want)
			}
		})
	}
}

func TestEngagementEndpoints_ValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
	}{
		{"unparseable start", "/api/v1/engagement/trend?start=yesterday"},
		{"end before start", "/api/v1/engagement/trend?start=2026-02-10&end=2026-02-01"},
		{"range too long", "/api/v1/engagement/trend?start=2024-01-01&end=2026-01-01"},
		{"bad shorthand", "/api/v1/engagement/trend?range=thirty"},
		{"shorthand beyond limit", "/api/v1/engagement/trend?range=500d"},
		{"shorthand with start", "/api/v1/engagement/trend?range=7d&start=2026-01-01"},
		{"invalid event type", "/api/v1/engagement/segments?event_type=App-Opened"},
		{"unparseable anchor", "/api/v1/engagement/windows?anchor=soon"},
		{"resolve without ids", "/api/v1/engagement/identity/resolve"},
		{"unknown period", "/api/v1/engagement/snapshots?period=daily"},
		{"limit not a number", "/api/v1/engagement/snapshots?limit=ten"},
		{"limit too large", "/api/v1/engagement/snapshots?limit=500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := newFakeStore()
			h := setupTestHandler(t, store)

			w := serve(t, h, tt.path)
			checkStatus(t, w, http.StatusBadRequest)
			checkErrorCode(t, decodeResponse(t, w), ErrCodeValidation)
		})
	}
}

func TestEngagementEndpoints_StoreFailure(t *testing.T) {
	t.Parallel()

	storeErr := &database.OperationError{Op: "GetWindowCounts", Err: errors.New("connection closed")}

	paths := []string{
		"/api/v1/engagement/overview",
		"/api/v1/engagement/windows",
		"/api/v1/engagement/retention",
		"/api/v1/engagement/audit",
		"/api/v1/engagement/snapshots",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			t.Parallel()
			store := newFakeStore()
			store.setErr(storeErr)
			h := setupTestHandler(t, store)

			w := serve(t, h, path)
			checkStatus(t, w, http.StatusServiceUnavailable)

			resp := decodeResponse(t, w)
			checkErrorCode(t, resp, ErrCodeDatabase)
			if resp.Data != nil {
				t.Errorf("data = %v, want nil on store failure", resp.Data)
			}
		})
	}
}

func TestEngagementEndpoints_UnexpectedError(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.setErr(errors.New("boom"))
	h := setupTestHandler(t, store)

	w := serve(t, h, "/api/v1/engagement/segments")
	checkStatus(t, w, http.StatusInternalServerError)
	checkErrorCode(t, decodeResponse(t, w), ErrCodeInternal)
}

func TestEngagementEndpoints_InvalidRangeFromStore(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.setErr(fmt.Errorf("%w: end before start", models.ErrInvalidRange))
	h := setupTestHandler(t, store)

	w := serve(t, h, "/api/v1/engagement/engaged")
	checkStatus(t, w, http.StatusBadRequest)
	checkErrorCode(t, decodeResponse(t, w), ErrCodeValidation)
}

func TestEngagementResolveIdentity(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	h := setupTestHandler(t, store)

	w := serve(t, h, "/api/v1/engagement/identity/resolve?anonymous_id=a-42")
	checkStatus(t, w, http.StatusOK)

	resp := decodeResponse(t, w)
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data type = %T, want object", resp.Data)
	}
	if data["key"] != "anon:a-42" {
		t.Errorf("key = %v, want anon:a-42", data["key"])
	}
}

func TestNotFound(t *testing.T) {
	t.Parallel()
	h := setupTestHandler(t, newFakeStore())

	w := serve(t, h, "/api/v1/engagement/nope")
	checkStatus(t, w, http.StatusNotFound)
	checkErrorCode(t, decodeResponse(t, w), ErrCodeNotFound)
}
