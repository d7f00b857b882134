// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestNewPerformanceMonitor(t *testing.T) {
	t.Parallel()

	pm := NewPerformanceMonitor(0, 0)
	if pm.maxMetrics != 1 {
		t.Errorf("Expected maxMetrics clamped to 1, got %d", pm.maxMetrics)
	}
	if pm.slowThreshold != DefaultSlowThreshold {
		t.Errorf("Expected default slow threshold, got %v", pm.slowThreshold)
	}
}

func TestPerformanceMonitor_SlidingWindow(t *testing.T) {
	t.Parallel()

	pm := NewPerformanceMonitor(3, time.Second)
	for i := 0; i < 5; i++ {
		pm.RecordRequest(RequestMetrics{Route: fmt.Sprintf("/r%d", i), Method: http.MethodGet, DurationMS: int64(i)})
	}

	recent := pm.GetRecentMetrics(10)
	if len(recent) != 3 {
		t.Fatalf("Expected 3 metrics in window, got %d", len(recent))
	}
	if recent[0].Route != "/r2" || recent[2].Route != "/r4" {
		t.Errorf("Expected oldest entries dropped, got %+v", recent)
	}

	last := pm.GetRecentMetrics(1)
	if len(last) != 1 || last[0].Route != "/r4" {
		t.Errorf("Expected most recent entry, got %+v", last)
	}
}

func TestPerformanceMonitor_GetStats(t *testing.T) {
	t.Parallel()

	pm := NewPerformanceMonitor(100, time.Second)
	for _, d := range []int64{10, 20, 30, 40, 100} {
		pm.RecordRequest(RequestMetrics{Route: "/overview", Method: http.MethodGet, DurationMS: d, StatusCode: http.StatusOK})
	}
	pm.RecordRequest(RequestMetrics{Route: "/audit", Method: http.MethodGet, DurationMS: 5, StatusCode: http.StatusServiceUnavailable})

	stats := pm.GetStats()
	if len(stats) != 2 {
		t.Fatalf("Expected 2 endpoints, got %d", len(stats))
	}

	overview := stats[0]
	if overview.Endpoint != "GET /overview" {
		t.Errorf("Expected busiest endpoint first, got %s", overview.Endpoint)
	}
	if overview.RequestCount != 5 || overview.AvgDuration != 40 {
		t.Errorf("Unexpected overview stats %+v", overview)
	}
	if overview.P50Duration != 30 || overview.MaxDuration != 100 || overview.P99Duration != 40 {
		t.Errorf("Unexpected percentiles %+v", overview)
	}
	if stats[1].ErrorCount != 1 {
		t.Errorf("Expected 1 server error on audit, got %d", stats[1].ErrorCount)
	}
}

func TestPerformanceMonitor_Middleware(t *testing.T) {
	t.Parallel()

	pm := NewPerformanceMonitor(10, time.Millisecond)
	r := chi.NewRouter()
	r.Use(pm.Middleware)
	r.Get("/api/v1/engagement/{report}", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Millisecond)
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/engagement/trend", nil))

	recent := pm.GetRecentMetrics(1)
	if len(recent) != 1 {
		t.Fatal("Expected one recorded request")
	}
	if recent[0].Route != "/api/v1/engagement/{report}" {
		t.Errorf("Expected route pattern, got %q", recent[0].Route)
	}
	if recent[0].StatusCode != http.StatusTeapot {
		t.Errorf("Expected captured status 418, got %d", recent[0].StatusCode)
	}
}

func TestPercentile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		sorted []int64
		p      float64
		want   int64
	}{
		{"empty", nil, 0.5, 0},
		{"single", []int64{7}, 0.99, 7},
		{"median of odd", []int64{1, 2, 3, 4, 5}, 0.5, 3},
		{"p95 of ten", []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.95, 9},
		{"max", []int64{1, 2, 3}, 1.0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := percentile(tt.sorted, tt.p); got != tt.want {
				t.Errorf("percentile(%v, %v) = %d, want %d", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestPerformanceMonitor_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	pm := NewPerformanceMonitor(50, time.Second)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				pm.RecordRequest(RequestMetrics{Route: fmt.Sprintf("/r%d", id), Method: http.MethodGet, DurationMS: int64(j)})
				_ = pm.GetStats()
			}
		}(i)
	}
	wg.Wait()

	if n := len(pm.GetRecentMetrics(100)); n != 50 {
		t.Errorf("Expected full window of 50, got %d", n)
	}
}
