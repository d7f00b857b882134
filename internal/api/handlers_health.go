// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/lunametrics/internal/middleware"
	"github.com/tomtom215/lunametrics/internal/models"
)

// HealthStatus is the body of /api/v1/health.
type HealthStatus struct {
	Status            string                      `json:"status"` // healthy or degraded
	DatabaseConnected bool                        `json:"database_connected"`
	BreakerState      string                      `json:"breaker_state"`
	Cache             *CacheStatus                `json:"cache,omitempty"`
	Endpoints         []middleware.EndpointStats  `json:"endpoints"`
	RecentRequests    []middleware.RequestMetrics `json:"recent_requests"`
	Uptime            float64                     `json:"uptime"`
}

// recentRequestsShown caps the request tail in the health report.
const recentRequestsShown = 10

// CacheStatus summarises the result cache.
type CacheStatus struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Entries   int64   `json:"entries"`
	HitRate   float64 `json:"hit_rate"`
}

// Health reports store connectivity, breaker state, cache effectiveness
// per-route latency and the most recent requests.
//
// Method: GET
// Path: /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.store != nil && h.store.Ping(r.Context()) == nil

	status := "healthy"
	if !dbConnected || h.breaker.State() == "open" {
		status = "degraded"
	}

	health := HealthStatus{
		Status:            status,
		DatabaseConnected: dbConnected,
		BreakerState:      h.breaker.State(),
		Endpoints:         h.perfMon.GetStats(),
		RecentRequests:    h.perfMon.GetRecentMetrics(recentRequestsShown),
		Uptime:            time.Since(h.startTime).Seconds(),
	}
	if h.cache != nil {
		stats := h.cache.GetStats()
		health.Cache = &CacheStatus{
			Hits:      stats.Hits,
			Misses:    stats.Misses,
			Evictions: stats.Evictions,
			Entries:   stats.TotalKeys,
			HitRate:   h.cache.HitRate(),
		}
	}

	respondJSON(w, r, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     health,
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}

// HealthLive handles liveness probe requests (Kubernetes-style)
// Returns 200 OK if the process is alive, regardless of dependencies
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style)
// Returns 200 OK only if the event store answers a ping
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.store != nil && h.store.Ping(r.Context()) == nil

	statusCode := http.StatusOK
	status := "ready"
	if !dbConnected {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	respondJSON(w, r, statusCode, &models.APIResponse{
		Status: status,
		Data: map[string]interface{}{
			"database_connected": dbConnected,
			"ready_to_serve":     dbConnected,
			"uptime":             time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}
