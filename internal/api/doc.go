// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

/*
Package api provides the HTTP REST API layer for Lunametrics.

Every engagement report the engine computes is exposed as a read-only GET
endpoint. Handlers parse and validate the query string, then hand the
query to a cache-first executor that runs it through a circuit breaker in
front of the event store.

Key Components:

  - Router: chi route configuration and middleware stack
  - Handler: request handlers over an EngagementStore
  - QueryExecutor: cache lookup, breaker execution and response building
  - StoreBreaker: gobreaker circuit in front of the store
  - ChiMiddleware: CORS, per-IP rate limiting and a global token bucket
    for expensive overview and audit queries

Endpoints:

1. Health (/api/v1/health):
  - / (store, breaker, cache and latency status)
  - /live, /ready

2. Engagement (/api/v1/engagement):
  - overview, windows, trend, segments, referrers, retention, overlap,
    active-days, engaged, funnel/grimoire, influence, grimoire-health,
    features
  - audit, audit/identity-links, identity/resolve
  - snapshots, snapshots/compare

3. Prometheus metrics (/metrics)

Query Parameters:

  - start, end: RFC3339 timestamps or YYYY-MM-DD dates; both are reduced
    to UTC day buckets
  - range: trailing shorthand such as 7d, 30d or 90d
  - event_type: repeatable or comma separated activity event types
  - anchor: the last day of DAU/WAU/MAU windows (default today)

Without start, end or range a report covers the trailing 30 days.

Response Format:

	{
	  "status": "success",
	  "data": {...},
	  "metadata": {"timestamp": "...", "query_time_ms": 12, "cached": false, "request_id": "..."}
	}

Errors carry a machine-readable code:

	{
	  "status": "error",
	  "error": {"code": "DATABASE_ERROR", "message": "Failed to compute engagement:trend"}
	}

Store failures are reported as 503 DATABASE_ERROR and an open breaker as
503 SERVICE_UNAVAILABLE. A failed read never produces a zeroed report.

Usage Example:

	h := api.NewHandler(db, cache.NewCacher(opts), cfg)
	router := api.NewRouter(h, api.NewChiMiddlewareFromConfig(cfg))
	srv := &http.Server{Addr: ":8787", Handler: router.SetupChi()}
*/
package api
