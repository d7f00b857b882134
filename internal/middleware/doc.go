// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

/*
Package middleware instruments the HTTP API.

  - PrometheusMetrics records request counts, durations and in-flight
    requests, labelled by the chi route pattern so that query strings and
    path parameters never create new series.
  - PerformanceMonitor keeps a sliding window of recent requests and
    reports per-route latency percentiles for the health endpoint. Requests
    slower than the configured threshold are logged at warn level.

Both are plain func(http.Handler) http.Handler values for chi's r.Use.
*/
package middleware
