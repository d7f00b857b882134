// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

// Package services holds the suture.Service implementations run by the
// supervisor tree.
//
//   - HTTPServerService serves the metrics API and drains connections on stop.
//   - CacheWarmerService precomputes the default engagement overview so the
//     dashboard's first request is a cache hit.
//   - CheckpointService flushes the DuckDB WAL on an interval and on stop.
//
// Every service returns ctx.Err() on cancellation and a wrapped error on
// failure, so the supervisor can tell a shutdown from a crash.
package services
