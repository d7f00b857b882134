// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

/*
Package main is the entry point for the Lunametrics server.

Lunametrics computes product engagement metrics for Lunary from its raw
conversion event log: identity-resolved DAU/WAU/MAU and stickiness, user
segments, retention cohorts, feature adoption, the grimoire funnel and data
quality audits. Every metric is recomputed from events in DuckDB on request
and served as JSON.

# Startup Order

 1. Configuration: Koanf v2 (defaults, optional YAML, environment)
 2. Logging: zerolog, bridged to slog for the supervisor
 3. Database: embedded DuckDB, optional demo seed
 4. Cache: TTL or LFU result cache
 5. HTTP: chi router with rate limiting and Prometheus metrics
 6. Supervisor tree: checkpointing, cache warming and the HTTP server

# Supervision

	lunametrics
	├── data-layer
	│   └── duckdb-checkpoint
	├── background-layer
	│   └── cache-warmer
	└── api-layer
	    └── http-server

# Configuration

Commonly set environment variables:

	DUCKDB_PATH              database file (default /data/lunametrics.duckdb)
	HTTP_PORT                listen port (default 8787)
	ACTIVITY_EVENT_TYPES     events that count as "active" (default app_opened)
	KEY_ACTION_EVENT_TYPES   events that count as "engaged"
	CACHE_WARM_INTERVAL      overview warm period, 0 disables (default 4m)
	SEED_MOCK_DATA           load a demo dataset on startup
	LOG_LEVEL                trace, debug, info, warn, error

A config.yaml found via CONFIG_PATH or the default paths is watched; editing
its log level takes effect without a restart.

# Signals

SIGINT and SIGTERM cancel the root context. The HTTP server drains for up to
10s, a final checkpoint runs and the database is closed.

SIGHUP clears the result cache. Send it after loading events into the
database file from another process.

# Example

	export DUCKDB_PATH=./lunametrics.duckdb
	export SEED_MOCK_DATA=true
	export LOG_FORMAT=console
	./lunametrics

	curl 'http://localhost:8787/api/v1/engagement/overview?range=30d'
*/
package main
