// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

// Package config loads Lunametrics configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"time"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
	Engine   EngineConfig   `koanf:"engine"`
	Cache    CacheConfig    `koanf:"cache"`
	Breaker  BreakerConfig  `koanf:"breaker"`
}

// DatabaseConfig holds the embedded DuckDB settings.
type DatabaseConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"`                  // 0 = runtime.NumCPU()
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"` // DuckDB default is true
	SeedMockData           bool   `koanf:"seed_mock_data"`           // demo dataset on startup
	SkipIndexes            bool   `koanf:"skip_indexes"`             // fast setup for tests

	// CheckpointInterval is how often the WAL is flushed into the database file.
	CheckpointInterval time.Duration `koanf:"checkpoint_interval"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development, staging, production
}

// SecurityConfig holds request-level protections for the metrics API.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// ExpensiveQueryRPS bounds overview and audit requests across all clients.
	ExpensiveQueryRPS   float64 `koanf:"expensive_query_rps"`
	ExpensiveQueryBurst int     `koanf:"expensive_query_burst"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// EngineConfig parametrises metric computation.
type EngineConfig struct {
	// ActivityEventTypes define "active" for DAU/WAU/MAU, cohorts and segments.
	ActivityEventTypes []string `koanf:"activity_event_types"`

	// KeyActionEventTypes define "engaged". If they only contain broad
	// app-open events the engaged report warns.
	KeyActionEventTypes []string `koanf:"key_action_event_types"`

	// FeatureEventTypes are reported by feature adoption.
	FeatureEventTypes []string `koanf:"feature_event_types"`

	// ProductDomains mark a referrer as internal.
	ProductDomains []string `koanf:"product_domains"`

	// Test accounts are excluded from conversion metrics.
	TestEmailDomain  string `koanf:"test_email_domain"`
	TestEmailLiteral string `koanf:"test_email_literal"`

	// QueryTimeout applies when the caller's context has no deadline.
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// CacheConfig controls the in-memory result cache and its warmer.
type CacheConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Type          string        `koanf:"type"`     // ttl or lfu
	Capacity      int           `koanf:"capacity"` // lfu only
	TTL           time.Duration `koanf:"ttl"`
	WarmInterval  time.Duration `koanf:"warm_interval"` // 0 disables warming
	WarmRangeDays int           `koanf:"warm_range_days"`
}

// BreakerConfig configures the circuit breaker in front of the store.
type BreakerConfig struct {
	MaxRequests  uint32        `koanf:"max_requests"` // allowed in half-open state
	Interval     time.Duration `koanf:"interval"`     // closed-state counter reset
	Timeout      time.Duration `koanf:"timeout"`      // open-state duration
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio"`
}

// Load reads the configuration. It is an alias of LoadWithKoanf.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
