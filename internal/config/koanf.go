// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/lunametrics/config.yaml",
	"/etc/lunametrics/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultKeyActionEventTypes are the product actions that count as engagement.
// app_opened is deliberately absent; including it makes engaged equal app.
var DefaultKeyActionEventTypes = []string{
	"daily_dashboard_viewed",
	"tarot_drawn",
	"personalized_tarot_viewed",
	"chart_viewed",
	"horoscope_viewed",
	"personalized_horoscope_viewed",
	"cosmic_pulse_opened",
	"moon_circle_opened",
	"weekly_report_opened",
	"astral_chat_used",
	"ritual_started",
	"grimoire_viewed",
}

// DefaultFeatureEventTypes are reported by the feature adoption breakdown.
var DefaultFeatureEventTypes = []string{
	"daily_dashboard_viewed",
	"grimoire_viewed",
	"astral_chat_used",
	"tarot_drawn",
	"ritual_started",
	"chart_viewed",
}

// DefaultEngineConfig returns the engine defaults without loading any source.
func DefaultEngineConfig() EngineConfig {
	return defaultConfig().Engine
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:                   "/data/lunametrics.duckdb",
			MaxMemory:              "2GB",
			Threads:                0,
			PreserveInsertionOrder: true,
			SeedMockData:           false,
			CheckpointInterval:     5 * time.Minute,
		},
		Server: ServerConfig{
			Port:        8787,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Security: SecurityConfig{
			CORSOrigins:         []string{"*"},
			RateLimitReqs:       100,
			RateLimitWindow:     time.Minute,
			RateLimitDisabled:   false,
			ExpensiveQueryRPS:   2,
			ExpensiveQueryBurst: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Engine: EngineConfig{
			ActivityEventTypes:  []string{"app_opened"},
			KeyActionEventTypes: append([]string(nil), DefaultKeyActionEventTypes...),
			FeatureEventTypes:   append([]string(nil), DefaultFeatureEventTypes...),
			ProductDomains:      []string{"lunary.app"},
			TestEmailDomain:     "test.lunary.app",
			TestEmailLiteral:    "test@test.lunary.app",
			QueryTimeout:        30 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:       true,
			Type:          "ttl",
			Capacity:      1000,
			TTL:           5 * time.Minute,
			WarmInterval:  4 * time.Minute,
			WarmRangeDays: 30,
		},
		Breaker: BreakerConfig{
			MaxRequests:  3,
			Interval:     time.Minute,
			Timeout:      30 * time.Second,
			MinRequests:  10,
			FailureRatio: 0.6,
		},
	}
}

// LoadWithKoanf loads configuration in three layers: struct defaults, an
// optional YAML file, then environment variables.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns CONFIG_PATH if it exists, else the first default path found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// FindConfigFile exposes the resolved config file path for the reload watcher.
func FindConfigFile() string {
	return findConfigFile()
}

// sliceConfigPaths are split on commas when they arrive as strings (env vars).
var sliceConfigPaths = []string{
	"security.cors_origins",
	"engine.activity_event_types",
	"engine.key_action_event_types",
	"engine.feature_event_types",
	"engine.product_domains",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	// Database
	"duckdb_path":                     "database.path",
	"duckdb_max_memory":               "database.max_memory",
	"duckdb_threads":                  "database.threads",
	"duckdb_preserve_insertion_order": "database.preserve_insertion_order",
	"seed_mock_data":                  "database.seed_mock_data",
	"duckdb_checkpoint_interval":      "database.checkpoint_interval",

	// Server
	"http_port":    "server.port",
	"http_host":    "server.host",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",

	// Security
	"cors_origins":          "security.cors_origins",
	"rate_limit_requests":   "security.rate_limit_reqs",
	"rate_limit_window":     "security.rate_limit_window",
	"disable_rate_limit":    "security.rate_limit_disabled",
	"expensive_query_rps":   "security.expensive_query_rps",
	"expensive_query_burst": "security.expensive_query_burst",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Engine
	"activity_event_types":   "engine.activity_event_types",
	"key_action_event_types": "engine.key_action_event_types",
	"feature_event_types":    "engine.feature_event_types",
	"product_domains":        "engine.product_domains",
	"test_email_domain":      "engine.test_email_domain",
	"test_email_literal":     "engine.test_email_literal",
	"query_timeout":          "engine.query_timeout",

	// Cache
	"cache_enabled":         "cache.enabled",
	"cache_type":            "cache.type",
	"cache_capacity":        "cache.capacity",
	"cache_ttl":             "cache.ttl",
	"cache_warm_interval":   "cache.warm_interval",
	"cache_warm_range_days": "cache.warm_range_days",

	// Circuit breaker
	"breaker_max_requests":  "breaker.max_requests",
	"breaker_interval":      "breaker.interval",
	"breaker_timeout":       "breaker.timeout",
	"breaker_min_requests":  "breaker.min_requests",
	"breaker_failure_ratio": "breaker.failure_ratio",
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables return "" and are skipped so unrelated environment
// does not leak into the configuration.
//
//   - DUCKDB_PATH -> database.path
//   - HTTP_PORT -> server.port
//   - ACTIVITY_EVENT_TYPES -> engine.activity_event_types
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile invokes callback whenever the file at path changes.
// The callback is responsible for reloading and for its own locking.
func WatchConfigFile(path string, callback func()) error {
	return file.Provider(path).Watch(func(_ interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
