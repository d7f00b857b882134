// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package cache

import "time"

// Cacher is implemented by both the TTL cache and the bounded LFU cache,
// so the API layer does not depend on the eviction strategy.
type Cacher interface {
	// Get retrieves a value. Returns false when missing or expired.
	Get(key string) (interface{}, bool)

	// Set stores a value with the default TTL.
	Set(key string, value interface{})

	// SetWithTTL stores a value with a custom TTL.
	SetWithTTL(key string, value interface{}, ttl time.Duration)

	Delete(key string)
	Clear()

	GetStats() Stats

	// HitRate returns the hit rate as a percentage.
	HitRate() float64

	// Close releases background resources.
	Close()
}

// Type names a cache implementation.
type Type string

const (
	// TypeTTL is an unbounded cache with time-based expiry.
	TypeTTL Type = "ttl"

	// TypeLFU is bounded by capacity and evicts the least frequently used
	// report first. Dashboards request a handful of ranges far more often
	// than the rest.
	TypeLFU Type = "lfu"
)

const (
	defaultTTL      = 5 * time.Minute
	defaultCapacity = 1000
)

// Options holds configuration for creating a cache.
type Options struct {
	Type     Type
	TTL      time.Duration
	Capacity int // LFU only
}

// NewCacher creates a cache based on the options. Unknown types fall back
// to the TTL cache.
func NewCacher(opts Options) Cacher {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}

	switch opts.Type {
	case TypeLFU:
		return NewLFUCache(opts.Capacity, opts.TTL)
	default:
		return New(opts.TTL)
	}
}

var (
	_ Cacher = (*Cache)(nil)
	_ Cacher = (*LFUCache)(nil)
)
