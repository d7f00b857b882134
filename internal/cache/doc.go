// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

/*
Package cache stores computed engagement reports in memory.

Two implementations share the Cacher interface:
  - Cache: unbounded, entries expire after a TTL, a background loop drops
    expired entries every five minutes.
  - LFUCache: bounded by capacity, evicts the least frequently used report
    and expires lazily.

Keys come from GenerateKey, which hashes the JSON encoding of the request
parameters:

	key := cache.GenerateKey("engagement_overview", rng)
	if v, ok := c.Get(key); ok {
	    return v.(*models.EngagementOverview), nil
	}

Both implementations export hits, misses, evictions and size through the
cache_* Prometheus metrics, labelled by cache_type.

The cache is cleared whenever events are ingested. Reports over a range
that ends in the past are otherwise stable until their TTL expires.
*/
package cache
