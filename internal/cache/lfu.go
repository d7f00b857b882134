// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package cache

import (
	"sync"
	"time"

	"github.com/tomtom215/lunametrics/internal/metrics"
)

// lfuEntry is a node in one frequency bucket's doubly linked list.
type lfuEntry struct {
	key       string
	value     interface{}
	freq      int
	expiresAt time.Time
	prev      *lfuEntry
	next      *lfuEntry
}

// freqList holds entries of equal frequency, most recently used first.
type freqList struct {
	head *lfuEntry // sentinel
	tail *lfuEntry // sentinel
	size int
}

func newFreqList() *freqList {
	fl := &freqList{
		head: &lfuEntry{},
		tail: &lfuEntry{},
	}
	fl.head.next = fl.tail
	fl.tail.prev = fl.head
	return fl
}

func (fl *freqList) pushFront(e *lfuEntry) {
	e.prev = fl.head
	e.next = fl.head.next
	fl.head.next.prev = e
	fl.head.next = e
	fl.size++
}

func (fl *freqList) unlink(e *lfuEntry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev = nil
	e.next = nil
	fl.size--
}

func (fl *freqList) back() *lfuEntry {
	if fl.size == 0 {
		return nil
	}
	return fl.tail.prev
}

// LFUCache is a capacity-bounded cache. When full it evicts the least
// frequently used entry, breaking ties by least recent use. All operations
// are O(1).
type LFUCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	keys     map[string]*lfuEntry
	buckets  map[int]*freqList
	minFreq  int

	hits      int64
	misses    int64
	evictions int64
}

// NewLFUCache creates an LFU cache. Non-positive arguments select the
// defaults.
func NewLFUCache(capacity int, ttl time.Duration) *LFUCache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &LFUCache{
		capacity: capacity,
		ttl:      ttl,
		keys:     make(map[string]*lfuEntry, capacity),
		buckets:  make(map[int]*freqList),
	}
}

// Get returns the value for key and bumps its frequency.
func (c *LFUCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.keys[key]
	if !ok {
		c.miss()
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.remove(e)
		c.evicted(1)
		c.miss()
		return nil, false
	}

	c.touch(e)
	c.hits++
	metrics.CacheHits.WithLabelValues(string(TypeLFU)).Inc()
	return e.value, true
}

// Set stores a value with the default TTL.
func (c *LFUCache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value. Replacing an existing key counts as a use.
func (c *LFUCache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(ttl)
	if e, ok := c.keys[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.touch(e)
		return
	}

	if len(c.keys) >= c.capacity {
		c.evictOne()
	}

	e := &lfuEntry{key: key, value: value, freq: 1, expiresAt: expiresAt}
	if c.buckets[1] == nil {
		c.buckets[1] = newFreqList()
	}
	c.buckets[1].pushFront(e)
	c.keys[key] = e
	c.minFreq = 1
	metrics.CacheSize.WithLabelValues(string(TypeLFU)).Set(float64(len(c.keys)))
}

// Delete removes key if present.
func (c *LFUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.keys[key]; ok {
		c.remove(e)
		c.evicted(1)
	}
}

// Clear drops every entry.
func (c *LFUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := int64(len(c.keys))
	c.keys = make(map[string]*lfuEntry, c.capacity)
	c.buckets = make(map[int]*freqList)
	c.minFreq = 0
	c.evicted(n)
}

// Len returns the number of stored entries, expired ones included.
func (c *LFUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

// Contains reports whether key holds an unexpired entry without counting
// as a use.
func (c *LFUCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.keys[key]
	return ok && !time.Now().After(e.expiresAt)
}

// Frequency returns the access count of key, or 0.
func (c *LFUCache) Frequency(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.keys[key]; ok {
		return e.freq
	}
	return 0
}

// CleanupExpired removes expired entries and returns how many were dropped.
func (c *LFUCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, e := range c.keys {
		if now.After(e.expiresAt) {
			c.remove(e)
			removed++
		}
	}
	c.evicted(int64(removed))
	return removed
}

// GetStats returns a snapshot of the counters.
func (c *LFUCache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		TotalKeys: int64(len(c.keys)),
	}
}

// HitRate returns the cache hit rate as a percentage
func (c *LFUCache) HitRate() float64 {
	return hitRate(c.GetStats())
}

// Close is a no-op; expiry is lazy.
func (c *LFUCache) Close() {}

// touch moves e to the next frequency bucket.
func (c *LFUCache) touch(e *lfuEntry) {
	if fl, ok := c.buckets[e.freq]; ok {
		fl.unlink(e)
		if fl.size == 0 {
			delete(c.buckets, e.freq)
			if c.minFreq == e.freq {
				c.minFreq++
			}
		}
	}

	e.freq++
	if c.buckets[e.freq] == nil {
		c.buckets[e.freq] = newFreqList()
	}
	c.buckets[e.freq].pushFront(e)
}

// evictOne drops the least recently used entry of the lowest frequency.
func (c *LFUCache) evictOne() {
	fl := c.buckets[c.minFreq]
	if fl == nil {
		c.recomputeMinFreq()
		fl = c.buckets[c.minFreq]
		if fl == nil {
			return
		}
	}
	if e := fl.back(); e != nil {
		c.remove(e)
		c.evicted(1)
	}
}

// recomputeMinFreq restores minFreq after removals outside touch.
func (c *LFUCache) recomputeMinFreq() {
	c.minFreq = 0
	for f := range c.buckets {
		if c.minFreq == 0 || f < c.minFreq {
			c.minFreq = f
		}
	}
}

func (c *LFUCache) remove(e *lfuEntry) {
	if fl, ok := c.buckets[e.freq]; ok {
		fl.unlink(e)
		if fl.size == 0 {
			delete(c.buckets, e.freq)
		}
	}
	delete(c.keys, e.key)
}

func (c *LFUCache) miss() {
	c.misses++
	metrics.CacheMisses.WithLabelValues(string(TypeLFU)).Inc()
}

func (c *LFUCache) evicted(n int64) {
	c.evictions += n
	if n > 0 {
		metrics.CacheEvictions.WithLabelValues(string(TypeLFU)).Add(float64(n))
	}
	metrics.CacheSize.WithLabelValues(string(TypeLFU)).Set(float64(len(c.keys)))
}
