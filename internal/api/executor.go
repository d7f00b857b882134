// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/lunametrics/internal/cache"
	"github.com/tomtom215/lunametrics/internal/logging"
)

// QueryFunc computes one report.
type QueryFunc func(ctx context.Context) (interface{}, error)

// QueryExecutor runs report queries cache first:
//
//  1. Derive a cache key from the report prefix and its parsed parameters
//  2. Serve a cached result if present (Cached: true in metadata)
//  3. Otherwise run the query through the store circuit breaker
//  4. Cache and return a successful result
//
// Failed queries are never cached and never answered with zeroed metrics.
type QueryExecutor struct {
	handler *Handler
}

// NewQueryExecutor creates an executor bound to h's store, cache and breaker.
func NewQueryExecutor(h *Handler) *QueryExecutor {
	return &QueryExecutor{handler: h}
}

// Execute answers r with the report computed by fn. params must hold every
// input fn depends on; it is hashed into the cache key.
func (e *QueryExecutor) Execute(w http.ResponseWriter, r *http.Request, prefix string, params interface{}, fn QueryFunc) {
	e.execute(w, r, prefix, cache.GenerateKey(prefix, params), fn)
}

func (e *QueryExecutor) execute(w http.ResponseWriter, r *http.Request, report, cacheKey string, fn QueryFunc) {
	h := e.handler
	if h.store == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Event store not available", nil)
		return
	}

	if h.cache != nil {
		if cached, found := h.cache.Get(cacheKey); found {
			respondSuccess(w, r, cached, 0, true)
			return
		}
	}

	start := time.Now()
	data, err := h.breaker.Execute(func() (interface{}, error) {
		return fn(r.Context())
	})
	if err != nil {
		respondQueryError(w, r, report, err)
		return
	}
	elapsed := time.Since(start)

	if h.cache != nil {
		h.cache.Set(cacheKey, data)
	}

	logging.Ctx(r.Context()).Debug().
		Str("report", report).
		Dur("duration", elapsed).
		Msg("Report computed")

	respondSuccess(w, r, data, elapsed, false)
}

// ExecuteUncached runs fn through the breaker without caching, for
// lookups whose answer must reflect the store right now.
func (e *QueryExecutor) ExecuteUncached(w http.ResponseWriter, r *http.Request, report string, fn QueryFunc) {
	h := e.handler
	if h.store == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Event store not available", nil)
		return
	}

	start := time.Now()
	data, err := h.breaker.Execute(func() (interface{}, error) {
		return fn(r.Context())
	})
	if err != nil {
		respondQueryError(w, r, report, err)
		return
	}
	respondSuccess(w, r, data, time.Since(start), false)
}
