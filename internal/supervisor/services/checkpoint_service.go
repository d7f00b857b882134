// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/lunametrics/internal/logging"
)

// Checkpointer flushes the DuckDB write-ahead log into the database file.
// Satisfied by *database.DB.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// maxCheckpointFailures is how many consecutive failures Serve tolerates
// before returning, which hands the decision to the supervisor's backoff.
const maxCheckpointFailures = 3

// CheckpointService checkpoints the event store every interval and once
// more on shutdown.
type CheckpointService struct {
	db       Checkpointer
	interval time.Duration
}

// NewCheckpointService creates the service. A non-positive interval
// selects 5 minutes.
func NewCheckpointService(db Checkpointer, interval time.Duration) *CheckpointService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CheckpointService{db: db, interval: interval}
}

// Serve implements suture.Service.
func (s *CheckpointService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			// Final flush with a short deadline of its own.
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.db.Checkpoint(flushCtx); err != nil {
				logging.Warn().Err(err).Str("component", "checkpoint").Msg("Final checkpoint failed")
			}
			cancel()
			return ctx.Err()

		case <-ticker.C:
			if err := s.db.Checkpoint(ctx); err != nil {
				failures++
				logging.Warn().Err(err).Str("component", "checkpoint").Int("consecutive_failures", failures).Msg("Checkpoint failed")
				if failures >= maxCheckpointFailures {
					return fmt.Errorf("checkpoint failed %d times in a row: %w", failures, err)
				}
				continue
			}
			failures = 0
		}
	}
}

// String names the service in supervisor logs.
func (s *CheckpointService) String() string {
	return "duckdb-checkpoint"
}
