// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package database

import (
	"context"
	"fmt"
)

// ensureContext applies the engine query timeout when ctx has no deadline.
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return context.WithTimeout(ctx, db.engine.QueryTimeout)
	}
	return ctx, func() {}
}

// Checkpoint forces a WAL checkpoint.
func (db *DB) Checkpoint(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return errorContext("checkpoint", fmt.Errorf("checkpoint failed: %w", err))
	}
	return nil
}

// GetDatabasePath returns the path to the database file.
func (db *DB) GetDatabasePath() string {
	return db.cfg.Path
}

// GetRecordCounts returns the row counts of the event and link tables.
func (db *DB) GetRecordCounts(ctx context.Context) (events int64, links int64, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if err = db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversion_events").Scan(&events); err != nil {
		return 0, 0, errorContext("record_counts", fmt.Errorf("failed to count events: %w", err))
	}
	if err = db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM analytics_identity_links").Scan(&links); err != nil {
		return events, 0, errorContext("record_counts", fmt.Errorf("failed to count identity links: %w", err))
	}
	return events, links, nil
}
