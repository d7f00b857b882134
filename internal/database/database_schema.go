// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

/*
database_schema.go - Event Store Schema

The engine reads three tables. They are created idempotently so an empty
embedded store can be populated by the ingestion collaborator, seeding or
tests. The engine never alters rows once written.

Tables:
  - conversion_events: append-only event log. referrer, utm_source and
    origin_type are promoted out of metadata so attribution can read them
    without JSON parsing.
  - analytics_identity_links: append-only anonymous id to user id links.
    Resolution picks the latest link per anonymous id at query time.
  - metric_snapshots: weekly and monthly captures written by an external
    scheduled job; read only here.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the engine tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range db.getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) getTableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS conversion_events (
			id VARCHAR PRIMARY KEY,
			event_type VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL,
			user_id VARCHAR,
			anonymous_id VARCHAR,
			user_email VARCHAR,
			page_path VARCHAR,
			entity_id VARCHAR,
			referrer VARCHAR,
			utm_source VARCHAR,
			origin_type VARCHAR,
			metadata VARCHAR
		);`,
		`CREATE TABLE IF NOT EXISTS analytics_identity_links (
			anonymous_id VARCHAR,
			user_id VARCHAR,
			first_seen_at TIMESTAMP,
			last_seen_at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS metric_snapshots (
			period_type VARCHAR NOT NULL,
			period_key VARCHAR NOT NULL,
			new_signups INTEGER DEFAULT 0,
			wau INTEGER DEFAULT 0,
			new_trials INTEGER DEFAULT 0,
			active_subscribers INTEGER DEFAULT 0,
			mrr DOUBLE DEFAULT 0,
			activation_rate DOUBLE DEFAULT 0,
			churn_rate DOUBLE DEFAULT 0,
			created_at TIMESTAMP DEFAULT current_timestamp,
			PRIMARY KEY (period_type, period_key)
		);`,
	}
}

// createIndexes skips index creation when cfg.SkipIndexes is set (tests).
func (db *DB) createIndexes() error {
	if db.cfg != nil && db.cfg.SkipIndexes {
		return nil
	}
	return db.CreateIndexes()
}

// CreateIndexes creates all database indexes.
func (db *DB) CreateIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range db.getIndexQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute index query: %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) getIndexQueries() []string {
	return []string{
		`CREATE INDEX IF NOT EXISTS idx_events_type_created ON conversion_events(event_type, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_events_user_id ON conversion_events(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_events_anonymous_id ON conversion_events(anonymous_id);`,
		`CREATE INDEX IF NOT EXISTS idx_identity_links_anonymous_id ON analytics_identity_links(anonymous_id);`,
	}
}
