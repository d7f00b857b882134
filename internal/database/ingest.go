// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/lunametrics/internal/database/query"
	"github.com/tomtom215/lunametrics/internal/identity"
	"github.com/tomtom215/lunametrics/internal/logging"
	"github.com/tomtom215/lunametrics/internal/models"
)

const insertEventSQL = `INSERT INTO conversion_events (
	id, event_type, created_at, user_id, anonymous_id, user_email,
	page_path, entity_id, referrer, utm_source, origin_type, metadata
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING`

const insertLinkSQL = `INSERT INTO analytics_identity_links (
	anonymous_id, user_id, first_seen_at, last_seen_at
) VALUES (?, ?, ?, ?)`

// InsertEvents normalizes and appends events in one transaction. Events
// without an id get a random one; an id that already exists is skipped.
// inserted excludes skipped rows. Either every row is written or none.
func (db *DB) InsertEvents(ctx context.Context, events []models.Event) (inserted int, err error) {
	if len(events) == 0 {
		return 0, nil
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { recordWrite("insert_events", eventsTable, start, err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, errorContext("insert_events", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().Err(rbErr).AnErr("original_error", err).Msg("Transaction rollback failed")
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertEventSQL)
	if err != nil {
		return 0, errorContext("insert_events", fmt.Errorf("failed to prepare insert: %w", err))
	}
	defer closeQuietly(stmt)

	for i := range events {
		e := events[i].Normalize()
		if e.EventType == "" {
			return 0, fmt.Errorf("event %d: event type is required", i)
		}
		if e.CreatedAt.IsZero() {
			return 0, fmt.Errorf("event %d: created_at is required", i)
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		metadata, mErr := json.Marshal(e.Metadata)
		if mErr != nil {
			return 0, fmt.Errorf("event %d: failed to encode metadata: %w", i, mErr)
		}

		res, execErr := stmt.ExecContext(ctx,
			e.ID, e.EventType, e.CreatedAt,
			nullString(e.UserID), nullString(e.AnonymousID), nullString(e.UserEmail),
			nullString(e.PagePath), nullString(e.EntityID),
			nullString(models.MetadataString(e.Metadata, models.MetaReferrer)),
			nullString(models.MetadataString(e.Metadata, models.MetaUTMSource)),
			nullString(models.MetadataString(e.Metadata, models.MetaOriginType)),
			string(metadata))
		if execErr != nil {
			return 0, errorContext("insert_events", fmt.Errorf("failed to insert event %s: %w", e.ID, execErr))
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, errorContext("insert_events", fmt.Errorf("failed to commit events: %w", err))
	}
	return inserted, nil
}

// AppendIdentityLinks appends links. Links missing either id are skipped;
// existing rows are never updated.
func (db *DB) AppendIdentityLinks(ctx context.Context, links []identity.Link) (inserted int, err error) {
	if len(links) == 0 {
		return 0, nil
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { recordWrite("append_links", "analytics_identity_links", start, err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, errorContext("append_links", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().Err(rbErr).AnErr("original_error", err).Msg("Transaction rollback failed")
			}
		}
	}()

	for _, l := range links {
		if l.AnonymousID == "" || l.UserID == "" {
			continue
		}
		if _, execErr := tx.ExecContext(ctx, insertLinkSQL,
			l.AnonymousID, l.UserID, nullTime(l.FirstSeenAt), nullTime(l.LastSeenAt)); execErr != nil {
			return 0, errorContext("append_links", fmt.Errorf("failed to insert link %s: %w", l.AnonymousID, execErr))
		}
		inserted++
	}

	if err = tx.Commit(); err != nil {
		return 0, errorContext("append_links", fmt.Errorf("failed to commit links: %w", err))
	}
	return inserted, nil
}

// LoadIdentitySnapshot reads the whole link table into an identity.Snapshot.
func (db *DB) LoadIdentitySnapshot(ctx context.Context) (*identity.Snapshot, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt := query.NewWithBuilder().Select(`
SELECT anonymous_id, user_id, first_seen_at, last_seen_at
FROM analytics_identity_links
WHERE NULLIF(anonymous_id, '') IS NOT NULL
	AND NULLIF(user_id, '') IS NOT NULL`)

	links, err := queryAndScan(ctx, db, "load_links", stmt, func(rows *sql.Rows) (identity.Link, error) {
		var l identity.Link
		var first, last sql.NullTime
		if err := rows.Scan(&l.AnonymousID, &l.UserID, &first, &last); err != nil {
			return l, err
		}
		l.FirstSeenAt = timePtr(first)
		l.LastSeenAt = timePtr(last)
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	return identity.NewSnapshot(links), nil
}

// ResolveIdentity resolves one (user id, anonymous id) pair against the
// current link table.
func (db *DB) ResolveIdentity(ctx context.Context, userID, anonymousID string) (identity.Resolution, error) {
	snap, err := db.LoadIdentitySnapshot(ctx)
	if err != nil {
		return identity.Resolution{}, err
	}
	return identity.Canonical(userID, anonymousID, snap), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}
