// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/tomtom215/lunametrics/internal/database/query"
	"github.com/tomtom215/lunametrics/internal/metrics"
	"github.com/tomtom215/lunametrics/internal/models"
)

// GetAuditDiagnostics returns the raw accounting behind the canonical counts
// for the given types and days: every matching row, including rows without
// any identity.
func (db *DB) GetAuditDiagnostics(ctx context.Context, types []string, rng models.DateRange) (*models.AuditDiagnostics, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("audit", time.Now())

	types = db.activityTypes(types)

	b := db.withCanonicalView(query.NewWithBuilder(), "canonical_events",
		daysView(types, rng.StartDay(), rng.EndDay()))
	stmt := b.Select(`
SELECT
	COUNT(*),
	COUNT(DISTINCT identity),
	COUNT(*) FILTER (WHERE missing_identity),
	COUNT(*) FILTER (WHERE identity_link_applied),
	MAX(created_at)
FROM canonical_events`)

	out := &models.AuditDiagnostics{
		EventTypes: models.ExpandEventTypes(types),
		Range:      models.DateRange{Start: rng.StartDay(), End: rng.EndDay()},
	}
	var latest sql.NullTime
	if err := db.queryRow(ctx, "audit", stmt,
		&out.RawEvents, &out.DistinctCanonical, &out.MissingIdentityRows,
		&out.IdentityLinkAppliedRows, &latest); err != nil {
		return nil, err
	}
	if latest.Valid {
		t := latest.Time.UTC()
		out.LatestEventAt = &t
	}
	metrics.EngineMissingIdentityRows.Set(float64(out.MissingIdentityRows))
	return out, nil
}

// GetIdentityLinkAudit describes the link table: how many links exist, how
// many point at anonymous ids that never produced an event, how many
// anonymous ids are linked to more than one user, and what share of
// anonymous-only events a link resolves.
func (db *DB) GetIdentityLinkAudit(ctx context.Context) (*models.IdentityLinkAudit, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("identity_link_audit", time.Now())

	b := query.NewWithBuilder()
	b.CTE("valid_links", `
SELECT anonymous_id, user_id
FROM analytics_identity_links
WHERE NULLIF(anonymous_id, '') IS NOT NULL
	AND NULLIF(user_id, '') IS NOT NULL`)
	b.CTE("event_anonymous_ids", `
SELECT DISTINCT anonymous_id
FROM conversion_events
WHERE NULLIF(anonymous_id, '') IS NOT NULL`)
	db.withCanonicalView(b, "canonical_events", canonicalView{})
	stmt := b.Select(`
SELECT
	(SELECT COUNT(*) FROM valid_links),
	(SELECT COUNT(DISTINCT anonymous_id) FROM valid_links),
	(SELECT COUNT(DISTINCT user_id) FROM valid_links),
	(SELECT COUNT(*) FROM valid_links l
		WHERE NOT EXISTS (SELECT 1 FROM event_anonymous_ids e WHERE e.anonymous_id = l.anonymous_id)),
	(SELECT COUNT(*) FROM (
		SELECT anonymous_id FROM valid_links GROUP BY anonymous_id HAVING COUNT(DISTINCT user_id) > 1
	) conflicts),
	(SELECT COUNT(*) FROM canonical_events
		WHERE NULLIF(user_id, '') IS NULL AND NULLIF(anonymous_id, '') IS NOT NULL),
	(SELECT COUNT(*) FROM canonical_events WHERE identity_link_applied)`)

	out := &models.IdentityLinkAudit{}
	if err := db.queryRow(ctx, "identity_link_audit", stmt,
		&out.TotalLinks, &out.DistinctAnonymousIDs, &out.DistinctUsers, &out.OrphanedLinks,
		&out.ConflictingAnonymousIDs, &out.AnonymousOnlyEvents, &out.LinkResolvedEvents); err != nil {
		return nil, err
	}
	out.LinkCoverage = percentage(out.LinkResolvedEvents, out.AnonymousOnlyEvents)
	return out, nil
}

// signedInMAU counts identities with their own user id active in the 30-day
// window ending on anchor.
func (db *DB) signedInMAU(ctx context.Context, types []string, anchor time.Time) (int, error) {
	anchorDay := models.Day(anchor)
	v := daysView(types, anchorDay.AddDate(0, 0, -(models.MAUWindowDays-1)), anchorDay)
	v.SignedInOnly = true

	stmt := db.withCanonicalView(query.NewWithBuilder(), "canonical_events", v).
		Select(`SELECT COUNT(DISTINCT identity) FROM canonical_events`)

	var count int
	if err := db.queryRow(ctx, "signed_in_mau", stmt, &count); err != nil {
		return 0, err
	}
	return count, nil
}
