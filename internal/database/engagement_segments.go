// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/tomtom215/lunametrics/internal/attribution"
	"github.com/tomtom215/lunametrics/internal/database/query"
	"github.com/tomtom215/lunametrics/internal/models"
)

// GetUserSegments splits identities active in the range into new users
// (first seen in the range), lifetime returning users (first seen before
// it) and range returning users (two or more active days in it). First
// activity is computed over all history up to the range end.
func (db *DB) GetUserSegments(ctx context.Context, types []string, rng models.DateRange) (*models.UserSegments, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("user_segments", time.Now())

	types = db.activityTypes(types)
	startDay, endDay := rng.StartDay(), rng.EndDay()

	b := db.withCanonicalView(query.NewWithBuilder(), "canonical_events", historyView(types, endDay))
	b.CTE("first_seen", `
SELECT identity, MIN(day) AS first_day
FROM canonical_events
WHERE identity IS NOT NULL
GROUP BY identity`)
	b.CTE("in_range", `
SELECT identity, COUNT(DISTINCT day) AS active_days
FROM canonical_events
WHERE identity IS NOT NULL
	AND day >= CAST(? AS DATE)
	AND day <= CAST(? AS DATE)
GROUP BY identity`, startDay, endDay)
	stmt := b.Select(`
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE f.first_day >= CAST(? AS DATE)),
	COUNT(*) FILTER (WHERE f.first_day < CAST(? AS DATE)),
	COUNT(*) FILTER (WHERE r.active_days >= 2)
FROM in_range r
JOIN first_seen f ON f.identity = r.identity`, startDay, startDay)

	out := &models.UserSegments{}
	if err := db.queryRow(ctx, "user_segments", stmt,
		&out.ActiveUsers, &out.NewUsers, &out.ReturningUsersLifetime, &out.ReturningUsersRange); err != nil {
		return nil, err
	}
	return out, nil
}

// GetReferrerBreakdown attributes every range returning identity to the
// internal, organic or direct bucket using the metadata of its most recent
// event in the range.
func (db *DB) GetReferrerBreakdown(ctx context.Context, types []string, rng models.DateRange) (*models.ReferrerBreakdown, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("referrer_breakdown", time.Now())

	types = db.activityTypes(types)

	b := db.withCanonicalView(query.NewWithBuilder(), "canonical_events",
		daysView(types, rng.StartDay(), rng.EndDay()))
	b.CTE("returning_identities", `
SELECT identity
FROM canonical_events
WHERE identity IS NOT NULL
GROUP BY identity
HAVING COUNT(DISTINCT day) >= 2`)
	b.CTE("latest_touch", `
SELECT
	e.identity,
	e.origin_type,
	e.referrer,
	e.utm_source,
	ROW_NUMBER() OVER (PARTITION BY e.identity ORDER BY e.created_at DESC, e.id DESC) AS rn
FROM canonical_events e
JOIN returning_identities r ON r.identity = e.identity`)
	stmt := b.Select(`
SELECT COALESCE(origin_type, ''), COALESCE(referrer, ''), COALESCE(utm_source, '')
FROM latest_touch
WHERE rn = 1`)

	touches, err := queryAndScan(ctx, db, "referrer_breakdown", stmt, func(rows *sql.Rows) (attribution.Touch, error) {
		var t attribution.Touch
		err := rows.Scan(&t.OriginType, &t.Referrer, &t.UTMSource)
		return t, err
	})
	if err != nil {
		return nil, err
	}

	breakdown := db.classifier.Tally(touches)
	return &breakdown, nil
}

// activeDaysBuckets are the histogram bars; MaxDays 0 is open-ended.
var activeDaysBuckets = []models.ActiveDaysBucket{
	{Label: "1", MinDays: 1, MaxDays: 1},
	{Label: "2-3", MinDays: 2, MaxDays: 3},
	{Label: "4-7", MinDays: 4, MaxDays: 7},
	{Label: "8-14", MinDays: 8, MaxDays: 14},
	{Label: "15+", MinDays: 15},
}

// GetActiveDaysDistribution buckets identities active in the range by their
// number of distinct active days.
func (db *DB) GetActiveDaysDistribution(ctx context.Context, types []string, rng models.DateRange) (*models.ActiveDaysDistribution, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("active_days", time.Now())

	types = db.activityTypes(types)

	b := db.withCanonicalView(query.NewWithBuilder(), "canonical_events",
		daysView(types, rng.StartDay(), rng.EndDay()))
	b.CTE("per_identity", `
SELECT identity, COUNT(DISTINCT day) AS active_days
FROM canonical_events
WHERE identity IS NOT NULL
GROUP BY identity`)
	stmt := b.Select(`
SELECT active_days, COUNT(*) AS identities
FROM per_identity
GROUP BY active_days
ORDER BY active_days`)

	type dayCount struct{ days, identities int }
	counts, err := queryAndScan(ctx, db, "active_days", stmt, func(rows *sql.Rows) (dayCount, error) {
		var c dayCount
		err := rows.Scan(&c.days, &c.identities)
		return c, err
	})
	if err != nil {
		return nil, err
	}

	out := &models.ActiveDaysDistribution{Buckets: make([]models.ActiveDaysBucket, len(activeDaysBuckets))}
	copy(out.Buckets, activeDaysBuckets)

	totalDays := 0
	for _, c := range counts {
		out.TotalUsers += c.identities
		totalDays += c.days * c.identities
		for i := range out.Buckets {
			bucket := &out.Buckets[i]
			if c.days >= bucket.MinDays && (bucket.MaxDays == 0 || c.days <= bucket.MaxDays) {
				bucket.Users += c.identities
				break
			}
		}
	}
	if out.TotalUsers > 0 {
		out.AvgActiveDays = roundToDecimals(float64(totalDays)/float64(out.TotalUsers), 2)
	}
	return out, nil
}
