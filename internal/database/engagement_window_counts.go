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

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/lunametrics/internal/database/query"
	"github.com/tomtom215/lunametrics/internal/models"
)

// countActiveIdentities counts distinct canonical identities active on the
// n day buckets ending on anchor.
func (db *DB) countActiveIdentities(ctx context.Context, op string, types []string, anchor time.Time, n int) (int, error) {
	anchorDay := models.Day(anchor)
	b := db.withCanonicalView(query.NewWithBuilder(), "canonical_events",
		daysView(types, anchorDay.AddDate(0, 0, -(n-1)), anchorDay))
	stmt := b.Select(`SELECT COUNT(DISTINCT identity) FROM canonical_events WHERE identity IS NOT NULL`)

	var count int
	if err := db.queryRow(ctx, op, stmt, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// GetWindowCounts returns DAU, WAU and MAU ending on anchor's UTC day.
// The three windows are independent reads and run concurrently.
func (db *DB) GetWindowCounts(ctx context.Context, types []string, anchor time.Time) (*models.WindowCounts, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("window_counts", time.Now())

	types = db.activityTypes(types)
	out := &models.WindowCounts{AnchorDay: models.Day(anchor)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.DAU, err = db.countActiveIdentities(gctx, "dau", types, anchor, 1)
		return err
	})
	g.Go(func() (err error) {
		out.WAU, err = db.countActiveIdentities(gctx, "wau", types, anchor, models.WAUWindowDays)
		return err
	})
	g.Go(func() (err error) {
		out.MAU, err = db.countActiveIdentities(gctx, "mau", types, anchor, models.MAUWindowDays)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.StickinessDAUMAU = percentage(out.DAU, out.MAU)
	out.StickinessWAUMAU = percentage(out.WAU, out.MAU)
	return out, nil
}

// GetDailyActiveTrend returns one point per day from the day before the
// range start through the range end. A day's returning DAU counts the
// identities active that day that were also active on any of the 30
// preceding days. Days without activity are reported as zero.
func (db *DB) GetDailyActiveTrend(ctx context.Context, types []string, rng models.DateRange) ([]models.DailyActivePoint, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("daily_trend", time.Now())

	types = db.activityTypes(types)
	firstDay := rng.StartDay().AddDate(0, 0, -1)
	lastDay := rng.EndDay()

	b := db.withCanonicalView(query.NewWithBuilder(), "canonical_events",
		daysView(types, firstDay.AddDate(0, 0, -models.ReturningLookbackDays), lastDay))
	b.CTE("active_days", `
SELECT DISTINCT identity, day
FROM canonical_events
WHERE identity IS NOT NULL`)
	b.CTE("returning_days", fmt.Sprintf(`
SELECT DISTINCT d.identity, d.day
FROM active_days d
JOIN active_days p
	ON p.identity = d.identity
	AND p.day < d.day
	AND p.day >= d.day - INTERVAL %d DAY`, models.ReturningLookbackDays))
	stmt := b.Select(`
SELECT d.day, COUNT(*) AS dau, COUNT(r.identity) AS returning_dau
FROM active_days d
LEFT JOIN returning_days r ON r.identity = d.identity AND r.day = d.day
WHERE d.day >= CAST(? AS DATE)
GROUP BY d.day
ORDER BY d.day`, firstDay)

	rows, err := queryAndScan(ctx, db, "daily_trend", stmt, func(rows *sql.Rows) (models.DailyActivePoint, error) {
		var p models.DailyActivePoint
		err := rows.Scan(&p.Day, &p.DAU, &p.ReturningDAU)
		p.Day = models.Day(p.Day)
		return p, err
	})
	if err != nil {
		return nil, err
	}

	byDay := make(map[time.Time]models.DailyActivePoint, len(rows))
	for _, p := range rows {
		byDay[p.Day] = p
	}
	points := make([]models.DailyActivePoint, 0, int(lastDay.Sub(firstDay).Hours()/24)+1)
	for day := firstDay; !day.After(lastDay); day = day.AddDate(0, 0, 1) {
		if p, ok := byDay[day]; ok {
			points = append(points, p)
			continue
		}
		points = append(points, models.DailyActivePoint{Day: day})
	}
	return points, nil
}

// GetWindowOverlap counts identities in the 7- and 30-day windows ending on
// anchor that were also active in the window immediately before.
func (db *DB) GetWindowOverlap(ctx context.Context, types []string, anchor time.Time) (*models.WindowOverlap, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("window_overlap", time.Now())

	types = db.activityTypes(types)
	anchorDay := models.Day(anchor)
	wauStart := anchorDay.AddDate(0, 0, -(models.WAUWindowDays - 1))
	prevWAUStart := wauStart.AddDate(0, 0, -models.WAUWindowDays)
	mauStart := anchorDay.AddDate(0, 0, -(models.MAUWindowDays - 1))
	prevMAUStart := mauStart.AddDate(0, 0, -models.MAUWindowDays)

	b := db.withCanonicalView(query.NewWithBuilder(), "canonical_events",
		daysView(types, prevMAUStart, anchorDay))
	b.CTE("per_identity", `
SELECT
	identity,
	BOOL_OR(day >= CAST(? AS DATE)) AS in_wau,
	BOOL_OR(day >= CAST(? AS DATE) AND day < CAST(? AS DATE)) AS in_prev_wau,
	BOOL_OR(day >= CAST(? AS DATE)) AS in_mau,
	BOOL_OR(day < CAST(? AS DATE)) AS in_prev_mau
FROM canonical_events
WHERE identity IS NOT NULL
GROUP BY identity`, wauStart, prevWAUStart, wauStart, mauStart, mauStart)
	stmt := b.Select(`
SELECT
	COUNT(*) FILTER (WHERE in_wau),
	COUNT(*) FILTER (WHERE in_wau AND in_prev_wau),
	COUNT(*) FILTER (WHERE in_mau),
	COUNT(*) FILTER (WHERE in_mau AND in_prev_mau)
FROM per_identity`)

	out := &models.WindowOverlap{AnchorDay: anchorDay}
	if err := db.queryRow(ctx, "window_overlap", stmt, &out.WAU, &out.ReturningWAU, &out.MAU, &out.ReturningMAU); err != nil {
		return nil, err
	}
	out.WAURetentionRate = percentage(out.ReturningWAU, out.WAU)
	out.MAURetentionRate = percentage(out.ReturningMAU, out.MAU)
	return out, nil
}
