// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

// Cohort retention: identities are grouped by their first-ever active day
// and checked for activity exactly 1, 7 and 30 days later. An offset that
// lies beyond the latest measurable day is censored (nil), so "0% retained"
// and "too recent to tell" stay distinguishable.

package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/tomtom215/lunametrics/internal/database/query"
	"github.com/tomtom215/lunametrics/internal/models"
)

type cohortRow struct {
	day      time.Time
	size     int
	retained [3]int
}

// GetRetentionCohorts returns one cohort per first-active day in the range.
// The latest measurable day is the earlier of the range end and the day of
// the newest matching event, or the range end when there are no events.
func (db *DB) GetRetentionCohorts(ctx context.Context, types []string, rng models.DateRange) (*models.RetentionReport, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("retention", time.Now())

	types = db.activityTypes(types)
	startDay, endDay := rng.StartDay(), rng.EndDay()

	latestDay, err := db.latestEventDay(ctx, types, endDay)
	if err != nil {
		return nil, err
	}

	b := db.withCanonicalView(query.NewWithBuilder(), "canonical_events", historyView(types, endDay))
	b.CTE("active_days", `
SELECT DISTINCT identity, day
FROM canonical_events
WHERE identity IS NOT NULL`)
	b.CTE("cohort", `
SELECT identity, MIN(day) AS first_day
FROM active_days
GROUP BY identity
HAVING MIN(day) >= CAST(? AS DATE) AND MIN(day) <= CAST(? AS DATE)`, startDay, endDay)
	stmt := b.Select(`
SELECT
	c.first_day,
	COUNT(*) AS cohort_size,
	COUNT(a1.identity) AS retained_day_1,
	COUNT(a7.identity) AS retained_day_7,
	COUNT(a30.identity) AS retained_day_30
FROM cohort c
LEFT JOIN active_days a1 ON a1.identity = c.identity AND a1.day = c.first_day + INTERVAL 1 DAY
LEFT JOIN active_days a7 ON a7.identity = c.identity AND a7.day = c.first_day + INTERVAL 7 DAY
LEFT JOIN active_days a30 ON a30.identity = c.identity AND a30.day = c.first_day + INTERVAL 30 DAY
GROUP BY c.first_day
ORDER BY c.first_day`)

	rows, err := queryAndScan(ctx, db, "retention", stmt, func(rows *sql.Rows) (cohortRow, error) {
		var r cohortRow
		err := rows.Scan(&r.day, &r.size, &r.retained[0], &r.retained[1], &r.retained[2])
		r.day = models.Day(r.day)
		return r, err
	})
	if err != nil {
		return nil, err
	}

	return buildRetentionReport(rows, latestDay), nil
}

// buildRetentionReport applies censoring and computes size-weighted averages
// over measurable cohorts only.
func buildRetentionReport(rows []cohortRow, latestDay time.Time) *models.RetentionReport {
	report := &models.RetentionReport{
		Cohorts:   make([]models.RetentionCohort, 0, len(rows)),
		LatestDay: latestDay,
	}

	var retainedSum, sizeSum [3]int
	for _, r := range rows {
		cohort := models.RetentionCohort{CohortDay: r.day, CohortSize: r.size}
		rates := [3]*float64{}
		for i, offset := range models.RetentionOffsets {
			if r.day.AddDate(0, 0, offset).After(latestDay) {
				continue
			}
			rates[i] = percentagePtr(r.retained[i], r.size)
			retainedSum[i] += r.retained[i]
			sizeSum[i] += r.size
		}
		cohort.Day1, cohort.Day7, cohort.Day30 = rates[0], rates[1], rates[2]
		report.Cohorts = append(report.Cohorts, cohort)
	}

	report.AverageDay1 = percentagePtr(retainedSum[0], sizeSum[0])
	report.AverageDay7 = percentagePtr(retainedSum[1], sizeSum[1])
	report.AverageDay30 = percentagePtr(retainedSum[2], sizeSum[2])
	return report
}

// latestEventDay is min(endDay, day of the newest matching event), falling
// back to endDay when nothing matches.
func (db *DB) latestEventDay(ctx context.Context, types []string, endDay time.Time) (time.Time, error) {
	b := db.withCanonicalView(query.NewWithBuilder(), "canonical_events", historyView(types, endDay))
	stmt := b.Select(`SELECT MAX(created_at) FROM canonical_events`)

	var latest sql.NullTime
	if err := db.queryRow(ctx, "latest_event_day", stmt, &latest); err != nil {
		return time.Time{}, err
	}
	if !latest.Valid {
		return models.Day(endDay), nil
	}
	day := models.Day(latest.Time)
	if day.After(models.Day(endDay)) {
		return models.Day(endDay), nil
	}
	return day, nil
}
