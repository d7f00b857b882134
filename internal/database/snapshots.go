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

	"github.com/tomtom215/lunametrics/internal/database/query"
	"github.com/tomtom215/lunametrics/internal/models"
)

// Snapshot period types written by the scheduled snapshot job.
const (
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

const defaultSnapshotLimit = 12

// ListMetricSnapshots returns up to limit snapshots of periodType, newest
// period first. Snapshots are historical facts and are never recomputed.
func (db *DB) ListMetricSnapshots(ctx context.Context, periodType string, limit int) ([]models.MetricSnapshot, error) {
	if periodType != PeriodWeekly && periodType != PeriodMonthly {
		return nil, fmt.Errorf("invalid period type %q: must be %s or %s", periodType, PeriodWeekly, PeriodMonthly)
	}
	if limit <= 0 {
		limit = defaultSnapshotLimit
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt := query.NewWithBuilder().Select(`
SELECT period_type, period_key, COALESCE(new_signups, 0), COALESCE(wau, 0), COALESCE(new_trials, 0),
	COALESCE(active_subscribers, 0), COALESCE(mrr, 0), COALESCE(activation_rate, 0),
	COALESCE(churn_rate, 0), created_at
FROM metric_snapshots
WHERE period_type = ?
ORDER BY period_key DESC
LIMIT ?`, periodType, limit)

	return queryAndScan(ctx, db, "list_snapshots", stmt, func(rows *sql.Rows) (models.MetricSnapshot, error) {
		var s models.MetricSnapshot
		var created sql.NullTime
		err := rows.Scan(&s.PeriodType, &s.PeriodKey, &s.NewSignups, &s.WAU, &s.NewTrials,
			&s.ActiveSubscribers, &s.MRR, &s.ActivationRate, &s.ChurnRate, &created)
		if created.Valid {
			s.CreatedAt = created.Time.UTC()
		}
		return s, err
	})
}

// CompareSnapshots returns the latest and previous snapshot of periodType
// with the percentage change of every numeric field. A change is nil when
// there is no previous snapshot or its value is zero.
func (db *DB) CompareSnapshots(ctx context.Context, periodType string) (*models.SnapshotComparison, error) {
	snaps, err := db.ListMetricSnapshots(ctx, periodType, 2)
	if err != nil {
		return nil, err
	}

	out := &models.SnapshotComparison{Changes: make(map[string]*float64)}
	if len(snaps) == 0 {
		return out, nil
	}
	out.Current = &snaps[0]
	if len(snaps) > 1 {
		out.Previous = &snaps[1]
	}

	prev := func(f func(*models.MetricSnapshot) float64) float64 {
		if out.Previous == nil {
			return 0
		}
		return f(out.Previous)
	}
	fields := map[string]func(*models.MetricSnapshot) float64{
		"new_signups":        func(s *models.MetricSnapshot) float64 { return float64(s.NewSignups) },
		"wau":                func(s *models.MetricSnapshot) float64 { return float64(s.WAU) },
		"new_trials":         func(s *models.MetricSnapshot) float64 { return float64(s.NewTrials) },
		"active_subscribers": func(s *models.MetricSnapshot) float64 { return float64(s.ActiveSubscribers) },
		"mrr":                func(s *models.MetricSnapshot) float64 { return s.MRR },
		"activation_rate":    func(s *models.MetricSnapshot) float64 { return s.ActivationRate },
		"churn_rate":         func(s *models.MetricSnapshot) float64 { return s.ChurnRate },
	}
	for name, f := range fields {
		out.Changes[name] = percentageChange(f(out.Current), prev(f))
	}
	return out, nil
}

// InsertMetricSnapshot stores one snapshot, replacing an existing row for the
// same period. It is used by seeding and tests; production snapshots come
// from the scheduled job.
func (db *DB) InsertMetricSnapshot(ctx context.Context, s models.MetricSnapshot) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx, `
INSERT OR REPLACE INTO metric_snapshots
	(period_type, period_key, new_signups, wau, new_trials, active_subscribers, mrr, activation_rate, churn_rate, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.PeriodType, s.PeriodKey, s.NewSignups, s.WAU, s.NewTrials, s.ActiveSubscribers,
		s.MRR, s.ActivationRate, s.ChurnRate, s.CreatedAt.UTC())
	if err != nil {
		return errorContext("insert_snapshot", fmt.Errorf("failed to insert snapshot %s/%s: %w", s.PeriodType, s.PeriodKey, err))
	}
	return nil
}
