// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/lunametrics/internal/database/query"
	"github.com/tomtom215/lunametrics/internal/metrics"
)

// analytics_helpers.go - shared helpers for engine queries.
// Every query goes through queryRow or queryAndScan so that latency and
// failures are recorded and failures carry ErrStoreUnavailable.

const eventsTable = "conversion_events"

// queryRow executes a statement expecting a single row.
func (db *DB) queryRow(ctx context.Context, op string, stmt query.Statement, dest ...interface{}) error {
	start := time.Now()
	err := db.conn.QueryRowContext(ctx, stmt.Text, stmt.Args...).Scan(dest...)
	metrics.RecordDBQuery(op, eventsTable, time.Since(start), err)
	if err != nil {
		return errorContext(op, fmt.Errorf("scan row: %w", err))
	}
	return nil
}

// queryAndScan executes a statement and scans every row with scan.
func queryAndScan[T any](ctx context.Context, db *DB, op string, stmt query.Statement, scan func(*sql.Rows) (T, error)) ([]T, error) {
	start := time.Now()
	out, err := collectRows(ctx, db.conn, stmt, scan)
	metrics.RecordDBQuery(op, eventsTable, time.Since(start), err)
	if err != nil {
		return nil, errorContext(op, err)
	}
	return out, nil
}

func collectRows[T any](ctx context.Context, conn *sql.DB, stmt query.Statement, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := conn.QueryContext(ctx, stmt.Text, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer closeQuietly(rows)

	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// recordWrite records a write statement against table.
func recordWrite(op, table string, start time.Time, err error) {
	metrics.RecordDBQuery(op, table, time.Since(start), err)
}

// observe records how long one metric family took.
func observe(metric string, start time.Time) {
	metrics.RecordMetricCompute(metric, time.Since(start))
}

// roundToDecimals rounds a float64 to the specified number of decimal places.
func roundToDecimals(value float64, decimals int) float64 {
	multiplier := math.Pow(10, float64(decimals))
	return math.Round(value*multiplier) / multiplier
}

// percentage is part/total*100 rounded to 2 decimals, 0 when total <= 0.
func percentage(part, total int) float64 {
	if total <= 0 {
		return 0.0
	}
	return roundToDecimals(float64(part)/float64(total)*100.0, 2)
}

// percentagePtr is percentage, or nil when total <= 0.
func percentagePtr(part, total int) *float64 {
	if total <= 0 {
		return nil
	}
	v := percentage(part, total)
	return &v
}

// nullableRounded converts a nullable aggregate to a rounded pointer.
func nullableRounded(v sql.NullFloat64) *float64 {
	if !v.Valid || math.IsNaN(v.Float64) {
		return nil
	}
	r := roundToDecimals(v.Float64, 2)
	return &r
}

// percentageChange is (current-previous)/previous*100, nil when previous is 0.
func percentageChange(current, previous float64) *float64 {
	if previous == 0 {
		return nil
	}
	v := roundToDecimals((current-previous)/previous*100.0, 2)
	return &v
}
