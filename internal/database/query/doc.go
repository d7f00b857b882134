// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

// Package query provides SQL query building utilities for the database package.
//
// WhereBuilder assembles parameterized WHERE clauses. WithBuilder composes
// a statement from named common table expressions and a final SELECT.
// Both keep every argument next to the fragment that uses it:
//
//	wb := query.NewWhereBuilder()
//	wb.AddIn("event_type", types)
//	wb.AddTimeRange("created_at", &from, &until)
//	where, whereArgs := wb.Build()
//
//	stmt := query.NewWithBuilder().
//	    CTE("events", "SELECT * FROM conversion_events WHERE "+where, whereArgs...).
//	    Select("SELECT COUNT(*) FROM events WHERE user_id = ?", userID)
//	row := conn.QueryRowContext(ctx, stmt.Text, stmt.Args...)
//
// No caller ever computes a parameter index; placeholders are always "?".
package query
