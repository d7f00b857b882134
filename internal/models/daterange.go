// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package models

import (
	"errors"
	"fmt"
	"time"
)

// Window lengths in day buckets, anchor day inclusive.
const (
	WAUWindowDays         = 7
	MAUWindowDays         = 30
	ReturningLookbackDays = 30
)

// RetentionOffsets are the cohort offsets reported by retention.
var RetentionOffsets = []int{1, 7, 30}

// ErrInvalidRange is returned for a missing bound or when End precedes Start.
var ErrInvalidRange = errors.New("invalid date range")

// DateRange is an inclusive range of timestamps. Metric queries work on the
// UTC day buckets of Start and End.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// StartDay is the first day bucket of the range.
func (r DateRange) StartDay() time.Time { return Day(r.Start) }

// EndDay is the last day bucket of the range and the default anchor day.
func (r DateRange) EndDay() time.Time { return Day(r.End) }

// Days is the number of day buckets in the range.
func (r DateRange) Days() int {
	return int(r.EndDay().Sub(r.StartDay()).Hours()/24) + 1
}

// Validate rejects zero or inverted ranges.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidRange)
	}
	if r.EndDay().Before(r.StartDay()) {
		return fmt.Errorf("%w: end before start", ErrInvalidRange)
	}
	return nil
}

// TrailingDays returns the range of n day buckets ending on the day of end.
func TrailingDays(end time.Time, n int) DateRange {
	endDay := Day(end)
	return DateRange{Start: endDay.AddDate(0, 0, -(n - 1)), End: endDay}
}

// FormatDay renders a day bucket as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return Day(t).Format(time.DateOnly)
}
