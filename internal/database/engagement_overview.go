// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package database

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/lunametrics/internal/anomaly"
	"github.com/tomtom215/lunametrics/internal/logging"
	"github.com/tomtom215/lunametrics/internal/models"
)

// GetEngagementOverview computes every engagement metric for the activity
// event types over rng, anchored on the range end day, and evaluates the
// anomaly rules against the results. Any failing read fails the whole
// overview; partial results are never returned.
func (db *DB) GetEngagementOverview(ctx context.Context, rng models.DateRange) (*models.EngagementOverview, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("overview", time.Now())

	types := db.activityTypes(nil)
	anchor := rng.EndDay()
	out := &models.EngagementOverview{
		Range:      models.DateRange{Start: rng.StartDay(), End: anchor},
		EventTypes: models.ExpandEventTypes(types),
	}

	var (
		windows    *models.WindowCounts
		trend      []models.DailyActivePoint
		segments   *models.UserSegments
		referrers  *models.ReferrerBreakdown
		retention  *models.RetentionReport
		overlap    *models.WindowOverlap
		activeDays *models.ActiveDaysDistribution
		engaged    *models.EngagedReport
		funnel     *models.GrimoireFunnel
		influence  *models.ConversionInfluence
		audit      *models.AuditDiagnostics
		signedIn   int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { windows, err = db.GetWindowCounts(gctx, types, anchor); return err })
	g.Go(func() (err error) { trend, err = db.GetDailyActiveTrend(gctx, types, rng); return err })
	g.Go(func() (err error) { segments, err = db.GetUserSegments(gctx, types, rng); return err })
	g.Go(func() (err error) { referrers, err = db.GetReferrerBreakdown(gctx, types, rng); return err })
	g.Go(func() (err error) { retention, err = db.GetRetentionCohorts(gctx, types, rng); return err })
	g.Go(func() (err error) { overlap, err = db.GetWindowOverlap(gctx, types, anchor); return err })
	g.Go(func() (err error) { activeDays, err = db.GetActiveDaysDistribution(gctx, types, rng); return err })
	g.Go(func() (err error) { engaged, err = db.GetEngagedReport(gctx, rng); return err })
	g.Go(func() (err error) { funnel, err = db.GetGrimoireFunnel(gctx, rng); return err })
	g.Go(func() (err error) { influence, err = db.GetConversionInfluence(gctx, rng); return err })
	g.Go(func() (err error) {
		audit, err = db.GetAuditDiagnostics(gctx, types, models.TrailingDays(anchor, models.MAUWindowDays))
		return err
	})
	g.Go(func() (err error) {
		signedIn, err = db.signedInMAU(gctx, []string{models.EventProductOpened}, anchor)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.Windows = *windows
	out.Trend = trend
	if n := len(trend); n > 0 && trend[n-1].Day.Equal(anchor) {
		out.ReturningDAU = trend[n-1].ReturningDAU
	}
	out.Segments = *segments
	out.Referrers = *referrers
	out.Retention = *retention
	out.Overlap = *overlap
	out.ActiveDays = *activeDays
	out.Engaged = *engaged
	out.Funnel = *funnel
	out.Influence = *influence
	out.Audit = *audit

	findings := anomaly.Evaluate(anomaly.DefaultRules(), anomaly.Inputs{
		DAU:                 windows.DAU,
		WAU:                 windows.WAU,
		MAU:                 windows.MAU,
		ReturningDAU:        out.ReturningDAU,
		ReturningWAU:        overlap.ReturningWAU,
		ReturningMAU:        overlap.ReturningMAU,
		ReturningUsersRange: segments.ReturningUsersRange,
		DistinctCanonical:   audit.DistinctCanonical,
		SignedInProductMAU:  &signedIn,
	})
	logger := logging.Ctx(ctx)
	for _, f := range findings {
		logger.Warn().
			Str("rule_id", f.RuleID).
			Str("severity", string(f.Severity)).
			Str("range_start", models.FormatDay(out.Range.Start)).
			Str("range_end", models.FormatDay(out.Range.End)).
			Msg(f.Message)
	}
	out.Anomalies = anomaly.Messages(findings)
	out.Warnings = append([]string{}, engaged.Warnings...)
	out.GeneratedAt = time.Now().UTC()
	return out, nil
}
