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
	"github.com/tomtom215/lunametrics/internal/models"
)

// GetGrimoireFunnel returns the share of identities that viewed the grimoire
// in the range and also opened the app in the range.
func (db *DB) GetGrimoireFunnel(ctx context.Context, rng models.DateRange) (*models.GrimoireFunnel, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("grimoire_funnel", time.Now())

	b := db.withCanonicalView(query.NewWithBuilder(), "canonical_events",
		daysView([]string{models.EventGrimoireViewed, models.EventAppOpened}, rng.StartDay(), rng.EndDay()))
	b.CTE("per_identity", `
SELECT
	identity,
	BOOL_OR(event_type = ?) AS viewed_grimoire,
	BOOL_OR(event_type = ?) AS opened_app
FROM canonical_events
WHERE identity IS NOT NULL
GROUP BY identity`, models.EventGrimoireViewed, models.EventAppOpened)
	stmt := b.Select(`
SELECT
	COUNT(*) FILTER (WHERE viewed_grimoire),
	COUNT(*) FILTER (WHERE viewed_grimoire AND opened_app)
FROM per_identity`)

	out := &models.GrimoireFunnel{}
	if err := db.queryRow(ctx, "grimoire_funnel", stmt, &out.GrimoireUsers, &out.ConvertedUsers); err != nil {
		return nil, err
	}
	out.ConversionRate = percentage(out.ConvertedUsers, out.GrimoireUsers)
	return out, nil
}

// GetConversionInfluence measures how many identities that subscribed in
// the range viewed the grimoire strictly before their first subscription in
// the range. Test accounts are excluded from every input. The medians use
// only journeys ordered grimoire <= signup <= subscription; other orderings
// are left out rather than corrected.
func (db *DB) GetConversionInfluence(ctx context.Context, rng models.DateRange) (*models.ConversionInfluence, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("conversion_influence", time.Now())

	stmt := db.conversionInfluenceStatement(rng)

	out := &models.ConversionInfluence{}
	var medianGrimoireToSignup, medianSignupToSub sql.NullFloat64
	if err := db.queryRow(ctx, "conversion_influence", stmt,
		&out.Subscribers, &out.SubscribersWithGrimoire, &out.ConsistentJourneys,
		&medianGrimoireToSignup, &medianSignupToSub); err != nil {
		return nil, err
	}
	out.InfluenceRate = percentage(out.SubscribersWithGrimoire, out.Subscribers)
	out.MedianDaysGrimoireToSignup = nullableRounded(medianGrimoireToSignup)
	out.MedianDaysSignupToSubscription = nullableRounded(medianSignupToSub)
	return out, nil
}

func (db *DB) conversionInfluenceStatement(rng models.DateRange) query.Statement {
	subs := daysView([]string{models.EventSubscriptionStarted}, rng.StartDay(), rng.EndDay())
	subs.ExcludeTestAccounts = true
	grimoire := historyView([]string{models.EventGrimoireViewed}, rng.EndDay())
	grimoire.ExcludeTestAccounts = true
	signups := historyView([]string{models.EventSignupCompleted}, rng.EndDay())
	signups.ExcludeTestAccounts = true

	b := query.NewWithBuilder()
	db.withCanonicalView(b, "subscription_events", subs)
	db.withCanonicalView(b, "grimoire_events", grimoire)
	db.withCanonicalView(b, "signup_events", signups)
	b.CTE("subs", `
SELECT identity, MIN(created_at) AS sub_at
FROM subscription_events
WHERE identity IS NOT NULL
GROUP BY identity`)
	b.CTE("grimoire_first", `
SELECT identity, MIN(created_at) AS first_grimoire_at
FROM grimoire_events
WHERE identity IS NOT NULL
GROUP BY identity`)
	b.CTE("signup_first", `
SELECT identity, MIN(created_at) AS signup_at
FROM signup_events
WHERE identity IS NOT NULL
GROUP BY identity`)
	b.CTE("journeys", `
SELECT
	s.identity,
	s.sub_at,
	g.first_grimoire_at,
	u.signup_at,
	COALESCE(g.first_grimoire_at < s.sub_at, false) AS grimoire_before,
	COALESCE(g.first_grimoire_at <= u.signup_at AND u.signup_at <= s.sub_at, false) AS consistent
FROM subs s
LEFT JOIN grimoire_first g ON g.identity = s.identity
LEFT JOIN signup_first u ON u.identity = s.identity`)
	return b.Select(`
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE grimoire_before),
	COUNT(*) FILTER (WHERE consistent),
	quantile_cont(CASE WHEN consistent THEN (epoch(signup_at) - epoch(first_grimoire_at)) / 86400.0 END, 0.5),
	quantile_cont(CASE WHEN consistent THEN (epoch(sub_at) - epoch(signup_at)) / 86400.0 END, 0.5)
FROM journeys`)
}

// GetGrimoireHealth reports how the grimoire brings in and keeps readers:
// entry rate (new identities whose first active day includes a grimoire
// view), distinct grimoire pages per active identity including those with
// none, and the share of grimoire readers who came back on a second day.
func (db *DB) GetGrimoireHealth(ctx context.Context, rng models.DateRange) (*models.GrimoireHealth, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("grimoire_health", time.Now())

	startDay, endDay := rng.StartDay(), rng.EndDay()

	b := query.NewWithBuilder()
	db.withCanonicalView(b, "activity_events", historyView(db.engine.ActivityEventTypes, endDay))
	db.withCanonicalView(b, "grimoire_events", daysView([]string{models.EventGrimoireViewed}, startDay, endDay))
	b.CTE("first_seen", `
SELECT identity, MIN(day) AS first_day
FROM activity_events
WHERE identity IS NOT NULL
GROUP BY identity`)
	b.CTE("active", `
SELECT DISTINCT identity
FROM activity_events
WHERE identity IS NOT NULL
	AND day >= CAST(? AS DATE)`, startDay)
	b.CTE("grimoire_days", `
SELECT DISTINCT identity, day
FROM grimoire_events
WHERE identity IS NOT NULL`)
	b.CTE("pages_per_active", `
SELECT
	a.identity,
	COUNT(DISTINCT CASE
		WHEN g.identity IS NOT NULL THEN COALESCE(NULLIF(g.entity_id, ''), NULLIF(g.page_path, ''), '')
	END) AS pages
FROM active a
LEFT JOIN grimoire_events g ON g.identity = a.identity
GROUP BY a.identity`)
	b.CTE("grimoire_readers", `
SELECT identity, COUNT(*) AS grimoire_day_count
FROM grimoire_days
GROUP BY identity`)
	stmt := b.Select(`
SELECT
	(SELECT COUNT(*) FROM first_seen WHERE first_day >= CAST(? AS DATE)),
	(SELECT COUNT(*) FROM first_seen f
		WHERE f.first_day >= CAST(? AS DATE)
		AND EXISTS (SELECT 1 FROM grimoire_days gd WHERE gd.identity = f.identity AND gd.day = f.first_day)),
	(SELECT COUNT(*) FROM active),
	(SELECT COALESCE(AVG(pages), 0) FROM pages_per_active),
	(SELECT COUNT(*) FROM grimoire_readers),
	(SELECT COUNT(*) FROM grimoire_readers WHERE grimoire_day_count >= 2)`, startDay, startDay)

	out := &models.GrimoireHealth{}
	var avgPages float64
	if err := db.queryRow(ctx, "grimoire_health", stmt,
		&out.NewUsers, &out.GrimoireEntryUsers, &out.ActiveUsers, &avgPages,
		&out.GrimoireUsers, &out.ReturningGrimoire); err != nil {
		return nil, err
	}
	out.GrimoireEntryRate = percentage(out.GrimoireEntryUsers, out.NewUsers)
	out.ViewsPerActiveUser = roundToDecimals(avgPages, 2)
	out.ReturnToGrimoireRate = percentage(out.ReturningGrimoire, out.GrimoireUsers)

	influence, err := db.GetConversionInfluence(ctx, rng)
	if err != nil {
		return nil, err
	}
	out.Influence = *influence
	return out, nil
}

// GetFeatureAdoption reports, for every configured feature event type, how
// many identities in the 30-day window ending on the range end used it, as a
// share of MAU. Only identities counted in MAU are counted as adopters, so
// rates stay within 0..100.
func (db *DB) GetFeatureAdoption(ctx context.Context, rng models.DateRange) (*models.FeatureAdoption, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("feature_adoption", time.Now())

	window := models.TrailingDays(rng.End, models.MAUWindowDays)
	features := db.engine.FeatureEventTypes

	b := query.NewWithBuilder()
	db.withCanonicalView(b, "activity_events", daysView(db.engine.ActivityEventTypes, window.StartDay(), window.EndDay()))
	db.withCanonicalView(b, "feature_events", daysView(features, window.StartDay(), window.EndDay()))
	b.CTE("mau", `
SELECT DISTINCT identity
FROM activity_events
WHERE identity IS NOT NULL`)
	stmt := b.Select(`
SELECT f.event_type, COUNT(DISTINCT f.identity)
FROM feature_events f
JOIN mau m ON m.identity = f.identity
GROUP BY f.event_type
UNION ALL
SELECT NULL, COUNT(*) FROM mau`)

	// The row with a NULL event type carries MAU.
	type typeCount struct {
		eventType sql.NullString
		users     int
	}
	rows, err := queryAndScan(ctx, db, "feature_adoption", stmt, func(rows *sql.Rows) (typeCount, error) {
		var c typeCount
		err := rows.Scan(&c.eventType, &c.users)
		return c, err
	})
	if err != nil {
		return nil, err
	}

	out := &models.FeatureAdoption{Features: make([]models.FeatureUsage, 0, len(features))}
	usersByType := make(map[string]int, len(rows))
	for _, r := range rows {
		if !r.eventType.Valid {
			out.MAU = r.users
			continue
		}
		usersByType[r.eventType.String] = r.users
	}
	for _, raw := range features {
		eventType, _ := models.CanonicalEventType(raw)
		users := usersByType[eventType]
		out.Features = append(out.Features, models.FeatureUsage{
			EventType:    eventType,
			Users:        users,
			AdoptionRate: percentage(users, out.MAU),
		})
	}
	return out, nil
}
