// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/lunametrics/internal/database/query"
	"github.com/tomtom215/lunametrics/internal/identity"
	"github.com/tomtom215/lunametrics/internal/models"
)

// latestLinksCTE keeps the winning link per anonymous id. The ordering
// matches identity.Wins: greatest COALESCE(last_seen_at, first_seen_at),
// then greatest first_seen_at, then smallest user_id; nulls sort last.
const latestLinksCTE = `
SELECT anonymous_id, user_id
FROM (
	SELECT
		anonymous_id,
		user_id,
		ROW_NUMBER() OVER (
			PARTITION BY anonymous_id
			ORDER BY COALESCE(last_seen_at, first_seen_at) DESC NULLS LAST,
				first_seen_at DESC NULLS LAST,
				user_id ASC
		) AS rn
	FROM analytics_identity_links
	WHERE NULLIF(anonymous_id, '') IS NOT NULL
		AND NULLIF(user_id, '') IS NOT NULL
) ranked
WHERE rn = 1`

// canonicalView selects the event rows a metric is computed over and
// attaches the canonical identity and UTC day bucket to each of them.
//
// Columns: id, event_type (canonical), raw_event_type, created_at, day,
// user_id, anonymous_id, user_email, page_path, entity_id, referrer,
// utm_source, origin_type, identity, identity_link_applied, missing_identity.
// identity is NULL when the row has neither id.
type canonicalView struct {
	// EventTypes are canonical names; legacy aliases are matched too.
	// Empty means every type.
	EventTypes []string

	// From and Until bound created_at as [From, Until). Nil is unbounded.
	From  *time.Time
	Until *time.Time

	ExcludeTestAccounts bool

	// SignedInOnly keeps rows that carry a user id of their own.
	SignedInOnly bool
}

// daysView selects types over the whole UTC days fromDay..toDay.
func daysView(types []string, fromDay, toDay time.Time) canonicalView {
	from := models.Day(fromDay)
	until := models.Day(toDay).AddDate(0, 0, 1)
	return canonicalView{EventTypes: types, From: &from, Until: &until}
}

// historyView selects types from the first event up to and including toDay.
func historyView(types []string, toDay time.Time) canonicalView {
	until := models.Day(toDay).AddDate(0, 0, 1)
	return canonicalView{EventTypes: types, Until: &until}
}

// canonicalTypeExpr maps legacy names stored before canonicalisation.
func canonicalTypeExpr(column string) string {
	var sb strings.Builder
	sb.WriteString("CASE ")
	sb.WriteString(column)
	for _, alias := range models.LegacyAliases() {
		fmt.Fprintf(&sb, " WHEN '%s' THEN '%s'", alias[0], alias[1])
	}
	sb.WriteString(" ELSE ")
	sb.WriteString(column)
	sb.WriteString(" END")
	return sb.String()
}

// withCanonicalView adds latest_links (once) and the view as CTE name.
func (db *DB) withCanonicalView(b *query.WithBuilder, name string, v canonicalView) *query.WithBuilder {
	b.CTE("latest_links", latestLinksCTE)

	wb := query.NewWhereBuilder()
	wb.AddIn("e.event_type", models.ExpandEventTypes(v.EventTypes))
	wb.AddTimeRange("e.created_at", v.From, v.Until)
	if v.SignedInOnly {
		wb.AddClause("NULLIF(e.user_id, '') IS NOT NULL")
	}
	if v.ExcludeTestAccounts {
		db.addTestAccountFilter(wb, "e.user_email")
	}
	where, args := wb.Build()

	body := fmt.Sprintf(`
SELECT
	e.id,
	%s AS event_type,
	e.event_type AS raw_event_type,
	e.created_at,
	CAST(e.created_at AS DATE) AS day,
	e.user_id,
	e.anonymous_id,
	e.user_email,
	e.page_path,
	e.entity_id,
	e.referrer,
	e.utm_source,
	e.origin_type,
	CASE
		WHEN NULLIF(e.user_id, '') IS NOT NULL THEN '%s' || e.user_id
		WHEN ll.user_id IS NOT NULL THEN '%s' || ll.user_id
		WHEN NULLIF(e.anonymous_id, '') IS NOT NULL THEN '%s' || e.anonymous_id
	END AS identity,
	(NULLIF(e.user_id, '') IS NULL AND ll.user_id IS NOT NULL) AS identity_link_applied,
	(NULLIF(e.user_id, '') IS NULL AND NULLIF(e.anonymous_id, '') IS NULL) AS missing_identity
FROM conversion_events e
LEFT JOIN latest_links ll ON ll.anonymous_id = NULLIF(e.anonymous_id, '')
WHERE %s`,
		canonicalTypeExpr("e.event_type"),
		identity.UserPrefix, identity.UserPrefix, identity.AnonPrefix,
		where)

	return b.CTE(name, body, args...)
}

// addTestAccountFilter excludes rows whose email belongs to a test account.
// Rows without an email are kept.
func (db *DB) addTestAccountFilter(wb *query.WhereBuilder, column string) {
	domain := strings.ToLower(strings.TrimSpace(db.engine.TestEmailDomain))
	literal := strings.ToLower(strings.TrimSpace(db.engine.TestEmailLiteral))
	if domain != "" {
		wb.AddClause(fmt.Sprintf("NOT ends_with(LOWER(COALESCE(%s, '')), ?)", column), "@"+domain)
	}
	if literal != "" {
		wb.AddClause(fmt.Sprintf("LOWER(COALESCE(%s, '')) <> ?", column), literal)
	}
}

// activityTypes returns types, or the configured activity types when empty.
func (db *DB) activityTypes(types []string) []string {
	if len(types) == 0 {
		return db.engine.ActivityEventTypes
	}
	return types
}
