// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package models

import "time"

// WindowCounts holds distinct canonical identities active on the anchor day
// and in the 7- and 30-day windows ending on it.
type WindowCounts struct {
	AnchorDay time.Time `json:"anchor_day"`
	DAU       int       `json:"dau"`
	WAU       int       `json:"wau"`
	MAU       int       `json:"mau"`

	// StickinessDAUMAU is DAU/MAU as a percentage, 0 when MAU is 0.
	StickinessDAUMAU float64 `json:"stickiness_dau_mau"`

	// StickinessWAUMAU is WAU/MAU as a percentage, 0 when MAU is 0.
	StickinessWAUMAU float64 `json:"stickiness_wau_mau"`
}

// DailyActivePoint is one day of the active-user trend.
type DailyActivePoint struct {
	Day time.Time `json:"day"`
	DAU int       `json:"dau"`

	// ReturningDAU counts identities also active on any of the 30 preceding days.
	ReturningDAU int `json:"returning_dau"`
}

// UserSegments separates new users from the two notions of returning.
// A user can be both new and range-returning.
type UserSegments struct {
	// ActiveUsers is every identity active in the range.
	ActiveUsers int `json:"active_users"`

	// NewUsers first appeared (across all history) inside the range.
	NewUsers int `json:"new_users"`

	// ReturningUsersLifetime first appeared before the range start and were active in it.
	ReturningUsersLifetime int `json:"returning_users_lifetime"`

	// ReturningUsersRange have two or more distinct active days inside the range.
	ReturningUsersRange int `json:"returning_users_range"`
}

// ReferrerBreakdown attributes every range-returning identity to exactly one bucket.
type ReferrerBreakdown struct {
	Internal int `json:"internal"`
	Organic  int `json:"organic"`
	Direct   int `json:"direct"`
	Total    int `json:"total"`
}

// RetentionCohort is the set of identities first active on CohortDay.
// A nil offset has not been reached by the latest available day yet.
type RetentionCohort struct {
	CohortDay  time.Time `json:"cohort_day"`
	CohortSize int       `json:"cohort_size"`
	Day1       *float64  `json:"day_1"`
	Day7       *float64  `json:"day_7"`
	Day30      *float64  `json:"day_30"`
}

// RetentionReport lists cohorts whose first day falls in the range.
type RetentionReport struct {
	Cohorts []RetentionCohort `json:"cohorts"`

	// LatestDay is the last day bucket considered measurable.
	LatestDay time.Time `json:"latest_day"`

	// Weighted by cohort size over measurable cohorts only; nil if none.
	AverageDay1  *float64 `json:"average_day_1"`
	AverageDay7  *float64 `json:"average_day_7"`
	AverageDay30 *float64 `json:"average_day_30"`
}

// WindowOverlap counts identities active in the current window that were
// also active in the immediately preceding, non-overlapping window.
type WindowOverlap struct {
	AnchorDay        time.Time `json:"anchor_day"`
	WAU              int       `json:"wau"`
	ReturningWAU     int       `json:"returning_wau"`
	WAURetentionRate float64   `json:"wau_retention_rate"`
	MAU              int       `json:"mau"`
	ReturningMAU     int       `json:"returning_mau"`
	MAURetentionRate float64   `json:"mau_retention_rate"`
}

// ActiveDaysBucket is one histogram bar. MaxDays is 0 for the open bucket.
type ActiveDaysBucket struct {
	Label   string `json:"label"`
	MinDays int    `json:"min_days"`
	MaxDays int    `json:"max_days"`
	Users   int    `json:"users"`
}

// ActiveDaysDistribution buckets identities by distinct active days in range.
type ActiveDaysDistribution struct {
	Buckets       []ActiveDaysBucket `json:"buckets"`
	TotalUsers    int                `json:"total_users"`
	AvgActiveDays float64            `json:"avg_active_days"`
}

// EngagedReport compares key-action windows with app-open windows.
type EngagedReport struct {
	Engaged             WindowCounts `json:"engaged"`
	App                 WindowCounts `json:"app"`
	KeyActionEventTypes []string     `json:"key_action_event_types"`

	// EngagementRate is engaged MAU / app MAU as a percentage, nil when app MAU is 0.
	EngagementRate *float64 `json:"engagement_rate"`

	// MatchesApp is true when engaged DAU, WAU and MAU all equal the app figures.
	MatchesApp bool     `json:"matches_app"`
	Warnings   []string `json:"warnings"`
}

// GrimoireFunnel is the grimoire-to-app conversion inside the range.
type GrimoireFunnel struct {
	GrimoireUsers  int     `json:"grimoire_users"`
	ConvertedUsers int     `json:"converted_users"`
	ConversionRate float64 `json:"conversion_rate"`
}

// ConversionInfluence measures how often grimoire reading precedes a subscription.
type ConversionInfluence struct {
	Subscribers             int     `json:"subscribers"`
	SubscribersWithGrimoire int     `json:"subscribers_with_grimoire"`
	InfluenceRate           float64 `json:"influence_rate"`

	// Medians use only identities where grimoire <= signup <= subscription.
	ConsistentJourneys             int      `json:"consistent_journeys"`
	MedianDaysGrimoireToSignup     *float64 `json:"median_days_grimoire_to_signup"`
	MedianDaysSignupToSubscription *float64 `json:"median_days_signup_to_subscription"`
}

// GrimoireHealth summarises how the grimoire acquires and retains readers.
type GrimoireHealth struct {
	NewUsers             int     `json:"new_users"`
	GrimoireEntryUsers   int     `json:"grimoire_entry_users"`
	GrimoireEntryRate    float64 `json:"grimoire_entry_rate"`
	ActiveUsers          int     `json:"active_users"`
	ViewsPerActiveUser   float64 `json:"grimoire_views_per_active_user"`
	GrimoireUsers        int     `json:"grimoire_users"`
	ReturningGrimoire    int     `json:"returning_grimoire_users"`
	ReturnToGrimoireRate float64 `json:"return_to_grimoire_rate"`

	Influence ConversionInfluence `json:"conversion_influence"`
}

// FeatureUsage is one feature's reach in the trailing month.
type FeatureUsage struct {
	EventType    string  `json:"event_type"`
	Users        int     `json:"users"`
	AdoptionRate float64 `json:"adoption_rate"`
}

// FeatureAdoption reports feature reach as a share of MAU.
type FeatureAdoption struct {
	MAU      int            `json:"mau"`
	Features []FeatureUsage `json:"features"`
}

// AuditDiagnostics is the raw accounting behind a canonical count.
type AuditDiagnostics struct {
	EventTypes              []string   `json:"event_types"`
	Range                   DateRange  `json:"range"`
	RawEvents               int        `json:"raw_events_count"`
	DistinctCanonical       int        `json:"distinct_canonical_identities"`
	MissingIdentityRows     int        `json:"missing_identity_rows"`
	IdentityLinkAppliedRows int        `json:"identity_link_applied_rows"`
	LatestEventAt           *time.Time `json:"latest_event_at"`
}

// IdentityLinkAudit describes the health of the identity link table.
type IdentityLinkAudit struct {
	TotalLinks              int `json:"total_links"`
	DistinctAnonymousIDs    int `json:"distinct_anonymous_ids"`
	DistinctUsers           int `json:"distinct_users"`
	OrphanedLinks           int `json:"orphaned_links"`
	ConflictingAnonymousIDs int `json:"conflicting_anonymous_ids"`

	// AnonymousOnlyEvents carry an anonymous id but no user id; the share
	// resolved through a link is LinkCoverage.
	AnonymousOnlyEvents int     `json:"anonymous_only_events"`
	LinkResolvedEvents  int     `json:"link_resolved_events"`
	LinkCoverage        float64 `json:"link_coverage"`
}

// MetricSnapshot is a persisted weekly or monthly capture, read only here.
type MetricSnapshot struct {
	PeriodType        string    `json:"period_type"`
	PeriodKey         string    `json:"period_key"`
	NewSignups        int       `json:"new_signups"`
	WAU               int       `json:"wau"`
	NewTrials         int       `json:"new_trials"`
	ActiveSubscribers int       `json:"active_subscribers"`
	MRR               float64   `json:"mrr"`
	ActivationRate    float64   `json:"activation_rate"`
	ChurnRate         float64   `json:"churn_rate"`
	CreatedAt         time.Time `json:"created_at"`
}

// SnapshotComparison holds the two latest snapshots of a period type and
// the percentage change of each field (nil when the previous value is 0).
type SnapshotComparison struct {
	Current  *MetricSnapshot     `json:"current"`
	Previous *MetricSnapshot     `json:"previous"`
	Changes  map[string]*float64 `json:"changes"`
}

// EngagementOverview is the combined report plus the engine's self-diagnosis.
type EngagementOverview struct {
	Range        DateRange              `json:"range"`
	EventTypes   []string               `json:"event_types"`
	Windows      WindowCounts           `json:"windows"`
	ReturningDAU int                    `json:"returning_dau"`
	Trend        []DailyActivePoint     `json:"trend"`
	Segments     UserSegments           `json:"segments"`
	Referrers    ReferrerBreakdown      `json:"referrers"`
	Retention    RetentionReport        `json:"retention"`
	Overlap      WindowOverlap          `json:"overlap"`
	ActiveDays   ActiveDaysDistribution `json:"active_days"`
	Engaged      EngagedReport          `json:"engaged"`
	Funnel       GrimoireFunnel         `json:"grimoire_funnel"`
	Influence    ConversionInfluence    `json:"conversion_influence"`
	Audit        AuditDiagnostics       `json:"audit"`

	// Anomalies are violated consistency rules; they never alter the metrics above.
	Anomalies   []string  `json:"anomalies"`
	Warnings    []string  `json:"warnings"`
	GeneratedAt time.Time `json:"generated_at"`
}
