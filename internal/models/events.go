// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

// Package models provides the data structures shared by the store, the
// engine and the HTTP API: raw events, date ranges and metric results.
package models

import (
	"net/url"
	"sort"
	"strings"
	"time"
)

// Canonical event types.
const (
	EventAppOpened             = "app_opened"
	EventProductOpened         = "product_opened"
	EventPageViewed            = "page_viewed"
	EventGrimoireViewed        = "grimoire_viewed"
	EventChartViewed           = "chart_viewed"
	EventDailyDashboardViewed  = "daily_dashboard_viewed"
	EventAstralChatUsed        = "astral_chat_used"
	EventTarotDrawn            = "tarot_drawn"
	EventRitualStarted         = "ritual_started"
	EventHoroscopeViewed       = "horoscope_viewed"
	EventReflectionSaved       = "reflection_saved"
	EventSignupCompleted       = "signup_completed"
	EventSubscriptionStarted   = "subscription_started"
	EventSubscriptionCancelled = "subscription_cancelled"
	EventTrialStarted          = "trial_started"
)

// legacyEventTypes maps retired event names to their canonical replacement.
var legacyEventTypes = map[string]string{
	"birth_chart_viewed": EventChartViewed,
	"dashboard_viewed":   EventDailyDashboardViewed,
	"ai_chat":            EventAstralChatUsed,
	"tarot_viewed":       EventTarotDrawn,
	"ritual_view":        EventRitualStarted,
	"signup":             EventSignupCompleted,
	"trial_converted":    EventSubscriptionStarted,
}

// CanonicalEventType trims raw and maps legacy names. legacy is the original
// name when a mapping applied, else "".
func CanonicalEventType(raw string) (canonical, legacy string) {
	value := strings.TrimSpace(raw)
	if mapped, ok := legacyEventTypes[value]; ok {
		return mapped, value
	}
	return value, ""
}

// ExpandEventTypes returns the canonical types plus every legacy alias that
// maps onto one of them, sorted and de-duplicated. Store filters use it so
// rows written before canonicalisation still count.
func ExpandEventTypes(types []string) []string {
	seen := make(map[string]struct{}, len(types)*2)
	for _, t := range types {
		canonical, _ := CanonicalEventType(t)
		if canonical == "" {
			continue
		}
		seen[canonical] = struct{}{}
		for legacy, target := range legacyEventTypes {
			if target == canonical {
				seen[legacy] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// LegacyAliases returns the legacy to canonical mapping sorted by legacy name.
func LegacyAliases() [][2]string {
	out := make([][2]string, 0, len(legacyEventTypes))
	for legacy, canonical := range legacyEventTypes {
		out = append(out, [2]string{legacy, canonical})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// Event is one row of the append-only event log.
type Event struct {
	ID          string                 `json:"id"`
	EventType   string                 `json:"event_type"`
	CreatedAt   time.Time              `json:"created_at"`
	UserID      string                 `json:"user_id,omitempty"`
	AnonymousID string                 `json:"anonymous_id,omitempty"`
	UserEmail   string                 `json:"user_email,omitempty"`
	PagePath    string                 `json:"page_path,omitempty"`
	EntityID    string                 `json:"entity_id,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Metadata keys promoted to their own columns.
const (
	MetaReferrer   = "referrer"
	MetaUTMSource  = "utm_source"
	MetaOriginType = "origin_type"
)

// blockedMetadataKeys never reach the store; they can hold user-authored text.
var blockedMetadataKeys = map[string]struct{}{
	"message": {}, "messages": {}, "prompt": {}, "completion": {},
	"input": {}, "output": {}, "text": {}, "content": {},
	"conversation": {}, "thread": {}, "assistant": {}, "response": {},
}

// SanitizeMetadata keeps primitive values only and drops blocked keys.
// "referer" is folded into "referrer". The canonical and legacy event types
// are recorded for auditability.
func SanitizeMetadata(in map[string]interface{}, canonical, legacy string) map[string]interface{} {
	out := make(map[string]interface{}, len(in)+2)
	for k, v := range in {
		if _, blocked := blockedMetadataKeys[k]; blocked {
			continue
		}
		switch v.(type) {
		case string, bool, float64, float32, int, int64, int32, nil:
		default:
			continue
		}
		if k == "referer" {
			if _, ok := in[MetaReferrer]; ok {
				continue
			}
			k = MetaReferrer
		}
		out[k] = v
	}
	out["canonical_event_type"] = canonical
	if legacy != "" {
		out["legacy_event_type"] = legacy
	}
	return out
}

// MetadataString returns md[key] when it is a non-empty string.
func MetadataString(md map[string]interface{}, key string) string {
	if s, ok := md[key].(string); ok {
		return s
	}
	return ""
}

// NormalizePath accepts a pathname or a full URL and returns the pathname
// without query, fragment or trailing slash.
func NormalizePath(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	path := trimmed
	if u, err := url.Parse(trimmed); err == nil && u.Scheme != "" && u.Host != "" {
		path = u.Path
	} else {
		if i := strings.IndexAny(path, "?#"); i >= 0 {
			path = path[:i]
		}
	}
	path = strings.TrimRight(path, "/")
	if path == "" {
		return "/"
	}
	return path
}

// GrimoireEntityID derives a stable slug from a grimoire page path:
// /grimoire/houses/mars -> houses/mars. The grimoire index has no slug.
func GrimoireEntityID(pagePath string) string {
	if !strings.HasPrefix(pagePath, "/grimoire") {
		return ""
	}
	rest := strings.TrimPrefix(pagePath, "/grimoire")
	if rest != "" && !strings.HasPrefix(rest, "/") {
		return ""
	}
	return strings.Trim(rest, "/")
}

// Normalize returns a copy of e ready to be stored: trimmed ids, lower-case
// email, canonical event type, normalised path, grimoire slug and sanitised
// metadata. CreatedAt is converted to UTC.
func (e Event) Normalize() Event {
	canonical, legacy := CanonicalEventType(e.EventType)
	out := e
	out.EventType = canonical
	out.UserID = strings.TrimSpace(e.UserID)
	out.AnonymousID = strings.TrimSpace(e.AnonymousID)
	out.UserEmail = strings.ToLower(strings.TrimSpace(e.UserEmail))
	out.PagePath = NormalizePath(e.PagePath)
	out.EntityID = strings.TrimSpace(e.EntityID)
	if canonical == EventGrimoireViewed && out.EntityID == "" {
		out.EntityID = GrimoireEntityID(out.PagePath)
	}
	out.CreatedAt = e.CreatedAt.UTC()
	out.Metadata = SanitizeMetadata(e.Metadata, canonical, legacy)
	return out
}
