// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

// Package anomaly evaluates consistency rules over computed metrics.
//
// Rules are values in a table, so adding an invariant means appending a
// Rule rather than editing a function. Findings are advisory: they are
// reported next to the metrics and never change them.
package anomaly

import (
	"fmt"
	"strings"

	"github.com/tomtom215/lunametrics/internal/metrics"
	"github.com/tomtom215/lunametrics/internal/models"
)

// Severity indicates how suspicious a violation is.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rule identifiers, also used as the Prometheus label.
const (
	RuleDAUExceedsWAU                = "dau_exceeds_wau"
	RuleWAUExceedsMAU                = "wau_exceeds_mau"
	RuleReturningDAUExceedsDAU       = "returning_dau_exceeds_dau"
	RuleReturningWAUExceedsWAU       = "returning_wau_exceeds_wau"
	RuleReturningMAUExceedsMAU       = "returning_mau_exceeds_mau"
	RuleReturningRangeExceedsMAU     = "returning_range_exceeds_mau"
	RuleDistinctCanonicalNotMAU      = "distinct_canonical_not_mau"
	RuleSignedInProductExceedsAppMAU = "signed_in_product_exceeds_app_mau"
)

// Inputs are the already-computed figures the rules look at.
type Inputs struct {
	DAU int
	WAU int
	MAU int

	ReturningDAU        int
	ReturningWAU        int
	ReturningMAU        int
	ReturningUsersRange int

	// DistinctCanonical is the audit's distinct identity count over the MAU window.
	DistinctCanonical int

	// SignedInProductMAU is optional; the rule using it is skipped when nil.
	SignedInProductMAU *int
}

// Rule is one named invariant.
type Rule struct {
	ID       string
	Severity Severity
	Violated func(Inputs) bool
	Message  func(Inputs) string
}

// Finding is a violated rule.
type Finding struct {
	RuleID   string   `json:"rule_id"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// DefaultRules returns the standard battery in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:       RuleDAUExceedsWAU,
			Severity: SeverityCritical,
			Violated: func(in Inputs) bool { return in.DAU > in.WAU },
			Message: func(in Inputs) string {
				return fmt.Sprintf("DAU (%d) exceeds WAU (%d); the 7-day window is miscounted", in.DAU, in.WAU)
			},
		},
		{
			ID:       RuleWAUExceedsMAU,
			Severity: SeverityCritical,
			Violated: func(in Inputs) bool { return in.WAU > in.MAU },
			Message: func(in Inputs) string {
				return fmt.Sprintf("WAU (%d) exceeds MAU (%d); overlapping windows need review", in.WAU, in.MAU)
			},
		},
		{
			ID:       RuleReturningDAUExceedsDAU,
			Severity: SeverityCritical,
			Violated: func(in Inputs) bool { return in.ReturningDAU > in.DAU },
			Message: func(in Inputs) string {
				return fmt.Sprintf("returning DAU (%d) exceeds DAU (%d)", in.ReturningDAU, in.DAU)
			},
		},
		{
			ID:       RuleReturningWAUExceedsWAU,
			Severity: SeverityCritical,
			Violated: func(in Inputs) bool { return in.ReturningWAU > in.WAU },
			Message: func(in Inputs) string {
				return fmt.Sprintf("returning WAU overlap (%d) exceeds WAU (%d)", in.ReturningWAU, in.WAU)
			},
		},
		{
			ID:       RuleReturningMAUExceedsMAU,
			Severity: SeverityCritical,
			Violated: func(in Inputs) bool { return in.ReturningMAU > in.MAU },
			Message: func(in Inputs) string {
				return fmt.Sprintf("returning MAU overlap (%d) exceeds MAU (%d)", in.ReturningMAU, in.MAU)
			},
		},
		{
			ID:       RuleReturningRangeExceedsMAU,
			Severity: SeverityWarning,
			Violated: func(in Inputs) bool { return in.ReturningUsersRange > in.MAU },
			Message: func(in Inputs) string {
				return fmt.Sprintf("returning users in range (%d) exceed MAU (%d); the range is longer than the MAU window or identities are split",
					in.ReturningUsersRange, in.MAU)
			},
		},
		{
			ID:       RuleDistinctCanonicalNotMAU,
			Severity: SeverityWarning,
			Violated: func(in Inputs) bool { return in.DistinctCanonical != in.MAU },
			Message: func(in Inputs) string {
				return fmt.Sprintf("audit counts %d distinct canonical identities but MAU is %d", in.DistinctCanonical, in.MAU)
			},
		},
		{
			ID:       RuleSignedInProductExceedsAppMAU,
			Severity: SeverityWarning,
			Violated: func(in Inputs) bool {
				return in.SignedInProductMAU != nil && *in.SignedInProductMAU > in.MAU
			},
			Message: func(in Inputs) string {
				return fmt.Sprintf("signed-in product MAU (%d) exceeds app MAU (%d); review the canonical app_opened audit",
					*in.SignedInProductMAU, in.MAU)
			},
		},
	}
}

// Evaluate runs every rule and returns the violated ones in rule order.
// A well-formed input yields an empty, non-nil slice.
func Evaluate(rules []Rule, in Inputs) []Finding {
	findings := make([]Finding, 0)
	for _, r := range rules {
		if r.Violated == nil || !r.Violated(in) {
			continue
		}
		msg := r.ID
		if r.Message != nil {
			msg = r.Message(in)
		}
		metrics.RecordAnomaly(r.ID)
		findings = append(findings, Finding{RuleID: r.ID, Severity: r.Severity, Message: msg})
	}
	return findings
}

// Messages flattens findings into their human-readable strings.
func Messages(findings []Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Message)
	}
	return out
}

// EngagedWarnings flags a key-action set that counts exactly the same
// identities as app opens, which usually means it includes app_opened or
// another event every active user fires.
func EngagedWarnings(engaged, app models.WindowCounts, keyActions []string) []string {
	warnings := make([]string, 0)
	if app.MAU == 0 {
		return warnings
	}
	if engaged.DAU == app.DAU && engaged.WAU == app.WAU && engaged.MAU == app.MAU {
		warnings = append(warnings, fmt.Sprintf(
			"engaged DAU/WAU/MAU equal app DAU/WAU/MAU (%d/%d/%d); key action events [%s] are likely mis-scoped",
			app.DAU, app.WAU, app.MAU, strings.Join(keyActions, ", ")))
	}
	for _, t := range keyActions {
		if t == models.EventAppOpened {
			warnings = append(warnings, "key action events include app_opened; engaged users cannot differ from app users")
			break
		}
	}
	return warnings
}
