// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package anomaly

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/lunametrics/internal/metrics"
	"github.com/tomtom215/lunametrics/internal/models"
)

func wellFormed() Inputs {
	return Inputs{
		DAU: 10, WAU: 40, MAU: 100,
		ReturningDAU: 6, ReturningWAU: 20, ReturningMAU: 55,
		ReturningUsersRange: 70, DistinctCanonical: 100,
	}
}

func ruleIDs(findings []Finding) []string {
	ids := make([]string, 0, len(findings))
	for _, f := range findings {
		ids = append(ids, f.RuleID)
	}
	return ids
}

func TestEvaluateWellFormedIsEmpty(t *testing.T) {
	findings := Evaluate(DefaultRules(), wellFormed())
	if findings == nil || len(findings) != 0 {
		t.Fatalf("Evaluate(well-formed) = %v, want empty non-nil slice", findings)
	}
	if msgs := Messages(findings); len(msgs) != 0 {
		t.Errorf("Messages = %v, want empty", msgs)
	}
}

func TestEvaluateEachRule(t *testing.T) {
	productMAU := 150

	tests := []struct {
		name   string
		mutate func(*Inputs)
		want   string
	}{
		{"dau over wau", func(in *Inputs) { in.DAU = 41 }, RuleDAUExceedsWAU},
		{"wau over mau", func(in *Inputs) { in.WAU = 101 }, RuleWAUExceedsMAU},
		{"returning dau over dau", func(in *Inputs) { in.ReturningDAU = 11 }, RuleReturningDAUExceedsDAU},
		{"returning wau over wau", func(in *Inputs) { in.ReturningWAU = 41 }, RuleReturningWAUExceedsWAU},
		{"returning mau over mau", func(in *Inputs) { in.ReturningMAU = 101 }, RuleReturningMAUExceedsMAU},
		{"returning range over mau", func(in *Inputs) { in.ReturningUsersRange = 101 }, RuleReturningRangeExceedsMAU},
		{"distinct canonical differs", func(in *Inputs) { in.DistinctCanonical = 99 }, RuleDistinctCanonicalNotMAU},
		{"signed-in product over app", func(in *Inputs) { in.SignedInProductMAU = &productMAU }, RuleSignedInProductExceedsAppMAU},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := wellFormed()
			tt.mutate(&in)

			before := testutil.ToFloat64(metrics.EngineAnomaliesTotal.WithLabelValues(tt.want))
			findings := Evaluate(DefaultRules(), in)
			ids := ruleIDs(findings)
			if len(ids) != 1 || ids[0] != tt.want {
				t.Fatalf("rules = %v, want [%s]", ids, tt.want)
			}
			if findings[0].Message == "" {
				t.Error("finding has empty message")
			}
			after := testutil.ToFloat64(metrics.EngineAnomaliesTotal.WithLabelValues(tt.want))
			if after != before+1 {
				t.Errorf("anomaly counter moved %v -> %v, want +1", before, after)
			}
		})
	}
}

func TestSignedInProductRuleSkippedWithoutInput(t *testing.T) {
	in := wellFormed()
	in.SignedInProductMAU = nil
	for _, f := range Evaluate(DefaultRules(), in) {
		if f.RuleID == RuleSignedInProductExceedsAppMAU {
			t.Fatal("rule must not fire without a signed-in product figure")
		}
	}
}

func TestEvaluatePreservesRuleOrder(t *testing.T) {
	in := Inputs{DAU: 5, WAU: 3, MAU: 2, ReturningDAU: 9}
	got := ruleIDs(Evaluate(DefaultRules(), in))
	want := []string{RuleDAUExceedsWAU, RuleWAUExceedsMAU, RuleReturningDAUExceedsDAU}
	for i, id := range want {
		if i >= len(got) || got[i] != id {
			t.Fatalf("rules = %v, want prefix %v", got, want)
		}
	}
}

func TestEvaluateCustomRule(t *testing.T) {
	rules := append(DefaultRules(), Rule{
		ID:       "mau_empty",
		Severity: SeverityWarning,
		Violated: func(in Inputs) bool { return in.MAU == 0 },
	})
	findings := Evaluate(rules, Inputs{})
	if len(findings) != 1 || findings[0].RuleID != "mau_empty" || findings[0].Message != "mau_empty" {
		t.Errorf("findings = %+v", findings)
	}
}

func TestEngagedWarnings(t *testing.T) {
	app := models.WindowCounts{DAU: 3, WAU: 8, MAU: 20}

	tests := []struct {
		name       string
		engaged    models.WindowCounts
		keyActions []string
		wantCount  int
		wantText   string
	}{
		{"distinct from app", models.WindowCounts{DAU: 1, WAU: 4, MAU: 9}, []string{"tarot_drawn"}, 0, ""},
		{"matches app", app, []string{"tarot_drawn"}, 1, "mis-scoped"},
		{"includes app_opened", app, []string{"app_opened", "tarot_drawn"}, 2, "include app_opened"},
		{"one window equal is fine", models.WindowCounts{DAU: 3, WAU: 7, MAU: 19}, []string{"tarot_drawn"}, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EngagedWarnings(tt.engaged, app, tt.keyActions)
			if len(got) != tt.wantCount {
				t.Fatalf("warnings = %v, want %d", got, tt.wantCount)
			}
			if tt.wantText != "" && !strings.Contains(strings.Join(got, "|"), tt.wantText) {
				t.Errorf("warnings %v missing %q", got, tt.wantText)
			}
		})
	}

	if got := EngagedWarnings(models.WindowCounts{}, models.WindowCounts{}, nil); len(got) != 0 {
		t.Errorf("empty app windows should not warn: %v", got)
	}
}
