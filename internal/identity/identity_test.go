// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package identity

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func ts(day int) *time.Time {
	t := time.Date(2026, 1, day, 12, 0, 0, 0, time.UTC)
	return &t
}

func TestCanonical(t *testing.T) {
	snap := NewSnapshot([]Link{
		{AnonymousID: "a1", UserID: "u9", FirstSeenAt: ts(1), LastSeenAt: ts(2)},
	})

	tests := []struct {
		name        string
		userID      string
		anonID      string
		wantKey     string
		wantApplied bool
		wantMissing bool
	}{
		{"user id wins over link", "u1", "a1", "user:u1", false, false},
		{"link applied", "", "a1", "user:u9", true, false},
		{"unlinked anonymous", "", "a2", "anon:a2", false, false},
		{"neither id", "", "", "", false, true},
		{"empty strings are absent", "", "", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Canonical(tt.userID, tt.anonID, snap)
			if got.Key != tt.wantKey {
				t.Errorf("Key = %q, want %q", got.Key, tt.wantKey)
			}
			if got.LinkApplied != tt.wantApplied {
				t.Errorf("LinkApplied = %v, want %v", got.LinkApplied, tt.wantApplied)
			}
			if got.Missing != tt.wantMissing {
				t.Errorf("Missing = %v, want %v", got.Missing, tt.wantMissing)
			}
			if got.Resolved() == tt.wantMissing {
				t.Errorf("Resolved() = %v inconsistent with Missing", got.Resolved())
			}
		})
	}
}

func TestCanonicalNilSnapshot(t *testing.T) {
	got := Canonical("", "a1", nil)
	if got.Key != "anon:a1" || got.LinkApplied {
		t.Errorf("Canonical with nil snapshot = %+v", got)
	}
}

func TestSnapshotLatestLinkWins(t *testing.T) {
	tests := []struct {
		name  string
		links []Link
		want  string
	}{
		{
			name: "latest last_seen_at",
			links: []Link{
				{AnonymousID: "a", UserID: "old", FirstSeenAt: ts(1), LastSeenAt: ts(3)},
				{AnonymousID: "a", UserID: "new", FirstSeenAt: ts(2), LastSeenAt: ts(5)},
			},
			want: "new",
		},
		{
			name: "falls back to first_seen_at",
			links: []Link{
				{AnonymousID: "a", UserID: "x", FirstSeenAt: ts(4)},
				{AnonymousID: "a", UserID: "y", FirstSeenAt: ts(1), LastSeenAt: ts(3)},
			},
			want: "x",
		},
		{
			name: "undated link loses",
			links: []Link{
				{AnonymousID: "a", UserID: "undated"},
				{AnonymousID: "a", UserID: "dated", FirstSeenAt: ts(1)},
			},
			want: "dated",
		},
		{
			name: "tie on seen time prefers later first_seen_at",
			links: []Link{
				{AnonymousID: "a", UserID: "early", FirstSeenAt: ts(1), LastSeenAt: ts(6)},
				{AnonymousID: "a", UserID: "late", FirstSeenAt: ts(2), LastSeenAt: ts(6)},
			},
			want: "late",
		},
		{
			name: "full tie prefers smallest user id",
			links: []Link{
				{AnonymousID: "a", UserID: "zed", FirstSeenAt: ts(1), LastSeenAt: ts(6)},
				{AnonymousID: "a", UserID: "amy", FirstSeenAt: ts(1), LastSeenAt: ts(6)},
			},
			want: "amy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NewSnapshot(tt.links).Resolve("a")
			if !ok || got != tt.want {
				t.Errorf("Resolve = (%q, %v), want (%q, true)", got, ok, tt.want)
			}

			// order of input must not matter
			reversed := make([]Link, len(tt.links))
			for i, l := range tt.links {
				reversed[len(tt.links)-1-i] = l
			}
			if got2, _ := NewSnapshot(reversed).Resolve("a"); got2 != got {
				t.Errorf("reversed input resolved to %q, want %q", got2, got)
			}
		})
	}
}

func TestSnapshotIgnoresEmptyIDs(t *testing.T) {
	snap := NewSnapshot([]Link{
		{AnonymousID: "", UserID: "u1"},
		{AnonymousID: "a1", UserID: ""},
	})
	if snap.Len() != 0 {
		t.Errorf("Len() = %d, want 0", snap.Len())
	}
	if _, ok := snap.Resolve("a1"); ok {
		t.Error("link with empty user id must not resolve")
	}
	if _, ok := snap.Resolve(""); ok {
		t.Error("empty anonymous id must never resolve")
	}
}

func TestSnapshotConflicts(t *testing.T) {
	snap := NewSnapshot([]Link{
		{AnonymousID: "a1", UserID: "u1", FirstSeenAt: ts(1)},
		{AnonymousID: "a1", UserID: "u2", FirstSeenAt: ts(2)},
		{AnonymousID: "a1", UserID: "u2", FirstSeenAt: ts(3)},
		{AnonymousID: "a2", UserID: "u3", FirstSeenAt: ts(1)},
	})

	conflicts := snap.Conflicts()
	if len(conflicts) != 1 {
		t.Fatalf("Conflicts() = %d entries, want 1", len(conflicts))
	}
	c := conflicts[0]
	if c.AnonymousID != "a1" || len(c.UserIDs) != 2 || c.Winner != "u2" {
		t.Errorf("conflict = %+v", c)
	}
	if snap.Len() != 4 || snap.AnonymousIDs() != 2 {
		t.Errorf("Len/AnonymousIDs = %d/%d, want 4/2", snap.Len(), snap.AnonymousIDs())
	}
	if w := snap.Winners(); len(w) != 2 || w[0].AnonymousID != "a1" {
		t.Errorf("Winners() = %+v", w)
	}
}

func TestProperty_ResolutionIsPure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	buildLinks := func(days []int) []Link {
		links := make([]Link, 0, len(days))
		for i, d := range days {
			links = append(links, Link{
				AnonymousID: fmt.Sprintf("a%d", i%3),
				UserID:      fmt.Sprintf("u%d", d%5),
				FirstSeenAt: ts(1 + d%28),
				LastSeenAt:  ts(1 + (d*7)%28),
			})
		}
		return links
	}

	properties.Property("resolving twice against one snapshot yields the same identity", prop.ForAll(
		func(days []int, user, anon int) bool {
			snap := NewSnapshot(buildLinks(days))
			userID := ""
			if user%2 == 0 {
				userID = fmt.Sprintf("u%d", user)
			}
			anonID := fmt.Sprintf("a%d", anon%4)
			return Canonical(userID, anonID, snap) == Canonical(userID, anonID, snap)
		},
		gen.SliceOf(gen.IntRange(0, 100)),
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
	))

	properties.Property("link order does not change the winner", prop.ForAll(
		func(days []int) bool {
			links := buildLinks(days)
			reversed := make([]Link, len(links))
			for i, l := range links {
				reversed[len(links)-1-i] = l
			}
			a, b := NewSnapshot(links), NewSnapshot(reversed)
			for i := 0; i < 3; i++ {
				anon := fmt.Sprintf("a%d", i)
				ua, oka := a.Resolve(anon)
				ub, okb := b.Resolve(anon)
				if ua != ub || oka != okb {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	properties.TestingRun(t)
}
