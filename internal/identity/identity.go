// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

// Package identity resolves raw event ids to one canonical identity.
//
// Resolution is a pure function of (user id, anonymous id, link snapshot).
// A snapshot is built once per query from the identity link table and
// keeps, per anonymous id, the most recently seen link. Historical events
// are resolved against the snapshot taken at query time, not against the
// links that existed when the event happened.
//
// Winner ordering for links sharing an anonymous id:
//
//  1. greatest COALESCE(last_seen_at, first_seen_at); both null sorts last
//  2. greatest first_seen_at; null sorts last
//  3. smallest user_id
//
// The canonical view in the database package uses the same ordering.
package identity

import (
	"sort"
	"time"
)

// Canonical key prefixes.
const (
	UserPrefix = "user:"
	AnonPrefix = "anon:"
)

// Link maps an anonymous id to a user id. Rows are appended, never updated.
type Link struct {
	AnonymousID string     `json:"anonymous_id"`
	UserID      string     `json:"user_id"`
	FirstSeenAt *time.Time `json:"first_seen_at,omitempty"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
}

// seenAt is COALESCE(last_seen_at, first_seen_at).
func (l Link) seenAt() *time.Time {
	if l.LastSeenAt != nil {
		return l.LastSeenAt
	}
	return l.FirstSeenAt
}

// valid reports whether both ids are present. Exactly "" counts as absent.
func (l Link) valid() bool {
	return l.AnonymousID != "" && l.UserID != ""
}

// compareDesc orders nil after any value and later times first.
// It returns -1 when a sorts before b.
func compareDesc(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.After(*b):
		return -1
	case a.Before(*b):
		return 1
	default:
		return 0
	}
}

// Wins reports whether a beats b for the same anonymous id.
func Wins(a, b Link) bool {
	if c := compareDesc(a.seenAt(), b.seenAt()); c != 0 {
		return c < 0
	}
	if c := compareDesc(a.FirstSeenAt, b.FirstSeenAt); c != 0 {
		return c < 0
	}
	return a.UserID < b.UserID
}

// Snapshot is an immutable view of the link table.
type Snapshot struct {
	winners map[string]Link
	users   map[string]map[string]struct{}
	total   int
}

// NewSnapshot builds a snapshot from links in any order. Links missing
// either id are ignored.
func NewSnapshot(links []Link) *Snapshot {
	s := &Snapshot{
		winners: make(map[string]Link, len(links)),
		users:   make(map[string]map[string]struct{}, len(links)),
	}
	for _, l := range links {
		if !l.valid() {
			continue
		}
		s.total++
		if cur, ok := s.winners[l.AnonymousID]; !ok || Wins(l, cur) {
			s.winners[l.AnonymousID] = l
		}
		set, ok := s.users[l.AnonymousID]
		if !ok {
			set = make(map[string]struct{}, 1)
			s.users[l.AnonymousID] = set
		}
		set[l.UserID] = struct{}{}
	}
	return s
}

// Resolve returns the linked user id for anonymousID.
func (s *Snapshot) Resolve(anonymousID string) (string, bool) {
	if s == nil || anonymousID == "" {
		return "", false
	}
	l, ok := s.winners[anonymousID]
	if !ok {
		return "", false
	}
	return l.UserID, true
}

// Len is the number of valid link rows in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return s.total
}

// AnonymousIDs is the number of distinct linked anonymous ids.
func (s *Snapshot) AnonymousIDs() int {
	if s == nil {
		return 0
	}
	return len(s.winners)
}

// Winners returns the winning link of every anonymous id, sorted by anonymous id.
func (s *Snapshot) Winners() []Link {
	if s == nil {
		return nil
	}
	out := make([]Link, 0, len(s.winners))
	for _, l := range s.winners {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnonymousID < out[j].AnonymousID })
	return out
}

// Conflict is an anonymous id that has been linked to several users.
type Conflict struct {
	AnonymousID string   `json:"anonymous_id"`
	UserIDs     []string `json:"user_ids"`
	Winner      string   `json:"winner"`
}

// Conflicts lists anonymous ids linked to more than one distinct user id.
func (s *Snapshot) Conflicts() []Conflict {
	if s == nil {
		return nil
	}
	var out []Conflict
	for anon, set := range s.users {
		if len(set) < 2 {
			continue
		}
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out = append(out, Conflict{AnonymousID: anon, UserIDs: ids, Winner: s.winners[anon].UserID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnonymousID < out[j].AnonymousID })
	return out
}

// Resolution is the canonical identity of one event.
type Resolution struct {
	// Key is "user:<id>", "anon:<id>" or "" when the event has no identity.
	Key string `json:"key"`

	// LinkApplied is true when the event had no user id and a link supplied one.
	LinkApplied bool `json:"identity_link_applied"`

	// Missing is true when the event had neither id.
	Missing bool `json:"missing_identity"`
}

// Resolved reports whether the event maps to an identity.
func (r Resolution) Resolved() bool {
	return r.Key != ""
}

// Canonical resolves one event. It never fails; an event without ids
// resolves to an empty key and is flagged Missing.
func Canonical(userID, anonymousID string, snap *Snapshot) Resolution {
	if userID != "" {
		return Resolution{Key: UserPrefix + userID}
	}
	if anonymousID == "" {
		return Resolution{Missing: true}
	}
	if linked, ok := snap.Resolve(anonymousID); ok {
		return Resolution{Key: UserPrefix + linked, LinkApplied: true}
	}
	return Resolution{Key: AnonPrefix + anonymousID}
}
