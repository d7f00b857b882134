// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package database

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/tomtom215/lunametrics/internal/identity"
	"github.com/tomtom215/lunametrics/internal/logging"
	"github.com/tomtom215/lunametrics/internal/models"
)

// SeedMockData fills the store with a reproducible demo dataset ending on
// the current UTC day: signed-in and anonymous visitors, identity links, a
// few legacy event names, test accounts and weekly snapshots.
// It is intended for local demos and screenshot runs only.
func (db *DB) SeedMockData(ctx context.Context) error {
	logging.Info().Msg("Seeding database with mock engagement data...")

	const (
		numUsers       = 40
		numAnonymous   = 25
		daysOfHistory  = 45
		numTestAccount = 3
	)
	rng := rand.New(rand.NewSource(20260301)) //nolint:gosec // demo data
	today := models.Day(time.Now())
	first := today.AddDate(0, 0, -(daysOfHistory - 1))

	features := []string{
		models.EventChartViewed, models.EventDailyDashboardViewed, models.EventAstralChatUsed,
		models.EventTarotDrawn, models.EventRitualStarted, models.EventHoroscopeViewed,
		// legacy names, as written by older clients
		"birth_chart_viewed", "ai_chat",
	}
	grimoirePages := []string{
		"/grimoire", "/grimoire/houses/mars", "/grimoire/tarot/the-moon",
		"/grimoire/crystals/amethyst", "/grimoire/zodiac/scorpio",
	}
	referrers := []string{"", "https://www.google.com/", "https://lunary.app/grimoire", "https://duckduckgo.com/"}

	at := func(day time.Time) time.Time {
		return day.Add(time.Duration(rng.Intn(24*60)) * time.Minute)
	}

	var events []models.Event
	var links []identity.Link

	for u := 0; u < numUsers; u++ {
		userID := fmt.Sprintf("seed-user-%02d", u)
		email := fmt.Sprintf("reader%02d@example.com", u)
		if u < numTestAccount {
			email = fmt.Sprintf("qa%02d@test.lunary.app", u)
		}
		anonID := fmt.Sprintf("seed-anon-u%02d", u)
		joined := first.AddDate(0, 0, rng.Intn(daysOfHistory))
		activity := 0.15 + rng.Float64()*0.6

		// Pre-signup grimoire reading under the anonymous id.
		if rng.Intn(2) == 0 {
			events = append(events, models.Event{
				EventType:   models.EventGrimoireViewed,
				CreatedAt:   at(joined),
				AnonymousID: anonID,
				PagePath:    grimoirePages[rng.Intn(len(grimoirePages))],
				Metadata:    map[string]interface{}{models.MetaReferrer: referrers[rng.Intn(len(referrers))]},
			})
			seen := joined
			links = append(links, identity.Link{AnonymousID: anonID, UserID: userID, FirstSeenAt: &seen})
		}

		signup := joined.Add(time.Duration(1+rng.Intn(20)) * time.Hour)
		events = append(events, models.Event{
			EventType: models.EventSignupCompleted, CreatedAt: signup, UserID: userID, UserEmail: email,
		})
		if rng.Intn(4) == 0 {
			subDay := signup.AddDate(0, 0, rng.Intn(10))
			if !subDay.After(today) {
				events = append(events, models.Event{
					EventType: models.EventSubscriptionStarted, CreatedAt: subDay, UserID: userID, UserEmail: email,
				})
			}
		}

		for day := joined; !day.After(today); day = day.AddDate(0, 0, 1) {
			if !day.Equal(joined) && rng.Float64() > activity {
				continue
			}
			events = append(events, models.Event{
				EventType: models.EventAppOpened, CreatedAt: at(day), UserID: userID, UserEmail: email,
				Metadata: map[string]interface{}{models.MetaReferrer: referrers[rng.Intn(len(referrers))]},
			})
			if rng.Intn(3) == 0 {
				events = append(events, models.Event{
					EventType: models.EventProductOpened, CreatedAt: at(day), UserID: userID, UserEmail: email,
				})
			}
			if rng.Intn(2) == 0 {
				events = append(events, models.Event{
					EventType: features[rng.Intn(len(features))], CreatedAt: at(day), UserID: userID, UserEmail: email,
				})
			}
			if rng.Intn(4) == 0 {
				events = append(events, models.Event{
					EventType: models.EventGrimoireViewed, CreatedAt: at(day), UserID: userID,
					PagePath: grimoirePages[rng.Intn(len(grimoirePages))],
				})
			}
		}
	}

	for a := 0; a < numAnonymous; a++ {
		anonID := fmt.Sprintf("seed-anon-%02d", a)
		day := first.AddDate(0, 0, rng.Intn(daysOfHistory))
		visits := 1 + rng.Intn(3)
		for v := 0; v < visits && !day.After(today); v++ {
			events = append(events, models.Event{
				EventType: models.EventGrimoireViewed, CreatedAt: at(day), AnonymousID: anonID,
				PagePath: grimoirePages[rng.Intn(len(grimoirePages))],
				Metadata: map[string]interface{}{
					models.MetaReferrer:  referrers[rng.Intn(len(referrers))],
					models.MetaUTMSource: "newsletter",
				},
			})
			if rng.Intn(3) == 0 {
				events = append(events, models.Event{
					EventType: models.EventAppOpened, CreatedAt: at(day), AnonymousID: anonID,
				})
			}
			day = day.AddDate(0, 0, 1+rng.Intn(5))
		}
	}

	inserted, err := db.InsertEvents(ctx, events)
	if err != nil {
		return fmt.Errorf("failed to seed events: %w", err)
	}
	linked, err := db.AppendIdentityLinks(ctx, links)
	if err != nil {
		return fmt.Errorf("failed to seed identity links: %w", err)
	}

	for w := 1; w <= 4; w++ {
		weekStart := today.AddDate(0, 0, -7*w)
		year, week := weekStart.ISOWeek()
		snap := models.MetricSnapshot{
			PeriodType:        PeriodWeekly,
			PeriodKey:         fmt.Sprintf("%d-W%02d", year, week),
			NewSignups:        5 + rng.Intn(10),
			WAU:               15 + rng.Intn(20),
			NewTrials:         rng.Intn(6),
			ActiveSubscribers: 4 + rng.Intn(6),
			MRR:               float64(40+rng.Intn(60)) * 4.99,
			ActivationRate:    roundToDecimals(30+rng.Float64()*40, 2),
			ChurnRate:         roundToDecimals(rng.Float64()*8, 2),
			CreatedAt:         weekStart.AddDate(0, 0, 7),
		}
		if err := db.InsertMetricSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("failed to seed snapshots: %w", err)
		}
	}

	logging.Info().
		Int("events", inserted).
		Int("identity_links", linked).
		Msg("Mock engagement data seeded")
	return nil
}
