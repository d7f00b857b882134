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
	"github.com/tomtom215/lunametrics/internal/models"
)

// GetEngagedReport compares key-action windows with activity windows on the
// range end day. Identical windows produce a warning because the key-action
// set then adds nothing over plain app opens.
func (db *DB) GetEngagedReport(ctx context.Context, rng models.DateRange) (*models.EngagedReport, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("engaged", time.Now())

	keyActions := db.engine.KeyActionEventTypes
	anchor := rng.EndDay()

	var engaged, app *models.WindowCounts
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		engaged, err = db.GetWindowCounts(gctx, keyActions, anchor)
		return err
	})
	g.Go(func() (err error) {
		app, err = db.GetWindowCounts(gctx, db.engine.ActivityEventTypes, anchor)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &models.EngagedReport{
		Engaged:             *engaged,
		App:                 *app,
		KeyActionEventTypes: append([]string(nil), keyActions...),
		EngagementRate:      percentagePtr(engaged.MAU, app.MAU),
		MatchesApp:          engaged.DAU == app.DAU && engaged.WAU == app.WAU && engaged.MAU == app.MAU,
		Warnings:            anomaly.EngagedWarnings(*engaged, *app, keyActions),
	}, nil
}
