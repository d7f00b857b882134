// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/lunametrics/internal/api"
	"github.com/tomtom215/lunametrics/internal/cache"
	"github.com/tomtom215/lunametrics/internal/config"
	"github.com/tomtom215/lunametrics/internal/database"
	"github.com/tomtom215/lunametrics/internal/logging"
	"github.com/tomtom215/lunametrics/internal/supervisor"
	"github.com/tomtom215/lunametrics/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("environment", cfg.Server.Environment).
		Strs("activity_event_types", cfg.Engine.ActivityEventTypes).
		Msg("Starting Lunametrics")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Lunametrics exited with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config) error {
	db, err := database.New(&cfg.Database, cfg.Engine)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	events, links, err := db.GetRecordCounts(context.Background())
	if err != nil {
		return fmt.Errorf("count records: %w", err)
	}
	logging.Info().
		Str("path", db.GetDatabasePath()).
		Int64("events", events).
		Int64("identity_links", links).
		Msg("Database initialized successfully")

	if cfg.Database.SeedMockData {
		logging.Info().Msg("Mock data seeding enabled (SEED_MOCK_DATA=true)")
		if err := db.SeedMockData(context.Background()); err != nil {
			return fmt.Errorf("seed mock data: %w", err)
		}
	}

	var resultCache cache.Cacher
	if cfg.Cache.Enabled {
		resultCache = cache.NewCacher(cache.Options{
			Type:     cache.Type(cfg.Cache.Type),
			TTL:      cfg.Cache.TTL,
			Capacity: cfg.Cache.Capacity,
		})
		defer resultCache.Close()
		logging.Info().Str("type", cfg.Cache.Type).Dur("ttl", cfg.Cache.TTL).Msg("Result cache enabled")
	} else {
		logging.Info().Msg("Result cache disabled (CACHE_ENABLED=false)")
	}

	handler := api.NewHandler(db, resultCache, cfg)
	router := api.NewRouter(handler, api.NewChiMiddlewareFromConfig(cfg))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	tree.AddDataService(services.NewCheckpointService(db, cfg.Database.CheckpointInterval))

	if resultCache != nil && cfg.Cache.WarmInterval > 0 {
		tree.AddBackgroundService(services.NewCacheWarmerService(db, resultCache, cfg.Cache.WarmInterval, cfg.Cache.WarmRangeDays))
		logging.Info().
			Dur("interval", cfg.Cache.WarmInterval).
			Int("range_days", cfg.Cache.WarmRangeDays).
			Msg("Overview cache warmer added")
	}

	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	watchLogLevel()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go clearCacheOnHangup(ctx, handler)

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	if err := awaitSupervisor(ctx, errCh); err != nil {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return nil
}

// awaitSupervisor blocks until the tree behind errCh stops. The channel
// carries exactly one value and is never closed, so it is received once.
// Cancellation is not reported as an error.
func awaitSupervisor(ctx context.Context, errCh <-chan error) error {
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for supervisor to finish...")
	case err := <-errCh:
		return filterCanceled(err)
	}
	return filterCanceled(<-errCh)
}

func filterCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// clearCacheOnHangup drops cached reports on SIGHUP, for operators who load
// events into the store from outside the process.
func clearCacheOnHangup(ctx context.Context, handler *api.Handler) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			handler.ClearCache()
		}
	}
}

// watchLogLevel re-applies the log level whenever the config file changes.
// Other settings need a restart.
func watchLogLevel() {
	path := config.FindConfigFile()
	if path == "" {
		return
	}
	err := config.WatchConfigFile(path, func() {
		reloaded, err := config.Load()
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Ignoring invalid config change")
			return
		}
		logging.SetLevelString(reloaded.Logging.Level)
		logging.Info().Str("level", reloaded.Logging.Level).Msg("Log level reloaded")
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable")
		return
	}
	logging.Debug().Str("path", path).Msg("Watching config file")
}
