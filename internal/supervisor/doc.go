// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

/*
Package supervisor runs the long-lived services of the metrics server under
a suture v4 supervision tree.

# Layout

	lunametrics
	├── data-layer
	│   └── duckdb-checkpoint
	├── background-layer
	│   └── cache-warmer          (when a warm interval is configured)
	└── api-layer
	    └── http-server

Each layer counts failures on its own. A warmer that keeps failing backs off
inside background-layer while http-server keeps answering requests.

# Restart Policy

TreeConfig controls restart behavior; zero fields take the suture defaults
returned by DefaultTreeConfig:

	FailureThreshold  5     failures before backoff
	FailureDecay      30s   failure count half-life
	FailureBackoff    15s   pause once the threshold is crossed
	ShutdownTimeout   10s   per-service stop deadline

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	if err != nil {
	    return err
	}
	tree.AddDataService(services.NewCheckpointService(db, 5*time.Minute))
	tree.AddBackgroundService(services.NewCacheWarmerService(db, c, 10*time.Minute, 30))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor stopped")
	}

Services that outlive ShutdownTimeout are listed by UnstoppedServiceReport.

Supervisor events (start, failure, backoff) go through sutureslog to the slog
logger given to NewSupervisorTree, which main bridges to zerolog.
*/
package supervisor
