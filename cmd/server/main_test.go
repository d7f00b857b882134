// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/tomtom215/lunametrics/internal/supervisor"
)

func awaitWithin(t *testing.T, ctx context.Context, errCh <-chan error) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- awaitSupervisor(ctx, errCh) }()
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("awaitSupervisor still blocked")
		return nil
	}
}

func TestAwaitSupervisor_ReturnsAfterShutdown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	if err != nil {
		t.Fatalf("NewSupervisorTree: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)
	time.AfterFunc(50*time.Millisecond, cancel)

	if err := awaitWithin(t, ctx, errCh); err != nil {
		t.Errorf("err = %v, want nil on cancellation", err)
	}
}

func TestAwaitSupervisor_SingleValueChannel(t *testing.T) {
	t.Run("tree failure before cancel", func(t *testing.T) {
		treeErr := errors.New("restart budget exhausted")
		errCh := make(chan error, 1)
		errCh <- treeErr

		if err := awaitWithin(t, context.Background(), errCh); !errors.Is(err, treeErr) {
			t.Errorf("err = %v, want %v", err, treeErr)
		}
	})

	t.Run("cancel then tree stops", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		errCh := make(chan error, 1)
		errCh <- context.Canceled

		if err := awaitWithin(t, ctx, errCh); err != nil {
			t.Errorf("err = %v, want nil", err)
		}
	})
}
