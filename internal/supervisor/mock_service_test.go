// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package supervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// stubService is a controllable suture.Service.
type stubService struct {
	name       string
	starts     atomic.Int32
	stops      atomic.Int32
	attempts   atomic.Int32
	failFirstN int32
	err        error
	mu         sync.Mutex
}

func newStubService(name string) *stubService {
	return &stubService{name: name}
}

func (s *stubService) Serve(ctx context.Context) error {
	s.starts.Add(1)
	defer s.stops.Add(1)

	s.mu.Lock()
	err := s.err
	failFirstN := s.failFirstN
	s.mu.Unlock()

	if failFirstN > 0 && s.attempts.Add(1) <= failFirstN {
		return errors.New("simulated failure")
	}
	if err != nil {
		return err
	}

	<-ctx.Done()
	return ctx.Err()
}

// failFirst makes the first n Serve calls return an error.
func (s *stubService) failFirst(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFirstN = int32(n)
}

func (s *stubService) startCount() int32 { return s.starts.Load() }

func (s *stubService) stopCount() int32 { return s.stops.Load() }

func (s *stubService) String() string { return s.name }
