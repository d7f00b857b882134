// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package database

import (
	"errors"
	"fmt"
	"io"
)

// ErrStoreUnavailable marks every failure to reach or query the event store.
// Callers must treat it as fatal for the computation; metrics are never
// zero-filled in its place.
var ErrStoreUnavailable = errors.New("event store unavailable")

// OperationError names the engine operation that failed.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// errorContext wraps a store failure so that errors.Is(err, ErrStoreUnavailable)
// holds and the failing operation is visible in logs. nil stays nil.
func errorContext(op string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return err
	}
	return &OperationError{Op: op, Err: err}
}

// closeQuietly closes a resource and explicitly ignores any error.
// Use this for cleanup in error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
