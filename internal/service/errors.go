package service

import (
	"errors"
	"fmt"
)

// ErrPermissionDenied means the user declined notification access.
// Non-fatal: delivery attempts stay suppressed until re-requested.
var ErrPermissionDenied = errors.New("notification permission denied")

// ErrUnsupportedEnvironment means the registering device is not physical
// hardware. Registration is skipped, no row is written.
var ErrUnsupportedEnvironment = errors.New("push registration requires a physical device")

// ErrNotConnected means a chat operation was attempted without a session
var ErrNotConnected = errors.New("chat transport not initialized")

// NetworkError marks a transient persistence failure. Callers may retry
// with backoff; it never blocks the in-memory activity/suppression logic.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// TransportError marks a channel resolve/send failure. It is surfaced to
// the caller of SendMessage/Initialize, not swallowed.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SchedulingError marks a failed local-notification schedule. It is logged
// with outcome "failed" and never thrown upward.
type SchedulingError struct {
	Err error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("failed to schedule local notification: %v", e.Err)
}

func (e *SchedulingError) Unwrap() error { return e.Err }
