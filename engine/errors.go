package engine

import "errors"

var (
	// ErrSessionNotFound is returned when a session id has no index entry.
	ErrSessionNotFound = errors.New("session not found")

	// ErrLockHeld is returned when a session is already executing an invocation.
	ErrLockHeld = errors.New("session lock already held")

	// ErrInvokeTimeout is returned when an external invocation exceeds its deadline.
	ErrInvokeTimeout = errors.New("invocation timed out")
)
