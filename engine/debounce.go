package engine

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is the minimum spacing between two accepted
// processing passes for the same session's events.
const DefaultDebounceWindow = 200 * time.Millisecond

// Debouncer suppresses re-processing of a session's events within a fixed
// window. It is a coalescing filter, not a queue: callers that get false skip
// this pass, and the next accepted event still sees all accumulated bytes
// because read cursors are independent of the debounce decision.
type Debouncer struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

// NewDebouncer creates a debouncer with the given window.
// A zero window disables debouncing (every event is accepted).
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Accept reports whether at least the window has elapsed since the session's
// last accepted event, recording now as the new last-accepted time when it
// has. The first event for a session is always accepted. Suppressed events do
// not reset the window, so a steady burst cannot starve processing.
func (d *Debouncer) Accept(sessionID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	prev, seen := d.last[sessionID]
	if seen && now.Sub(prev) < d.window {
		return false
	}
	d.last[sessionID] = now
	return true
}

// Forget drops the session's debounce state (after deletion).
func (d *Debouncer) Forget(sessionID string) {
	d.mu.Lock()
	delete(d.last, sessionID)
	d.mu.Unlock()
}
