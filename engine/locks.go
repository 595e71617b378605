package engine

import "sync"

// LockRegistry provides set-based mutual exclusion keyed by session id, so
// two callers never fork the same conversation simultaneously. There is no
// queuing or fairness: callers failing to acquire must reject, not block.
type LockRegistry struct {
	mu     sync.Mutex
	locked map[string]struct{}
}

// NewLockRegistry creates an empty registry.
func NewLockRegistry() *LockRegistry {
	return &LockRegistry{
		locked: make(map[string]struct{}),
	}
}

// TryAcquire atomically inserts the id into the lock set. Returns true only
// if the id was absent and is now held by the caller.
func (r *LockRegistry) TryAcquire(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, held := r.locked[sessionID]; held {
		return false
	}
	r.locked[sessionID] = struct{}{}
	return true
}

// Release removes the id from the lock set. Idempotent.
func (r *LockRegistry) Release(sessionID string) {
	r.mu.Lock()
	delete(r.locked, sessionID)
	r.mu.Unlock()
}

// IsLocked reports whether the id is currently held.
func (r *LockRegistry) IsLocked(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, held := r.locked[sessionID]
	return held
}
