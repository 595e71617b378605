package engine

import (
	"sync"
	"time"

	"github.com/xiaoyuanzhu-com/sessiond/engine/models"
	"github.com/xiaoyuanzhu-com/sessiond/log"
)

// Callbacks is the interface the engine exposes to the transport layer.
// Implementations must not block: the coordinator is invoked from the
// watcher's drain goroutine.
type Callbacks interface {
	OnSessionCreated(meta *SessionMetadata)
	OnSessionUpdated(sessionID string, newLines []models.SessionMessageI)
	OnSessionDeleted(sessionID string)
}

// Coordinator owns the subscribe/notify state machine: it decides when a
// session transitions from "exists but not yet visible" to "visible to
// clients". Creation notifications for sessions born with zero user-visible
// lines are deferred until the first real message arrives; a session that
// never receives one stays tracked but invisible.
type Coordinator struct {
	mu            sync.RWMutex
	subscriptions map[string]struct{}
	callbacks     Callbacks
	now           func() time.Time
}

// NewCoordinator creates a coordinator delivering through callbacks.
func NewCoordinator(callbacks Callbacks) *Coordinator {
	return &Coordinator{
		subscriptions: make(map[string]struct{}),
		callbacks:     callbacks,
		now:           time.Now,
	}
}

// Subscribe permits update notifications for the session. Subscribing does
// not itself trigger a notification and is independent of Notified.
func (c *Coordinator) Subscribe(sessionID string) {
	c.mu.Lock()
	c.subscriptions[sessionID] = struct{}{}
	c.mu.Unlock()
	log.Debug().Str("sessionId", sessionID).Msg("session subscribed")
}

// Unsubscribe stops update notifications for the session.
func (c *Coordinator) Unsubscribe(sessionID string) {
	c.mu.Lock()
	delete(c.subscriptions, sessionID)
	c.mu.Unlock()
	log.Debug().Str("sessionId", sessionID).Msg("session unsubscribed")
}

// IsSubscribed reports whether updates are currently permitted.
func (c *Coordinator) IsSubscribed(sessionID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[sessionID]
	return ok
}

// SessionCreated handles a freshly indexed session. When it already carries
// user-visible messages the creation notification fires immediately and the
// entry is marked notified; otherwise notification is deferred. Reports
// whether the notification fired.
func (c *Coordinator) SessionCreated(meta *SessionMetadata) bool {
	if meta.MessageCount == 0 {
		// Tracked but invisible until the first real message lands.
		return false
	}
	c.markNotified(meta)
	c.callbacks.OnSessionCreated(meta.Clone())
	return true
}

// SessionUpdated handles newly appended user-visible lines. The 0→N
// transition on an unnotified session fires the deferred creation
// notification carrying the post-transition metadata; otherwise subscribed
// sessions get an update with only the new lines. Reports whether the
// deferred creation fired.
func (c *Coordinator) SessionUpdated(meta *SessionMetadata, oldCount int, newLines []models.SessionMessageI) bool {
	if oldCount == 0 && meta.MessageCount > 0 && !meta.Notified {
		c.markNotified(meta)
		c.callbacks.OnSessionCreated(meta.Clone())
		return true
	}

	if c.IsSubscribed(meta.ID) {
		c.callbacks.OnSessionUpdated(meta.ID, newLines)
	}
	return false
}

// SessionDeleted delivers the deletion notification unconditionally and
// drops any subscription.
func (c *Coordinator) SessionDeleted(sessionID string) {
	c.mu.Lock()
	delete(c.subscriptions, sessionID)
	c.mu.Unlock()

	c.callbacks.OnSessionDeleted(sessionID)
}

// markNotified flips the monotonic notified flag.
func (c *Coordinator) markNotified(meta *SessionMetadata) {
	meta.Notified = true
	if meta.FirstNotifiedAt == nil {
		t := c.now()
		meta.FirstNotifiedAt = &t
	}
}
