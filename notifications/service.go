package notifications

import (
	"sync"
	"time"
)

// EventType represents the type of notification event
type EventType string

const (
	EventConnected      EventType = "connected"
	EventSessionCreated EventType = "session-created"
	EventSessionUpdated EventType = "session-updated"
	EventSessionDeleted EventType = "session-deleted"
	EventSessionState   EventType = "session-state-changed"
	EventInvokeFinished EventType = "invoke-finished"
)

// Event represents a notification event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	SessionID string    `json:"sessionId,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Service manages event-stream subscriptions and broadcasting
type Service struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	done        chan struct{}
}

// NewService creates a new notification service
func NewService() *Service {
	return &Service{
		subscribers: make(map[chan Event]struct{}),
		done:        make(chan struct{}),
	}
}

// Subscribe creates a new subscription channel
// Returns the event channel and an unsubscribe function
func (s *Service) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 10)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		// Only close if the channel is still in subscribers map
		if _, exists := s.subscribers[ch]; exists {
			delete(s.subscribers, ch)
			close(ch)
		}
	}

	return ch, unsubscribe
}

// Notify broadcasts an event to all subscribers
func (s *Service) Notify(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// Channel full, skip this subscriber
		}
	}
}

// NotifySessionCreated announces a session newly visible to clients
func (s *Service) NotifySessionCreated(sessionID string, data any) {
	s.Notify(Event{
		Type:      EventSessionCreated,
		Timestamp: time.Now().UnixMilli(),
		SessionID: sessionID,
		Data:      data,
	})
}

// NotifySessionUpdated announces new messages in a subscribed session
func (s *Service) NotifySessionUpdated(sessionID string, data any) {
	s.Notify(Event{
		Type:      EventSessionUpdated,
		Timestamp: time.Now().UnixMilli(),
		SessionID: sessionID,
		Data:      data,
	})
}

// NotifySessionDeleted announces a session removed from disk
func (s *Service) NotifySessionDeleted(sessionID string) {
	s.Notify(Event{
		Type:      EventSessionDeleted,
		Timestamp: time.Now().UnixMilli(),
		SessionID: sessionID,
	})
}

// NotifySessionStateChanged announces archive/read state changes
func (s *Service) NotifySessionStateChanged(sessionID string, operation string) {
	s.Notify(Event{
		Type:      EventSessionState,
		Timestamp: time.Now().UnixMilli(),
		SessionID: sessionID,
		Data: map[string]interface{}{
			"operation": operation,
		},
	})
}

// NotifyInvokeFinished announces a completed tool invocation
func (s *Service) NotifyInvokeFinished(sessionID string, success bool, detail string) {
	s.Notify(Event{
		Type:      EventInvokeFinished,
		Timestamp: time.Now().UnixMilli(),
		SessionID: sessionID,
		Data: map[string]interface{}{
			"success": success,
			"detail":  detail,
		},
	})
}

// Shutdown closes the notification service
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	close(s.done)

	for ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = make(map[chan Event]struct{})
}

// SubscriberCount returns the number of active subscribers
func (s *Service) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}
