package chat

import (
	"sync"
	"time"
)

// EventType represents the type of chat event.
type EventType string

const (
	EventTurnSubmitted    EventType = "turn_submitted"
	EventTurnCompleted    EventType = "turn_completed"
	EventTurnFailed       EventType = "turn_failed"
	EventRetrieval        EventType = "retrieval"
	EventHistoryTruncated EventType = "history_truncated"
	EventHistoryCleared   EventType = "history_cleared"
	EventSettingsChanged  EventType = "settings_changed"
)

// Event represents a chat event with associated data.
type Event struct {
	Type      EventType
	Timestamp time.Time
	SessionID string
	Data      map[string]any
}

// EventHandler is a function that handles events.
type EventHandler func(Event)

// EventBus manages event publication and subscription.
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[EventType][]EventHandler
	allHandlers []EventHandler
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type.
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
}

// SubscribeAll registers a handler for all event types.
func (eb *EventBus) SubscribeAll(handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.allHandlers = append(eb.allHandlers, handler)
}

// Publish sends an event to all registered handlers, type-specific ones first.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	specific := append([]EventHandler(nil), eb.handlers[event.Type]...)
	all := append([]EventHandler(nil), eb.allHandlers...)
	eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, handler := range specific {
		handler(event)
	}
	for _, handler := range all {
		handler(event)
	}
}

// PublishWithData publishes an event with associated data.
func (eb *EventBus) PublishWithData(eventType EventType, sessionID string, data map[string]any) {
	eb.Publish(Event{
		Type:      eventType,
		SessionID: sessionID,
		Data:      data,
	})
}
