package events

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventBus broadcasts framework state changes to subscribers
type EventBus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(pattern string, handler Handler) error

	// Replay returns retained events inside the window
	Replay(from, to time.Time) ([]Event, error)
}

// EventType categorizes events
type EventType string

const (
	NodeStatusChanged = EventType("node.status_changed")
	HealthCheckFailed = EventType("node.healthcheck_failed")
	FailoverTriggered = EventType("failover.triggered")
	FailoverCompleted = EventType("failover.completed")
	AlertFired        = EventType("alert.fired")
	AlertResolved     = EventType("alert.resolved")
)

// Event represents something that happened
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Service   string            `json:"service,omitempty"`
	Node      string            `json:"node,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Message   string            `json:"message,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// NewEvent builds an event with a fresh id and timestamp
func NewEvent(eventType EventType, service, node string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Service:   service,
		Node:      node,
		Timestamp: time.Now(),
	}
}

// Handler processes events
type Handler func(ctx context.Context, event Event) error

// SimpleEventBus is a basic in-memory implementation
type SimpleEventBus struct {
	mu        sync.RWMutex
	handlers  map[string][]Handler
	events    []Event
	maxEvents int
}

// NewSimpleEventBus creates a basic event bus
func NewSimpleEventBus() *SimpleEventBus {
	return &SimpleEventBus{
		handlers:  make(map[string][]Handler),
		events:    make([]Event, 0, 10000),
		maxEvents: 10000, // Keep last 10k events in memory
	}
}

// Publish sends an event
func (eb *SimpleEventBus) Publish(ctx context.Context, event Event) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	// Store for replay
	eb.events = append(eb.events, event)
	if len(eb.events) > eb.maxEvents {
		eb.events = eb.events[1:] // Remove oldest
	}

	// Notify handlers
	for pattern, handlers := range eb.handlers {
		if matchesPattern(string(event.Type), pattern) {
			for _, handler := range handlers {
				go handler(ctx, event) // Async processing
			}
		}
	}

	return nil
}

// Subscribe registers a handler
func (eb *SimpleEventBus) Subscribe(pattern string, handler Handler) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[pattern] = append(eb.handlers[pattern], handler)
	return nil
}

// Replay returns historical events
func (eb *SimpleEventBus) Replay(from, to time.Time) ([]Event, error) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	var result []Event
	for _, event := range eb.events {
		if event.Timestamp.After(from) && event.Timestamp.Before(to) {
			result = append(result, event)
		}
	}

	return result, nil
}

// matchesPattern checks if event type matches pattern. A trailing
// ".*" matches every type under that prefix.
func matchesPattern(eventType, pattern string) bool {
	if eventType == pattern || pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, ".*"); ok {
		return strings.HasPrefix(eventType, prefix+".")
	}
	return false
}
