package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/warden/internal/events"
)

// Dispatcher fans notifications out to every configured channel
type Dispatcher struct {
	mu       sync.RWMutex
	channels map[string]Channel
	logger   *zap.Logger
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		channels: make(map[string]Channel),
		logger:   logger,
	}
}

// AddChannel registers a configured channel under a name
func (d *Dispatcher) AddChannel(name string, ch Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels[name] = ch
}

// RemoveChannel drops a channel
func (d *Dispatcher) RemoveChannel(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.channels, name)
}

// Dispatch sends a notification through every channel in parallel.
// Delivery failures are logged per channel, never returned: one broken
// channel must not block the others.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) {
	d.mu.RLock()
	channels := make(map[string]Channel, len(d.channels))
	for name, ch := range d.channels {
		channels[name] = ch
	}
	d.mu.RUnlock()

	var wg sync.WaitGroup
	for name, ch := range channels {
		wg.Add(1)
		go func(name string, ch Channel) {
			defer wg.Done()
			if err := ch.Send(ctx, n); err != nil {
				d.logger.Warn("notification delivery failed",
					zap.String("channel", name),
					zap.Error(err))
			}
		}(name, ch)
	}
	wg.Wait()
}

// SubscribeTo wires the dispatcher to an event bus pattern so matching
// events become notifications
func (d *Dispatcher) SubscribeTo(bus events.EventBus, pattern string) error {
	return bus.Subscribe(pattern, func(ctx context.Context, e events.Event) error {
		d.Dispatch(ctx, notificationFromEvent(e))
		return nil
	})
}

func notificationFromEvent(e events.Event) Notification {
	severity := SeverityInfo
	switch e.Type {
	case events.HealthCheckFailed:
		severity = SeverityWarning
	case events.FailoverTriggered, events.FailoverCompleted, events.AlertFired:
		severity = SeverityCritical
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return Notification{
		Subject:   string(e.Type) + " " + e.Service,
		Body:      e.Message,
		Severity:  severity,
		Service:   e.Service,
		Details:   e.Details,
		Timestamp: ts,
	}
}
