package failover

import (
	"context"
	"strconv"

	"github.com/FairForge/warden/internal/events"
)

// BusNotifier publishes failover notifications onto the framework
// event bus so other components (alerting, notification delivery,
// audit) can react without coupling to the manager.
type BusNotifier struct {
	bus events.EventBus
}

// NewBusNotifier wraps an event bus as a Notifier
func NewBusNotifier(bus events.EventBus) *BusNotifier {
	return &BusNotifier{bus: bus}
}

func (b *BusNotifier) NodeStatusChanged(serviceName, nodeID string, status Status) {
	e := events.NewEvent(events.NodeStatusChanged, serviceName, nodeID)
	e.Message = "node status changed to " + string(status)
	e.Details = map[string]string{"status": string(status)}
	_ = b.bus.Publish(context.Background(), e)
}

func (b *BusNotifier) HealthCheckFailed(serviceName, nodeID string) {
	e := events.NewEvent(events.HealthCheckFailed, serviceName, nodeID)
	e.Message = "health probe failed"
	_ = b.bus.Publish(context.Background(), e)
}

func (b *BusNotifier) FailoverTriggered(serviceName, fromNodeID, toNodeID string) {
	e := events.NewEvent(events.FailoverTriggered, serviceName, "")
	e.Message = "failover from " + fromNodeID + " to " + toNodeID
	e.Details = map[string]string{"from": fromNodeID, "to": toNodeID}
	_ = b.bus.Publish(context.Background(), e)
}

func (b *BusNotifier) FailoverCompleted(serviceName string, success bool) {
	e := events.NewEvent(events.FailoverCompleted, serviceName, "")
	e.Details = map[string]string{"success": strconv.FormatBool(success)}
	if success {
		e.Message = "failover completed"
	} else {
		e.Message = "failover failed"
	}
	_ = b.bus.Publish(context.Background(), e)
}
