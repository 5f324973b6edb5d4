package failover

// Notifier receives outward-facing notifications from the failover
// subsystem. Implementations must not call back into the Manager
// synchronously from a handler that could block; the Manager always
// releases its locks before notifying, so re-entrant calls are safe
// but slow handlers delay the emitting loop.
type Notifier interface {
	// NodeStatusChanged fires whenever a node's status value changes
	NodeStatusChanged(serviceName, nodeID string, status Status)
	// HealthCheckFailed fires on every failed probe, independent of
	// any status transition
	HealthCheckFailed(serviceName, nodeID string)
	// FailoverTriggered fires when a role swap begins
	FailoverTriggered(serviceName, fromNodeID, toNodeID string)
	// FailoverCompleted fires when the executor finishes, success or not
	FailoverCompleted(serviceName string, success bool)
}

// NopNotifier discards all notifications
type NopNotifier struct{}

func (NopNotifier) NodeStatusChanged(string, string, Status) {}
func (NopNotifier) HealthCheckFailed(string, string)         {}
func (NopNotifier) FailoverTriggered(string, string, string) {}
func (NopNotifier) FailoverCompleted(string, bool)           {}
