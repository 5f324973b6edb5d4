package failover

import (
	"time"

	"go.uber.org/zap"
)

// PerformFailover promotes a replacement primary for a service. When
// targetNodeID is empty the executor selects the healthy standby with
// the fewest consecutive failures (first registered wins ties).
// Returns false when no role change could be made; a failed attempt is
// still recorded in the failover history so it stays auditable.
//
// Asking for the current primary as the target is a successful no-op:
// it returns true and records no event.
func (m *Manager) PerformFailover(serviceName, targetNodeID string) bool {
	return m.performFailover(serviceName, targetNodeID, "manual")
}

// TriggerFailover is PerformFailover with automatic target selection
func (m *Manager) TriggerFailover(serviceName string) bool {
	return m.performFailover(serviceName, "", "automatic")
}

func (m *Manager) performFailover(serviceName, targetNodeID, reason string) bool {
	svc := m.service(serviceName)
	if svc == nil {
		return false
	}

	svc.mu.Lock()

	if !m.enabled.Load() || !svc.enabled {
		svc.history.append(Event{
			ServiceName: serviceName,
			FromNodeID:  svc.primaryID,
			Reason:      reason + " (failover disabled)",
			Timestamp:   time.Now(),
			Success:     false,
		})
		svc.mu.Unlock()
		m.metrics.recordFailover(serviceName, false)
		m.notifier.FailoverCompleted(serviceName, false)
		m.logger.Warn("failover requested while disabled",
			zap.String("service", serviceName), zap.String("reason", reason))
		return false
	}

	fromID := svc.primaryID

	var target *Node
	if targetNodeID != "" {
		if targetNodeID == fromID {
			// Already primary: successful no-op, no event recorded.
			svc.mu.Unlock()
			return true
		}
		target = svc.nodes[targetNodeID]
	} else {
		target = selectStandby(svc)
	}

	if target == nil {
		svc.history.append(Event{
			ServiceName: serviceName,
			FromNodeID:  fromID,
			ToNodeID:    targetNodeID,
			Reason:      reason + " (no eligible standby)",
			Timestamp:   time.Now(),
			Success:     false,
		})
		svc.mu.Unlock()
		m.metrics.recordFailover(serviceName, false)
		m.notifier.FailoverCompleted(serviceName, false)
		m.logger.Error("failover failed, no eligible standby",
			zap.String("service", serviceName), zap.String("reason", reason))
		return false
	}

	// Demote, promote and move the pointer in one critical section so
	// no reader ever observes zero or two primaries.
	if old, ok := svc.nodes[fromID]; ok {
		old.Role = RoleStandby
	}
	target.Role = RolePrimary
	svc.primaryID = target.ID
	toID := target.ID

	svc.history.append(Event{
		ServiceName: serviceName,
		FromNodeID:  fromID,
		ToNodeID:    toID,
		Reason:      reason,
		Timestamp:   time.Now(),
		Success:     true,
	})
	svc.mu.Unlock()

	m.metrics.recordFailover(serviceName, true)
	m.notifier.FailoverTriggered(serviceName, fromID, toID)
	m.notifier.FailoverCompleted(serviceName, true)
	m.logger.Info("failover completed",
		zap.String("service", serviceName),
		zap.String("from", fromID),
		zap.String("to", toID),
		zap.String("reason", reason))
	return true
}

// selectStandby picks the healthy standby with the lowest consecutive
// failure count, breaking ties by registration order. Caller holds the
// service lock.
func selectStandby(svc *serviceState) *Node {
	var best *Node
	for _, id := range svc.nodeOrder {
		n := svc.nodes[id]
		if n.Role != RoleStandby || n.Status != StatusHealthy {
			continue
		}
		if best == nil || n.ConsecutiveFailures < best.ConsecutiveFailures {
			best = n
		}
	}
	return best
}
