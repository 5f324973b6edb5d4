package failover

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// probeResult is one node's outcome for a single tick
type probeResult struct {
	nodeID   string
	err      error
	duration time.Duration
}

// runHealthLoop drives health evaluation for one service on its own
// interval. One loop per service, keyed by service name; rescheduled
// by UpdateServiceConfig, stopped by UnregisterService and Stop.
func (m *Manager) runHealthLoop(serviceName string, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CheckService(context.Background(), serviceName)
		case <-stop:
			return
		}
	}
}

// CheckService runs one health-check pass over every node of a service.
// Normally invoked by the health loop; exported so operators can force
// an immediate evaluation.
func (m *Manager) CheckService(ctx context.Context, serviceName string) {
	svc := m.service(serviceName)
	if svc == nil {
		return
	}

	svc.mu.Lock()
	if !svc.enabled {
		svc.mu.Unlock()
		return
	}
	cfg := svc.config
	type probeTarget struct{ id, endpoint string }
	targets := make([]probeTarget, 0, len(svc.nodeOrder))
	for _, id := range svc.nodeOrder {
		targets = append(targets, probeTarget{id, svc.nodes[id].Endpoint})
	}
	svc.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	// Probe all nodes in parallel so one unreachable endpoint does not
	// delay evaluation of the others.
	results := make([]probeResult, len(targets))
	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func(i int, id, endpoint string) {
			defer wg.Done()
			start := time.Now()
			err := m.prober.Probe(ctx, endpoint)
			results[i] = probeResult{nodeID: id, err: err, duration: time.Since(start)}
		}(i, t.id, t.endpoint)
	}
	wg.Wait()

	// Apply transitions under the service lock, collect notifications,
	// then emit them with the lock released.
	type statusChange struct {
		nodeID string
		status Status
	}
	var changes []statusChange
	var failedProbes []string
	var failoverReason string

	svc.mu.Lock()
	for _, r := range results {
		node, ok := svc.nodes[r.nodeID]
		if !ok {
			continue // removed mid-probe
		}
		changed := applyProbeResult(&cfg, node, r.err)
		if changed {
			changes = append(changes, statusChange{node.ID, node.Status})
		}
		if r.err != nil {
			failedProbes = append(failedProbes, node.ID)
			m.logger.Debug("health probe failed",
				zap.String("service", serviceName),
				zap.String("node", node.ID),
				zap.Error(r.err))
		}
		m.metrics.recordProbe(serviceName, node.ID, r.duration.Seconds(), r.err != nil)
		m.metrics.recordStatus(serviceName, node.ID, node.Status)

		if node.ID == svc.primaryID && node.ConsecutiveFailures >= cfg.FailureThreshold {
			switch cfg.Mode {
			case ModeAutomatic:
				failoverReason = "primary health-check failure: " + node.ID
			case ModeManual:
				m.logger.Warn("primary past failure threshold, manual mode, operator action required",
					zap.String("service", serviceName),
					zap.String("node", node.ID),
					zap.Int("consecutive_failures", node.ConsecutiveFailures))
			}
		}
	}
	svc.mu.Unlock()

	for _, c := range changes {
		m.notifier.NodeStatusChanged(serviceName, c.nodeID, c.status)
	}
	for _, id := range failedProbes {
		m.notifier.HealthCheckFailed(serviceName, id)
	}

	if failoverReason != "" {
		m.performFailover(serviceName, "", failoverReason)
	}
}

// applyProbeResult advances one node's hysteresis state machine.
// Caller holds the service lock. Returns true when the status changed.
//
// A recovery threshold of 1 (the default) means a single successful
// probe restores Healthy from any state. Thresholds above 1 park a
// previously Degraded/Failed node in Unhealthy until enough
// consecutive successes accumulate.
func applyProbeResult(cfg *ServiceConfig, n *Node, probeErr error) bool {
	n.LastHealthCheck = time.Now()

	if probeErr == nil {
		n.ConsecutiveFailures = 0
		n.ConsecutiveSuccesses++
		if n.Status == StatusHealthy {
			return false
		}
		if cfg.RecoveryThreshold <= 1 || n.ConsecutiveSuccesses >= cfg.RecoveryThreshold {
			n.Status = StatusHealthy
			return true
		}
		if n.Status != StatusUnhealthy {
			n.Status = StatusUnhealthy
			return true
		}
		return false
	}

	n.ConsecutiveSuccesses = 0
	n.ConsecutiveFailures++

	if n.ConsecutiveFailures >= cfg.FailureThreshold {
		if n.Status != StatusFailed {
			n.Status = StatusFailed
			return true
		}
		return false
	}
	if n.Status == StatusHealthy {
		n.Status = StatusDegraded
		return true
	}
	return false
}
