package failover

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StateSyncer propagates authoritative application state from the
// current primary to a standby so the standby can assume the primary
// role without data loss. The core only guarantees the step is invoked
// at the configured cadence for every healthy standby; deployments
// supply a real strategy (log shipping, snapshot transfer).
type StateSyncer interface {
	SyncState(ctx context.Context, serviceName string, primary, standby *Node) error
}

// NoopSyncer is the placeholder strategy: it always reports success
type NoopSyncer struct{}

// SyncState does nothing
func (NoopSyncer) SyncState(context.Context, string, *Node, *Node) error {
	return nil
}

// runSyncLoop drives state propagation for one opted-in service
func (m *Manager) runSyncLoop(serviceName string, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.syncService(context.Background(), serviceName)
		case <-stop:
			return
		}
	}
}

// syncService invokes the state-propagation step from the current
// primary to every healthy standby, in parallel. Sync failures are
// logged, never surfaced as subsystem errors.
func (m *Manager) syncService(ctx context.Context, serviceName string) {
	svc := m.service(serviceName)
	if svc == nil {
		return
	}

	svc.mu.Lock()
	primary, ok := svc.nodes[svc.primaryID]
	if !ok {
		svc.mu.Unlock()
		return
	}
	primaryCopy := primary.clone()
	var standbys []*Node
	for _, id := range svc.nodeOrder {
		n := svc.nodes[id]
		if n.Role == RoleStandby && n.Status == StatusHealthy {
			standbys = append(standbys, n.clone())
		}
	}
	svc.mu.Unlock()

	var wg sync.WaitGroup
	for _, standby := range standbys {
		wg.Add(1)
		go func(standby *Node) {
			defer wg.Done()
			if err := m.syncer.SyncState(ctx, serviceName, primaryCopy, standby); err != nil {
				m.logger.Warn("state sync failed",
					zap.String("service", serviceName),
					zap.String("primary", primaryCopy.ID),
					zap.String("standby", standby.ID),
					zap.Error(err))
			}
		}(standby)
	}
	wg.Wait()
}
