package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/FairForge/warden/internal/events"
)

// SubscribeTo persists every event matching the pattern. Insert
// failures are logged, not propagated: auditing must never stall the
// failover path.
func (s *Store) SubscribeTo(bus events.EventBus, pattern string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	return bus.Subscribe(pattern, func(ctx context.Context, e events.Event) error {
		if err := s.LogEvent(ctx, e); err != nil {
			logger.Error("audit write failed",
				zap.String("event_type", string(e.Type)),
				zap.Error(err))
		}
		return nil
	})
}
