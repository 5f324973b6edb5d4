package events

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// EventLogger drains events onto the structured log so every framework
// event is also visible in log aggregation
type EventLogger struct {
	logger *zap.Logger
	buffer chan Event
}

func NewEventLogger(logger *zap.Logger) *EventLogger {
	el := &EventLogger{
		logger: logger,
		buffer: make(chan Event, 1000),
	}
	go el.process()
	return el
}

func (el *EventLogger) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case el.buffer <- event:
	default:
		el.logger.Warn("Event buffer full, dropping event")
	}
}

func (el *EventLogger) process() {
	for event := range el.buffer {
		data, _ := json.Marshal(event)
		el.logger.Info("event",
			zap.String("type", string(event.Type)),
			zap.String("data", string(data)),
		)
	}
}
