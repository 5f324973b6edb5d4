package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Channel kinds understood by the factory
const (
	KindWebhook = "webhook"
	KindEmail   = "email"
)

// Severity levels for notifications
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Notification is one outbound message
type Notification struct {
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Severity  string            `json:"severity"`
	Service   string            `json:"service,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Channel is one delivery mechanism. Implementations are configured
// once, then used concurrently.
type Channel interface {
	Configure(settings map[string]string) error
	Send(ctx context.Context, n Notification) error
	TestConnection(ctx context.Context) error
}

// ErrUnknownChannelKind is returned by the factory for unrecognized tags
var ErrUnknownChannelKind = errors.New("notify: unknown channel kind")

// NewChannel creates an unconfigured channel for the given type tag
func NewChannel(kind string) (Channel, error) {
	switch kind {
	case KindWebhook:
		return NewWebhookChannel(), nil
	case KindEmail:
		return NewEmailChannel(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannelKind, kind)
	}
}
