package failover

import (
	"errors"
	"time"
)

// Role identifies which side of a failover pair a node is on
type Role string

const (
	RolePrimary Role = "primary"
	RoleStandby Role = "standby"
)

// Status represents the health state of a node
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusFailed    Status = "failed"
)

// Mode controls how failover decisions are made for a service
type Mode string

const (
	// ModeAutomatic promotes a standby without operator involvement
	ModeAutomatic Mode = "automatic"
	// ModeManual raises notifications but never changes roles on its own
	ModeManual Mode = "manual"
	// ModeDisabled skips the service for automatic decisions entirely
	ModeDisabled Mode = "disabled"
)

// Defaults applied by ServiceConfig.Validate when fields are zero
const (
	DefaultHealthCheckInterval = 30 * time.Second
	DefaultStateSyncInterval   = 60 * time.Second
	DefaultFailureThreshold    = 3
	DefaultRecoveryThreshold   = 1
)

// ServiceConfig configures one protected service. Immutable after
// registration except via UpdateServiceConfig.
type ServiceConfig struct {
	ServiceName         string        `json:"service_name" yaml:"service_name"`
	Mode                Mode          `json:"mode" yaml:"mode"`
	HealthCheckInterval time.Duration `json:"health_check_interval" yaml:"health_check_interval"`
	FailureThreshold    int           `json:"failure_threshold" yaml:"failure_threshold"`
	RecoveryThreshold   int           `json:"recovery_threshold" yaml:"recovery_threshold"`
	EnableStateSync     bool          `json:"enable_state_sync" yaml:"enable_state_sync"`
	StateSyncInterval   time.Duration `json:"state_sync_interval" yaml:"state_sync_interval"`

	// Declared intent only; the live node registry is authoritative.
	PrimaryNodeIDs []string `json:"primary_node_ids" yaml:"primary_node_ids"`
	StandbyNodeIDs []string `json:"standby_node_ids" yaml:"standby_node_ids"`
}

// Validate checks the configuration and fills in defaults
func (c *ServiceConfig) Validate() error {
	if c.ServiceName == "" {
		return errors.New("failover: service name is required")
	}
	if len(c.PrimaryNodeIDs) == 0 {
		return errors.New("failover: at least one primary node id is required")
	}
	if len(c.StandbyNodeIDs) == 0 {
		return errors.New("failover: at least one standby node id is required")
	}
	switch c.Mode {
	case ModeAutomatic, ModeManual, ModeDisabled:
	case "":
		c.Mode = ModeAutomatic
	default:
		return errors.New("failover: invalid mode: " + string(c.Mode))
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if c.StateSyncInterval <= 0 {
		c.StateSyncInterval = DefaultStateSyncInterval
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.RecoveryThreshold <= 0 {
		c.RecoveryThreshold = DefaultRecoveryThreshold
	}
	return nil
}

// Node is one replica of a protected service
type Node struct {
	ID                   string            `json:"id"`
	Role                 Role              `json:"role"`
	Status               Status            `json:"status"`
	Endpoint             string            `json:"endpoint"`
	LastHealthCheck      time.Time         `json:"last_health_check"`
	ConsecutiveFailures  int               `json:"consecutive_failures"`
	ConsecutiveSuccesses int               `json:"consecutive_successes"`
	Metadata             map[string]string `json:"metadata,omitempty"`
}

// Validate checks the node before registration
func (n *Node) Validate() error {
	if n.ID == "" {
		return errors.New("failover: node id is required")
	}
	if n.Endpoint == "" {
		return errors.New("failover: node endpoint is required")
	}
	return nil
}

func (n *Node) clone() *Node {
	c := *n
	if n.Metadata != nil {
		c.Metadata = make(map[string]string, len(n.Metadata))
		for k, v := range n.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Event is an immutable audit record of one failover attempt
type Event struct {
	ServiceName string    `json:"service_name"`
	FromNodeID  string    `json:"from_node_id"`
	ToNodeID    string    `json:"to_node_id"`
	Reason      string    `json:"reason"`
	Timestamp   time.Time `json:"timestamp"`
	Success     bool      `json:"success"`
}
