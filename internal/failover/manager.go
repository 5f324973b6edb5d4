package failover

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Sentinel errors returned by the mutating API
var (
	ErrServiceExists   = errors.New("failover: service already registered")
	ErrServiceNotFound = errors.New("failover: service not registered")
	ErrNodeExists      = errors.New("failover: node already registered")
	ErrNodeNotFound    = errors.New("failover: node not found")
)

// serviceState is everything the subsystem owns for one service.
// All fields are guarded by mu; the Manager never holds mu while
// notifying or recursing back into itself.
type serviceState struct {
	mu        sync.Mutex
	config    ServiceConfig
	nodes     map[string]*Node
	nodeOrder []string
	primaryID string
	enabled   bool
	history   *history

	stopHealth chan struct{}
	stopSync   chan struct{}
}

// Manager owns service registration, node lifecycle, the health-check
// and state-sync loops, failover execution and failover history.
type Manager struct {
	mu       sync.RWMutex
	services map[string]*serviceState

	prober   Prober
	syncer   StateSyncer
	notifier Notifier
	metrics  *Metrics
	logger   *zap.Logger

	enabled atomic.Bool
}

// Option configures a Manager
type Option func(*Manager)

// WithProber overrides the default HTTP prober
func WithProber(p Prober) Option {
	return func(m *Manager) { m.prober = p }
}

// WithStateSyncer sets the state-propagation strategy
func WithStateSyncer(s StateSyncer) Option {
	return func(m *Manager) { m.syncer = s }
}

// WithNotifier sets the outward notification sink
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithMetrics attaches Prometheus metrics
func WithMetrics(mx *Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// NewManager creates a failover manager. The manager starts enabled;
// background loops are started per service at registration time.
func NewManager(logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		services: make(map[string]*serviceState),
		prober:   NewHTTPProber(),
		syncer:   NoopSyncer{},
		notifier: NopNotifier{},
		logger:   logger,
	}
	m.enabled.Store(true)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterService registers a service and starts its background loops.
// The current-primary pointer is seeded from the first declared primary
// node id; the id need not exist as an added node yet.
func (m *Manager) RegisterService(cfg ServiceConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if _, exists := m.services[cfg.ServiceName]; exists {
		m.mu.Unlock()
		return ErrServiceExists
	}

	svc := &serviceState{
		config:     cfg,
		nodes:      make(map[string]*Node),
		primaryID:  cfg.PrimaryNodeIDs[0],
		enabled:    true,
		history:    newHistory(),
		stopHealth: make(chan struct{}),
	}
	m.services[cfg.ServiceName] = svc
	m.mu.Unlock()

	go m.runHealthLoop(cfg.ServiceName, cfg.HealthCheckInterval, svc.stopHealth)
	if cfg.EnableStateSync {
		svc.stopSync = make(chan struct{})
		go m.runSyncLoop(cfg.ServiceName, cfg.StateSyncInterval, svc.stopSync)
	}

	m.logger.Info("service registered",
		zap.String("service", cfg.ServiceName),
		zap.String("mode", string(cfg.Mode)),
		zap.Duration("health_check_interval", cfg.HealthCheckInterval))
	return nil
}

// UnregisterService stops the service's loops and removes all state
func (m *Manager) UnregisterService(name string) error {
	m.mu.Lock()
	svc, ok := m.services[name]
	if !ok {
		m.mu.Unlock()
		return ErrServiceNotFound
	}
	delete(m.services, name)
	m.mu.Unlock()

	svc.mu.Lock()
	if svc.stopHealth != nil {
		close(svc.stopHealth)
		svc.stopHealth = nil
	}
	if svc.stopSync != nil {
		close(svc.stopSync)
		svc.stopSync = nil
	}
	nodeIDs := append([]string(nil), svc.nodeOrder...)
	svc.mu.Unlock()

	for _, id := range nodeIDs {
		m.metrics.removeNode(name, id)
	}

	m.logger.Info("service unregistered", zap.String("service", name))
	return nil
}

// UpdateServiceConfig replaces a registered service's configuration
// and reschedules its background loops to the new intervals. Nodes,
// history and the primary pointer are preserved.
func (m *Manager) UpdateServiceConfig(cfg ServiceConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	svc := m.service(cfg.ServiceName)
	if svc == nil {
		return ErrServiceNotFound
	}

	svc.mu.Lock()
	if svc.stopHealth != nil {
		close(svc.stopHealth)
	}
	if svc.stopSync != nil {
		close(svc.stopSync)
		svc.stopSync = nil
	}
	svc.config = cfg
	svc.stopHealth = make(chan struct{})
	stopHealth := svc.stopHealth
	var stopSync chan struct{}
	if cfg.EnableStateSync {
		svc.stopSync = make(chan struct{})
		stopSync = svc.stopSync
	}
	svc.mu.Unlock()

	go m.runHealthLoop(cfg.ServiceName, cfg.HealthCheckInterval, stopHealth)
	if stopSync != nil {
		go m.runSyncLoop(cfg.ServiceName, cfg.StateSyncInterval, stopSync)
	}

	m.logger.Info("service config updated", zap.String("service", cfg.ServiceName))
	return nil
}

// AddNode registers a node with a service. Duplicate ids are rejected.
func (m *Manager) AddNode(serviceName string, node Node) error {
	if err := node.Validate(); err != nil {
		return err
	}

	svc := m.service(serviceName)
	if svc == nil {
		return ErrServiceNotFound
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	if _, exists := svc.nodes[node.ID]; exists {
		return ErrNodeExists
	}

	if node.Role == "" {
		if node.ID == svc.primaryID {
			node.Role = RolePrimary
		} else {
			node.Role = RoleStandby
		}
	}
	if node.Status == "" {
		node.Status = StatusHealthy
	}

	svc.nodes[node.ID] = &node
	svc.nodeOrder = append(svc.nodeOrder, node.ID)
	m.metrics.recordStatus(serviceName, node.ID, node.Status)
	return nil
}

// RemoveNode removes a node. Removing the current primary immediately
// triggers a failover attempt.
func (m *Manager) RemoveNode(serviceName, nodeID string) error {
	svc := m.service(serviceName)
	if svc == nil {
		return ErrServiceNotFound
	}

	svc.mu.Lock()
	if _, exists := svc.nodes[nodeID]; !exists {
		svc.mu.Unlock()
		return ErrNodeNotFound
	}
	delete(svc.nodes, nodeID)
	for i, id := range svc.nodeOrder {
		if id == nodeID {
			svc.nodeOrder = append(svc.nodeOrder[:i], svc.nodeOrder[i+1:]...)
			break
		}
	}
	wasPrimary := svc.primaryID == nodeID
	svc.mu.Unlock()

	m.metrics.removeNode(serviceName, nodeID)

	if wasPrimary {
		// Lock released above: the executor re-acquires it itself.
		m.performFailover(serviceName, "", "primary node removed")
	}
	return nil
}

// SwitchToPrimary promotes a node to primary, demoting the previous
// primary in the same critical section so no reader ever observes two
// primaries. Intended for manual operator override.
func (m *Manager) SwitchToPrimary(serviceName, nodeID string) error {
	svc := m.service(serviceName)
	if svc == nil {
		return ErrServiceNotFound
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	node, ok := svc.nodes[nodeID]
	if !ok {
		return ErrNodeNotFound
	}
	if old, ok := svc.nodes[svc.primaryID]; ok && svc.primaryID != nodeID {
		old.Role = RoleStandby
	}
	node.Role = RolePrimary
	svc.primaryID = nodeID
	return nil
}

// SwitchToStandby demotes a node to standby. If the node was the
// current primary the primary pointer is cleared; callers re-balancing
// roles manually are responsible for promoting a replacement.
func (m *Manager) SwitchToStandby(serviceName, nodeID string) error {
	svc := m.service(serviceName)
	if svc == nil {
		return ErrServiceNotFound
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	node, ok := svc.nodes[nodeID]
	if !ok {
		return ErrNodeNotFound
	}
	node.Role = RoleStandby
	if svc.primaryID == nodeID {
		svc.primaryID = ""
	}
	return nil
}

// SetEnabled toggles the global failover flag. Disabling does not stop
// probing, only failover execution.
func (m *Manager) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
	m.logger.Info("global failover flag changed", zap.Bool("enabled", enabled))
}

// Enabled reports the global failover flag
func (m *Manager) Enabled() bool {
	return m.enabled.Load()
}

// SetServiceEnabled toggles one service's enabled flag
func (m *Manager) SetServiceEnabled(serviceName string, enabled bool) error {
	svc := m.service(serviceName)
	if svc == nil {
		return ErrServiceNotFound
	}
	svc.mu.Lock()
	svc.enabled = enabled
	svc.mu.Unlock()
	m.logger.Info("service failover flag changed",
		zap.String("service", serviceName), zap.Bool("enabled", enabled))
	return nil
}

// ListServices returns the names of all registered services, sorted
func (m *Manager) ListServices() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.services))
	for name := range m.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetServiceConfig returns a service's configuration
func (m *Manager) GetServiceConfig(serviceName string) (ServiceConfig, error) {
	svc := m.service(serviceName)
	if svc == nil {
		return ServiceConfig{}, ErrServiceNotFound
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.config, nil
}

// GetNode returns a copy of one node
func (m *Manager) GetNode(serviceName, nodeID string) (*Node, error) {
	svc := m.service(serviceName)
	if svc == nil {
		return nil, ErrServiceNotFound
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()

	node, ok := svc.nodes[nodeID]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return node.clone(), nil
}

// ListNodes returns copies of all nodes in registration order
func (m *Manager) ListNodes(serviceName string) ([]*Node, error) {
	svc := m.service(serviceName)
	if svc == nil {
		return nil, ErrServiceNotFound
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()

	nodes := make([]*Node, 0, len(svc.nodes))
	for _, id := range svc.nodeOrder {
		nodes = append(nodes, svc.nodes[id].clone())
	}
	return nodes, nil
}

// GetPrimary returns a copy of the current primary node
func (m *Manager) GetPrimary(serviceName string) (*Node, error) {
	svc := m.service(serviceName)
	if svc == nil {
		return nil, ErrServiceNotFound
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()

	node, ok := svc.nodes[svc.primaryID]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return node.clone(), nil
}

// ListStandbys returns copies of all standby nodes in registration order
func (m *Manager) ListStandbys(serviceName string) ([]*Node, error) {
	svc := m.service(serviceName)
	if svc == nil {
		return nil, ErrServiceNotFound
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()

	standbys := make([]*Node, 0)
	for _, id := range svc.nodeOrder {
		if svc.nodes[id].Role == RoleStandby {
			standbys = append(standbys, svc.nodes[id].clone())
		}
	}
	return standbys, nil
}

// ServiceStatus returns the aggregate status of a service: the current
// primary's status, or StatusFailed when no primary is resolvable.
func (m *Manager) ServiceStatus(serviceName string) (Status, error) {
	svc := m.service(serviceName)
	if svc == nil {
		return "", ErrServiceNotFound
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()

	node, ok := svc.nodes[svc.primaryID]
	if !ok {
		return StatusFailed, nil
	}
	return node.Status, nil
}

// GetFailoverHistory returns failover events newest-first, truncated
// to limit (limit <= 0 returns everything retained).
func (m *Manager) GetFailoverHistory(serviceName string, limit int) ([]Event, error) {
	svc := m.service(serviceName)
	if svc == nil {
		return nil, ErrServiceNotFound
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.history.newest(limit), nil
}

// Stop shuts down all background loops. The manager must not be
// reused afterwards.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, svc := range m.services {
		svc.mu.Lock()
		if svc.stopHealth != nil {
			close(svc.stopHealth)
			svc.stopHealth = nil
		}
		if svc.stopSync != nil {
			close(svc.stopSync)
			svc.stopSync = nil
		}
		svc.mu.Unlock()
		m.logger.Debug("stopped loops", zap.String("service", name))
	}
	m.services = make(map[string]*serviceState)
}

func (m *Manager) service(name string) *serviceState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.services[name]
}

func (m *Manager) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fmt.Sprintf("failover.Manager(%d services)", len(m.services))
}
