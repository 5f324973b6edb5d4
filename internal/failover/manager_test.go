package failover

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProber lets tests script probe outcomes per endpoint
type fakeProber struct {
	mu      sync.Mutex
	healthy map[string]bool
}

func newFakeProber() *fakeProber {
	return &fakeProber{healthy: make(map[string]bool)}
}

func (f *fakeProber) set(endpoint string, healthy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthy[endpoint] = healthy
}

func (f *fakeProber) Probe(_ context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.healthy[endpoint] {
		return nil
	}
	return errors.New("endpoint down")
}

// testConfig returns a valid config with intervals long enough that
// background loops never fire during a test
func testConfig(name string) ServiceConfig {
	return ServiceConfig{
		ServiceName:         name,
		Mode:                ModeAutomatic,
		HealthCheckInterval: time.Hour,
		StateSyncInterval:   time.Hour,
		FailureThreshold:    3,
		PrimaryNodeIDs:      []string{"p1"},
		StandbyNodeIDs:      []string{"s1"},
	}
}

func TestManager_RegisterService(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))

	assert.Equal(t, []string{"db"}, m.ListServices())

	cfg, err := m.GetServiceConfig("db")
	require.NoError(t, err)
	assert.Equal(t, ModeAutomatic, cfg.Mode)
	assert.Equal(t, 3, cfg.FailureThreshold)
}

func TestManager_RegisterService_Invalid(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	assert.Error(t, m.RegisterService(ServiceConfig{}))

	cfg := testConfig("db")
	cfg.PrimaryNodeIDs = nil
	assert.Error(t, m.RegisterService(cfg))

	cfg = testConfig("db")
	cfg.StandbyNodeIDs = nil
	assert.Error(t, m.RegisterService(cfg))

	cfg = testConfig("db")
	cfg.Mode = "sometimes"
	assert.Error(t, m.RegisterService(cfg))
}

func TestManager_RegisterService_Duplicate(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))
	err := m.RegisterService(testConfig("db"))
	assert.ErrorIs(t, err, ErrServiceExists)
}

func TestManager_RegisterService_Defaults(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	cfg := ServiceConfig{
		ServiceName:    "db",
		PrimaryNodeIDs: []string{"p1"},
		StandbyNodeIDs: []string{"s1"},
	}
	require.NoError(t, m.RegisterService(cfg))

	got, err := m.GetServiceConfig("db")
	require.NoError(t, err)
	assert.Equal(t, ModeAutomatic, got.Mode)
	assert.Equal(t, DefaultHealthCheckInterval, got.HealthCheckInterval)
	assert.Equal(t, DefaultFailureThreshold, got.FailureThreshold)
	assert.Equal(t, DefaultRecoveryThreshold, got.RecoveryThreshold)
}

func TestManager_UnregisterService(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))
	require.NoError(t, m.UnregisterService("db"))

	assert.Empty(t, m.ListServices())
	assert.ErrorIs(t, m.UnregisterService("db"), ErrServiceNotFound)
	_, err := m.ListNodes("db")
	assert.ErrorIs(t, err, ErrServiceNotFound)
}

func TestManager_AddNode(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))

	err := m.AddNode("db", Node{ID: "p1", Endpoint: "http://p1:8080"})
	require.NoError(t, err)

	node, err := m.GetNode("db", "p1")
	require.NoError(t, err)
	// p1 is the seeded primary pointer, so it comes up as primary
	assert.Equal(t, RolePrimary, node.Role)
	assert.Equal(t, StatusHealthy, node.Status)

	require.NoError(t, m.AddNode("db", Node{ID: "s1", Endpoint: "http://s1:8080"}))
	node, err = m.GetNode("db", "s1")
	require.NoError(t, err)
	assert.Equal(t, RoleStandby, node.Role)
}

func TestManager_AddNode_Invalid(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))

	assert.Error(t, m.AddNode("db", Node{Endpoint: "http://x"}))
	assert.Error(t, m.AddNode("db", Node{ID: "n1"}))
	assert.ErrorIs(t, m.AddNode("other", Node{ID: "n1", Endpoint: "http://x"}), ErrServiceNotFound)

	require.NoError(t, m.AddNode("db", Node{ID: "n1", Endpoint: "http://x"}))
	assert.ErrorIs(t, m.AddNode("db", Node{ID: "n1", Endpoint: "http://y"}), ErrNodeExists)
}

func TestManager_RemoveNode_PrimaryTriggersFailover(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))
	require.NoError(t, m.AddNode("db", Node{ID: "p1", Endpoint: "http://p1:8080"}))
	require.NoError(t, m.AddNode("db", Node{ID: "s1", Endpoint: "http://s1:8080"}))

	require.NoError(t, m.RemoveNode("db", "p1"))

	primary, err := m.GetPrimary("db")
	require.NoError(t, err)
	assert.Equal(t, "s1", primary.ID)

	events, err := m.GetFailoverHistory("db", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Success)
	assert.Equal(t, "p1", events[0].FromNodeID)
	assert.Equal(t, "s1", events[0].ToNodeID)
	assert.Contains(t, events[0].Reason, "removed")
}

func TestManager_RemoveNode_Standby(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))
	require.NoError(t, m.AddNode("db", Node{ID: "p1", Endpoint: "http://p1:8080"}))
	require.NoError(t, m.AddNode("db", Node{ID: "s1", Endpoint: "http://s1:8080"}))

	require.NoError(t, m.RemoveNode("db", "s1"))

	// No failover for a standby removal
	events, err := m.GetFailoverHistory("db", 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	assert.ErrorIs(t, m.RemoveNode("db", "s1"), ErrNodeNotFound)
}

func TestManager_SwitchPrimitives(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))
	require.NoError(t, m.AddNode("db", Node{ID: "p1", Endpoint: "http://p1:8080"}))
	require.NoError(t, m.AddNode("db", Node{ID: "s1", Endpoint: "http://s1:8080"}))

	require.NoError(t, m.SwitchToPrimary("db", "s1"))

	primary, err := m.GetPrimary("db")
	require.NoError(t, err)
	assert.Equal(t, "s1", primary.ID)

	// Old primary was demoted in the same step
	old, err := m.GetNode("db", "p1")
	require.NoError(t, err)
	assert.Equal(t, RoleStandby, old.Role)

	require.NoError(t, m.SwitchToStandby("db", "s1"))
	_, err = m.GetPrimary("db")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestManager_ServiceStatus(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))

	// Primary pointer is seeded but the node does not exist yet
	status, err := m.ServiceStatus("db")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status)

	require.NoError(t, m.AddNode("db", Node{ID: "p1", Endpoint: "http://p1:8080"}))
	status, err = m.ServiceStatus("db")
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, status)
}

func TestManager_ListStandbys(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))
	require.NoError(t, m.AddNode("db", Node{ID: "p1", Endpoint: "http://p1:8080"}))
	require.NoError(t, m.AddNode("db", Node{ID: "s1", Endpoint: "http://s1:8080"}))
	require.NoError(t, m.AddNode("db", Node{ID: "s2", Endpoint: "http://s2:8080"}))

	standbys, err := m.ListStandbys("db")
	require.NoError(t, err)
	require.Len(t, standbys, 2)
	assert.Equal(t, "s1", standbys[0].ID)
	assert.Equal(t, "s2", standbys[1].ID)
}

func TestManager_QueriesReturnCopies(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))
	require.NoError(t, m.AddNode("db", Node{
		ID: "p1", Endpoint: "http://p1:8080",
		Metadata: map[string]string{"zone": "a"},
	}))

	node, err := m.GetNode("db", "p1")
	require.NoError(t, err)
	node.Status = StatusFailed
	node.Metadata["zone"] = "b"

	again, err := m.GetNode("db", "p1")
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, again.Status)
	assert.Equal(t, "a", again.Metadata["zone"])
}

func TestManager_UpdateServiceConfig(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))
	require.NoError(t, m.AddNode("db", Node{ID: "p1", Endpoint: "http://p1:8080"}))

	cfg := testConfig("db")
	cfg.FailureThreshold = 5
	cfg.Mode = ModeManual
	require.NoError(t, m.UpdateServiceConfig(cfg))

	got, err := m.GetServiceConfig("db")
	require.NoError(t, err)
	assert.Equal(t, 5, got.FailureThreshold)
	assert.Equal(t, ModeManual, got.Mode)

	// Nodes survive the update
	nodes, err := m.ListNodes("db")
	require.NoError(t, err)
	assert.Len(t, nodes, 1)

	assert.ErrorIs(t, m.UpdateServiceConfig(testConfig("missing")), ErrServiceNotFound)
}
