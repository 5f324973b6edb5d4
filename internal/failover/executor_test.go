package failover

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPerformFailover_SelectsLowestFailureStandby(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))
	require.NoError(t, m.AddNode("db", Node{ID: "p1", Endpoint: "http://p1:8080"}))
	require.NoError(t, m.AddNode("db", Node{
		ID: "a", Endpoint: "http://a:8080", Role: RoleStandby,
		Status: StatusHealthy, ConsecutiveFailures: 2,
	}))
	require.NoError(t, m.AddNode("db", Node{
		ID: "b", Endpoint: "http://b:8080", Role: RoleStandby,
		Status: StatusHealthy, ConsecutiveFailures: 0,
	}))

	assert.True(t, m.TriggerFailover("db"))

	primary, err := m.GetPrimary("db")
	require.NoError(t, err)
	assert.Equal(t, "b", primary.ID)
}

func TestPerformFailover_SkipsUnhealthyStandbys(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))
	require.NoError(t, m.AddNode("db", Node{ID: "p1", Endpoint: "http://p1:8080"}))
	require.NoError(t, m.AddNode("db", Node{
		ID: "a", Endpoint: "http://a:8080", Role: RoleStandby, Status: StatusFailed,
	}))
	require.NoError(t, m.AddNode("db", Node{
		ID: "b", Endpoint: "http://b:8080", Role: RoleStandby, Status: StatusHealthy,
	}))

	assert.True(t, m.TriggerFailover("db"))

	primary, err := m.GetPrimary("db")
	require.NoError(t, err)
	assert.Equal(t, "b", primary.ID)
}

func TestPerformFailover_NoStandby(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))
	require.NoError(t, m.AddNode("db", Node{ID: "p1", Endpoint: "http://p1:8080"}))

	assert.False(t, m.TriggerFailover("db"))

	// Primary pointer unchanged, failed attempt still auditable
	primary, err := m.GetPrimary("db")
	require.NoError(t, err)
	assert.Equal(t, "p1", primary.ID)
	assert.Equal(t, RolePrimary, primary.Role)

	events, err := m.GetFailoverHistory("db", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Success)
	assert.Equal(t, "p1", events[0].FromNodeID)
}

func TestPerformFailover_TargetIsCurrentPrimary(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))
	require.NoError(t, m.AddNode("db", Node{ID: "p1", Endpoint: "http://p1:8080"}))

	// Successful no-op: true, no role change, no event recorded
	assert.True(t, m.PerformFailover("db", "p1"))

	events, err := m.GetFailoverHistory("db", 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPerformFailover_ExplicitTarget(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))
	require.NoError(t, m.AddNode("db", Node{ID: "p1", Endpoint: "http://p1:8080"}))
	require.NoError(t, m.AddNode("db", Node{ID: "s1", Endpoint: "http://s1:8080"}))

	assert.True(t, m.PerformFailover("db", "s1"))

	primary, err := m.GetPrimary("db")
	require.NoError(t, err)
	assert.Equal(t, "s1", primary.ID)

	old, err := m.GetNode("db", "p1")
	require.NoError(t, err)
	assert.Equal(t, RoleStandby, old.Role)
}

func TestPerformFailover_UnknownTarget(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))
	require.NoError(t, m.AddNode("db", Node{ID: "p1", Endpoint: "http://p1:8080"}))

	assert.False(t, m.PerformFailover("db", "ghost"))

	events, err := m.GetFailoverHistory("db", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Success)
}

func TestPerformFailover_UnknownService(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	assert.False(t, m.PerformFailover("missing", ""))
}

func TestPerformFailover_GloballyDisabled(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))
	require.NoError(t, m.AddNode("db", Node{ID: "p1", Endpoint: "http://p1:8080"}))
	require.NoError(t, m.AddNode("db", Node{ID: "s1", Endpoint: "http://s1:8080"}))

	m.SetEnabled(false)
	assert.False(t, m.TriggerFailover("db"))

	primary, err := m.GetPrimary("db")
	require.NoError(t, err)
	assert.Equal(t, "p1", primary.ID)

	events, err := m.GetFailoverHistory("db", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Success)
	assert.Contains(t, events[0].Reason, "disabled")

	m.SetEnabled(true)
	assert.True(t, m.TriggerFailover("db"))
}

func TestPerformFailover_ServiceDisabled(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))
	require.NoError(t, m.AddNode("db", Node{ID: "p1", Endpoint: "http://p1:8080"}))
	require.NoError(t, m.AddNode("db", Node{ID: "s1", Endpoint: "http://s1:8080"}))
	require.NoError(t, m.SetServiceEnabled("db", false))

	assert.False(t, m.TriggerFailover("db"))
}

func TestFailoverHistory_Bounded(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))
	require.NoError(t, m.AddNode("db", Node{ID: "p1", Endpoint: "http://p1:8080"}))
	require.NoError(t, m.AddNode("db", Node{ID: "s1", Endpoint: "http://s1:8080"}))

	// Ping-pong between the two nodes to generate 101 events
	for i := 0; i < 101; i++ {
		var target string
		if i%2 == 0 {
			target = "s1"
		} else {
			target = "p1"
		}
		require.True(t, m.PerformFailover("db", target), fmt.Sprintf("failover %d", i))
	}

	events, err := m.GetFailoverHistory("db", 0)
	require.NoError(t, err)
	assert.Len(t, events, 100)

	// Newest first, and the oldest event was evicted
	assert.Equal(t, "s1", events[0].ToNodeID)
	assert.Equal(t, "p1", events[99].ToNodeID)

	limited, err := m.GetFailoverHistory("db", 5)
	require.NoError(t, err)
	assert.Len(t, limited, 5)
	assert.Equal(t, events[0], limited[0])
}
