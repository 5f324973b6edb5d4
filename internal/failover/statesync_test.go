package failover

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingSyncer captures state-sync invocations
type recordingSyncer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recordingSyncer) SyncState(_ context.Context, service string, primary, standby *Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, service+":"+primary.ID+"->"+standby.ID)
	return r.err
}

func TestSyncService_PropagatesToHealthyStandbys(t *testing.T) {
	syncer := &recordingSyncer{}
	m := NewManager(zap.NewNop(), WithStateSyncer(syncer))
	defer m.Stop()

	cfg := testConfig("db")
	cfg.EnableStateSync = true
	require.NoError(t, m.RegisterService(cfg))
	require.NoError(t, m.AddNode("db", Node{ID: "p1", Endpoint: "http://p1:8080"}))
	require.NoError(t, m.AddNode("db", Node{ID: "s1", Endpoint: "http://s1:8080"}))
	require.NoError(t, m.AddNode("db", Node{
		ID: "s2", Endpoint: "http://s2:8080", Role: RoleStandby, Status: StatusFailed,
	}))

	m.syncService(context.Background(), "db")

	syncer.mu.Lock()
	defer syncer.mu.Unlock()
	// Only the healthy standby was synced; the failed one was skipped
	assert.Equal(t, []string{"db:p1->s1"}, syncer.calls)
}

func TestSyncService_NoPrimaryIsANoop(t *testing.T) {
	syncer := &recordingSyncer{}
	m := NewManager(zap.NewNop(), WithStateSyncer(syncer))
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))
	require.NoError(t, m.AddNode("db", Node{ID: "s1", Endpoint: "http://s1:8080", Role: RoleStandby}))

	// Primary pointer references a node that was never added
	m.syncService(context.Background(), "db")

	syncer.mu.Lock()
	defer syncer.mu.Unlock()
	assert.Empty(t, syncer.calls)
}

func TestSyncService_ErrorsAreSwallowed(t *testing.T) {
	syncer := &recordingSyncer{err: errors.New("transfer interrupted")}
	m := NewManager(zap.NewNop(), WithStateSyncer(syncer))
	defer m.Stop()

	require.NoError(t, m.RegisterService(testConfig("db")))
	require.NoError(t, m.AddNode("db", Node{ID: "p1", Endpoint: "http://p1:8080"}))
	require.NoError(t, m.AddNode("db", Node{ID: "s1", Endpoint: "http://s1:8080"}))

	// Must not panic or surface the error
	m.syncService(context.Background(), "db")

	syncer.mu.Lock()
	defer syncer.mu.Unlock()
	assert.Len(t, syncer.calls, 1)
}

func TestNoopSyncer(t *testing.T) {
	assert.NoError(t, NoopSyncer{}.SyncState(context.Background(), "db", &Node{}, &Node{}))
}
