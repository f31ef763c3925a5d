package storage

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeops/orchestrator/pkg/domain"
)

func freeLocalAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func newBootstrappedRaftStore(t *testing.T) *RaftStore {
	t.Helper()
	store, err := NewRaftStore(RaftConfig{
		NodeID:    "node-1",
		BindAddr:  freeLocalAddr(t),
		DataDir:   t.TempDir(),
		Bootstrap: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Shutdown() })

	require.Eventually(t, store.IsLeader, 5*time.Second, 20*time.Millisecond,
		"single-node cluster should elect itself leader")
	return store
}

func TestRaftStore_SingleNodeBecomesLeader(t *testing.T) {
	store := newBootstrappedRaftStore(t)
	assert.True(t, store.IsLeader())
	assert.NotEmpty(t, store.Leader())
}

func TestRaftStore_DeploymentWriteReplicatesToLocalFSM(t *testing.T) {
	store := newBootstrappedRaftStore(t)
	ctx := context.Background()

	d := domain.NewDeployment("deploy-1", domain.DeploymentIntent{Environment: "prod"}, "alice", "tenant-1")
	require.NoError(t, store.Deployments().Save(ctx, d))

	fetched, err := store.Deployments().GetByID(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, d.ID, fetched.ID)
}

func TestRaftStore_TaskAcquireNextAppliedThroughLog(t *testing.T) {
	store := newBootstrappedRaftStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		task := domain.NewTask("deploy-1", fmt.Sprintf("s%d", i), "step", domain.ProviderAWS, "create", fmt.Sprintf("idem-%d", i), 3, 60)
		require.NoError(t, task.Enqueue())
		require.NoError(t, store.Tasks().Save(ctx, task))
	}

	first, err := store.Tasks().AcquireNext(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, domain.TaskAcquired, first.Status)

	second, err := store.Tasks().AcquireNext(ctx, "worker-2")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
}
