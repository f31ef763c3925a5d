package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeops/orchestrator/pkg/domain"
)

func newTestBoltStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_DeploymentSaveGetByIDRoundTrips(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()

	d := domain.NewDeployment("deploy-1", domain.DeploymentIntent{Environment: "prod"}, "alice", "tenant-1")
	require.NoError(t, store.Deployments().Save(ctx, d))

	fetched, err := store.Deployments().GetByID(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, d.TenantID, fetched.TenantID)
	assert.Equal(t, d.Status, fetched.Status)
}

func TestStore_DeploymentGetByIDMissingReturnsNilNoError(t *testing.T) {
	store := newTestBoltStore(t)
	fetched, err := store.Deployments().GetByID(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, fetched)
}

func TestStore_DeploymentListByTenantAndStatus(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()

	a := domain.NewDeployment("deploy-a", domain.DeploymentIntent{Environment: "prod"}, "alice", "tenant-1")
	b := domain.NewDeployment("deploy-b", domain.DeploymentIntent{Environment: "prod"}, "alice", "tenant-2")
	require.NoError(t, store.Deployments().Save(ctx, a))
	require.NoError(t, store.Deployments().Save(ctx, b))

	byTenant, err := store.Deployments().ListByTenant(ctx, "tenant-1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, byTenant, 1)
	assert.Equal(t, a.ID, byTenant[0].ID)

	count, err := store.Deployments().CountByStatus(ctx, domain.DeploymentPending)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStore_TaskAcquireNextIsFIFOAndExclusive(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()

	task1 := domain.NewTask("deploy-1", "s1", "step one", domain.ProviderAWS, "create", "idem-1", 3, 60)
	require.NoError(t, task1.Enqueue())
	require.NoError(t, store.Tasks().Save(ctx, task1))

	task2 := domain.NewTask("deploy-1", "s2", "step two", domain.ProviderAWS, "create", "idem-2", 3, 60)
	require.NoError(t, task2.Enqueue())
	require.NoError(t, store.Tasks().Save(ctx, task2))

	claimed, err := store.Tasks().AcquireNext(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, task1.ID, claimed.ID)
	assert.Equal(t, domain.TaskAcquired, claimed.Status)

	claimedAgain, err := store.Tasks().AcquireNext(ctx, "worker-2")
	require.NoError(t, err)
	require.NotNil(t, claimedAgain)
	assert.Equal(t, task2.ID, claimedAgain.ID)

	none, err := store.Tasks().AcquireNext(ctx, "worker-3")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestStore_TaskListByDeploymentOrdersByCreatedAt(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()

	task1 := domain.NewTask("deploy-1", "s1", "step one", domain.ProviderAWS, "create", "idem-1", 3, 60)
	task2 := domain.NewTask("deploy-1", "s2", "step two", domain.ProviderAWS, "create", "idem-2", 3, 60)
	require.NoError(t, store.Tasks().Save(ctx, task1))
	require.NoError(t, store.Tasks().Save(ctx, task2))

	tasks, err := store.Tasks().ListByDeployment(ctx, "deploy-1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, task1.ID, tasks[0].ID)
}

func TestStore_DriftReportSaveAndGetLatest(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()

	older := domain.NewDriftReport("deploy-1", "scheduled")
	require.NoError(t, store.DriftReports().Save(ctx, older))
	newer := domain.NewDriftReport("deploy-1", "scheduled")
	require.NoError(t, store.DriftReports().Save(ctx, newer))

	latest, err := store.DriftReports().GetLatestForDeployment(ctx, "deploy-1")
	require.NoError(t, err)
	require.NotNil(t, latest)

	reports, err := store.DriftReports().ListByDeployment(ctx, "deploy-1", 10)
	require.NoError(t, err)
	assert.Len(t, reports, 2)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	d := domain.NewDeployment("deploy-1", domain.DeploymentIntent{Environment: "prod"}, "alice", "tenant-1")
	require.NoError(t, store.Deployments().Save(context.Background(), d))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	fetched, err := reopened.Deployments().GetByID(context.Background(), d.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, d.ID, fetched.ID)
}
