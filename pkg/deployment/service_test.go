package deployment_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeops/orchestrator/pkg/deployment"
	"github.com/forgeops/orchestrator/pkg/domain"
	"github.com/forgeops/orchestrator/pkg/eventbus"
	"github.com/forgeops/orchestrator/pkg/lock"
	"github.com/forgeops/orchestrator/pkg/planner"
	"github.com/forgeops/orchestrator/pkg/storage"
)

func newTestService(t *testing.T) (*deployment.Service, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	broker := eventbus.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)
	publisher := eventbus.NewInMemoryPublisher(broker)
	svc := deployment.NewService(store.Deployments(), store.Tasks(), planner.NewRuleBasedEngine(), publisher, lock.NewMemoryLock())
	return svc, store
}

// startTask drives a freshly-queued task to RUNNING and persists it, the
// state HandleTaskCompletion expects a task to be in before it is told
// the task's outcome.
func startTask(t *testing.T, store *storage.MemoryStore, task *domain.Task) {
	t.Helper()
	require.NoError(t, task.Acquire("worker-1"))
	require.NoError(t, task.Start())
	require.NoError(t, store.Tasks().Update(context.Background(), task))
}

func testIntent() domain.DeploymentIntent {
	return domain.DeploymentIntent{
		TargetProviders: []domain.CloudProviderType{domain.ProviderAWS},
		Environment:     "staging",
		Strategy:        domain.StrategyRolling,
	}
}

func TestService_CreatePlanApproveExecute(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	d, err := svc.CreateDeployment(ctx, testIntent(), "alice", "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentPending, d.Status)

	planned, err := svc.PlanDeployment(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentAwaitingApproval, planned.Status)
	assert.NotNil(t, planned.Plan)

	approved, err := svc.ApproveDeployment(ctx, d.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentApproved, approved.Status)

	tasks, err := svc.ExecuteDeployment(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, planned.Plan.StepCount())
	for _, task := range tasks {
		assert.Equal(t, domain.TaskQueued, task.Status)
	}
}

func TestService_PlanUnknownDeploymentReturnsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.PlanDeployment(context.Background(), "does-not-exist")
	require.Error(t, err)
	var notFound *deployment.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestService_ExecuteWithoutPlanReturnsPlanMissing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	d, err := svc.CreateDeployment(ctx, testIntent(), "alice", "tenant-1")
	require.NoError(t, err)

	_, err = svc.ExecuteDeployment(ctx, d.ID)
	require.Error(t, err)
	var planMissing *deployment.PlanMissingError
	assert.ErrorAs(t, err, &planMissing)
}

func TestService_HandleTaskCompletionAdvancesToVerifying(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	d, err := svc.CreateDeployment(ctx, testIntent(), "alice", "tenant-1")
	require.NoError(t, err)
	_, err = svc.PlanDeployment(ctx, d.ID)
	require.NoError(t, err)
	_, err = svc.ApproveDeployment(ctx, d.ID, "bob")
	require.NoError(t, err)
	tasks, err := svc.ExecuteDeployment(ctx, d.ID)
	require.NoError(t, err)

	for _, task := range tasks {
		startTask(t, store, task)
		require.NoError(t, svc.HandleTaskCompletion(ctx, task.ID, true, map[string]interface{}{"ok": true}, ""))
	}

	updated, err := store.Deployments().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentVerifying, updated.Status)
}

func TestService_HandleTaskCompletionFailureTriggersRollback(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	intent := testIntent()
	intent.RollbackOnFailure = true
	d, err := svc.CreateDeployment(ctx, intent, "alice", "tenant-1")
	require.NoError(t, err)
	_, err = svc.PlanDeployment(ctx, d.ID)
	require.NoError(t, err)
	_, err = svc.ApproveDeployment(ctx, d.ID, "bob")
	require.NoError(t, err)
	tasks, err := svc.ExecuteDeployment(ctx, d.ID)
	require.NoError(t, err)
	require.NotEmpty(t, tasks)

	startTask(t, store, tasks[0])
	require.NoError(t, svc.HandleTaskCompletion(ctx, tasks[0].ID, false, nil, "provider timeout"))

	updated, err := store.Deployments().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentRollingBack, updated.Status)
}

func TestService_RollbackEnqueuesDestroyTasksForSucceededSteps(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	d, err := svc.CreateDeployment(ctx, testIntent(), "alice", "tenant-1")
	require.NoError(t, err)
	_, err = svc.PlanDeployment(ctx, d.ID)
	require.NoError(t, err)
	_, err = svc.ApproveDeployment(ctx, d.ID, "bob")
	require.NoError(t, err)
	tasks, err := svc.ExecuteDeployment(ctx, d.ID)
	require.NoError(t, err)

	for _, task := range tasks {
		startTask(t, store, task)
		require.NoError(t, svc.HandleTaskCompletion(ctx, task.ID, true, nil, ""))
	}

	_, err = svc.RollbackDeployment(ctx, d.ID)
	require.NoError(t, err)

	allTasks, err := store.Tasks().ListByDeployment(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, allTasks, len(tasks)*2, "one destroy task per succeeded step in addition to the originals")
}

func rollbackTasksOf(t *testing.T, store *storage.MemoryStore, deploymentID string) []*domain.Task {
	t.Helper()
	allTasks, err := store.Tasks().ListByDeployment(context.Background(), deploymentID)
	require.NoError(t, err)
	var rollback []*domain.Task
	for _, task := range allTasks {
		if strings.HasSuffix(task.IdempotencyKey, ":rollback") {
			rollback = append(rollback, task)
		}
	}
	return rollback
}

func TestService_HandleTaskCompletionCompletesRollbackWhenDestroyTasksSucceed(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	d, err := svc.CreateDeployment(ctx, testIntent(), "alice", "tenant-1")
	require.NoError(t, err)
	_, err = svc.PlanDeployment(ctx, d.ID)
	require.NoError(t, err)
	_, err = svc.ApproveDeployment(ctx, d.ID, "bob")
	require.NoError(t, err)
	tasks, err := svc.ExecuteDeployment(ctx, d.ID)
	require.NoError(t, err)

	for _, task := range tasks {
		startTask(t, store, task)
		require.NoError(t, svc.HandleTaskCompletion(ctx, task.ID, true, nil, ""))
	}

	_, err = svc.RollbackDeployment(ctx, d.ID)
	require.NoError(t, err)

	rollbackTasks := rollbackTasksOf(t, store, d.ID)
	require.NotEmpty(t, rollbackTasks)

	for _, task := range rollbackTasks {
		startTask(t, store, task)
		require.NoError(t, svc.HandleTaskCompletion(ctx, task.ID, true, nil, ""))
	}

	updated, err := store.Deployments().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentRolledBack, updated.Status)
}

func TestService_HandleTaskCompletionFailsDeploymentWhenRollbackTaskExhaustsRetries(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	d, err := svc.CreateDeployment(ctx, testIntent(), "alice", "tenant-1")
	require.NoError(t, err)
	_, err = svc.PlanDeployment(ctx, d.ID)
	require.NoError(t, err)
	_, err = svc.ApproveDeployment(ctx, d.ID, "bob")
	require.NoError(t, err)
	tasks, err := svc.ExecuteDeployment(ctx, d.ID)
	require.NoError(t, err)

	for _, task := range tasks {
		startTask(t, store, task)
		require.NoError(t, svc.HandleTaskCompletion(ctx, task.ID, true, nil, ""))
	}

	_, err = svc.RollbackDeployment(ctx, d.ID)
	require.NoError(t, err)

	rollbackTasks := rollbackTasksOf(t, store, d.ID)
	require.NotEmpty(t, rollbackTasks)

	for i, task := range rollbackTasks {
		task.AttemptNumber = task.MaxAttempts
		startTask(t, store, task)
		if i == 0 {
			require.NoError(t, svc.HandleTaskCompletion(ctx, task.ID, false, nil, "destroy failed"))
		} else {
			require.NoError(t, svc.HandleTaskCompletion(ctx, task.ID, true, nil, ""))
		}
	}

	updated, err := store.Deployments().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentFailed, updated.Status)
}
