package worker_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeops/orchestrator/pkg/domain"
	"github.com/forgeops/orchestrator/pkg/executor"
	"github.com/forgeops/orchestrator/pkg/worker"
)

func newTaskWithResourceSpec(t *testing.T, action string, spec domain.ResourceSpec) *domain.Task {
	t.Helper()
	task := domain.NewTask("deploy-1", "s1", "step one", spec.Provider, action, "idem-1", 3, 60)
	task.InputData = map[string]interface{}{"resource_spec": spec.AsMap()}
	return task
}

func TestTerraformHandler_CreateAction(t *testing.T) {
	tf, err := executor.NewSimulatedTerraformExecutor(t.TempDir())
	require.NoError(t, err)
	handler, err := worker.NewTerraformHandler(tf)
	require.NoError(t, err)

	spec := domain.ResourceSpec{ResourceType: domain.ResourceCompute, Provider: domain.ProviderAWS, Region: "us-east-1", Name: "app"}
	task := newTaskWithResourceSpec(t, "create", spec)

	output, err := handler.Execute(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, "create", output["action"])
	assert.Equal(t, "app", output["resource"])
}

func TestTerraformHandler_DestroyAction(t *testing.T) {
	tf, err := executor.NewSimulatedTerraformExecutor(t.TempDir())
	require.NoError(t, err)
	handler, err := worker.NewTerraformHandler(tf)
	require.NoError(t, err)

	spec := domain.ResourceSpec{ResourceType: domain.ResourceCompute, Provider: domain.ProviderAzure, Region: "eastus", Name: "app"}
	createTask := newTaskWithResourceSpec(t, "create", spec)
	_, err = handler.Execute(context.Background(), createTask)
	require.NoError(t, err)

	destroyTask := newTaskWithResourceSpec(t, "destroy", spec)
	destroyTask.DeploymentID = createTask.DeploymentID
	destroyTask.StepID = createTask.StepID
	output, err := handler.Execute(context.Background(), destroyTask)
	require.NoError(t, err)
	assert.Equal(t, "destroy", output["action"])
}

func TestTerraformHandler_InitFailureReturnsExecutionError(t *testing.T) {
	tf, err := executor.NewSimulatedTerraformExecutor(t.TempDir())
	require.NoError(t, err)
	handler, err := worker.NewTerraformHandler(tf)
	require.NoError(t, err)

	spec := domain.ResourceSpec{ResourceType: domain.ResourceCompute, Provider: domain.CloudProviderType("openstack"), Name: "app"}
	task := newTaskWithResourceSpec(t, "create", spec)

	_, err = handler.Execute(context.Background(), task)
	require.Error(t, err)
	var execErr *worker.ExecutionError
	assert.ErrorAs(t, err, &execErr)
	assert.Equal(t, "init", execErr.Phase)
}
