package worker_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeops/orchestrator/pkg/domain"
	"github.com/forgeops/orchestrator/pkg/health"
	"github.com/forgeops/orchestrator/pkg/worker"
)

func newHealthCheckTask(resourceIDs interface{}, provider string) *domain.Task {
	task := domain.NewTask("deploy-1", "s1", "health check", domain.ProviderAWS, "health_check", "idem-1", 1, 30)
	task.InputData = map[string]interface{}{"resource_ids": resourceIDs}
	if provider != "" {
		task.InputData["provider"] = provider
	}
	return task
}

func TestHealthCheckHandler_AllHealthyWithInterfaceSlice(t *testing.T) {
	handler := worker.NewHealthCheckHandler(health.NewSimulatedResourceChecker())
	task := newHealthCheckTask([]interface{}{"i-1", "i-2"}, "")

	output, err := handler.Execute(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, true, output["all_healthy"])

	results, ok := output["results"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, results, 2)
}

func TestHealthCheckHandler_AcceptsStringSlice(t *testing.T) {
	handler := worker.NewHealthCheckHandler(health.NewSimulatedResourceChecker())
	task := newHealthCheckTask([]string{"i-1"}, "azure")

	output, err := handler.Execute(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, true, output["all_healthy"])
}

func TestHealthCheckHandler_NoResourceIDsYieldsEmptyResults(t *testing.T) {
	handler := worker.NewHealthCheckHandler(health.NewSimulatedResourceChecker())
	task := newHealthCheckTask(nil, "")

	output, err := handler.Execute(context.Background(), task)
	require.NoError(t, err)
	results, ok := output["results"].(map[string]interface{})
	require.True(t, ok)
	assert.Empty(t, results)
	assert.Equal(t, true, output["all_healthy"], "vacuously healthy with nothing to check")
}
