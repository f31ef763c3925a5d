package drift_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeops/orchestrator/pkg/domain"
	"github.com/forgeops/orchestrator/pkg/drift"
	"github.com/forgeops/orchestrator/pkg/eventbus"
	"github.com/forgeops/orchestrator/pkg/storage"
)

func TestDomainService_ScanDeploymentPersistsReport(t *testing.T) {
	store := storage.NewMemoryStore()
	broker := eventbus.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)
	publisher := eventbus.NewInMemoryPublisher(broker)

	ctx := context.Background()
	d := domain.NewDeployment("deploy-1", domain.DeploymentIntent{Environment: "staging"}, "alice", "tenant-1")
	d.Plan = &domain.ExecutionPlan{Steps: []domain.ExecutionStep{
		{StepID: "s1", ResourceSpec: domain.ResourceSpec{ResourceType: domain.ResourceCompute, Provider: domain.ProviderAWS, Name: "app"}},
	}}
	require.NoError(t, store.Deployments().Save(ctx, d))

	svc := drift.NewDomainService(store.Deployments(), store.DriftReports(), drift.NewSimulatedDetector(1), publisher)

	report, err := svc.ScanDeployment(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, report.HasDrift())

	history, err := svc.GetDriftHistory(ctx, d.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestDomainService_ScanUnknownDeploymentFails(t *testing.T) {
	store := storage.NewMemoryStore()
	broker := eventbus.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)
	publisher := eventbus.NewInMemoryPublisher(broker)

	svc := drift.NewDomainService(store.Deployments(), store.DriftReports(), drift.NewSimulatedDetector(0), publisher)
	_, err := svc.ScanDeployment(context.Background(), "missing")
	require.Error(t, err)

	var scanErr *drift.ScanError
	assert.ErrorAs(t, err, &scanErr)
}

func TestDomainService_ScanDeploymentWithNoPlanHasNoDrift(t *testing.T) {
	store := storage.NewMemoryStore()
	broker := eventbus.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)
	publisher := eventbus.NewInMemoryPublisher(broker)

	ctx := context.Background()
	d := domain.NewDeployment("deploy-2", domain.DeploymentIntent{Environment: "staging"}, "alice", "tenant-1")
	require.NoError(t, store.Deployments().Save(ctx, d))

	svc := drift.NewDomainService(store.Deployments(), store.DriftReports(), drift.NewSimulatedDetector(1), publisher)
	report, err := svc.ScanDeployment(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, report.HasDrift(), "a deployment with no plan has no expected state to drift from")
}
