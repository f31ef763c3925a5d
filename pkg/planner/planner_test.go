package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forgeops/orchestrator/pkg/domain"
)

func TestGeneratePlan_DefaultStepsWhenNoResourcesGiven(t *testing.T) {
	engine := NewRuleBasedEngine()
	intent := domain.DeploymentIntent{
		TargetProviders: []domain.CloudProviderType{domain.ProviderAWS},
		Environment:     "staging",
		Strategy:        domain.StrategyRolling,
	}

	plan, err := engine.GeneratePlan(context.Background(), intent)
	assert.NoError(t, err)
	assert.Equal(t, 2, plan.StepCount())

	waves := plan.GetExecutionOrder()
	assert.Len(t, waves, 2, "network must come before compute")
	assert.Equal(t, "create-network-aws", waves[0][0].Name)
	assert.Equal(t, "create-compute-aws", waves[1][0].Name)
}

func TestGeneratePlan_OrdersExplicitResourcesByPriority(t *testing.T) {
	engine := NewRuleBasedEngine()
	intent := domain.DeploymentIntent{
		TargetProviders: []domain.CloudProviderType{domain.ProviderAWS},
		Environment:     "staging",
		Resources: []domain.ResourceSpec{
			{ResourceType: domain.ResourceCompute, Provider: domain.ProviderAWS, Name: "app"},
			{ResourceType: domain.ResourceNetwork, Provider: domain.ProviderAWS, Name: "vpc"},
		},
	}

	plan, err := engine.GeneratePlan(context.Background(), intent)
	assert.NoError(t, err)
	assert.Equal(t, "deploy-vpc", plan.Steps[0].Name, "network must be planned before compute regardless of input order")
	assert.Equal(t, "deploy-app", plan.Steps[1].Name)
}

func TestGeneratePlan_ResolvesResourceDependenciesToStepIDs(t *testing.T) {
	engine := NewRuleBasedEngine()
	intent := domain.DeploymentIntent{
		TargetProviders: []domain.CloudProviderType{domain.ProviderAWS},
		Environment:     "staging",
		Resources: []domain.ResourceSpec{
			{ResourceType: domain.ResourceNetwork, Provider: domain.ProviderAWS, Name: "vpc"},
			{
				ResourceType: domain.ResourceCompute, Provider: domain.ProviderAWS, Name: "app",
				Dependencies: []string{domain.ResourceSpec{ResourceType: domain.ResourceNetwork, Provider: domain.ProviderAWS, Name: "vpc"}.ResourceIdentifier()},
			},
		},
	}

	plan, err := engine.GeneratePlan(context.Background(), intent)
	assert.NoError(t, err)

	computeStep := plan.GetStep(plan.Steps[1].StepID)
	assert.NotNil(t, computeStep)
	assert.Equal(t, []string{plan.Steps[0].StepID}, computeStep.Dependencies)
}

func TestAssessRisk(t *testing.T) {
	engine := NewRuleBasedEngine()

	prodPlan, _ := engine.GeneratePlan(context.Background(), domain.DeploymentIntent{
		TargetProviders: []domain.CloudProviderType{domain.ProviderAWS},
		Environment:     "production",
	})
	assert.Equal(t, "high", prodPlan.RiskAssessment)

	multiCloudPlan, _ := engine.GeneratePlan(context.Background(), domain.DeploymentIntent{
		TargetProviders: []domain.CloudProviderType{domain.ProviderAWS, domain.ProviderGCP},
		Environment:     "staging",
	})
	assert.Equal(t, "medium", multiCloudPlan.RiskAssessment)

	simplePlan, _ := engine.GeneratePlan(context.Background(), domain.DeploymentIntent{
		TargetProviders: []domain.CloudProviderType{domain.ProviderAWS},
		Environment:     "staging",
	})
	assert.Equal(t, "low", simplePlan.RiskAssessment)
}

func TestValidatePlan_FlagsMissingDependency(t *testing.T) {
	engine := NewRuleBasedEngine()
	plan := &domain.ExecutionPlan{
		Steps: []domain.ExecutionStep{
			{StepID: "s1", Name: "a", Dependencies: []string{"does-not-exist"}},
		},
	}

	valid, errs := engine.ValidatePlan(context.Background(), plan)
	assert.False(t, valid)
	assert.Len(t, errs, 1)
}

func TestValidatePlan_EmptyPlanIsInvalid(t *testing.T) {
	engine := NewRuleBasedEngine()
	valid, errs := engine.ValidatePlan(context.Background(), &domain.ExecutionPlan{})
	assert.False(t, valid)
	assert.Contains(t, errs[0], "no execution steps")
}

func TestEstimateCost_SumsPerStepCosts(t *testing.T) {
	engine := NewRuleBasedEngine()
	plan := &domain.ExecutionPlan{
		Steps: []domain.ExecutionStep{
			{Name: "net", ResourceSpec: domain.ResourceSpec{ResourceType: domain.ResourceNetwork}},
			{Name: "db", ResourceSpec: domain.ResourceSpec{ResourceType: domain.ResourceDatabase}},
		},
	}

	costs := engine.EstimateCost(context.Background(), plan)
	assert.Equal(t, 5.0, costs["net"])
	assert.Equal(t, 75.0, costs["db"])
	assert.Equal(t, 80.0, costs["total_monthly"])
}
