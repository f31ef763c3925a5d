// Package planner implements the rule-based translation from a
// DeploymentIntent to an ExecutionPlan: resource ordering, dependency
// resolution, duration and risk estimation.
package planner

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/forgeops/orchestrator/pkg/domain"
)

// Engine is the port the deployment service depends on to turn an intent
// into a plan. In production this would integrate with a more elaborate
// planning strategy; this implementation is the rule-based reference.
type Engine interface {
	GeneratePlan(ctx context.Context, intent domain.DeploymentIntent) (*domain.ExecutionPlan, error)
	ValidatePlan(ctx context.Context, plan *domain.ExecutionPlan) (bool, []string)
	EstimateCost(ctx context.Context, plan *domain.ExecutionPlan) map[string]float64
}

// resourcePriority orders resource creation so that dependencies a
// resource is likely to need (networking, storage) are planned before
// the resources that build on them.
var resourcePriority = map[domain.ResourceType]int{
	domain.ResourceNetwork:      1,
	domain.ResourceDNS:          2,
	domain.ResourceStorage:      3,
	domain.ResourceDatabase:     4,
	domain.ResourceCache:        5,
	domain.ResourceQueue:        6,
	domain.ResourceCompute:      7,
	domain.ResourceContainer:    8,
	domain.ResourceServerless:   9,
	domain.ResourceLoadBalancer: 10,
	domain.ResourceCDN:          11,
}

var stepDurations = map[domain.ResourceType]int{
	domain.ResourceNetwork:      30,
	domain.ResourceCompute:      60,
	domain.ResourceDatabase:     120,
	domain.ResourceContainer:    90,
	domain.ResourceStorage:      15,
	domain.ResourceServerless:   30,
	domain.ResourceLoadBalancer: 45,
	domain.ResourceCache:        60,
}

const defaultStepDuration = 60

var monthlyCostPerResource = map[domain.ResourceType]float64{
	domain.ResourceCompute:      50.0,
	domain.ResourceStorage:      10.0,
	domain.ResourceDatabase:     75.0,
	domain.ResourceNetwork:      5.0,
	domain.ResourceContainer:    100.0,
	domain.ResourceServerless:   20.0,
	domain.ResourceLoadBalancer: 25.0,
	domain.ResourceCache:        40.0,
	domain.ResourceQueue:        15.0,
	domain.ResourceCDN:          30.0,
	domain.ResourceDNS:          2.0,
}

const defaultMonthlyCost = 25.0

// RuleBasedEngine is the concrete Engine implementation: deterministic,
// CPU-only, no suspension points.
type RuleBasedEngine struct{}

// NewRuleBasedEngine constructs the reference planning engine.
func NewRuleBasedEngine() *RuleBasedEngine {
	return &RuleBasedEngine{}
}

// GeneratePlan builds an ExecutionPlan from the intent: one step per
// explicit resource (or synthesized network+compute steps per provider
// when none are given), dependency-resolved, duration- and
// risk-estimated.
func (e *RuleBasedEngine) GeneratePlan(_ context.Context, intent domain.DeploymentIntent) (*domain.ExecutionPlan, error) {
	steps := createStepsFromResources(intent)
	if len(steps) == 0 {
		steps = createDefaultSteps(intent)
	}
	resolveDependencies(steps)

	total := 0
	for _, s := range steps {
		total += s.EstimatedDurationSeconds
	}
	risk := assessRisk(intent, steps)

	plan := &domain.ExecutionPlan{
		PlanID:                        uuid.New().String(),
		Steps:                         steps,
		EstimatedTotalDurationSeconds: total,
		RiskAssessment:                risk,
		Reasoning:                     generateReasoning(intent, steps, risk),
	}
	return plan, nil
}

// ValidatePlan reports an error per step dependency that does not
// resolve to another step in the same plan, plus one error when the plan
// has no steps at all.
func (e *RuleBasedEngine) ValidatePlan(_ context.Context, plan *domain.ExecutionPlan) (bool, []string) {
	var errs []string
	if len(plan.Steps) == 0 {
		errs = append(errs, "plan has no execution steps")
	}
	stepIDs := make(map[string]bool, len(plan.Steps))
	for _, s := range plan.Steps {
		stepIDs[s.StepID] = true
	}
	for _, s := range plan.Steps {
		for _, dep := range s.Dependencies {
			if !stepIDs[dep] {
				errs = append(errs, fmt.Sprintf("step %s depends on non-existent step %s", s.Name, dep))
			}
		}
	}
	return len(errs) == 0, errs
}

// EstimateCost returns a rough per-step monthly cost plus a "total_monthly" key,
// advisory only and without effect on plan structure.
func (e *RuleBasedEngine) EstimateCost(_ context.Context, plan *domain.ExecutionPlan) map[string]float64 {
	costs := make(map[string]float64, len(plan.Steps)+1)
	total := 0.0
	for _, s := range plan.Steps {
		cost, ok := monthlyCostPerResource[s.ResourceSpec.ResourceType]
		if !ok {
			cost = defaultMonthlyCost
		}
		costs[s.Name] = cost
		total += cost
	}
	costs["total_monthly"] = total
	return costs
}

func createStepsFromResources(intent domain.DeploymentIntent) []domain.ExecutionStep {
	resources := make([]domain.ResourceSpec, len(intent.Resources))
	copy(resources, intent.Resources)
	sort.SliceStable(resources, func(i, j int) bool {
		return priorityOf(resources[i].ResourceType) < priorityOf(resources[j].ResourceType)
	})

	steps := make([]domain.ExecutionStep, 0, len(resources))
	for _, resource := range resources {
		steps = append(steps, domain.ExecutionStep{
			StepID:      uuid.New().String(),
			Name:        "deploy-" + resource.Name,
			Description: fmt.Sprintf("Deploy %s resource '%s' on %s", resource.ResourceType, resource.Name, resource.Provider),
			Provider:    resource.Provider,
			ResourceSpec: resource,
			TerraformAction:          "create",
			EstimatedDurationSeconds: estimateStepDuration(resource),
			IdempotencyKey:           uuid.New().String(),
			MaxRetries:               3,
		})
	}
	return steps
}

func createDefaultSteps(intent domain.DeploymentIntent) []domain.ExecutionStep {
	var steps []domain.ExecutionStep
	for _, provider := range intent.TargetProviders {
		region := "us-east-1"
		if len(intent.TargetRegions) > 0 {
			region = intent.TargetRegions[0]
		}

		networkSpec := domain.ResourceSpec{
			ResourceType: domain.ResourceNetwork,
			Provider:     provider,
			Region:       region,
			Name:         intent.Environment + "-vpc",
			Properties:   map[string]interface{}{"cidr_block": "10.0.0.0/16"},
			Tags:         map[string]string{"environment": intent.Environment},
		}
		networkStep := domain.ExecutionStep{
			StepID:                   uuid.New().String(),
			Name:                     "create-network-" + string(provider),
			Description:              "Create VPC/VNet on " + string(provider),
			Provider:                 provider,
			ResourceSpec:             networkSpec,
			TerraformAction:          "create",
			EstimatedDurationSeconds: 30,
			IdempotencyKey:           uuid.New().String(),
			MaxRetries:               3,
		}
		steps = append(steps, networkStep)

		computeSpec := domain.ResourceSpec{
			ResourceType: domain.ResourceCompute,
			Provider:     provider,
			Region:       region,
			Name:         intent.Environment + "-app",
			Properties:   map[string]interface{}{"instance_type": "t3.medium"},
			Tags:         map[string]string{"environment": intent.Environment},
			Dependencies: []string{networkSpec.ResourceIdentifier()},
		}
		computeStep := domain.ExecutionStep{
			StepID:                   uuid.New().String(),
			Name:                     "create-compute-" + string(provider),
			Description:              "Create compute instance on " + string(provider),
			Provider:                 provider,
			ResourceSpec:             computeSpec,
			TerraformAction:          "create",
			EstimatedDurationSeconds: 60,
			Dependencies:             []string{networkStep.StepID},
			IdempotencyKey:           uuid.New().String(),
			MaxRetries:               3,
		}
		steps = append(steps, computeStep)
	}
	return steps
}

// resolveDependencies translates each step's resource-identifier
// dependencies into step-id dependencies by building a
// resource_identifier -> step_id map. A dependency that names a resource
// not present in the plan is silently skipped here and leaves no step-id
// dependency behind, so ValidatePlan does not report it either.
func resolveDependencies(steps []domain.ExecutionStep) {
	resourceToStep := make(map[string]string, len(steps))
	for _, s := range steps {
		resourceToStep[s.ResourceSpec.ResourceIdentifier()] = s.StepID
	}
	for i := range steps {
		existing := make(map[string]bool, len(steps[i].Dependencies))
		for _, d := range steps[i].Dependencies {
			existing[d] = true
		}
		for _, depResource := range steps[i].ResourceSpec.Dependencies {
			depStepID, ok := resourceToStep[depResource]
			if !ok || existing[depStepID] {
				continue
			}
			steps[i].Dependencies = append(steps[i].Dependencies, depStepID)
			existing[depStepID] = true
		}
	}
}

func estimateStepDuration(resource domain.ResourceSpec) int {
	if d, ok := stepDurations[resource.ResourceType]; ok {
		return d
	}
	return defaultStepDuration
}

func priorityOf(rt domain.ResourceType) int {
	if p, ok := resourcePriority[rt]; ok {
		return p
	}
	return 99
}

func assessRisk(intent domain.DeploymentIntent, steps []domain.ExecutionStep) string {
	const maxSimpleSteps = 10
	switch {
	case intent.Environment == "production":
		return "high"
	case len(intent.TargetProviders) > 1:
		return "medium"
	case len(steps) > maxSimpleSteps:
		return "medium"
	default:
		return "low"
	}
}

func generateReasoning(intent domain.DeploymentIntent, steps []domain.ExecutionStep, risk string) string {
	providers := ""
	for i, p := range intent.TargetProviders {
		if i > 0 {
			providers += ", "
		}
		providers += string(p)
	}
	return fmt.Sprintf(
		"Generated %d execution steps for deployment to %s using %s strategy in %s environment. Risk assessment: %s.",
		len(steps), providers, intent.Strategy, intent.Environment, risk,
	)
}
