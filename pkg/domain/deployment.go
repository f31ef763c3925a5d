package domain

// DeploymentStatus is one of the twelve lifecycle states a deployment
// moves through.
type DeploymentStatus string

const (
	DeploymentPending           DeploymentStatus = "pending"
	DeploymentPlanning          DeploymentStatus = "planning"
	DeploymentPlanned           DeploymentStatus = "planned"
	DeploymentAwaitingApproval  DeploymentStatus = "awaiting_approval"
	DeploymentApproved          DeploymentStatus = "approved"
	DeploymentExecuting         DeploymentStatus = "executing"
	DeploymentVerifying         DeploymentStatus = "verifying"
	DeploymentCompleted         DeploymentStatus = "completed"
	DeploymentFailed            DeploymentStatus = "failed"
	DeploymentRollingBack       DeploymentStatus = "rolling_back"
	DeploymentRolledBack        DeploymentStatus = "rolled_back"
	DeploymentCancelled         DeploymentStatus = "cancelled"
)

// DeploymentStrategy is the rollout strategy carried by the intent.
type DeploymentStrategy string

const (
	StrategyRolling   DeploymentStrategy = "rolling"
	StrategyBlueGreen DeploymentStrategy = "blue_green"
	StrategyCanary    DeploymentStrategy = "canary"
	StrategyRecreate  DeploymentStrategy = "recreate"
)

// deploymentTransitions is the authoritative state machine. Any attempt
// to move to a status not present in this set fails with
// InvalidStateTransitionError.
var deploymentTransitions = map[DeploymentStatus]map[DeploymentStatus]bool{
	DeploymentPending: {
		DeploymentPlanning: true, DeploymentCancelled: true,
	},
	DeploymentPlanning: {
		DeploymentPlanned: true, DeploymentFailed: true,
	},
	DeploymentPlanned: {
		DeploymentAwaitingApproval: true, DeploymentApproved: true,
		DeploymentExecuting: true, DeploymentCancelled: true,
	},
	DeploymentAwaitingApproval: {
		DeploymentApproved: true, DeploymentCancelled: true,
	},
	DeploymentApproved: {
		DeploymentExecuting: true, DeploymentCancelled: true,
	},
	DeploymentExecuting: {
		DeploymentVerifying: true, DeploymentFailed: true, DeploymentRollingBack: true,
	},
	DeploymentVerifying: {
		DeploymentCompleted: true, DeploymentFailed: true, DeploymentRollingBack: true,
	},
	DeploymentCompleted: {},
	DeploymentFailed: {
		DeploymentRollingBack: true, DeploymentPending: true,
	},
	DeploymentRollingBack: {
		DeploymentRolledBack: true, DeploymentFailed: true,
	},
	DeploymentRolledBack: {
		DeploymentPending: true,
	},
	DeploymentCancelled: {},
}

// DeploymentIntent is the immutable declarative request describing what
// should be deployed.
type DeploymentIntent struct {
	Description        string                 `json:"description"`
	TargetProviders     []CloudProviderType    `json:"target_providers"`
	TargetRegions       []string               `json:"target_regions,omitempty"`
	Resources           []ResourceSpec         `json:"resources,omitempty"`
	Strategy            DeploymentStrategy     `json:"strategy"`
	AutoApprove         bool                   `json:"auto_approve"`
	RollbackOnFailure   bool                   `json:"rollback_on_failure"`
	Environment         string                 `json:"environment"`
	Parameters          map[string]interface{} `json:"parameters,omitempty"`
}

// ExecutionStep is a single unit of the plan: one resource, one
// Terraform action, a stable idempotency key reused across retries.
type ExecutionStep struct {
	StepID                   string       `json:"step_id"`
	Name                     string       `json:"name"`
	Description              string       `json:"description"`
	Provider                 CloudProviderType `json:"provider"`
	ResourceSpec             ResourceSpec `json:"resource_spec"`
	TerraformAction          string       `json:"terraform_action"`
	Dependencies             []string     `json:"dependencies,omitempty"`
	EstimatedDurationSeconds int          `json:"estimated_duration_seconds"`
	IdempotencyKey           string       `json:"idempotency_key"`
	RetryCount               int          `json:"retry_count"`
	MaxRetries               int          `json:"max_retries"`
}

// ExecutionPlan is the immutable output of the planner attached to a
// deployment at most once.
type ExecutionPlan struct {
	PlanID                          string          `json:"plan_id"`
	Steps                           []ExecutionStep `json:"steps"`
	EstimatedTotalDurationSeconds   int             `json:"estimated_total_duration_seconds"`
	RiskAssessment                  string          `json:"risk_assessment"`
	Reasoning                       string          `json:"reasoning"`
	TerraformPlanOutput             string          `json:"terraform_plan_output,omitempty"`
}

// StepCount returns the number of steps in the plan.
func (p *ExecutionPlan) StepCount() int {
	return len(p.Steps)
}

// GetStep looks up a step by id, returning nil if absent.
func (p *ExecutionPlan) GetStep(stepID string) *ExecutionStep {
	for i := range p.Steps {
		if p.Steps[i].StepID == stepID {
			return &p.Steps[i]
		}
	}
	return nil
}

// GetExecutionOrder partitions the plan's steps into waves: maximal
// groups of steps whose dependencies are all satisfied by earlier waves.
// If a wave would otherwise be empty (a cycle or a dangling dependency),
// the next remaining step is force-included so the algorithm always
// terminates, surfacing the bug as an ordering violation rather than a
// hang.
func (p *ExecutionPlan) GetExecutionOrder() [][]ExecutionStep {
	completed := make(map[string]bool, len(p.Steps))
	remaining := make([]ExecutionStep, len(p.Steps))
	copy(remaining, p.Steps)

	var waves [][]ExecutionStep
	for len(remaining) > 0 {
		var wave []ExecutionStep
		for _, step := range remaining {
			ready := true
			for _, dep := range step.Dependencies {
				if !completed[dep] {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, step)
			}
		}
		if len(wave) == 0 {
			wave = []ExecutionStep{remaining[0]}
		}
		waves = append(waves, wave)

		waveIDs := make(map[string]bool, len(wave))
		for _, step := range wave {
			completed[step.StepID] = true
			waveIDs[step.StepID] = true
		}
		next := remaining[:0:0]
		for _, step := range remaining {
			if !waveIDs[step.StepID] {
				next = append(next, step)
			}
		}
		remaining = next
	}
	return waves
}

// CriticalPathDuration estimates the plan's duration from the wave
// partition: the duration of each wave is its slowest step, and the
// result is the sum of wave durations. This is never less than the
// longest path through the dependency DAG and can exceed it, since each
// step is counted as waiting for its whole preceding wave. This
// supplements EstimatedTotalDurationSeconds (a naive sum, kept for
// spec-mandated compatibility) with the more accurate figure a scheduler
// that runs waves in parallel would actually observe.
func (p *ExecutionPlan) CriticalPathDuration() int {
	total := 0
	for _, wave := range p.GetExecutionOrder() {
		slowest := 0
		for _, step := range wave {
			if step.EstimatedDurationSeconds > slowest {
				slowest = step.EstimatedDurationSeconds
			}
		}
		total += slowest
	}
	return total
}

// StepResult records the outcome of one step attempt.
type StepResult struct {
	StepID          string            `json:"step_id"`
	Success         bool              `json:"success"`
	Output          string            `json:"output,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	ResourceIDs     map[string]string `json:"resource_ids,omitempty"`
	DurationSeconds float64           `json:"duration_seconds"`
	IdempotencyKey  string            `json:"idempotency_key,omitempty"`
	AttemptNumber   int               `json:"attempt_number"`
}

// Deployment is the aggregate root: a request-level unit of work that
// owns an intent, an at-most-once-attached plan, and an append-only
// ledger of step results.
type Deployment struct {
	AggregateRoot
	Name                 string             `json:"name"`
	Intent               DeploymentIntent   `json:"intent"`
	Status               DeploymentStatus   `json:"status"`
	Plan                 *ExecutionPlan     `json:"plan,omitempty"`
	StepResults          []StepResult       `json:"step_results,omitempty"`
	InitiatedBy          string             `json:"initiated_by,omitempty"`
	TenantID             string             `json:"tenant_id,omitempty"`
	ErrorMessage         string             `json:"error_message,omitempty"`
	RollbackDeploymentID string             `json:"rollback_deployment_id,omitempty"`
}

// NewDeployment constructs a deployment in its initial PENDING state.
func NewDeployment(name string, intent DeploymentIntent, initiatedBy, tenantID string) *Deployment {
	d := &Deployment{
		AggregateRoot: AggregateRoot{Entity: newEntity()},
		Name:          name,
		Intent:        intent,
		Status:        DeploymentPending,
		InitiatedBy:   initiatedBy,
		TenantID:      tenantID,
	}
	return d
}

func (d *Deployment) transitionTo(newStatus DeploymentStatus) error {
	valid := deploymentTransitions[d.Status]
	if !valid[newStatus] {
		return &InvalidStateTransitionError{From: d.Status, To: newStatus}
	}
	d.Status = newStatus
	d.Touch()
	return nil
}

// StartPlanning moves the deployment into the planning phase.
func (d *Deployment) StartPlanning() error {
	return d.transitionTo(DeploymentPlanning)
}

// SetPlan attaches the generated execution plan, emits
// deployment.plan_generated, and then auto-advances either to APPROVED
// (when the intent requests auto_approve) or AWAITING_APPROVAL.
func (d *Deployment) SetPlan(plan *ExecutionPlan) error {
	d.Plan = plan
	if err := d.transitionTo(DeploymentPlanned); err != nil {
		return err
	}
	d.AddEvent(newEvent("deployment.plan_generated", d.ID, map[string]interface{}{
		"deployment_id": d.ID,
		"plan_id":       plan.PlanID,
		"step_count":    plan.StepCount(),
	}))
	if d.Intent.AutoApprove {
		return d.Approve("auto")
	}
	return d.transitionTo(DeploymentAwaitingApproval)
}

// Approve moves the deployment to APPROVED and emits deployment.approved.
func (d *Deployment) Approve(approvedBy string) error {
	if err := d.transitionTo(DeploymentApproved); err != nil {
		return err
	}
	d.AddEvent(newEvent("deployment.approved", d.ID, map[string]interface{}{
		"deployment_id": d.ID,
		"approved_by":   approvedBy,
	}))
	return nil
}

// StartExecution moves the deployment to EXECUTING and emits
// deployment.started.
func (d *Deployment) StartExecution() error {
	if err := d.transitionTo(DeploymentExecuting); err != nil {
		return err
	}
	d.AddEvent(newEvent("deployment.started", d.ID, map[string]interface{}{
		"deployment_id": d.ID,
	}))
	return nil
}

// RecordStepResult appends a result to the append-only ledger. A failed
// result under rollback_on_failure synchronously fails the deployment;
// the rollback transition itself is a separate, later call.
func (d *Deployment) RecordStepResult(result StepResult) error {
	d.StepResults = append(d.StepResults, result)
	d.Touch()
	if !result.Success && d.Intent.RollbackOnFailure {
		return d.Fail("step " + result.StepID + " failed: " + result.ErrorMessage)
	}
	return nil
}

// StartVerification moves the deployment to VERIFYING.
func (d *Deployment) StartVerification() error {
	return d.transitionTo(DeploymentVerifying)
}

// Complete moves the deployment to COMPLETED and emits
// deployment.completed.
func (d *Deployment) Complete() error {
	if err := d.transitionTo(DeploymentCompleted); err != nil {
		return err
	}
	d.AddEvent(newEvent("deployment.completed", d.ID, map[string]interface{}{
		"deployment_id": d.ID,
	}))
	return nil
}

// Fail moves the deployment to FAILED, records the error, and emits
// deployment.failed.
func (d *Deployment) Fail(errorMessage string) error {
	d.ErrorMessage = errorMessage
	if err := d.transitionTo(DeploymentFailed); err != nil {
		return err
	}
	d.AddEvent(newEvent("deployment.failed", d.ID, map[string]interface{}{
		"deployment_id": d.ID,
		"error_message": errorMessage,
	}))
	return nil
}

// StartRollback moves the deployment to ROLLING_BACK and emits
// deployment.rollback_started.
func (d *Deployment) StartRollback() error {
	if err := d.transitionTo(DeploymentRollingBack); err != nil {
		return err
	}
	d.AddEvent(newEvent("deployment.rollback_started", d.ID, map[string]interface{}{
		"deployment_id": d.ID,
	}))
	return nil
}

// CompleteRollback moves the deployment to ROLLED_BACK and emits
// deployment.rollback_completed.
func (d *Deployment) CompleteRollback() error {
	if err := d.transitionTo(DeploymentRolledBack); err != nil {
		return err
	}
	d.AddEvent(newEvent("deployment.rollback_completed", d.ID, map[string]interface{}{
		"deployment_id": d.ID,
	}))
	return nil
}

// Cancel moves the deployment to CANCELLED.
func (d *Deployment) Cancel() error {
	return d.transitionTo(DeploymentCancelled)
}

// IsTerminal reports whether the deployment has reached a state with no
// outgoing transitions.
func (d *Deployment) IsTerminal() bool {
	switch d.Status {
	case DeploymentCompleted, DeploymentCancelled, DeploymentRolledBack:
		return true
	default:
		return false
	}
}

// ProgressPercentage is the fraction of plan steps that have recorded a
// result, as a percentage.
func (d *Deployment) ProgressPercentage() float64 {
	if d.Plan == nil || len(d.Plan.Steps) == 0 {
		return 0
	}
	return (float64(len(d.StepResults)) / float64(len(d.Plan.Steps))) * 100
}
