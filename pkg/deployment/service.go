// Package deployment implements Service: the
// orchestration logic spanning the Deployment and Task aggregates, built
// on top of the planner, lock, and event-bus ports.
package deployment

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgeops/orchestrator/pkg/domain"
	"github.com/forgeops/orchestrator/pkg/eventbus"
	"github.com/forgeops/orchestrator/pkg/lock"
	"github.com/forgeops/orchestrator/pkg/log"
	"github.com/forgeops/orchestrator/pkg/metrics"
	"github.com/forgeops/orchestrator/pkg/planner"
	"github.com/forgeops/orchestrator/pkg/repository"
)

// rollbackKeySuffix marks a task as a compensating (destroy) task created
// by enqueueRollbackTasks, as opposed to a forward step task.
const rollbackKeySuffix = ":rollback"

const planningLockTTLSeconds = 120

// NotFoundError is returned when a named deployment does not exist.
type NotFoundError struct {
	DeploymentID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("deployment %s not found", e.DeploymentID)
}

// PlanMissingError is returned when an operation requires an attached
// execution plan that hasn't been generated yet.
type PlanMissingError struct {
	DeploymentID string
}

func (e *PlanMissingError) Error() string {
	return fmt.Sprintf("deployment %s has no execution plan", e.DeploymentID)
}

// LockError is returned when the planning lock for a deployment could
// not be acquired.
type LockError struct {
	DeploymentID string
}

func (e *LockError) Error() string {
	return fmt.Sprintf("could not acquire planning lock for deployment %s", e.DeploymentID)
}

// Service coordinates deployment lifecycle operations that span the
// Deployment and Task aggregates and require infrastructure ports.
type Service struct {
	deployments repository.DeploymentRepository
	tasks       repository.TaskRepository
	engine      planner.Engine
	publisher   eventbus.Publisher
	locker      lock.DistributedLock
}

// NewService wires the deployment service to its repositories and ports.
func NewService(
	deployments repository.DeploymentRepository,
	tasks repository.TaskRepository,
	engine planner.Engine,
	publisher eventbus.Publisher,
	locker lock.DistributedLock,
) *Service {
	return &Service{
		deployments: deployments,
		tasks:       tasks,
		engine:      engine,
		publisher:   publisher,
		locker:      locker,
	}
}

func (s *Service) publishEvents(ctx context.Context, aggregate *domain.AggregateRoot) error {
	for _, event := range aggregate.CollectEvents() {
		if err := s.publisher.Publish(ctx, event.EventType, event.Payload); err != nil {
			return fmt.Errorf("publish %s: %w", event.EventType, err)
		}
	}
	return nil
}

// CreateDeployment persists a new deployment in PENDING state and
// publishes deployment.created.
func (s *Service) CreateDeployment(ctx context.Context, intent domain.DeploymentIntent, initiatedBy, tenantID string) (*domain.Deployment, error) {
	provider := "unknown"
	if len(intent.TargetProviders) > 0 {
		provider = string(intent.TargetProviders[0])
	}
	name := fmt.Sprintf("deploy-%s-%s", intent.Environment, provider)

	d := domain.NewDeployment(name, intent, initiatedBy, tenantID)
	if err := s.deployments.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("save deployment: %w", err)
	}

	if err := s.publisher.Publish(ctx, "deployment.created", map[string]interface{}{
		"deployment_id": d.ID,
		"tenant_id":     tenantID,
	}); err != nil {
		return nil, fmt.Errorf("publish deployment.created: %w", err)
	}

	log.WithComponent("deployment").Info().
		Str("deployment_id", d.ID).
		Str("environment", intent.Environment).
		Msg("deployment created")
	return d, nil
}

// PlanDeployment generates and attaches an execution plan under a
// per-deployment planning lock, so two concurrent planning requests for
// the same deployment cannot race.
func (s *Service) PlanDeployment(ctx context.Context, deploymentID string) (*domain.Deployment, error) {
	lockKey := fmt.Sprintf("deployment:%s:planning", deploymentID)
	acquired, err := s.locker.Acquire(ctx, lockKey, planningLockTTLSeconds)
	if err != nil {
		return nil, fmt.Errorf("acquire planning lock: %w", err)
	}
	if !acquired {
		return nil, &LockError{DeploymentID: deploymentID}
	}
	defer s.locker.Release(ctx, lockKey)

	d, err := s.deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("load deployment: %w", err)
	}
	if d == nil {
		return nil, &NotFoundError{DeploymentID: deploymentID}
	}

	if err := d.StartPlanning(); err != nil {
		return nil, err
	}
	timer := metrics.NewTimer()
	plan, err := s.engine.GeneratePlan(ctx, d.Intent)
	timer.ObserveDuration(metrics.PlanDuration)
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}
	if err := d.SetPlan(plan); err != nil {
		return nil, err
	}
	if err := s.deployments.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("update deployment: %w", err)
	}
	if err := s.publishEvents(ctx, &d.AggregateRoot); err != nil {
		return nil, err
	}

	log.WithComponent("deployment").Info().
		Str("deployment_id", deploymentID).
		Int("step_count", plan.StepCount()).
		Msg("deployment planned")
	return d, nil
}

// ApproveDeployment records manual approval and moves the deployment to
// APPROVED.
func (s *Service) ApproveDeployment(ctx context.Context, deploymentID, approvedBy string) (*domain.Deployment, error) {
	d, err := s.deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("load deployment: %w", err)
	}
	if d == nil {
		return nil, &NotFoundError{DeploymentID: deploymentID}
	}

	if err := d.Approve(approvedBy); err != nil {
		return nil, err
	}
	if err := s.deployments.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("update deployment: %w", err)
	}
	return d, s.publishEvents(ctx, &d.AggregateRoot)
}

// ExecuteDeployment materializes one QUEUED task per plan step and moves
// the deployment to EXECUTING.
func (s *Service) ExecuteDeployment(ctx context.Context, deploymentID string) ([]*domain.Task, error) {
	d, err := s.deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("load deployment: %w", err)
	}
	if d == nil {
		return nil, &NotFoundError{DeploymentID: deploymentID}
	}
	if d.Plan == nil {
		return nil, &PlanMissingError{DeploymentID: deploymentID}
	}

	plan := d.Plan
	if err := d.StartExecution(); err != nil {
		return nil, err
	}
	if err := s.deployments.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("update deployment: %w", err)
	}

	tasks := make([]*domain.Task, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		task := domain.NewTask(deploymentID, step.StepID, step.Name, step.Provider, step.TerraformAction, step.IdempotencyKey, step.MaxRetries+1, step.EstimatedDurationSeconds*2)
		task.InputData = map[string]interface{}{
			"resource_spec": step.ResourceSpec.AsMap(),
			"dependencies":  step.Dependencies,
		}
		if err := task.Enqueue(); err != nil {
			return nil, err
		}
		if err := s.tasks.Save(ctx, task); err != nil {
			return nil, fmt.Errorf("save task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := s.publishEvents(ctx, &d.AggregateRoot); err != nil {
		return nil, err
	}

	log.WithComponent("deployment").Info().
		Str("deployment_id", deploymentID).
		Int("task_count", len(tasks)).
		Msg("deployment execution started")
	return tasks, nil
}

// HandleTaskCompletion records a task's outcome against the owning
// deployment's step-result ledger, and advances the deployment to
// VERIFYING once every task has reached a terminal outcome, or to
// ROLLING_BACK if any task failed and the intent requests it.
func (s *Service) HandleTaskCompletion(ctx context.Context, taskID string, success bool, output map[string]interface{}, errMsg string) error {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}
	if task == nil {
		return nil
	}

	// The worker agent may already have driven the task to a terminal
	// status (Succeed/Fail/Timeout) before a completion consumer reaches
	// this method. Only perform the task-level transition ourselves when
	// the task is still RUNNING; otherwise its recorded status is
	// authoritative and we proceed straight to deployment bookkeeping
	// using what the agent itself already stored on the task.
	if task.Status == domain.TaskRunning {
		if success {
			if err := task.Succeed(output); err != nil {
				return err
			}
		} else {
			if err := task.Fail(errMsg); err != nil {
				return err
			}
		}
		if err := s.tasks.Update(ctx, task); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
	} else {
		success = task.Status == domain.TaskSucceeded
		output = task.OutputData
		errMsg = task.ErrorMessage
	}

	d, err := s.deployments.GetByID(ctx, task.DeploymentID)
	if err != nil {
		return fmt.Errorf("load deployment: %w", err)
	}
	if d == nil {
		return nil
	}

	wasExecuting := d.Status == domain.DeploymentExecuting
	outputStr := ""
	if len(output) > 0 {
		outputStr = fmt.Sprintf("%v", output)
	}
	if err := d.RecordStepResult(domain.StepResult{
		StepID:         task.StepID,
		Success:        success,
		Output:         outputStr,
		ErrorMessage:   errMsg,
		IdempotencyKey: task.IdempotencyKey,
		AttemptNumber:  task.AttemptNumber,
	}); err != nil {
		return err
	}

	allTasks, err := s.tasks.ListByDeployment(ctx, task.DeploymentID)
	if err != nil {
		return fmt.Errorf("list tasks for deployment: %w", err)
	}
	allComplete := true
	anyFailed := false
	for _, t := range allTasks {
		if !t.IsTerminal() && t.Status != domain.TaskSucceeded {
			allComplete = false
		}
		if t.Status == domain.TaskFailed {
			anyFailed = true
		}
	}

	if wasExecuting {
		if allComplete && !anyFailed {
			if err := d.StartVerification(); err != nil {
				return err
			}
		} else if anyFailed && d.Intent.RollbackOnFailure {
			if err := d.StartRollback(); err != nil {
				return err
			}
			if d.Plan != nil {
				if err := s.enqueueRollbackTasks(ctx, d); err != nil {
					return err
				}
			}
			metrics.DeploymentsRolledBackTotal.WithLabelValues("task_failure").Inc()
		}
	} else if d.Status == domain.DeploymentRollingBack {
		if err := s.settleRollback(d, allTasks); err != nil {
			return err
		}
	}

	if err := s.deployments.Update(ctx, d); err != nil {
		return fmt.Errorf("update deployment: %w", err)
	}
	return s.publishEvents(ctx, &d.AggregateRoot)
}

// settleRollback inspects the compensating destroy tasks (identified by
// the ":rollback" idempotency-key suffix enqueueRollbackTasks gives them)
// and, once every one of them has reached a terminal outcome, completes
// the rollback or fails the deployment if one of them exhausted its
// retries.
func (s *Service) settleRollback(d *domain.Deployment, allTasks []*domain.Task) error {
	settled := true
	failed := false
	for _, t := range allTasks {
		if !strings.HasSuffix(t.IdempotencyKey, rollbackKeySuffix) {
			continue
		}
		if t.IsTerminal() {
			continue
		}
		if t.CanRetry() {
			settled = false
			continue
		}
		if t.Status == domain.TaskFailed || t.Status == domain.TaskTimedOut {
			failed = true
			continue
		}
		settled = false
	}

	if !settled {
		return nil
	}
	if failed {
		return d.Fail("rollback failed: a compensating task exhausted its retries")
	}
	return d.CompleteRollback()
}

// RollbackDeployment moves the deployment to ROLLING_BACK and enqueues
// one compensating destroy task per step that had already completed
// successfully, in reverse dependency order so teardown unwinds the
// dependency graph the same way a rolling-back construction would.
// Destroy idempotency keys are the original key suffixed ":rollback" so
// a retried rollback attempt never double-destroys a resource.
func (s *Service) RollbackDeployment(ctx context.Context, deploymentID string) (*domain.Deployment, error) {
	d, err := s.deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("load deployment: %w", err)
	}
	if d == nil {
		return nil, &NotFoundError{DeploymentID: deploymentID}
	}

	if err := d.StartRollback(); err != nil {
		return nil, err
	}
	if err := s.deployments.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("update deployment: %w", err)
	}

	if d.Plan != nil {
		if err := s.enqueueRollbackTasks(ctx, d); err != nil {
			return nil, err
		}
	}
	metrics.DeploymentsRolledBackTotal.WithLabelValues("manual").Inc()

	return d, s.publishEvents(ctx, &d.AggregateRoot)
}

// enqueueRollbackTasks builds one destroy task per step whose last
// recorded attempt succeeded, ordered by reversing the plan's wave
// partition so dependents are torn down before their dependencies.
func (s *Service) enqueueRollbackTasks(ctx context.Context, d *domain.Deployment) error {
	succeeded := make(map[string]bool)
	for _, r := range d.StepResults {
		succeeded[r.StepID] = r.Success
	}

	waves := d.Plan.GetExecutionOrder()
	for i := len(waves) - 1; i >= 0; i-- {
		for _, step := range waves[i] {
			if !succeeded[step.StepID] {
				continue
			}
			task := domain.NewTask(
				d.ID, step.StepID, "rollback-"+step.Name, step.Provider,
				"destroy", step.IdempotencyKey+rollbackKeySuffix,
				step.MaxRetries+1, step.EstimatedDurationSeconds*2,
			)
			task.InputData = map[string]interface{}{
				"resource_spec": step.ResourceSpec.AsMap(),
			}
			if err := task.Enqueue(); err != nil {
				return err
			}
			if err := s.tasks.Save(ctx, task); err != nil {
				return fmt.Errorf("save rollback task: %w", err)
			}
		}
	}
	return nil
}
