package domain

import "time"

// TaskStatus is one of the nine states a task moves through.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskQueued    TaskStatus = "queued"
	TaskAcquired  TaskStatus = "acquired"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
	TaskRetrying  TaskStatus = "retrying"
	TaskCancelled TaskStatus = "cancelled"
	TaskTimedOut  TaskStatus = "timed_out"
)

var taskTransitions = map[TaskStatus]map[TaskStatus]bool{
	TaskPending: {
		TaskQueued: true, TaskCancelled: true,
	},
	TaskQueued: {
		TaskAcquired: true, TaskCancelled: true, TaskTimedOut: true,
	},
	TaskAcquired: {
		TaskRunning: true, TaskCancelled: true,
	},
	TaskRunning: {
		TaskSucceeded: true, TaskFailed: true, TaskTimedOut: true,
	},
	TaskSucceeded: {},
	TaskFailed: {
		TaskRetrying: true, TaskCancelled: true,
	},
	TaskRetrying: {
		TaskQueued: true,
	},
	TaskCancelled: {},
	TaskTimedOut: {
		TaskRetrying: true, TaskCancelled: true, TaskFailed: true,
	},
}

// Task is the worker-visible unit of execution corresponding to a single
// step attempt.
type Task struct {
	AggregateRoot
	DeploymentID    string                 `json:"deployment_id"`
	StepID          string                 `json:"step_id"`
	Name            string                 `json:"name"`
	Description     string                 `json:"description,omitempty"`
	Status          TaskStatus             `json:"status"`
	Provider        CloudProviderType      `json:"provider"`
	TerraformAction string                 `json:"terraform_action"`
	WorkerID        string                 `json:"worker_id,omitempty"`
	IdempotencyKey  string                 `json:"idempotency_key"`
	AttemptNumber   int                    `json:"attempt_number"`
	MaxAttempts     int                    `json:"max_attempts"`
	TimeoutSeconds  int                    `json:"timeout_seconds"`
	InputData       map[string]interface{} `json:"input_data,omitempty"`
	OutputData      map[string]interface{} `json:"output_data,omitempty"`
	ErrorMessage    string                 `json:"error_message,omitempty"`
	StartedAt       *time.Time             `json:"started_at,omitempty"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`
}

// NewTask constructs a task in its initial PENDING state with
// attempt_number 1 and the given idempotency key copied from the owning
// step.
func NewTask(deploymentID, stepID, name string, provider CloudProviderType, terraformAction, idempotencyKey string, maxAttempts, timeoutSeconds int) *Task {
	return &Task{
		AggregateRoot:   AggregateRoot{Entity: newEntity()},
		DeploymentID:    deploymentID,
		StepID:          stepID,
		Name:            name,
		Status:          TaskPending,
		Provider:        provider,
		TerraformAction: terraformAction,
		IdempotencyKey:  idempotencyKey,
		AttemptNumber:   1,
		MaxAttempts:     maxAttempts,
		TimeoutSeconds:  timeoutSeconds,
		InputData:       map[string]interface{}{},
		OutputData:      map[string]interface{}{},
	}
}

func (t *Task) transitionTo(newStatus TaskStatus) error {
	valid := taskTransitions[t.Status]
	if !valid[newStatus] {
		return &InvalidTaskTransitionError{From: t.Status, To: newStatus}
	}
	t.Status = newStatus
	t.Touch()
	return nil
}

// Enqueue moves the task to QUEUED, making it eligible for AcquireNext.
func (t *Task) Enqueue() error {
	return t.transitionTo(TaskQueued)
}

// Acquire moves the task to ACQUIRED and records the claiming worker.
func (t *Task) Acquire(workerID string) error {
	if err := t.transitionTo(TaskAcquired); err != nil {
		return err
	}
	t.WorkerID = workerID
	return nil
}

// Start moves the task to RUNNING and records the start timestamp.
func (t *Task) Start() error {
	if err := t.transitionTo(TaskRunning); err != nil {
		return err
	}
	now := time.Now().UTC()
	t.StartedAt = &now
	return nil
}

// Succeed moves the task to SUCCEEDED, recording the output and
// completion timestamp.
func (t *Task) Succeed(output map[string]interface{}) error {
	if len(output) > 0 {
		t.OutputData = output
	}
	if err := t.transitionTo(TaskSucceeded); err != nil {
		return err
	}
	now := time.Now().UTC()
	t.CompletedAt = &now
	return nil
}

// Fail moves the task to FAILED, recording the error and completion
// timestamp.
func (t *Task) Fail(errorMessage string) error {
	t.ErrorMessage = errorMessage
	if err := t.transitionTo(TaskFailed); err != nil {
		return err
	}
	now := time.Now().UTC()
	t.CompletedAt = &now
	return nil
}

// Retry clears worker assignment and error state, increments the attempt
// counter, and re-queues the task. Fails with MaxRetriesExceededError
// once attempt_number has already reached max_attempts.
func (t *Task) Retry() error {
	if t.AttemptNumber >= t.MaxAttempts {
		return &MaxRetriesExceededError{TaskID: t.ID, MaxAttempts: t.MaxAttempts}
	}
	if err := t.transitionTo(TaskRetrying); err != nil {
		return err
	}
	t.AttemptNumber++
	t.WorkerID = ""
	t.ErrorMessage = ""
	return t.transitionTo(TaskQueued)
}

// Timeout moves the task to TIMED_OUT, recording the completion
// timestamp. It does not retry automatically.
func (t *Task) Timeout() error {
	if err := t.transitionTo(TaskTimedOut); err != nil {
		return err
	}
	now := time.Now().UTC()
	t.CompletedAt = &now
	return nil
}

// Cancel moves the task to CANCELLED, recording the completion
// timestamp.
func (t *Task) Cancel() error {
	if err := t.transitionTo(TaskCancelled); err != nil {
		return err
	}
	now := time.Now().UTC()
	t.CompletedAt = &now
	return nil
}

// IsTerminal reports whether the task has reached a state with no
// outgoing transitions.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskSucceeded || t.Status == TaskCancelled
}

// CanRetry reports whether the task is eligible for a further retry.
func (t *Task) CanRetry() bool {
	return (t.Status == TaskFailed || t.Status == TaskTimedOut) && t.AttemptNumber < t.MaxAttempts
}
