package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for records that are not found and a missing plan.
// Nothing in this module returns them: the pkg/storage repositories
// report a missing record as a nil result with a nil error. Matching the
// reference codebase's convention, these are plain stdlib errors, not a
// third-party errors package.
var (
	ErrDeploymentNotFound    = errors.New("deployment not found")
	ErrTaskNotFound          = errors.New("task not found")
	ErrDriftReportNotFound   = errors.New("drift report not found")
	ErrDeploymentPlanMissing = errors.New("deployment has no execution plan")
)

// InvalidStateTransitionError is raised when a deployment's lifecycle
// method is called from a status that does not permit it.
type InvalidStateTransitionError struct {
	From DeploymentStatus
	To   DeploymentStatus
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("cannot transition deployment from %s to %s", e.From, e.To)
}

// InvalidTaskTransitionError is the task-aggregate equivalent.
type InvalidTaskTransitionError struct {
	From TaskStatus
	To   TaskStatus
}

func (e *InvalidTaskTransitionError) Error() string {
	return fmt.Sprintf("cannot transition task from %s to %s", e.From, e.To)
}

// MaxRetriesExceededError is raised by Task.Retry once the attempt budget
// is exhausted.
type MaxRetriesExceededError struct {
	TaskID      string
	MaxAttempts int
}

func (e *MaxRetriesExceededError) Error() string {
	return fmt.Sprintf("task %s has exceeded max retries (%d)", e.TaskID, e.MaxAttempts)
}

// DeploymentLockError describes a failure to acquire a deployment's lock.
// The deployment service reports a failed planning lock with its own
// deployment.LockError and does not return this type.
type DeploymentLockError struct {
	ResourceID string
}

func (e *DeploymentLockError) Error() string {
	return fmt.Sprintf("failed to acquire lock for %s", e.ResourceID)
}

// DriftScanError wraps a failure encountered while scanning a deployment
// for drift.
type DriftScanError struct {
	DeploymentID string
	Reason       string
}

func (e *DriftScanError) Error() string {
	return fmt.Sprintf("drift scan failed for deployment %s: %s", e.DeploymentID, e.Reason)
}
