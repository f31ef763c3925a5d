package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestTask(maxAttempts int) *Task {
	return NewTask("deploy-1", "step-1", "provision compute", ProviderAWS, "apply", "idem-1", maxAttempts, 60)
}

func TestNewTask_StartsPending(t *testing.T) {
	task := newTestTask(3)
	assert.Equal(t, TaskPending, task.Status)
	assert.Equal(t, 1, task.AttemptNumber)
}

func TestTask_HappyPathLifecycle(t *testing.T) {
	task := newTestTask(3)

	assert.NoError(t, task.Enqueue())
	assert.Equal(t, TaskQueued, task.Status)

	assert.NoError(t, task.Acquire("worker-1"))
	assert.Equal(t, TaskAcquired, task.Status)
	assert.Equal(t, "worker-1", task.WorkerID)

	assert.NoError(t, task.Start())
	assert.Equal(t, TaskRunning, task.Status)
	assert.NotNil(t, task.StartedAt)

	assert.NoError(t, task.Succeed(map[string]interface{}{"resource_id": "i-123"}))
	assert.Equal(t, TaskSucceeded, task.Status)
	assert.NotNil(t, task.CompletedAt)
	assert.True(t, task.IsTerminal())
}

func TestTask_FailThenRetry(t *testing.T) {
	task := newTestTask(2)
	assert.NoError(t, task.Enqueue())
	assert.NoError(t, task.Acquire("worker-1"))
	assert.NoError(t, task.Start())
	assert.NoError(t, task.Fail("provider timeout"))

	assert.True(t, task.CanRetry())
	assert.NoError(t, task.Retry())
	assert.Equal(t, TaskQueued, task.Status)
	assert.Equal(t, 2, task.AttemptNumber)
	assert.Empty(t, task.WorkerID)
	assert.Empty(t, task.ErrorMessage)
}

func TestTask_RetryExhaustedReturnsMaxRetriesExceeded(t *testing.T) {
	task := newTestTask(1)
	assert.NoError(t, task.Enqueue())
	assert.NoError(t, task.Acquire("worker-1"))
	assert.NoError(t, task.Start())
	assert.NoError(t, task.Fail("provider timeout"))

	err := task.Retry()
	assert.Error(t, err)
	var maxRetriesErr *MaxRetriesExceededError
	assert.ErrorAs(t, err, &maxRetriesErr)
	assert.False(t, task.CanRetry())
}

func TestTask_InvalidTransitionRejected(t *testing.T) {
	task := newTestTask(3)

	err := task.Start()
	assert.Error(t, err)
	var transitionErr *InvalidTaskTransitionError
	assert.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, TaskPending, transitionErr.From)
	assert.Equal(t, TaskRunning, transitionErr.To)
}

func TestTask_Cancel(t *testing.T) {
	task := newTestTask(3)
	assert.NoError(t, task.Enqueue())
	assert.NoError(t, task.Cancel())
	assert.Equal(t, TaskCancelled, task.Status)
	assert.True(t, task.IsTerminal())
}
