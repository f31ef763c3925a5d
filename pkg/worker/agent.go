// Package worker implements the polling worker agent that claims queued
// tasks and runs them through a pluggable Handler, plus the concrete
// Terraform and health-check handlers.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgeops/orchestrator/pkg/domain"
	"github.com/forgeops/orchestrator/pkg/eventbus"
	"github.com/forgeops/orchestrator/pkg/log"
	"github.com/forgeops/orchestrator/pkg/metrics"
	"github.com/forgeops/orchestrator/pkg/repository"
)

// Handler executes the work a single task represents and returns its
// output payload. TerraformHandler and HealthCheckHandler are the two
// implementations; new task kinds add a new Handler rather than a new
// Agent.
type Handler interface {
	Execute(ctx context.Context, task *domain.Task) (map[string]interface{}, error)
}

// Agent polls for queued tasks and runs each one through a Handler under
// a concurrency-limiting semaphore. It is the Go composition-based
// equivalent of a Template Method base class: the poll loop, claim,
// timeout, and event-publication logic live here once; only Execute
// varies by handler.
type Agent struct {
	workerID      string
	tasks         repository.TaskRepository
	publisher     eventbus.Publisher
	handler       Handler
	pollInterval  time.Duration
	maxConcurrent int

	sem chan struct{}

	activeMu sync.Mutex
	active   map[string]bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewAgent constructs a worker agent. If workerID is empty, one is
// generated.
func NewAgent(workerID string, tasks repository.TaskRepository, publisher eventbus.Publisher, handler Handler, pollInterval time.Duration, maxConcurrent int) *Agent {
	if workerID == "" {
		workerID = "worker-" + uuid.New().String()[:8]
	}
	return &Agent{
		workerID:      workerID,
		tasks:         tasks,
		publisher:     publisher,
		handler:       handler,
		pollInterval:  pollInterval,
		maxConcurrent: maxConcurrent,
		sem:           make(chan struct{}, maxConcurrent),
		active:        make(map[string]bool),
		stopCh:        make(chan struct{}),
	}
}

// WorkerID returns the id this agent claims tasks under.
func (a *Agent) WorkerID() string {
	return a.workerID
}

// ActiveTaskCount returns the number of tasks currently executing.
func (a *Agent) ActiveTaskCount() int {
	a.activeMu.Lock()
	defer a.activeMu.Unlock()
	return len(a.active)
}

// Health returns a snapshot suitable for a liveness/readiness endpoint.
func (a *Agent) Health() map[string]interface{} {
	return map[string]interface{}{
		"worker_id":      a.workerID,
		"active_tasks":   a.ActiveTaskCount(),
		"max_concurrent": a.maxConcurrent,
	}
}

// Start begins the poll loop in a background goroutine and returns
// immediately. The loop exits when ctx is cancelled or Stop is called.
func (a *Agent) Start(ctx context.Context) {
	go a.pollLoop(ctx)
}

// Stop signals the poll loop to exit and blocks until every in-flight
// task lifecycle has finished.
func (a *Agent) Stop() {
	close(a.stopCh)
	log.WithComponent("worker").Info().Str("worker_id", a.workerID).Int("active_tasks", a.ActiveTaskCount()).Msg("worker stopping")
	a.wg.Wait()
	log.WithComponent("worker").Info().Str("worker_id", a.workerID).Msg("worker stopped")
}

func (a *Agent) pollLoop(ctx context.Context) {
	log.WithComponent("worker").Info().Str("worker_id", a.workerID).Msg("worker started")
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.pollOnce(ctx)
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (a *Agent) pollOnce(ctx context.Context) {
	if a.ActiveTaskCount() >= a.maxConcurrent {
		return
	}

	task, err := a.tasks.AcquireNext(ctx, a.workerID)
	if err != nil {
		log.WithComponent("worker").Error().Str("worker_id", a.workerID).Err(err).Msg("worker poll error")
		return
	}
	if task == nil {
		return
	}

	a.markActive(task.ID, true)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.markActive(task.ID, false)
		a.runLifecycle(ctx, task)
	}()
}

func (a *Agent) markActive(taskID string, active bool) {
	a.activeMu.Lock()
	defer a.activeMu.Unlock()
	if active {
		a.active[taskID] = true
	} else {
		delete(a.active, taskID)
	}
}

type execResult struct {
	output map[string]interface{}
	err    error
}

// runLifecycle takes the task through START -> (execute under timeout)
// -> SUCCEED/FAIL/TIMEOUT, persisting after each transition and
// publishing a task.<status> event once the outcome is known.
func (a *Agent) runLifecycle(ctx context.Context, task *domain.Task) {
	a.sem <- struct{}{}
	defer func() { <-a.sem }()

	// AcquireNext already moved the task to ACQUIRED and stamped the
	// worker id; this only advances it to RUNNING.
	if err := task.Start(); err != nil {
		log.WithComponent("worker").Error().Str("task_id", task.ID).Err(err).Msg("could not start task")
		return
	}
	if err := a.tasks.Update(ctx, task); err != nil {
		log.WithComponent("worker").Error().Str("task_id", task.ID).Err(err).Msg("failed to persist task start")
	}

	log.WithComponent("worker").Info().
		Str("task_id", task.ID).
		Str("worker_id", a.workerID).
		Str("deployment_id", task.DeploymentID).
		Msg("task execution started")

	timeout := time.Duration(task.TimeoutSeconds) * time.Second
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	timer := metrics.NewTimer()
	resultCh := make(chan execResult, 1)
	go func() {
		output, err := a.handler.Execute(taskCtx, task)
		resultCh <- execResult{output: output, err: err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			if err := task.Fail(r.err.Error()); err != nil {
				log.WithComponent("worker").Error().Str("task_id", task.ID).Err(err).Msg("could not mark task failed")
			}
			log.WithComponent("worker").Error().Str("task_id", task.ID).Err(r.err).Msg("task failed")
		} else {
			if err := task.Succeed(r.output); err != nil {
				log.WithComponent("worker").Error().Str("task_id", task.ID).Err(err).Msg("could not mark task succeeded")
			}
			log.WithComponent("worker").Info().Str("task_id", task.ID).Msg("task succeeded")
		}
	case <-taskCtx.Done():
		if err := task.Timeout(); err != nil {
			log.WithComponent("worker").Error().Str("task_id", task.ID).Err(err).Msg("could not mark task timed out")
		}
		log.WithComponent("worker").Warn().Str("task_id", task.ID).Msg("task timed out")
	}
	timer.ObserveDurationVec(metrics.TaskDuration, task.TerraformAction)

	if err := a.tasks.Update(ctx, task); err != nil {
		log.WithComponent("worker").Error().Str("task_id", task.ID).Err(err).Msg("failed to persist task outcome")
	}

	if err := a.publisher.Publish(ctx, fmt.Sprintf("task.%s", task.Status), map[string]interface{}{
		"task_id":       task.ID,
		"deployment_id": task.DeploymentID,
		"worker_id":     a.workerID,
		"status":        string(task.Status),
	}); err != nil {
		log.WithComponent("worker").Error().Str("task_id", task.ID).Err(err).Msg("failed to publish task event")
	}
}
