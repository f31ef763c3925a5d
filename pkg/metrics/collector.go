package metrics

import (
	"context"
	"time"

	"github.com/forgeops/orchestrator/pkg/domain"
	"github.com/forgeops/orchestrator/pkg/repository"
)

var deploymentStatuses = []domain.DeploymentStatus{
	domain.DeploymentPending,
	domain.DeploymentPlanning,
	domain.DeploymentPlanned,
	domain.DeploymentAwaitingApproval,
	domain.DeploymentApproved,
	domain.DeploymentExecuting,
	domain.DeploymentVerifying,
	domain.DeploymentCompleted,
	domain.DeploymentFailed,
	domain.DeploymentRollingBack,
	domain.DeploymentRolledBack,
	domain.DeploymentCancelled,
}

var taskStatuses = []domain.TaskStatus{
	domain.TaskPending,
	domain.TaskQueued,
	domain.TaskAcquired,
	domain.TaskRunning,
	domain.TaskSucceeded,
	domain.TaskFailed,
	domain.TaskRetrying,
	domain.TaskCancelled,
	domain.TaskTimedOut,
}

// Collector periodically polls the repositories and republishes
// deployment/task counts as gauges.
type Collector struct {
	deployments repository.DeploymentRepository
	tasks       repository.TaskRepository
	stopCh      chan struct{}
}

// NewCollector creates a new metrics collector over the given repositories.
func NewCollector(deployments repository.DeploymentRepository, tasks repository.TaskRepository) *Collector {
	return &Collector{
		deployments: deployments,
		tasks:       tasks,
		stopCh:      make(chan struct{}),
	}
}

// Start begins collecting metrics on a fixed interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectDeploymentMetrics()
	c.collectTaskMetrics()
}

func (c *Collector) collectDeploymentMetrics() {
	ctx := context.Background()
	for _, status := range deploymentStatuses {
		count, err := c.deployments.CountByStatus(ctx, status)
		if err != nil {
			continue
		}
		DeploymentsTotal.WithLabelValues(string(status)).Set(float64(count))
	}
}

func (c *Collector) collectTaskMetrics() {
	ctx := context.Background()
	for _, status := range taskStatuses {
		tasks, err := c.tasks.ListByStatus(ctx, status, 0)
		if err != nil {
			continue
		}
		TasksTotal.WithLabelValues(string(status)).Set(float64(len(tasks)))
	}
}
