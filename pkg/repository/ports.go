// Package repository defines the storage contracts the deployment and
// drift services depend on. Concrete backends (pkg/storage) implement
// these interfaces; the service layer never imports a backend directly.
package repository

import (
	"context"

	"github.com/forgeops/orchestrator/pkg/domain"
)

// DeploymentRepository persists deployments and supports the list
// operations the service and CLI need.
type DeploymentRepository interface {
	Save(ctx context.Context, deployment *domain.Deployment) error
	GetByID(ctx context.Context, deploymentID string) (*domain.Deployment, error)
	ListByStatus(ctx context.Context, status domain.DeploymentStatus, limit, offset int) ([]*domain.Deployment, error)
	ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*domain.Deployment, error)
	Update(ctx context.Context, deployment *domain.Deployment) error
	CountByStatus(ctx context.Context, status domain.DeploymentStatus) (int, error)
}

// TaskRepository persists tasks and provides the atomic claim operation
// the worker pool depends on.
type TaskRepository interface {
	Save(ctx context.Context, task *domain.Task) error
	GetByID(ctx context.Context, taskID string) (*domain.Task, error)
	ListByDeployment(ctx context.Context, deploymentID string) ([]*domain.Task, error)
	ListByStatus(ctx context.Context, status domain.TaskStatus, limit int) ([]*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	ListByWorker(ctx context.Context, workerID string) ([]*domain.Task, error)

	// AcquireNext atomically claims the oldest QUEUED task, sets its
	// status to ACQUIRED and its worker_id, persists those fields, and
	// returns it. It returns (nil, nil) when no task is queued.
	AcquireNext(ctx context.Context, workerID string) (*domain.Task, error)
}

// DriftReportRepository persists drift reports, one per scan.
type DriftReportRepository interface {
	Save(ctx context.Context, report *domain.DriftReport) error
	GetByID(ctx context.Context, reportID string) (*domain.DriftReport, error)
	ListByDeployment(ctx context.Context, deploymentID string, limit int) ([]*domain.DriftReport, error)
	GetLatestForDeployment(ctx context.Context, deploymentID string) (*domain.DriftReport, error)
}

// RepositorySet groups the three repositories a storage backend
// provides, so callers can depend on "a store" without committing to
// bbolt, in-memory, or Raft-replicated storage.
type RepositorySet interface {
	Deployments() DeploymentRepository
	Tasks() TaskRepository
	DriftReports() DriftReportRepository
}
