package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/forgeops/orchestrator/pkg/domain"
	"github.com/forgeops/orchestrator/pkg/repository"
)

// MemoryStore is an in-process, map-backed implementation of all three
// repository ports, used in tests and for single-process demo runs
// where durability across restarts does not matter.
type MemoryStore struct {
	deployments  *memoryDeploymentRepo
	tasks        *memoryTaskRepo
	driftReports *memoryDriftReportRepo
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		deployments:  &memoryDeploymentRepo{items: map[string]*domain.Deployment{}},
		tasks:        &memoryTaskRepo{items: map[string]*domain.Task{}},
		driftReports: &memoryDriftReportRepo{items: map[string]*domain.DriftReport{}},
	}
}

// Deployments returns the DeploymentRepository backed by this store.
func (s *MemoryStore) Deployments() repository.DeploymentRepository { return s.deployments }

// Tasks returns the TaskRepository backed by this store.
func (s *MemoryStore) Tasks() repository.TaskRepository { return s.tasks }

// DriftReports returns the DriftReportRepository backed by this store.
func (s *MemoryStore) DriftReports() repository.DriftReportRepository { return s.driftReports }

// ---------------------------------------------------------------------
// memoryDeploymentRepo
// ---------------------------------------------------------------------

type memoryDeploymentRepo struct {
	mu    sync.RWMutex
	items map[string]*domain.Deployment
}

func (r *memoryDeploymentRepo) Save(_ context.Context, deployment *domain.Deployment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[deployment.ID] = deployment
	return nil
}

func (r *memoryDeploymentRepo) Update(ctx context.Context, deployment *domain.Deployment) error {
	return r.Save(ctx, deployment)
}

func (r *memoryDeploymentRepo) GetByID(_ context.Context, deploymentID string) (*domain.Deployment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.items[deploymentID], nil
}

func (r *memoryDeploymentRepo) ListByStatus(_ context.Context, status domain.DeploymentStatus, limit, offset int) ([]*domain.Deployment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []*domain.Deployment
	for _, d := range r.items {
		if d.Status == status {
			matched = append(matched, d)
		}
	}
	return paginateDeployments(matched, limit, offset), nil
}

func (r *memoryDeploymentRepo) ListByTenant(_ context.Context, tenantID string, limit, offset int) ([]*domain.Deployment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []*domain.Deployment
	for _, d := range r.items {
		if d.TenantID == tenantID {
			matched = append(matched, d)
		}
	}
	return paginateDeployments(matched, limit, offset), nil
}

func (r *memoryDeploymentRepo) CountByStatus(_ context.Context, status domain.DeploymentStatus) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, d := range r.items {
		if d.Status == status {
			n++
		}
	}
	return n, nil
}

// Clear empties the store. Used by test fixtures for isolation.
func (r *memoryDeploymentRepo) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = map[string]*domain.Deployment{}
}

// ---------------------------------------------------------------------
// memoryTaskRepo
// ---------------------------------------------------------------------

type memoryTaskRepo struct {
	mu    sync.Mutex
	items map[string]*domain.Task
}

func (r *memoryTaskRepo) Save(_ context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[task.ID] = task
	return nil
}

func (r *memoryTaskRepo) Update(ctx context.Context, task *domain.Task) error {
	return r.Save(ctx, task)
}

func (r *memoryTaskRepo) GetByID(_ context.Context, taskID string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[taskID], nil
}

func (r *memoryTaskRepo) ListByDeployment(_ context.Context, deploymentID string) ([]*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Task
	for _, t := range r.items {
		if t.DeploymentID == deploymentID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryTaskRepo) ListByStatus(_ context.Context, status domain.TaskStatus, limit int) ([]*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Task
	for _, t := range r.items {
		if t.Status == status {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryTaskRepo) ListByWorker(_ context.Context, workerID string) ([]*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Task
	for _, t := range r.items {
		if t.WorkerID == workerID {
			out = append(out, t)
		}
	}
	return out, nil
}

// AcquireNext claims the oldest QUEUED task for workerID, or returns
// (nil, nil) if none is queued. Scan and claim happen under the same
// lock, so two workers can never acquire the same task.
func (r *memoryTaskRepo) AcquireNext(_ context.Context, workerID string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ordered []*domain.Task
	for _, t := range r.items {
		ordered = append(ordered, t)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].CreatedAt.Before(ordered[j].CreatedAt) })

	for _, t := range ordered {
		if t.Status != domain.TaskQueued {
			continue
		}
		if err := t.Acquire(workerID); err != nil {
			return nil, err
		}
		r.items[t.ID] = t
		return t, nil
	}
	return nil, nil
}

// Clear empties the store. Used by test fixtures for isolation.
func (r *memoryTaskRepo) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = map[string]*domain.Task{}
}

// ---------------------------------------------------------------------
// memoryDriftReportRepo
// ---------------------------------------------------------------------

type memoryDriftReportRepo struct {
	mu    sync.RWMutex
	items map[string]*domain.DriftReport
}

func (r *memoryDriftReportRepo) Save(_ context.Context, report *domain.DriftReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[report.ID] = report
	return nil
}

func (r *memoryDriftReportRepo) GetByID(_ context.Context, reportID string) (*domain.DriftReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.items[reportID], nil
}

func (r *memoryDriftReportRepo) ListByDeployment(_ context.Context, deploymentID string, limit int) ([]*domain.DriftReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.DriftReport
	for _, rpt := range r.items {
		if rpt.DeploymentID == deploymentID {
			out = append(out, rpt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryDriftReportRepo) GetLatestForDeployment(ctx context.Context, deploymentID string) (*domain.DriftReport, error) {
	reports, err := r.ListByDeployment(ctx, deploymentID, 1)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, nil
	}
	return reports[0], nil
}

// Clear empties the store. Used by test fixtures for isolation.
func (r *memoryDriftReportRepo) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = map[string]*domain.DriftReport{}
}
