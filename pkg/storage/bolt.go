// Package storage implements the repository ports against bbolt (a
// single-process embedded store) and, optionally, a hashicorp/raft log
// replicating the same commands across a cluster of instances.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/forgeops/orchestrator/pkg/domain"
	"github.com/forgeops/orchestrator/pkg/repository"
)

var (
	bucketDeployments  = []byte("deployments")
	bucketTasks        = []byte("tasks")
	bucketDriftReports = []byte("drift_reports")
)

// Store owns a single bbolt file and hands out one repository
// implementation per aggregate, each scoped to its own bucket.
type Store struct {
	db           *bolt.DB
	deployments  *deploymentRepo
	tasks        *taskRepo
	driftReports *driftReportRepo
}

// NewStore opens (creating if absent) a bbolt file named
// orchestrator.db under dataDir, creating the three aggregate buckets.
func NewStore(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "orchestrator.db")
	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketDeployments, bucketTasks, bucketDriftReports} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:           db,
		deployments:  &deploymentRepo{db: db},
		tasks:        &taskRepo{db: db},
		driftReports: &driftReportRepo{db: db},
	}, nil
}

// Close releases the underlying bbolt file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Deployments returns the DeploymentRepository backed by this store.
func (s *Store) Deployments() repository.DeploymentRepository { return s.deployments }

// Tasks returns the TaskRepository backed by this store.
func (s *Store) Tasks() repository.TaskRepository { return s.tasks }

// DriftReports returns the DriftReportRepository backed by this store.
func (s *Store) DriftReports() repository.DriftReportRepository { return s.driftReports }

// ---------------------------------------------------------------------
// deploymentRepo
// ---------------------------------------------------------------------

type deploymentRepo struct {
	db *bolt.DB
}

func (r *deploymentRepo) Save(_ context.Context, deployment *domain.Deployment) error {
	return r.put(deployment)
}

func (r *deploymentRepo) Update(_ context.Context, deployment *domain.Deployment) error {
	return r.put(deployment)
}

func (r *deploymentRepo) put(deployment *domain.Deployment) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(deployment)
		if err != nil {
			return fmt.Errorf("marshal deployment: %w", err)
		}
		return tx.Bucket(bucketDeployments).Put([]byte(deployment.ID), data)
	})
}

// GetByID returns (nil, nil) when the id is not present.
func (r *deploymentRepo) GetByID(_ context.Context, deploymentID string) (*domain.Deployment, error) {
	var d *domain.Deployment
	err := r.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketDeployments).Get([]byte(deploymentID))
		if data == nil {
			return nil
		}
		d = &domain.Deployment{}
		return json.Unmarshal(data, d)
	})
	return d, err
}

func (r *deploymentRepo) ListByStatus(_ context.Context, status domain.DeploymentStatus, limit, offset int) ([]*domain.Deployment, error) {
	all, err := r.all()
	if err != nil {
		return nil, err
	}
	var matched []*domain.Deployment
	for _, d := range all {
		if d.Status == status {
			matched = append(matched, d)
		}
	}
	return paginateDeployments(matched, limit, offset), nil
}

func (r *deploymentRepo) ListByTenant(_ context.Context, tenantID string, limit, offset int) ([]*domain.Deployment, error) {
	all, err := r.all()
	if err != nil {
		return nil, err
	}
	var matched []*domain.Deployment
	for _, d := range all {
		if d.TenantID == tenantID {
			matched = append(matched, d)
		}
	}
	return paginateDeployments(matched, limit, offset), nil
}

func (r *deploymentRepo) CountByStatus(_ context.Context, status domain.DeploymentStatus) (int, error) {
	all, err := r.all()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range all {
		if d.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *deploymentRepo) all() ([]*domain.Deployment, error) {
	var out []*domain.Deployment
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDeployments).ForEach(func(_, v []byte) error {
			var d domain.Deployment
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			out = append(out, &d)
			return nil
		})
	})
	return out, err
}

func paginateDeployments(items []*domain.Deployment, limit, offset int) []*domain.Deployment {
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ---------------------------------------------------------------------
// taskRepo
// ---------------------------------------------------------------------

type taskRepo struct {
	db *bolt.DB

	// acquireMu serializes AcquireNext's scan-then-mutate across
	// concurrent callers on top of bolt.DB.Update's own per-transaction
	// write lock, so "find the oldest queued task" and "claim it" can
	// never interleave with another AcquireNext call.
	acquireMu sync.Mutex
}

func (r *taskRepo) Save(_ context.Context, task *domain.Task) error {
	return r.put(task)
}

func (r *taskRepo) Update(_ context.Context, task *domain.Task) error {
	return r.put(task)
}

func (r *taskRepo) put(task *domain.Task) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(task)
		if err != nil {
			return fmt.Errorf("marshal task: %w", err)
		}
		return tx.Bucket(bucketTasks).Put([]byte(task.ID), data)
	})
}

func (r *taskRepo) GetByID(_ context.Context, taskID string) (*domain.Task, error) {
	var t *domain.Task
	err := r.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTasks).Get([]byte(taskID))
		if data == nil {
			return nil
		}
		t = &domain.Task{}
		return json.Unmarshal(data, t)
	})
	return t, err
}

func (r *taskRepo) ListByDeployment(_ context.Context, deploymentID string) ([]*domain.Task, error) {
	all, err := r.all()
	if err != nil {
		return nil, err
	}
	var out []*domain.Task
	for _, t := range all {
		if t.DeploymentID == deploymentID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *taskRepo) ListByStatus(_ context.Context, status domain.TaskStatus, limit int) ([]*domain.Task, error) {
	all, err := r.all()
	if err != nil {
		return nil, err
	}
	var out []*domain.Task
	for _, t := range all {
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

func (r *taskRepo) ListByWorker(_ context.Context, workerID string) ([]*domain.Task, error) {
	all, err := r.all()
	if err != nil {
		return nil, err
	}
	var out []*domain.Task
	for _, t := range all {
		if t.WorkerID == workerID {
			out = append(out, t)
		}
	}
	return out, nil
}

// AcquireNext claims the oldest QUEUED task for workerID, or returns
// (nil, nil) if none is queued.
func (r *taskRepo) AcquireNext(ctx context.Context, workerID string) (*domain.Task, error) {
	r.acquireMu.Lock()
	defer r.acquireMu.Unlock()

	queued, err := r.ListByStatus(ctx, domain.TaskQueued, 0)
	if err != nil {
		return nil, err
	}
	if len(queued) == 0 {
		return nil, nil
	}
	task := queued[0]
	if err := task.Acquire(workerID); err != nil {
		return nil, err
	}
	if err := r.put(task); err != nil {
		return nil, err
	}
	return task, nil
}

func (r *taskRepo) all() ([]*domain.Task, error) {
	var out []*domain.Task
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTasks).ForEach(func(_, v []byte) error {
			var t domain.Task
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			out = append(out, &t)
			return nil
		})
	})
	return out, err
}

// ---------------------------------------------------------------------
// driftReportRepo
// ---------------------------------------------------------------------

type driftReportRepo struct {
	db *bolt.DB
}

func (r *driftReportRepo) Save(_ context.Context, report *domain.DriftReport) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("marshal drift report: %w", err)
		}
		return tx.Bucket(bucketDriftReports).Put([]byte(report.ID), data)
	})
}

func (r *driftReportRepo) GetByID(_ context.Context, reportID string) (*domain.DriftReport, error) {
	var rpt *domain.DriftReport
	err := r.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketDriftReports).Get([]byte(reportID))
		if data == nil {
			return nil
		}
		rpt = &domain.DriftReport{}
		return json.Unmarshal(data, rpt)
	})
	return rpt, err
}

func (r *driftReportRepo) ListByDeployment(_ context.Context, deploymentID string, limit int) ([]*domain.DriftReport, error) {
	all, err := r.all()
	if err != nil {
		return nil, err
	}
	var out []*domain.DriftReport
	for _, rpt := range all {
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

func (r *driftReportRepo) GetLatestForDeployment(ctx context.Context, deploymentID string) (*domain.DriftReport, error) {
	reports, err := r.ListByDeployment(ctx, deploymentID, 1)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, nil
	}
	return reports[0], nil
}

func (r *driftReportRepo) all() ([]*domain.DriftReport, error) {
	var out []*domain.DriftReport
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDriftReports).ForEach(func(_, v []byte) error {
			var rpt domain.DriftReport
			if err := json.Unmarshal(v, &rpt); err != nil {
				return err
			}
			out = append(out, &rpt)
			return nil
		})
	})
	return out, err
}
