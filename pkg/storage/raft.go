package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/forgeops/orchestrator/pkg/domain"
	"github.com/forgeops/orchestrator/pkg/repository"
)

const raftApplyTimeout = 5 * time.Second

// RaftConfig configures a replicated RaftStore.
type RaftConfig struct {
	NodeID    string
	BindAddr  string
	DataDir   string
	Bootstrap bool
}

// RaftStore replicates deployment/task/drift-report writes across a
// cluster of instances via Raft, while serving reads from the local
// bbolt-backed copy of state. Every node applies the same committed
// log in the same order, so every node's local store converges.
type RaftStore struct {
	raft   *raft.Raft
	fsm    *FSM
	local  *Store
	nodeID string

	deployments  *raftDeploymentRepo
	tasks        *raftTaskRepo
	driftReports *raftDriftReportRepo
}

// NewRaftStore opens the local bbolt store, wraps it in an FSM, and
// either bootstraps a new single-node cluster or joins an existing one.
func NewRaftStore(cfg RaftConfig) (*RaftStore, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	local, err := NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	fsm := NewFSM(local)

	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(cfg.NodeID)

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("create raft log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("create raft stable store: %w", err)
	}

	r, err := raft.NewRaft(raftConfig, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("create raft instance: %w", err)
	}

	if cfg.Bootstrap {
		configuration := raft.Configuration{
			Servers: []raft.Server{{ID: raftConfig.LocalID, Address: transport.LocalAddr()}},
		}
		if err := r.BootstrapCluster(configuration).Error(); err != nil {
			return nil, fmt.Errorf("bootstrap cluster: %w", err)
		}
	}

	s := &RaftStore{raft: r, fsm: fsm, local: local, nodeID: cfg.NodeID}
	s.deployments = &raftDeploymentRepo{store: s}
	s.tasks = &raftTaskRepo{store: s}
	s.driftReports = &raftDriftReportRepo{store: s}
	return s, nil
}

// Join adds a voting peer to the cluster. Call only on the current leader.
func (s *RaftStore) Join(nodeID, addr string) error {
	return s.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, 10*time.Second).Error()
}

// IsLeader reports whether this node is the current Raft leader.
func (s *RaftStore) IsLeader() bool {
	return s.raft.State() == raft.Leader
}

// Leader returns the address of the current leader, if known.
func (s *RaftStore) Leader() string {
	return string(s.raft.Leader())
}

// Shutdown stops Raft participation and closes the local store.
func (s *RaftStore) Shutdown() error {
	if err := s.raft.Shutdown().Error(); err != nil {
		return err
	}
	return s.local.Close()
}

func (s *RaftStore) apply(op string, payload interface{}) (interface{}, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", op, err)
	}
	cmd := Command{Op: op, Data: data}
	encoded, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}

	future := s.raft.Apply(encoded, raftApplyTimeout)
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("raft apply %s: %w", op, err)
	}
	if err, ok := future.Response().(error); ok && err != nil {
		return nil, err
	}
	return future.Response(), nil
}

// Deployments returns the replicated DeploymentRepository.
func (s *RaftStore) Deployments() repository.DeploymentRepository { return s.deployments }

// Tasks returns the replicated TaskRepository.
func (s *RaftStore) Tasks() repository.TaskRepository { return s.tasks }

// DriftReports returns the replicated DriftReportRepository.
func (s *RaftStore) DriftReports() repository.DriftReportRepository { return s.driftReports }

// ---------------------------------------------------------------------
// raftDeploymentRepo — writes go through the log, reads serve from the
// local copy of state.
// ---------------------------------------------------------------------

type raftDeploymentRepo struct {
	store *RaftStore
}

func (r *raftDeploymentRepo) Save(_ context.Context, deployment *domain.Deployment) error {
	_, err := r.store.apply(opSaveDeployment, deployment)
	return err
}

func (r *raftDeploymentRepo) Update(_ context.Context, deployment *domain.Deployment) error {
	_, err := r.store.apply(opUpdateDeployment, deployment)
	return err
}

func (r *raftDeploymentRepo) GetByID(ctx context.Context, deploymentID string) (*domain.Deployment, error) {
	return r.store.local.Deployments().GetByID(ctx, deploymentID)
}

func (r *raftDeploymentRepo) ListByStatus(ctx context.Context, status domain.DeploymentStatus, limit, offset int) ([]*domain.Deployment, error) {
	return r.store.local.Deployments().ListByStatus(ctx, status, limit, offset)
}

func (r *raftDeploymentRepo) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*domain.Deployment, error) {
	return r.store.local.Deployments().ListByTenant(ctx, tenantID, limit, offset)
}

func (r *raftDeploymentRepo) CountByStatus(ctx context.Context, status domain.DeploymentStatus) (int, error) {
	return r.store.local.Deployments().CountByStatus(ctx, status)
}

// ---------------------------------------------------------------------
// raftTaskRepo
// ---------------------------------------------------------------------

type raftTaskRepo struct {
	store *RaftStore
}

func (r *raftTaskRepo) Save(_ context.Context, task *domain.Task) error {
	_, err := r.store.apply(opSaveTask, task)
	return err
}

func (r *raftTaskRepo) Update(_ context.Context, task *domain.Task) error {
	_, err := r.store.apply(opUpdateTask, task)
	return err
}

func (r *raftTaskRepo) GetByID(ctx context.Context, taskID string) (*domain.Task, error) {
	return r.store.local.Tasks().GetByID(ctx, taskID)
}

func (r *raftTaskRepo) ListByDeployment(ctx context.Context, deploymentID string) ([]*domain.Task, error) {
	return r.store.local.Tasks().ListByDeployment(ctx, deploymentID)
}

func (r *raftTaskRepo) ListByStatus(ctx context.Context, status domain.TaskStatus, limit int) ([]*domain.Task, error) {
	return r.store.local.Tasks().ListByStatus(ctx, status, limit)
}

func (r *raftTaskRepo) ListByWorker(ctx context.Context, workerID string) ([]*domain.Task, error) {
	return r.store.local.Tasks().ListByWorker(ctx, workerID)
}

// AcquireNext replicates the claim itself through the log, since it
// mutates state (status, worker id): every node must apply the same
// winner in the same order, not just whichever node a worker happened
// to poll.
func (r *raftTaskRepo) AcquireNext(_ context.Context, workerID string) (*domain.Task, error) {
	resp, err := r.store.apply(opAcquireNextTask, acquireNextArgs{WorkerID: workerID})
	if err != nil {
		return nil, err
	}
	task, _ := resp.(*domain.Task)
	return task, nil
}

// ---------------------------------------------------------------------
// raftDriftReportRepo
// ---------------------------------------------------------------------

type raftDriftReportRepo struct {
	store *RaftStore
}

func (r *raftDriftReportRepo) Save(_ context.Context, report *domain.DriftReport) error {
	_, err := r.store.apply(opSaveDriftReport, report)
	return err
}

func (r *raftDriftReportRepo) GetByID(ctx context.Context, reportID string) (*domain.DriftReport, error) {
	return r.store.local.DriftReports().GetByID(ctx, reportID)
}

func (r *raftDriftReportRepo) ListByDeployment(ctx context.Context, deploymentID string, limit int) ([]*domain.DriftReport, error) {
	return r.store.local.DriftReports().ListByDeployment(ctx, deploymentID, limit)
}

func (r *raftDriftReportRepo) GetLatestForDeployment(ctx context.Context, deploymentID string) (*domain.DriftReport, error) {
	return r.store.local.DriftReports().GetLatestForDeployment(ctx, deploymentID)
}
