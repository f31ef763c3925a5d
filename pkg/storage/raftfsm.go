package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"

	"github.com/forgeops/orchestrator/pkg/domain"
)

// Command represents one replicated state change in the Raft log. Op
// names the repository operation, Data carries its JSON-encoded
// argument.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

const (
	opSaveDeployment   = "save_deployment"
	opUpdateDeployment = "update_deployment"
	opSaveTask         = "save_task"
	opUpdateTask       = "update_task"
	opAcquireNextTask  = "acquire_next_task"
	opSaveDriftReport  = "save_drift_report"
)

type acquireNextArgs struct {
	WorkerID string `json:"worker_id"`
}

// FSM applies committed Raft log entries to a local bbolt-backed Store,
// the same way every other instance's FSM applies them, so every node
// converges on identical state.
type FSM struct {
	mu    sync.Mutex
	store *Store
}

// NewFSM wraps a local Store as a raft.FSM.
func NewFSM(store *Store) *FSM {
	return &FSM{store: store}
}

// Apply implements raft.FSM.
func (f *FSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ctx := context.Background()

	switch cmd.Op {
	case opSaveDeployment, opUpdateDeployment:
		var deployment domain.Deployment
		if err := json.Unmarshal(cmd.Data, &deployment); err != nil {
			return err
		}
		return f.store.Deployments().Save(ctx, &deployment)

	case opSaveTask, opUpdateTask:
		var task domain.Task
		if err := json.Unmarshal(cmd.Data, &task); err != nil {
			return err
		}
		return f.store.Tasks().Save(ctx, &task)

	case opAcquireNextTask:
		var args acquireNextArgs
		if err := json.Unmarshal(cmd.Data, &args); err != nil {
			return err
		}
		task, err := f.store.tasks.AcquireNext(ctx, args.WorkerID)
		if err != nil {
			return err
		}
		return task

	case opSaveDriftReport:
		var report domain.DriftReport
		if err := json.Unmarshal(cmd.Data, &report); err != nil {
			return err
		}
		return f.store.DriftReports().Save(ctx, &report)

	default:
		return fmt.Errorf("unknown command: %s", cmd.Op)
	}
}

// Snapshot implements raft.FSM.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	deployments, err := f.store.deployments.all()
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	tasks, err := f.store.tasks.all()
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	reports, err := f.store.driftReports.all()
	if err != nil {
		return nil, fmt.Errorf("list drift reports: %w", err)
	}

	return &fsmSnapshot{
		Deployments:  deployments,
		Tasks:        tasks,
		DriftReports: reports,
	}, nil
}

// Restore implements raft.FSM.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap fsmSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ctx := context.Background()
	for _, d := range snap.Deployments {
		if err := f.store.Deployments().Save(ctx, d); err != nil {
			return fmt.Errorf("restore deployment: %w", err)
		}
	}
	for _, t := range snap.Tasks {
		if err := f.store.Tasks().Save(ctx, t); err != nil {
			return fmt.Errorf("restore task: %w", err)
		}
	}
	for _, r := range snap.DriftReports {
		if err := f.store.DriftReports().Save(ctx, r); err != nil {
			return fmt.Errorf("restore drift report: %w", err)
		}
	}
	return nil
}

type fsmSnapshot struct {
	Deployments  []*domain.Deployment  `json:"deployments"`
	Tasks        []*domain.Task        `json:"tasks"`
	DriftReports []*domain.DriftReport `json:"drift_reports"`
}

// Persist implements raft.FSMSnapshot.
func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

// Release implements raft.FSMSnapshot.
func (s *fsmSnapshot) Release() {}
