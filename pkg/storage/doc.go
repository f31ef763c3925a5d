/*
Package storage provides BoltDB-backed and Raft-replicated persistence
for orchestrator deployment state.

The storage package implements the repository ports (pkg/repository)
two ways: Store, a single bbolt file for a single-process deployment,
and RaftStore, which wraps the same bbolt file in a Raft-replicated
log so a cluster of orchestrator instances converges on the same
deployment/task/drift-report state. All data is serialized as JSON and
stored in one bucket per aggregate.

# Architecture

	┌──────────────────── STORE ──────────────────────┐
	│                                                    │
	│  ┌──────────────────────────────────────────┐    │
	│  │               Store                        │    │
	│  │  - File: <dataDir>/orchestrator.db          │    │
	│  │  - Format: B+tree with MVCC                 │    │
	│  │  - Transactions: ACID with fsync            │    │
	│  └──────────────────┬───────────────────────┘    │
	│                     │                              │
	│  ┌──────────────────▼───────────────────────┐    │
	│  │            Bucket Structure                 │    │
	│  │  ┌────────────────────────────┐            │    │
	│  │  │ deployments   (Deployment ID)│           │    │
	│  │  │ tasks         (Task ID)      │           │    │
	│  │  │ drift_reports (Report ID)    │           │    │
	│  │  └────────────────────────────┘            │    │
	│  └────────────────────────────────────────────┘    │
	└────────────────────────────────────────────────────┘

	┌────────────────── RAFTSTORE ────────────────────┐
	│                                                    │
	│   raft.Raft  ──apply──▶  FSM  ──▶  local Store     │
	│       │                                            │
	│       ├── raft-log.db     (hashicorp/raft-boltdb)  │
	│       ├── raft-stable.db  (term/vote/config)       │
	│       └── snapshots/      (raft.FileSnapshotStore) │
	└────────────────────────────────────────────────────┘

# Core Components

Store (bolt.go):
  - Implements repository.RepositorySet directly over one bbolt file
  - One unexported repo type per aggregate (deploymentRepo, taskRepo,
    driftReportRepo), each scoped to its own bucket
  - Deployments()/Tasks()/DriftReports() hand out the narrow
    repository interface for each aggregate
  - Thread-safe via bbolt's own transaction model; taskRepo additionally
    serializes AcquireNext's scan-then-claim with a mutex so two
    concurrent callers can never race to claim the same task

RaftStore (raft.go, raftfsm.go):
  - Every write (Save/Update/AcquireNext) is marshaled into a Command
    and applied through raft.Raft.Apply, so it is only visible once
    committed to a majority of the cluster
  - FSM.Apply replays each committed Command against the same local
    Store every node runs, so all nodes' local bbolt files converge
  - Reads are served directly from the local Store (no leader
    round-trip), trading read-your-writes-from-any-node for latency;
    only the leader may Apply new writes

# Transaction Model

  - Read transactions: db.View() - concurrent, consistent snapshots
  - Write transactions: db.Update() - serialized, atomic commits
  - Raft writes: committed to the log and replayed through the FSM
    before being visible in any node's local Store
  - Durability: bbolt fsyncs on commit; Raft additionally persists the
    log and snapshots so a restarted node recovers its committed state

# Usage

Single-process store:

	store, err := storage.NewStore("/var/lib/orchestrator")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	d := domain.NewDeployment("deploy-1", intent, "alice", "tenant-1")
	err = store.Deployments().Save(ctx, d)

	fetched, err := store.Deployments().GetByID(ctx, "deploy-1")

Replicated store:

	rs, err := storage.NewRaftStore(storage.RaftConfig{
		NodeID:    "node-1",
		BindAddr:  "10.0.0.1:7450",
		DataDir:   "/var/lib/orchestrator",
		Bootstrap: true,
	})
	defer rs.Shutdown()

	if rs.IsLeader() {
		err = rs.Tasks().Save(ctx, task)
	}

	// On the leader, add a voting peer once it has joined the cluster:
	err = rs.Join("node-2", "10.0.0.2:7450")

# Integration Points

This package integrates with:

  - pkg/repository: defines the DeploymentRepository/TaskRepository/
    DriftReportRepository/RepositorySet ports both Store and RaftStore
    implement
  - pkg/deployment, pkg/drift: the domain services that read and write
    through these ports
  - pkg/worker: AcquireNext is the task dispatch protocol's entry point
  - cmd/orchestrator: openStore chooses Store or RaftStore based on
    Config.Raft.Enabled

# Performance Characteristics

Read Operations:
  - Get by key: O(log n) via B+tree, typically < 1ms
  - List all / filter: O(n) full bucket scan, ~1ms per 1000 entries

Write Operations:
  - Store: O(log n) per key, ~1-5ms with fsync, one writer at a time
  - RaftStore: additionally bounded by raftApplyTimeout (5s) and
    network round-trip to a quorum of followers

# See Also

  - pkg/repository for the ports this package implements
  - BoltDB documentation: https://github.com/etcd-io/bbolt
  - hashicorp/raft documentation: https://github.com/hashicorp/raft
*/
package storage
