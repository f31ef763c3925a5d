package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgeops/orchestrator/internal/config"
	"github.com/forgeops/orchestrator/pkg/deployment"
	"github.com/forgeops/orchestrator/pkg/domain"
	"github.com/forgeops/orchestrator/pkg/eventbus"
	"github.com/forgeops/orchestrator/pkg/executor"
	"github.com/forgeops/orchestrator/pkg/health"
	"github.com/forgeops/orchestrator/pkg/lock"
	"github.com/forgeops/orchestrator/pkg/log"
	"github.com/forgeops/orchestrator/pkg/metrics"
	"github.com/forgeops/orchestrator/pkg/planner"
	"github.com/forgeops/orchestrator/pkg/repository"
	"github.com/forgeops/orchestrator/pkg/storage"
	"github.com/forgeops/orchestrator/pkg/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orchestrator: worker pool, metrics endpoint, and (optionally) the replicated store",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("metrics-addr", ":9090", "Address to serve /metrics on")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := loadedConfig
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	serveLog := log.WithComponent("serve")

	repos, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	broker := eventbus.NewBroker()
	broker.Start()
	defer broker.Stop()
	publisher := eventbus.NewInMemoryPublisher(broker)

	var locker lock.DistributedLock
	if cfg.RedisAddr != "" {
		if redisLock, err := lock.NewRedisLock("redis://" + cfg.RedisAddr); err == nil {
			locker = redisLock
		}
	}
	if locker == nil {
		locker = lock.NewMemoryLock()
	}
	deploymentSvc := deployment.NewService(repos.Deployments(), repos.Tasks(), planner.NewRuleBasedEngine(), publisher, locker)

	completion := deployment.NewCompletionConsumer(deploymentSvc, broker)
	completion.Start()
	defer completion.Stop()

	tfExecutor, err := executor.NewSimulatedTerraformExecutor(cfg.DataDir)
	if err != nil {
		return err
	}

	terraformHandler, err := worker.NewTerraformHandler(tfExecutor)
	if err != nil {
		return err
	}
	healthHandler := worker.NewHealthCheckHandler(health.NewSimulatedResourceChecker())

	agent := worker.NewAgent(
		"",
		repos.Tasks(),
		publisher,
		dispatchingHandler{terraform: terraformHandler, health: healthHandler},
		cfg.Worker.PollInterval,
		cfg.Worker.MaxConcurrent,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	agent.Start(ctx)
	defer agent.Stop()

	collector := metrics.NewCollector(repos.Deployments(), repos.Tasks())
	collector.Start()
	defer collector.Stop()

	metrics.RegisterComponent("store", true, "store open")
	metrics.RegisterComponent("worker", true, "worker polling")
	if leaderTracker, ok := repos.(interface{ IsLeader() bool }); ok {
		metrics.RegisterComponent("raft", true, "raft node joined")
		stopLeaderWatch := watchRaftLeadership(leaderTracker)
		defer stopLeaderWatch()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	srv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveLog.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	serveLog.Info().Str("worker_id", agent.WorkerID()).Str("metrics_addr", metricsAddr).Msg("orchestrator serving")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	serveLog.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// watchRaftLeadership polls a Raft-backed store's leadership state into
// the RaftLeader gauge every few seconds, and returns a func that stops
// the poll loop.
func watchRaftLeadership(tracker interface{ IsLeader() bool }) func() {
	stopCh := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		setLeaderGauge(tracker)
		for {
			select {
			case <-ticker.C:
				setLeaderGauge(tracker)
			case <-stopCh:
				return
			}
		}
	}()
	return func() {
		close(stopCh)
		<-done
	}
}

func setLeaderGauge(tracker interface{ IsLeader() bool }) {
	if tracker.IsLeader() {
		metrics.RaftLeader.Set(1)
	} else {
		metrics.RaftLeader.Set(0)
	}
}

// dispatchingHandler routes a task to the terraform or health handler
// based on its terraform action, since a single Agent polls one task
// queue that carries both kinds of work.
type dispatchingHandler struct {
	terraform *worker.TerraformHandler
	health    *worker.HealthCheckHandler
}

func (h dispatchingHandler) Execute(ctx context.Context, task *domain.Task) (map[string]interface{}, error) {
	if task.TerraformAction == "health_check" {
		return h.health.Execute(ctx, task)
	}
	return h.terraform.Execute(ctx, task)
}

func openStore(cfg *config.Config) (repository.RepositorySet, func(), error) {
	if cfg.Raft.Enabled {
		rs, err := storage.NewRaftStore(storage.RaftConfig{
			NodeID:    cfg.Raft.NodeID,
			BindAddr:  cfg.Raft.BindAddr,
			DataDir:   cfg.DataDir,
			Bootstrap: cfg.Raft.Bootstrap,
		})
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { _ = rs.Shutdown() }, nil
	}

	store, err := storage.NewStore(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}
