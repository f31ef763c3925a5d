package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DeploymentsTotal tracks the current count of deployments by status.
	DeploymentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orchestrator_deployments_total",
			Help: "Total number of deployments by status",
		},
		[]string{"status"},
	)

	// TasksTotal tracks the current count of tasks by status.
	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orchestrator_tasks_total",
			Help: "Total number of tasks by status",
		},
		[]string{"status"},
	)

	// PlanDuration records how long plan generation takes.
	PlanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orchestrator_plan_duration_seconds",
			Help:    "Time taken to generate an execution plan in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// DriftScanDuration records how long a drift scan takes.
	DriftScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orchestrator_drift_scan_duration_seconds",
			Help:    "Time taken to scan a deployment for drift in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// DriftItemsTotal counts drift items found, by severity.
	DriftItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_drift_items_total",
			Help: "Total number of drift items detected by severity",
		},
		[]string{"severity"},
	)

	// TaskDuration records per-task execution time by terraform action.
	TaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_task_duration_seconds",
			Help:    "Time taken to execute a task in seconds, by action",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	// DeploymentsRolledBackTotal counts rollbacks by reason.
	DeploymentsRolledBackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_deployments_rolled_back_total",
			Help: "Total number of deployments that were rolled back",
		},
		[]string{"reason"},
	)

	// RaftLeader reports whether this node is the current Raft leader,
	// when the replicated store is enabled.
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestrator_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)
)

func init() {
	prometheus.MustRegister(DeploymentsTotal)
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(PlanDuration)
	prometheus.MustRegister(DriftScanDuration)
	prometheus.MustRegister(DriftItemsTotal)
	prometheus.MustRegister(TaskDuration)
	prometheus.MustRegister(DeploymentsRolledBackTotal)
	prometheus.MustRegister(RaftLeader)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
