/*
Package metrics provides Prometheus metrics collection and exposition for the
multi-cloud deployment orchestrator.

The metrics package defines and registers all orchestrator metrics using the
Prometheus client library, providing observability into deployment and task
throughput, plan and drift-scan latency, and rollback frequency. Metrics are
exposed via an HTTP endpoint for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  │  - Automatic Go runtime metrics             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Gauge: instant counts (deployments_total)  │          │
	│  │  Counter: monotonic (drift_items_total)     │          │
	│  │  Histogram: distributions (plan duration)   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Collector                        │          │
	│  │  - polls DeploymentRepository/TaskRepository│          │
	│  │  - republishes counts every 15s             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         HTTP /metrics Endpoint               │          │
	│  │  - promhttp.Handler()                       │          │
	│  │  - Scraped by Prometheus server              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metric Catalog

orchestrator_deployments_total{status}:
  - Type: Gauge
  - Description: current deployment count per lifecycle status
  - Example: orchestrator_deployments_total{status="executing"} 3

orchestrator_tasks_total{status}:
  - Type: Gauge
  - Description: current task count per lifecycle status
  - Example: orchestrator_tasks_total{status="queued"} 12

orchestrator_plan_duration_seconds:
  - Type: Histogram
  - Description: time to generate an execution plan
  - Usage: histogram_quantile(0.95, orchestrator_plan_duration_seconds_bucket)

orchestrator_drift_scan_duration_seconds:
  - Type: Histogram
  - Description: time to scan a deployment for drift

orchestrator_drift_items_total{severity}:
  - Type: Counter
  - Description: drift items detected, by severity
  - Example: orchestrator_drift_items_total{severity="critical"} 2

orchestrator_task_duration_seconds{action}:
  - Type: Histogram
  - Description: task execution time, by terraform action (create/update/destroy)

orchestrator_deployments_rolled_back_total{reason}:
  - Type: Counter
  - Description: deployments rolled back, by reason

orchestrator_raft_is_leader:
  - Type: Gauge
  - Description: 1 if this node is the Raft leader, 0 otherwise (replicated mode only)

# Usage

Registering is automatic via package init; instrumenting a call site:

	timer := metrics.NewTimer()
	plan, err := engine.GeneratePlan(ctx, intent)
	timer.ObserveDuration(metrics.PlanDuration)

Running the background collector:

	collector := metrics.NewCollector(store.Deployments(), store.Tasks())
	collector.Start()
	defer collector.Stop()

Exposing the HTTP endpoint:

	http.Handle("/metrics", metrics.Handler())

# See Also

  - Prometheus client docs: https://github.com/prometheus/client_golang
*/
package metrics
