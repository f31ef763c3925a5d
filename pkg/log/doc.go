/*
Package log provides structured logging for the orchestrator using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("planner")                 │          │
	│  │  - WithDeploymentID("dep-abc123")            │          │
	│  │  - WithTaskID("task-def456")                 │          │
	│  │  - WithWorkerID("worker-9f2c1a")              │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "deployment",               │          │
	│  │    "time": "2026-07-30T10:30:00Z",          │          │
	│  │    "message": "deployment planned"           │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  2026-07-30T10:30:00Z INF deployment planned component=deployment │ │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all orchestrator packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithDeploymentID: Add deployment ID context
  - WithTaskID: Add task ID context
  - WithWorkerID: Add worker ID context

# Usage

Initializing the Logger:

	import "github.com/forgeops/orchestrator/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("orchestrator starting")
	log.Debug("checking plan cache")
	log.Warn("drift scan took longer than expected")
	log.Error("failed to acquire planning lock")
	log.Fatal("cannot start without a configured store") // Exits process

Structured Logging:

	log.Logger.Info().
		Str("deployment_id", "dep-123").
		Int("wave_count", 3).
		Msg("execution plan generated")

	log.Logger.Error().
		Err(err).
		Str("task_id", "task-abc").
		Msg("task execution failed")

Component Loggers:

	deployLog := log.WithComponent("deployment")
	deployLog.Info().Msg("starting execution")
	deployLog.Debug().Str("task_id", "task-123").Msg("enqueuing step")

Context Logger Helpers:

	depLog := log.WithDeploymentID("dep-abc123")
	depLog.Info().Msg("deployment approved")

	taskLog := log.WithTaskID("task-def456")
	taskLog.Info().Msg("task started")

	workerLog := log.WithWorkerID("worker-9f2c1a")
	workerLog.Info().Msg("worker polling for work")

# Integration Points

This package integrates with:

  - pkg/deployment: Logs lifecycle transitions and rollback decisions
  - pkg/planner: Logs plan generation and validation
  - pkg/worker: Logs task acquisition and execution
  - pkg/drift: Logs drift scans and findings
  - cmd/orchestrator: Logs CLI command invocations

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() for stack traces
  - Include context (deployment ID, task ID, worker ID)

Don't:
  - Log secrets (cloud credentials, lock tokens)
  - Use Debug level in production
  - Log in tight loops (use sampling)
  - Concatenate strings (use .Str, .Int)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
*/
package log
