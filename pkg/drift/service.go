package drift

import (
	"context"
	"fmt"

	"github.com/forgeops/orchestrator/pkg/domain"
	"github.com/forgeops/orchestrator/pkg/eventbus"
	"github.com/forgeops/orchestrator/pkg/log"
	"github.com/forgeops/orchestrator/pkg/metrics"
	"github.com/forgeops/orchestrator/pkg/repository"
)

// ScanError wraps a failure to scan a deployment for drift.
type ScanError struct {
	DeploymentID string
	Reason       string
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("drift scan failed for deployment %s: %s", e.DeploymentID, e.Reason)
}

// DomainService scans deployments for configuration drift and keeps the
// resulting reports queryable as scan history.
type DomainService struct {
	deployments repository.DeploymentRepository
	reports     repository.DriftReportRepository
	detector    Detector
	publisher   eventbus.Publisher
}

// NewDomainService wires the drift service to its repositories, detector
// and event publisher.
func NewDomainService(
	deployments repository.DeploymentRepository,
	reports repository.DriftReportRepository,
	detector Detector,
	publisher eventbus.Publisher,
) *DomainService {
	return &DomainService{
		deployments: deployments,
		reports:     reports,
		detector:    detector,
		publisher:   publisher,
	}
}

// ScanDeployment builds the expected state from the deployment's plan,
// compares it against actual state via the detector, persists the
// report, and publishes drift.detected when anything was found.
func (s *DomainService) ScanDeployment(ctx context.Context, deploymentID string) (*domain.DriftReport, error) {
	deployment, err := s.deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("load deployment %s: %w", deploymentID, err)
	}
	if deployment == nil {
		return nil, &ScanError{DeploymentID: deploymentID, Reason: "deployment not found"}
	}

	expectedState := buildExpectedState(deployment)

	timer := metrics.NewTimer()
	report, err := s.detector.DetectDrift(ctx, deploymentID, expectedState)
	timer.ObserveDuration(metrics.DriftScanDuration)
	if err != nil {
		return nil, &ScanError{DeploymentID: deploymentID, Reason: err.Error()}
	}
	for _, item := range report.Items {
		metrics.DriftItemsTotal.WithLabelValues(string(item.Severity)).Inc()
	}

	if err := s.reports.Save(ctx, report); err != nil {
		return nil, fmt.Errorf("save drift report: %w", err)
	}

	if report.HasDrift() {
		if err := s.publisher.Publish(ctx, "drift.detected", map[string]interface{}{
			"deployment_id": deploymentID,
			"drift_count":   len(report.Items),
			"max_severity":  string(report.MaxSeverity()),
		}); err != nil {
			return nil, fmt.Errorf("publish drift.detected: %w", err)
		}
	}

	log.WithComponent("drift").Info().
		Str("deployment_id", deploymentID).
		Bool("drift_found", report.HasDrift()).
		Int("item_count", len(report.Items)).
		Msg("drift scan completed")

	return report, nil
}

// GetDriftHistory returns up to limit past scans for a deployment, most
// recent first, as maintained by the report repository.
func (s *DomainService) GetDriftHistory(ctx context.Context, deploymentID string, limit int) ([]*domain.DriftReport, error) {
	return s.reports.ListByDeployment(ctx, deploymentID, limit)
}

// buildExpectedState derives the expected-state map from the
// deployment's attached plan, keyed by each step's resource identifier.
// A deployment with no plan yet has no expected state to compare.
func buildExpectedState(deployment *domain.Deployment) map[string]interface{} {
	state := make(map[string]interface{})
	if deployment.Plan == nil {
		return state
	}
	for _, step := range deployment.Plan.Steps {
		state[step.ResourceSpec.ResourceIdentifier()] = step.ResourceSpec.AsMap()
	}
	return state
}
