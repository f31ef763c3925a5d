// Package drift implements configuration drift detection: the
// Detector port, a simulated implementation, and the domain service
// that scans a deployment and persists the resulting report.
package drift

import (
	"context"

	"github.com/forgeops/orchestrator/pkg/domain"
)

// Detector compares a deployment's expected state against the cloud
// provider's actual state and reports the difference.
type Detector interface {
	DetectDrift(ctx context.Context, deploymentID string, expectedState map[string]interface{}) (*domain.DriftReport, error)
	GetCurrentState(ctx context.Context, provider domain.CloudProviderType, resourceIDs []string) (map[string]interface{}, error)
}
