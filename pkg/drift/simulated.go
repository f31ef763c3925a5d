package drift

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/forgeops/orchestrator/pkg/domain"
	"github.com/forgeops/orchestrator/pkg/log"
)

// SimulatedDetector is the only Detector implementation in this
// repository: it compares expected state against a simulated "actual"
// state, flipping a coin per resource to manufacture property drift,
// and treats any resource missing from actual state as removed. A real
// detector would instead query each cloud provider's API.
type SimulatedDetector struct {
	driftProbability float64

	mu    sync.Mutex
	state map[string]map[string]interface{}
}

// NewSimulatedDetector builds a detector that reports property drift on
// driftProbability of resources that are still present.
func NewSimulatedDetector(driftProbability float64) *SimulatedDetector {
	return &SimulatedDetector{
		driftProbability: driftProbability,
		state:            make(map[string]map[string]interface{}),
	}
}

// SetSimulatedState seeds the actual state returned for resourceID,
// overriding the default "running" stand-in. A nil state marks the
// resource as absent. Exposed for tests.
func (d *SimulatedDetector) SetSimulatedState(resourceID string, state map[string]interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state[resourceID] = state
}

// DetectDrift implements Detector.
func (d *SimulatedDetector) DetectDrift(ctx context.Context, deploymentID string, expectedState map[string]interface{}) (*domain.DriftReport, error) {
	log.WithComponent("drift").Debug().Str("deployment_id", deploymentID).Msg("drift detection started")

	resourceIDs := make([]string, 0, len(expectedState))
	for id := range expectedState {
		resourceIDs = append(resourceIDs, id)
	}
	sort.Strings(resourceIDs)

	actualState, err := d.GetCurrentState(ctx, domain.ProviderAWS, resourceIDs)
	if err != nil {
		return nil, err
	}

	report := domain.NewDriftReport(deploymentID, "scheduled")
	for _, resourceID := range resourceIDs {
		actual, present := actualState[resourceID]
		if !present || actual == nil {
			report.Items = append(report.Items, domain.DriftItem{
				DriftType:          domain.DriftResourceRemoved,
				ResourceIdentifier: resourceID,
				Severity:           domain.SeverityCritical,
			})
			continue
		}

		if rand.Float64() < d.driftProbability {
			report.Items = append(report.Items, domain.DriftItem{
				DriftType:          domain.DriftPropertyChanged,
				ResourceIdentifier: resourceID,
				PropertyPath:       "properties.instance_type",
				ExpectedValue:      "t3.medium",
				ActualValue:        "t3.large",
				Severity:           domain.SeverityMedium,
			})
		}
	}

	if len(report.Items) > 0 {
		report.Summary = fmt.Sprintf("Found %d drift items", len(report.Items))
	} else {
		report.Summary = "No drift detected"
	}

	log.WithComponent("drift").Info().Str("deployment_id", deploymentID).Int("drift_count", len(report.Items)).Msg("drift detection completed")
	return report, nil
}

// GetCurrentState implements Detector.
func (d *SimulatedDetector) GetCurrentState(_ context.Context, provider domain.CloudProviderType, resourceIDs []string) (map[string]interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	state := make(map[string]interface{}, len(resourceIDs))
	for _, resourceID := range resourceIDs {
		if seeded, ok := d.state[resourceID]; ok {
			if seeded != nil {
				state[resourceID] = seeded
			}
			continue
		}
		state[resourceID] = map[string]interface{}{
			"status":   "running",
			"provider": string(provider),
		}
	}
	return state, nil
}
