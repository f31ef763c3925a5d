package drift

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeops/orchestrator/pkg/domain"
)

func TestSimulatedDetector_NoDriftWhenProbabilityZero(t *testing.T) {
	detector := NewSimulatedDetector(0)
	expected := map[string]interface{}{
		"aws:compute:app": map[string]interface{}{"instance_type": "t3.medium"},
	}

	report, err := detector.DetectDrift(context.Background(), "deploy-1", expected)
	require.NoError(t, err)
	assert.False(t, report.HasDrift())
	assert.Equal(t, "No drift detected", report.Summary)
}

func TestSimulatedDetector_AlwaysDriftsWhenProbabilityOne(t *testing.T) {
	detector := NewSimulatedDetector(1)
	expected := map[string]interface{}{
		"aws:compute:app": map[string]interface{}{"instance_type": "t3.medium"},
	}

	report, err := detector.DetectDrift(context.Background(), "deploy-1", expected)
	require.NoError(t, err)
	assert.True(t, report.HasDrift())
	assert.Equal(t, domain.DriftPropertyChanged, report.Items[0].DriftType)
}

func TestSimulatedDetector_MissingResourceReportsRemoved(t *testing.T) {
	detector := NewSimulatedDetector(0)
	detector.SetSimulatedState("aws:compute:app", nil)
	expected := map[string]interface{}{
		"aws:compute:app": map[string]interface{}{"instance_type": "t3.medium"},
	}

	report, err := detector.DetectDrift(context.Background(), "deploy-1", expected)
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, domain.DriftResourceRemoved, report.Items[0].DriftType)
	assert.Equal(t, domain.SeverityCritical, report.Items[0].Severity)
}

func TestSimulatedDetector_GetCurrentStateReturnsSeededState(t *testing.T) {
	detector := NewSimulatedDetector(0)
	detector.SetSimulatedState("res-1", map[string]interface{}{"status": "stopped"})

	state, err := detector.GetCurrentState(context.Background(), domain.ProviderAWS, []string{"res-1", "res-2"})
	require.NoError(t, err)
	assert.Equal(t, "stopped", state["res-1"].(map[string]interface{})["status"])
	assert.Equal(t, "running", state["res-2"].(map[string]interface{})["status"])
}
