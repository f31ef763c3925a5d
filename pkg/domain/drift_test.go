package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDriftReport_NoItemsHasNoDrift(t *testing.T) {
	report := NewDriftReport("deploy-1", "scheduled")
	assert.False(t, report.HasDrift())
	assert.Equal(t, SeverityLow, report.MaxSeverity())
}

func TestDriftReport_MaxSeverityPicksHighestRank(t *testing.T) {
	report := NewDriftReport("deploy-1", "scheduled")
	report.Items = []DriftItem{
		{DriftType: DriftTagMismatch, Severity: SeverityLow},
		{DriftType: DriftPropertyChanged, Severity: SeverityMedium},
		{DriftType: DriftStateMismatch, Severity: SeverityHigh},
	}

	assert.True(t, report.HasDrift())
	assert.Equal(t, SeverityHigh, report.MaxSeverity())
	assert.Equal(t, 1, report.HighCount())
	assert.Equal(t, 0, report.CriticalCount())
}

func TestDriftReport_CriticalCount(t *testing.T) {
	report := NewDriftReport("deploy-1", "scheduled")
	report.Items = []DriftItem{
		{Severity: SeverityCritical},
		{Severity: SeverityCritical},
		{Severity: SeverityLow},
	}

	assert.Equal(t, 2, report.CriticalCount())
	assert.Equal(t, SeverityCritical, report.MaxSeverity())
}
