package domain

// DriftSeverity ranks how serious a detected drift item is.
type DriftSeverity string

const (
	SeverityLow      DriftSeverity = "low"
	SeverityMedium   DriftSeverity = "medium"
	SeverityHigh     DriftSeverity = "high"
	SeverityCritical DriftSeverity = "critical"
)

var severityOrder = []DriftSeverity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// DriftType classifies what kind of difference was observed.
type DriftType string

const (
	DriftPropertyChanged DriftType = "property_changed"
	DriftResourceAdded   DriftType = "resource_added"
	DriftResourceRemoved DriftType = "resource_removed"
	DriftStateMismatch   DriftType = "state_mismatch"
	DriftTagMismatch     DriftType = "tag_mismatch"
)

// DriftItem is a single finding within a drift report.
type DriftItem struct {
	DriftType          DriftType     `json:"drift_type"`
	ResourceIdentifier string        `json:"resource_identifier"`
	PropertyPath       string        `json:"property_path,omitempty"`
	ExpectedValue      string        `json:"expected_value,omitempty"`
	ActualValue        string        `json:"actual_value,omitempty"`
	Severity           DriftSeverity `json:"severity"`
}

// DriftReport is the append-only aggregate produced by a single drift
// scan of a deployment.
type DriftReport struct {
	AggregateRoot
	DeploymentID            string      `json:"deployment_id"`
	ScanType                string      `json:"scan_type"`
	Items                   []DriftItem `json:"items,omitempty"`
	Summary                 string      `json:"summary,omitempty"`
	AutoRemediate           bool        `json:"auto_remediate"`
	RemediationDeploymentID string      `json:"remediation_deployment_id,omitempty"`
}

// NewDriftReport constructs a report with no items yet recorded.
func NewDriftReport(deploymentID, scanType string) *DriftReport {
	return &DriftReport{
		AggregateRoot: AggregateRoot{Entity: newEntity()},
		DeploymentID:  deploymentID,
		ScanType:      scanType,
	}
}

// HasDrift reports whether the scan found any items at all.
func (r *DriftReport) HasDrift() bool {
	return len(r.Items) > 0
}

// CriticalCount counts items at critical severity.
func (r *DriftReport) CriticalCount() int {
	n := 0
	for _, item := range r.Items {
		if item.Severity == SeverityCritical {
			n++
		}
	}
	return n
}

// HighCount counts items at high severity.
func (r *DriftReport) HighCount() int {
	n := 0
	for _, item := range r.Items {
		if item.Severity == SeverityHigh {
			n++
		}
	}
	return n
}

// MaxSeverity is the maximum severity over all items, under the ordering
// critical > high > medium > low, or low when there are no items.
func (r *DriftReport) MaxSeverity() DriftSeverity {
	if len(r.Items) == 0 {
		return SeverityLow
	}
	for _, candidate := range severityOrder {
		for _, item := range r.Items {
			if item.Severity == candidate {
				return candidate
			}
		}
	}
	return SeverityLow
}
