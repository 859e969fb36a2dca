// Package flags defines the red-flag taxonomy shared by every detector and
// the aggregator.
package flags

import (
	"math"
	"sort"
	"time"
)

// Category identifies the issue domain a flag belongs to. The set is closed;
// adding a category means updating Categories and the exhaustive switches
// that dispatch on it.
type Category string

const (
	CategoryCostAnomaly       Category = "cost_anomaly"
	CategoryResourceWaste     Category = "resource_waste"
	CategorySecurityRisk      Category = "security_risk"
	CategoryDeploymentFailure Category = "deployment_failure"
)

// Categories lists every known category in a fixed order.
var Categories = []Category{
	CategoryCostAnomaly,
	CategoryResourceWaste,
	CategorySecurityRisk,
	CategoryDeploymentFailure,
}

// Severity ranks a finding. The total order is critical < warning < info.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank maps a severity to its sort position. Unknown severities sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	default:
		return 3
	}
}

// RedFlag is one detected issue. It is created by exactly one detector and
// never mutated afterwards.
type RedFlag struct {
	ID          string    `json:"id"`
	Category    Category  `json:"category"`
	Severity    Severity  `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DetectedAt  time.Time `json:"detected_at"`

	ResourceID   string `json:"resource_id"`
	ResourceType string `json:"resource_type"`

	// EstimatedMonthlyCost and EstimatedSavings are nil when the detector
	// has no pricing signal for the resource.
	EstimatedMonthlyCost *float64 `json:"estimated_monthly_cost,omitempty"`
	EstimatedSavings     *float64 `json:"estimated_savings,omitempty"`

	AutoFixable  bool   `json:"auto_fixable"`
	SuggestedFix string `json:"suggested_fix,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// DetectionMetadata records one detector invocation.
type DetectionMetadata struct {
	DetectorID       string        `json:"detector_id"`
	DetectorVersion  string        `json:"detector_version"`
	ExecutionTime    time.Duration `json:"execution_time"`
	ResourcesScanned int           `json:"resources_scanned"`

	// Err carries a detector-level failure annotation. The detector still
	// contributes zero findings rather than aborting the aggregation.
	Err string `json:"error,omitempty"`
}

// Summary is the aggregate view over a flag collection. It is derived and
// recomputed on every aggregation; it is never persisted on its own.
type Summary struct {
	Total                 int              `json:"total"`
	BySeverity            map[Severity]int `json:"by_severity"`
	ByCategory            map[Category]int `json:"by_category"`
	TotalPotentialSavings float64          `json:"total_potential_savings"`
}

// Summarize computes the Summary in a single pass. The savings total is
// rounded to cents exactly once, at the end, so the result is independent of
// flag ordering.
func Summarize(redFlags []RedFlag) Summary {
	s := Summary{
		Total:      len(redFlags),
		BySeverity: make(map[Severity]int),
		ByCategory: make(map[Category]int),
	}

	var savings float64
	for _, f := range redFlags {
		s.BySeverity[f.Severity]++
		s.ByCategory[f.Category]++
		if f.EstimatedSavings != nil {
			savings += *f.EstimatedSavings
		}
	}
	s.TotalPotentialSavings = RoundCents(savings)

	return s
}

// SortBySeverity orders flags critical first. The sort is stable: ties keep
// detector emission order.
func SortBySeverity(redFlags []RedFlag) {
	sort.SliceStable(redFlags, func(i, j int) bool {
		return redFlags[i].Severity.Rank() < redFlags[j].Severity.Rank()
	})
}

// RoundCents rounds to two decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Money returns a pointer to v, for the optional cost fields.
func Money(v float64) *float64 {
	return &v
}
