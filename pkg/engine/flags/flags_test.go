package flags

import (
	"testing"
	"time"
)

func TestSummarizeCountsAndSavings(t *testing.T) {
	// 1. Setup: savings values chosen so naive per-flag rounding would drift.
	input := []RedFlag{
		{Severity: SeverityCritical, Category: CategoryCostAnomaly, EstimatedSavings: Money(10.004)},
		{Severity: SeverityWarning, Category: CategoryResourceWaste, EstimatedSavings: Money(10.004)},
		{Severity: SeverityWarning, Category: CategoryResourceWaste},
		{Severity: SeverityInfo, Category: CategorySecurityRisk, EstimatedSavings: Money(0.003)},
	}

	// 2. Execute
	s := Summarize(input)

	// 3. Assert
	if s.Total != 4 {
		t.Errorf("Total = %d, want 4", s.Total)
	}
	if s.BySeverity[SeverityWarning] != 2 {
		t.Errorf("warning count = %d, want 2", s.BySeverity[SeverityWarning])
	}
	if s.ByCategory[CategoryResourceWaste] != 2 {
		t.Errorf("waste count = %d, want 2", s.ByCategory[CategoryResourceWaste])
	}
	// 10.004 + 10.004 + 0.003 = 20.011, rounded once at the end.
	if s.TotalPotentialSavings != 20.01 {
		t.Errorf("TotalPotentialSavings = %v, want 20.01", s.TotalPotentialSavings)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)

	if s.Total != 0 || s.TotalPotentialSavings != 0 {
		t.Errorf("empty summary = %+v, want zeros", s)
	}
	if s.BySeverity == nil || s.ByCategory == nil {
		t.Error("maps must be allocated even for an empty input")
	}
}

func TestSortBySeverityStable(t *testing.T) {
	// 1. Setup: two flags per severity, tagged with emission order.
	now := time.Now()
	input := []RedFlag{
		{ID: "w1", Severity: SeverityWarning, DetectedAt: now},
		{ID: "i1", Severity: SeverityInfo, DetectedAt: now},
		{ID: "c1", Severity: SeverityCritical, DetectedAt: now},
		{ID: "w2", Severity: SeverityWarning, DetectedAt: now},
		{ID: "c2", Severity: SeverityCritical, DetectedAt: now},
	}

	// 2. Execute
	SortBySeverity(input)

	// 3. Assert: criticals first, and ties keep their original order.
	wantOrder := []string{"c1", "c2", "w1", "w2", "i1"}
	for i, want := range wantOrder {
		if input[i].ID != want {
			t.Errorf("position %d = %s, want %s", i, input[i].ID, want)
		}
	}
}

func TestSeverityRankUnknownSortsLast(t *testing.T) {
	if Severity("bogus").Rank() <= SeverityInfo.Rank() {
		t.Error("unknown severity must rank after info")
	}
}
