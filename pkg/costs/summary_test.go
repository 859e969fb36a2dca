package costs

import (
	"math"
	"testing"
	"time"
)

func TestNewSummaryDerivedFields(t *testing.T) {
	// 1. Setup
	start := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)
	services := []Breakdown{
		{ServiceName: "AmazonRDS", CurrentCost: 40, PreviousCost: 50},
		{ServiceName: "AmazonEC2", CurrentCost: 100, PreviousCost: 80},
	}

	// 2. Execute
	s := NewSummary(150, 120, services, start, end)

	// 3. Assert
	if s.ChangeAmount != 30 {
		t.Errorf("ChangeAmount = %v, want 30", s.ChangeAmount)
	}
	if math.Abs(s.ChangePercent-25.0) > 1e-9 {
		t.Errorf("ChangePercent = %v, want 25", s.ChangePercent)
	}
	if math.Abs(s.MonthlyProjection-150*WeeksPerMonth) > 1e-9 {
		t.Errorf("MonthlyProjection = %v, want %v", s.MonthlyProjection, 150*WeeksPerMonth)
	}

	// Services must come back ordered by current cost, largest first.
	if s.TopServices[0].ServiceName != "AmazonEC2" {
		t.Errorf("TopServices[0] = %s, want AmazonEC2", s.TopServices[0].ServiceName)
	}
	if s.TopServices[1].ChangeAmount != -10 {
		t.Errorf("RDS ChangeAmount = %v, want -10", s.TopServices[1].ChangeAmount)
	}
}

func TestNewSummaryZeroPrevious(t *testing.T) {
	// A brand new account has no previous week; the percent change must not
	// divide by zero.
	s := NewSummary(99.50, 0, nil, time.Time{}, time.Time{})

	if s.ChangePercent != 0 {
		t.Errorf("ChangePercent = %v, want 0 for zero previous", s.ChangePercent)
	}
	if s.ChangeAmount != 99.50 {
		t.Errorf("ChangeAmount = %v, want 99.50", s.ChangeAmount)
	}
}

func TestNewSummaryDoesNotMutateInput(t *testing.T) {
	services := []Breakdown{
		{ServiceName: "b", CurrentCost: 1},
		{ServiceName: "a", CurrentCost: 2},
	}

	NewSummary(3, 0, services, time.Time{}, time.Time{})

	if services[0].ServiceName != "b" {
		t.Error("input slice was reordered")
	}
	if services[0].MonthlyProjection != 0 {
		t.Error("input slice was mutated")
	}
}

func TestWeeklyTotals(t *testing.T) {
	history := []Summary{
		{TotalCurrentWeek: 100},
		{TotalCurrentWeek: 110},
		{TotalCurrentWeek: 120},
	}

	totals := WeeklyTotals(history)

	want := []float64{100, 110, 120}
	for i, v := range want {
		if totals[i] != v {
			t.Errorf("totals[%d] = %v, want %v", i, totals[i], v)
		}
	}
}
