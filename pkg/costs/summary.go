// Package costs defines the weekly billing summaries consumed by the
// detection and forecasting engine.
package costs

import (
	"math"
	"sort"
	"time"
)

// WeeksPerMonth converts a weekly total into a monthly projection.
// 365.25 / 7 / 12.
const WeeksPerMonth = 4.33

// Breakdown holds one service's share of a billing week.
type Breakdown struct {
	ServiceName       string  `json:"service_name"`
	CurrentCost       float64 `json:"current_cost"`
	PreviousCost      float64 `json:"previous_cost"`
	ChangePercent     float64 `json:"change_percent"`
	ChangeAmount      float64 `json:"change_amount"`
	MonthlyProjection float64 `json:"monthly_projection"`
}

// Summary describes one billing week.
// ChangeAmount is always TotalCurrentWeek - TotalPreviousWeek, and
// TopServices is sorted descending by current-week cost.
type Summary struct {
	TotalCurrentWeek  float64     `json:"total_current_week"`
	TotalPreviousWeek float64     `json:"total_previous_week"`
	ChangePercent     float64     `json:"change_percent"`
	ChangeAmount      float64     `json:"change_amount"`
	MonthlyProjection float64     `json:"monthly_projection"`
	TopServices       []Breakdown `json:"top_services"`
	PeriodStart       time.Time   `json:"period_start"`
	PeriodEnd         time.Time   `json:"period_end"`
}

// NewSummary builds a Summary from raw weekly totals, computing the derived
// fields and ordering services by current-week cost.
func NewSummary(current, previous float64, services []Breakdown, start, end time.Time) Summary {
	s := Summary{
		TotalCurrentWeek:  current,
		TotalPreviousWeek: previous,
		ChangeAmount:      current - previous,
		ChangePercent:     percentChange(current, previous),
		MonthlyProjection: current * WeeksPerMonth,
		PeriodStart:       start,
		PeriodEnd:         end,
	}

	top := make([]Breakdown, len(services))
	copy(top, services)
	for i := range top {
		top[i].ChangeAmount = top[i].CurrentCost - top[i].PreviousCost
		top[i].ChangePercent = percentChange(top[i].CurrentCost, top[i].PreviousCost)
		top[i].MonthlyProjection = top[i].CurrentCost * WeeksPerMonth
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].CurrentCost > top[j].CurrentCost
	})
	s.TopServices = top

	return s
}

// NaiveMonthlyProjection is the trend-free "last week x 4.33" baseline.
func (s Summary) NaiveMonthlyProjection() float64 {
	return s.TotalCurrentWeek * WeeksPerMonth
}

// WeeklyTotals extracts the current-week totals of a history window,
// oldest first.
func WeeklyTotals(history []Summary) []float64 {
	totals := make([]float64, len(history))
	for i, s := range history {
		totals[i] = s.TotalCurrentWeek
	}
	return totals
}

func percentChange(current, previous float64) float64 {
	if math.Abs(previous) < 0.01 {
		return 0
	}
	return (current - previous) / previous * 100.0
}
