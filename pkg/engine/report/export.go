// Package report renders an aggregation run to JSON and CSV for downstream
// tooling.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/redflaghq/costwarden/pkg/costs"
	"github.com/redflaghq/costwarden/pkg/engine/aggregate"
	"github.com/redflaghq/costwarden/pkg/engine/forecast"
)

// Document is the full exportable report: the merged flags plus the cost
// context and forecasts that produced them.
type Document struct {
	GeneratedAt  time.Time          `json:"generated_at"`
	DeploymentID string             `json:"deployment_id"`
	Costs        *costs.Summary     `json:"costs,omitempty"`
	Report       *aggregate.Report  `json:"report"`
	NextWeek     *forecast.Forecast `json:"next_week_forecast,omitempty"`
	NextMonth    *forecast.Forecast `json:"next_month_forecast,omitempty"`

	// BurnVelocity is the average week-over-week change in total spend
	// across the history window, in dollars per week.
	BurnVelocity float64 `json:"burn_velocity,omitempty"`
}

// WriteJSON renders the document as indented JSON.
func WriteJSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

var csvHeader = []string{
	"id", "category", "severity", "title", "resource_id", "resource_type",
	"estimated_monthly_cost", "estimated_savings", "auto_fixable", "detected_at",
}

// WriteCSV renders the flag table. One row per flag, in report order, so the
// file is severity-sorted like the report itself.
func WriteCSV(w io.Writer, doc *Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, f := range doc.Report.Flags {
		row := []string{
			f.ID,
			string(f.Category),
			string(f.Severity),
			f.Title,
			f.ResourceID,
			f.ResourceType,
			moneyCell(f.EstimatedMonthlyCost),
			moneyCell(f.EstimatedSavings),
			strconv.FormatBool(f.AutoFixable),
			f.DetectedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func moneyCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
