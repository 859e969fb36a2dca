package detector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/redflaghq/costwarden/pkg/config"
	"github.com/redflaghq/costwarden/pkg/costs"
	"github.com/redflaghq/costwarden/pkg/engine/flags"
)

// AnomalyDetector compares the current week's spend against a statistical
// baseline built from the historical weeks.
type AnomalyDetector struct {
	Config config.AnomalyConfig
	Logger *slog.Logger
	Clock  func() time.Time
}

// NewAnomalyDetector wires the detector with safe defaults.
func NewAnomalyDetector(cfg config.AnomalyConfig, logger *slog.Logger) *AnomalyDetector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &AnomalyDetector{Config: cfg, Logger: logger, Clock: time.Now}
}

func (d *AnomalyDetector) ID() string      { return "cost-anomaly" }
func (d *AnomalyDetector) Version() string { return "1.2.0" }
func (d *AnomalyDetector) Enabled() bool   { return d.Config.Enabled }

// Detect emits an aggregate anomaly flag when the current week deviates from
// the historical baseline beyond the configured z-score thresholds, plus one
// independent flag per anomalous service. With fewer than MinSamples
// historical weeks the detector abstains.
func (d *AnomalyDetector) Detect(ctx context.Context, in Input) (Result, error) {
	if !d.Enabled() {
		return disabledResult(d), nil
	}
	start := d.Clock()

	scanned := 0
	if in.Costs != nil {
		scanned = 1 + len(in.Costs.TopServices)
	}

	if in.Costs == nil || len(in.History) < d.Config.MinSamples {
		d.Logger.Debug("Anomaly detector abstaining",
			"samples", len(in.History), "min_samples", d.Config.MinSamples)
		return Result{Metadata: finishMetadata(d, start, scanned)}, nil
	}

	var found []flags.RedFlag

	found = append(found, runScan(d.Logger, d.ID(), "overall-spend", func() ([]flags.RedFlag, error) {
		return d.checkOverall(in), nil
	})...)

	if d.Config.PerService {
		found = append(found, runScan(d.Logger, d.ID(), "per-service-spend", func() ([]flags.RedFlag, error) {
			return d.checkServices(in), nil
		})...)
	}

	return Result{Flags: found, Metadata: finishMetadata(d, start, scanned)}, nil
}

func (d *AnomalyDetector) checkOverall(in Input) []flags.RedFlag {
	base, ok := baseline(costs.WeeklyTotals(in.History))
	if !ok {
		// Zero variance: any deviation is either none or infinite. Abstain.
		return nil
	}

	current := in.Costs.TotalCurrentWeek
	z := (current - base.mean) / base.stdDev
	sev, flagged := d.classify(z)
	if !flagged {
		return nil
	}

	pct := 0.0
	if base.mean != 0 {
		pct = (current - base.mean) / base.mean * 100
	}

	f := flags.RedFlag{
		ID:           newFlagID(),
		Category:     flags.CategoryCostAnomaly,
		Severity:     sev,
		Title:        "Weekly spend anomaly",
		Description:  describeAnomaly("Total weekly spend", current, base, z, pct),
		DetectedAt:   d.Clock(),
		ResourceID:   in.DeploymentID,
		ResourceType: "deployment",
		EstimatedMonthlyCost: flags.Money(flags.RoundCents(current * costs.WeeksPerMonth)),
		Metadata: map[string]string{
			"z_score":       fmt.Sprintf("%.2f", z),
			"baseline_mean": fmt.Sprintf("%.2f", base.mean),
			"samples":       fmt.Sprintf("%d", base.n),
		},
	}
	return []flags.RedFlag{f}
}

// checkServices evaluates each service against its own historical series.
// Findings are independent of the aggregate flag: a runaway service neither
// masks nor duplicates the overall signal.
func (d *AnomalyDetector) checkServices(in Input) []flags.RedFlag {
	series := serviceSeries(in.History)

	var found []flags.RedFlag
	for _, svc := range in.Costs.TopServices {
		if svc.CurrentCost < d.Config.MinServiceSpend {
			continue
		}
		hist := series[svc.ServiceName]
		if len(hist) < d.Config.MinSamples {
			continue
		}
		base, ok := baseline(hist)
		if !ok {
			continue
		}

		z := (svc.CurrentCost - base.mean) / base.stdDev
		sev, flagged := d.classify(z)
		if !flagged {
			continue
		}

		pct := 0.0
		if base.mean != 0 {
			pct = (svc.CurrentCost - base.mean) / base.mean * 100
		}

		found = append(found, flags.RedFlag{
			ID:           newFlagID(),
			Category:     flags.CategoryCostAnomaly,
			Severity:     sev,
			Title:        fmt.Sprintf("Service spend anomaly: %s", svc.ServiceName),
			Description:  describeAnomaly(svc.ServiceName+" weekly spend", svc.CurrentCost, base, z, pct),
			DetectedAt:   d.Clock(),
			ResourceID:   svc.ServiceName,
			ResourceType: "service",
			EstimatedMonthlyCost: flags.Money(flags.RoundCents(svc.CurrentCost * costs.WeeksPerMonth)),
			Metadata: map[string]string{
				"z_score":       fmt.Sprintf("%.2f", z),
				"baseline_mean": fmt.Sprintf("%.2f", base.mean),
				"samples":       fmt.Sprintf("%d", base.n),
			},
		})
	}
	return found
}

func (d *AnomalyDetector) classify(z float64) (flags.Severity, bool) {
	abs := math.Abs(z)
	switch {
	case abs > d.Config.CriticalZScore:
		return flags.SeverityCritical, true
	case abs > d.Config.WarningZScore:
		return flags.SeverityWarning, true
	default:
		return "", false
	}
}

func describeAnomaly(subject string, current float64, base stats, z, pct float64) string {
	direction := "above"
	if z < 0 {
		direction = "below"
	}
	return fmt.Sprintf(
		"%s is $%.2f, %.1f standard deviations %s the %d-week baseline of $%.2f ($%+.2f, %+.1f%%).",
		subject, current, math.Abs(z), direction, base.n, base.mean, current-base.mean, pct)
}

type stats struct {
	mean   float64
	stdDev float64
	n      int
}

// baseline computes mean and sample standard deviation. ok is false when the
// series has no usable variance.
func baseline(values []float64) (stats, bool) {
	n := len(values)
	if n < 2 {
		return stats{}, false
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	sd := math.Sqrt(sq / float64(n-1))
	if sd == 0 {
		return stats{}, false
	}

	return stats{mean: mean, stdDev: sd, n: n}, true
}

// serviceSeries pivots the history window into per-service weekly series,
// oldest first. Weeks where a service is absent contribute nothing.
func serviceSeries(history []costs.Summary) map[string][]float64 {
	series := make(map[string][]float64)
	for _, week := range history {
		for _, svc := range week.TopServices {
			series[svc.ServiceName] = append(series[svc.ServiceName], svc.CurrentCost)
		}
	}
	return series
}
