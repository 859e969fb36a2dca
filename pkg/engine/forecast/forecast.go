// Package forecast projects future spend from the weekly cost history using
// an ordinary least-squares trend line.
package forecast

import (
	"fmt"
	"math"

	"github.com/redflaghq/costwarden/pkg/config"
	"github.com/redflaghq/costwarden/pkg/costs"
)

// Direction classifies the fitted trend.
type Direction string

const (
	TrendIncreasing Direction = "increasing"
	TrendDecreasing Direction = "decreasing"
	TrendStable     Direction = "stable"
)

// Interval is a prediction interval around a point forecast.
type Interval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Forecast is one spend projection.
type Forecast struct {
	// Predicted is the point estimate for the target period.
	Predicted          float64   `json:"predicted"`
	ConfidenceInterval Interval  `json:"confidence_interval"`
	TrendDirection     Direction `json:"trend_direction"`
	Methodology        string    `json:"methodology"`

	// Samples is the number of historical weeks the fit used.
	Samples int `json:"samples"`
	// LowConfidence is set when the window is shorter than the configured
	// minimum; the projection is still produced but should be read as rough.
	LowConfidence bool `json:"low_confidence"`
}

// Forecaster fits trend lines over weekly totals.
type Forecaster struct {
	Config config.ForecastConfig
}

// New returns a Forecaster with the given configuration.
func New(cfg config.ForecastConfig) *Forecaster {
	return &Forecaster{Config: cfg}
}

const (
	methodOLS   = "ols_linear_regression"
	methodNaive = "naive_last_value"
)

// NextWeek projects the coming week's total spend. With fewer than two usable
// samples it degrades to a naive last-value forecast instead of erroring.
func (f *Forecaster) NextWeek(history []costs.Summary) Forecast {
	totals := costs.WeeklyTotals(history)
	return f.project(totals, float64(len(totals)))
}

// Monthly projects the coming month as the next-week forecast scaled by the
// average number of weeks per month. The interval scales with it.
func (f *Forecaster) Monthly(history []costs.Summary) Forecast {
	weekly := f.NextWeek(history)
	return Forecast{
		Predicted: clampNonNegative(weekly.Predicted * costs.WeeksPerMonth),
		ConfidenceInterval: Interval{
			Low:  clampNonNegative(weekly.ConfidenceInterval.Low * costs.WeeksPerMonth),
			High: clampNonNegative(weekly.ConfidenceInterval.High * costs.WeeksPerMonth),
		},
		TrendDirection: weekly.TrendDirection,
		Methodology:    weekly.Methodology,
		Samples:        weekly.Samples,
		LowConfidence:  weekly.LowConfidence,
	}
}

// project fits y = a + b·x over x = 0..n-1 and evaluates the line and its
// prediction interval at x0.
func (f *Forecaster) project(totals []float64, x0 float64) Forecast {
	n := len(totals)

	if n == 0 {
		return Forecast{Methodology: f.methodology(methodNaive, 0), TrendDirection: TrendStable, LowConfidence: true}
	}
	if n == 1 {
		v := clampNonNegative(totals[0])
		return Forecast{
			Predicted:          v,
			ConfidenceInterval: Interval{Low: v, High: v},
			TrendDirection:     TrendStable,
			Methodology:        f.methodology(methodNaive, 1),
			Samples:            1,
			LowConfidence:      true,
		}
	}

	var sumX, sumY float64
	for i, y := range totals {
		sumX += float64(i)
		sumY += y
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var sxx, sxy float64
	for i, y := range totals {
		dx := float64(i) - meanX
		sxx += dx * dx
		sxy += dx * (y - meanY)
	}

	slope := sxy / sxx
	intercept := meanY - slope*meanX
	predicted := intercept + slope*x0

	// Residual standard error with n-2 degrees of freedom.
	var ssr float64
	for i, y := range totals {
		fit := intercept + slope*float64(i)
		ssr += (y - fit) * (y - fit)
	}
	se := 0.0
	switch {
	case n > 2:
		se = math.Sqrt(ssr / float64(n-2))
	case n == 2:
		// A two-point fit has zero residual by construction. Size the
		// interval from the observed spread instead, so a bare two-point
		// extrapolation never reports a tighter interval than a real fit.
		se = math.Abs(totals[1]-totals[0]) / 2
	}

	// 95% prediction interval under a normal approximation. The width grows
	// with residual spread and with distance from the sample mean, and
	// shrinks as the window lengthens.
	const z95 = 1.96
	margin := z95 * se * math.Sqrt(1+1/float64(n)+(x0-meanX)*(x0-meanX)/sxx)

	predicted = clampNonNegative(predicted)
	low := clampNonNegative(predicted - margin)
	high := clampNonNegative(predicted + margin)
	if low > predicted {
		low = predicted
	}
	if high < predicted {
		high = predicted
	}

	return Forecast{
		Predicted:          predicted,
		ConfidenceInterval: Interval{Low: low, High: high},
		TrendDirection:     f.direction(slope, meanY),
		Methodology:        f.methodology(methodOLS, n),
		Samples:            n,
		LowConfidence:      n < f.Config.MinSamples,
	}
}

// methodology names the method and discloses reduced confidence when the
// window is shorter than the configured minimum.
func (f *Forecaster) methodology(base string, n int) string {
	if n < f.Config.MinSamples {
		return fmt.Sprintf("%s (low confidence: %d of %d samples)", base, n, f.Config.MinSamples)
	}
	return base
}

// direction classifies the slope against the stability band: a weekly change
// within StableSlopePercent of the mean weekly total is stable.
func (f *Forecaster) direction(slope, meanY float64) Direction {
	band := math.Abs(meanY) * f.Config.StableSlopePercent / 100
	switch {
	case slope > band:
		return TrendIncreasing
	case slope < -band:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
