package forecast

import (
	"math"
	"strings"
	"testing"

	"github.com/redflaghq/costwarden/pkg/config"
	"github.com/redflaghq/costwarden/pkg/costs"
)

func history(totals ...float64) []costs.Summary {
	out := make([]costs.Summary, len(totals))
	for i, v := range totals {
		out[i] = costs.Summary{TotalCurrentWeek: v}
	}
	return out
}

func TestNextWeekLinearTrend(t *testing.T) {
	// 1. Setup: spend climbing $10/week with no noise.
	f := New(config.DefaultForecastConfig())

	// 2. Execute
	fc := f.NextWeek(history(100, 110, 120, 130))

	// 3. Assert: the line continues to 140 and the trend reads increasing.
	if math.Abs(fc.Predicted-140) > 1e-9 {
		t.Errorf("Predicted = %v, want 140", fc.Predicted)
	}
	if fc.TrendDirection != TrendIncreasing {
		t.Errorf("trend = %s, want increasing", fc.TrendDirection)
	}
	if fc.Samples != 4 || fc.LowConfidence {
		t.Errorf("samples = %d lowConfidence = %v", fc.Samples, fc.LowConfidence)
	}
	// A perfect fit has no residual spread; the interval collapses onto the
	// prediction.
	if fc.ConfidenceInterval.Low != fc.Predicted || fc.ConfidenceInterval.High != fc.Predicted {
		t.Errorf("interval = %+v, want degenerate at 140", fc.ConfidenceInterval)
	}
}

func TestNextWeekDecreasingTrend(t *testing.T) {
	f := New(config.DefaultForecastConfig())

	fc := f.NextWeek(history(130, 120, 110, 100))

	if math.Abs(fc.Predicted-90) > 1e-9 {
		t.Errorf("Predicted = %v, want 90", fc.Predicted)
	}
	if fc.TrendDirection != TrendDecreasing {
		t.Errorf("trend = %s, want decreasing", fc.TrendDirection)
	}
}

func TestNextWeekStableWithinBand(t *testing.T) {
	// Weekly wiggle well under 2% of the mean must classify as stable.
	f := New(config.DefaultForecastConfig())

	fc := f.NextWeek(history(100, 101, 100, 101))

	if fc.TrendDirection != TrendStable {
		t.Errorf("trend = %s, want stable", fc.TrendDirection)
	}
}

func TestIntervalBracketsPrediction(t *testing.T) {
	f := New(config.DefaultForecastConfig())

	fc := f.NextWeek(history(100, 130, 95, 135))

	if fc.ConfidenceInterval.Low > fc.Predicted || fc.Predicted > fc.ConfidenceInterval.High {
		t.Errorf("prediction %v outside interval %+v", fc.Predicted, fc.ConfidenceInterval)
	}
	if fc.ConfidenceInterval.High <= fc.ConfidenceInterval.Low {
		t.Errorf("noisy series produced a degenerate interval: %+v", fc.ConfidenceInterval)
	}
}

func TestIntervalNarrowsWithMoreHistory(t *testing.T) {
	// 1. Setup: the same oscillation, short window vs long window.
	f := New(config.DefaultForecastConfig())
	short := history(100, 120, 100, 120)
	long := history(100, 120, 100, 120, 100, 120, 100, 120)

	// 2. Execute
	fcShort := f.NextWeek(short)
	fcLong := f.NextWeek(long)

	// 3. Assert: same noise, more samples, tighter interval.
	widthShort := fcShort.ConfidenceInterval.High - fcShort.ConfidenceInterval.Low
	widthLong := fcLong.ConfidenceInterval.High - fcLong.ConfidenceInterval.Low
	if widthLong >= widthShort {
		t.Errorf("interval did not narrow: short=%v long=%v", widthShort, widthLong)
	}
}

func TestForecastNeverNegative(t *testing.T) {
	f := New(config.DefaultForecastConfig())

	fc := f.NextWeek(history(30, 20, 10, 0))

	if fc.Predicted < 0 || fc.ConfidenceInterval.Low < 0 {
		t.Errorf("negative spend forecast: %+v", fc)
	}
}

func TestIntervalWidensWithVariance(t *testing.T) {
	// 1. Setup: same length, same mean, tenfold the noise.
	f := New(config.DefaultForecastConfig())
	calm := history(98, 102, 98, 102, 98, 102)
	noisy := history(80, 120, 80, 120, 80, 120)

	// 2. Execute
	fcCalm := f.NextWeek(calm)
	fcNoisy := f.NextWeek(noisy)

	// 3. Assert: the noisier series yields the wider interval.
	widthCalm := fcCalm.ConfidenceInterval.High - fcCalm.ConfidenceInterval.Low
	widthNoisy := fcNoisy.ConfidenceInterval.High - fcNoisy.ConfidenceInterval.Low
	if widthNoisy <= widthCalm {
		t.Errorf("interval did not widen with variance: calm=%v noisy=%v", widthCalm, widthNoisy)
	}
}

func TestShortHistoryDisclosesLowConfidence(t *testing.T) {
	f := New(config.DefaultForecastConfig())

	fc := f.NextWeek(history(100, 120, 140))

	if !fc.LowConfidence {
		t.Error("3-week window must disclose low confidence")
	}
	// The disclosure lives in the methodology string itself, alongside the
	// method name.
	if !strings.HasPrefix(fc.Methodology, "ols_linear_regression") {
		t.Errorf("methodology = %s, still expected a fit", fc.Methodology)
	}
	if !strings.Contains(fc.Methodology, "low confidence: 3 of 4 samples") {
		t.Errorf("methodology %q does not disclose the short window", fc.Methodology)
	}
}

func TestTwoSampleExtrapolationStaysHumble(t *testing.T) {
	// Two points fit any line exactly; the interval must still be wide, not
	// degenerate.
	f := New(config.DefaultForecastConfig())

	fc := f.NextWeek(history(100, 120))

	if math.Abs(fc.Predicted-140) > 1e-9 {
		t.Errorf("Predicted = %v, want 140", fc.Predicted)
	}
	if fc.ConfidenceInterval.Low >= fc.Predicted || fc.ConfidenceInterval.High <= fc.Predicted {
		t.Errorf("two-point interval degenerate: %+v", fc.ConfidenceInterval)
	}
	if !fc.LowConfidence || !strings.Contains(fc.Methodology, "low confidence") {
		t.Errorf("fc = %+v, want disclosed low confidence", fc)
	}
}

func TestSingleSampleFallsBackToNaive(t *testing.T) {
	f := New(config.DefaultForecastConfig())

	fc := f.NextWeek(history(88.5))

	if fc.Predicted != 88.5 {
		t.Errorf("Predicted = %v, want last value", fc.Predicted)
	}
	if !strings.HasPrefix(fc.Methodology, "naive_last_value") || !fc.LowConfidence {
		t.Errorf("fc = %+v, want naive low-confidence", fc)
	}
}

func TestEmptyHistoryDoesNotError(t *testing.T) {
	f := New(config.DefaultForecastConfig())

	fc := f.NextWeek(nil)

	if fc.Predicted != 0 || fc.Samples != 0 || !fc.LowConfidence {
		t.Errorf("empty forecast = %+v", fc)
	}
}

func TestMonthlyScalesWeekly(t *testing.T) {
	f := New(config.DefaultForecastConfig())
	h := history(100, 110, 120, 130)

	weekly := f.NextWeek(h)
	monthly := f.Monthly(h)

	if math.Abs(monthly.Predicted-weekly.Predicted*costs.WeeksPerMonth) > 1e-9 {
		t.Errorf("monthly = %v, want weekly x %v", monthly.Predicted, costs.WeeksPerMonth)
	}
	if monthly.TrendDirection != weekly.TrendDirection {
		t.Errorf("monthly trend %s != weekly trend %s", monthly.TrendDirection, weekly.TrendDirection)
	}
}
