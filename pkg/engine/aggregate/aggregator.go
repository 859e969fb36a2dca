// Package aggregate fans the detectors out concurrently and merges their
// findings into one severity-ordered report.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/redflaghq/costwarden/pkg/config"
	"github.com/redflaghq/costwarden/pkg/engine/detector"
	"github.com/redflaghq/costwarden/pkg/engine/flags"
)

// ErrNoDetectors is returned when Run is invoked with an empty registry.
var ErrNoDetectors = errors.New("no detectors registered")

// Report is the merged output of one aggregation run.
type Report struct {
	Flags     []flags.RedFlag           `json:"flags"`
	Summary   flags.Summary             `json:"summary"`
	Detectors []flags.DetectionMetadata `json:"detectors"`
	StartedAt time.Time                 `json:"started_at"`
	Duration  time.Duration             `json:"duration"`
}

// Aggregator runs a fixed detector set. Registration order is preserved in
// the merged output: the severity sort is stable over it.
type Aggregator struct {
	detectors []detector.Detector
	cfg       config.AggregatorConfig
	logger    *slog.Logger
	clock     func() time.Time
}

// New builds an Aggregator over the given detectors.
func New(cfg config.AggregatorConfig, logger *slog.Logger, detectors ...detector.Detector) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Aggregator{detectors: detectors, cfg: cfg, logger: logger, clock: time.Now}
}

// Run executes every registered detector concurrently and blocks until all
// complete. A detector that panics, errors, or overruns its deadline
// contributes zero findings and an annotated metadata record; it never takes
// the run down with it.
func (a *Aggregator) Run(ctx context.Context, in detector.Input) (*Report, error) {
	if len(a.detectors) == 0 {
		return nil, ErrNoDetectors
	}

	tracer := otel.Tracer("costwarden/aggregate")
	ctx, span := tracer.Start(ctx, "aggregate.Run")
	defer span.End()
	span.SetAttributes(attribute.Int("detectors", len(a.detectors)))

	if a.cfg.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.OverallTimeout)
		defer cancel()
	}

	started := a.clock()

	// Indexed by registration order so the merge is deterministic regardless
	// of completion order.
	results := make([]detector.Result, len(a.detectors))

	var wg sync.WaitGroup
	for i, d := range a.detectors {
		wg.Add(1)
		go func(i int, d detector.Detector) {
			defer wg.Done()
			results[i] = a.runOne(ctx, d, in)
		}(i, d)
	}
	wg.Wait()

	report := &Report{StartedAt: started}
	for _, res := range results {
		report.Flags = append(report.Flags, res.Flags...)
		report.Detectors = append(report.Detectors, res.Metadata)
	}

	flags.SortBySeverity(report.Flags)
	report.Summary = flags.Summarize(report.Flags)
	report.Duration = a.clock().Sub(started)

	for _, meta := range report.Detectors {
		if meta.Err != "" {
			span.SetStatus(codes.Error, "one or more detectors degraded")
			break
		}
	}

	a.logger.Info("Aggregation complete",
		"flags", report.Summary.Total,
		"critical", report.Summary.BySeverity[flags.SeverityCritical],
		"potential_savings", report.Summary.TotalPotentialSavings,
		"duration", report.Duration)

	return report, nil
}

// runOne isolates a single detector: its own deadline, its own panic
// boundary. Failures collapse to an empty result with the error recorded in
// the metadata.
func (a *Aggregator) runOne(ctx context.Context, d detector.Detector, in detector.Input) detector.Result {
	ctx, span := otel.Tracer("costwarden/aggregate").Start(ctx, "detector."+d.ID())
	defer span.End()

	if a.cfg.DetectorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.DetectorTimeout)
		defer cancel()
	}

	type outcome struct {
		res detector.Result
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("Detector panicked",
					"detector", d.ID(), "panic", r, "stack", string(debug.Stack()))
				done <- outcome{err: fmt.Errorf("detector %s panicked: %v", d.ID(), r)}
			}
		}()
		res, err := d.Detect(ctx, in)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			a.logger.Error("Detector failed", "detector", d.ID(), "error", out.err)
			span.RecordError(out.err)
			span.SetStatus(codes.Error, "detector failed")
			return failedResult(d, out.err)
		}
		span.SetAttributes(attribute.Int("flags", len(out.res.Flags)))
		return out.res
	case <-ctx.Done():
		a.logger.Error("Detector deadline exceeded", "detector", d.ID(), "timeout", a.cfg.DetectorTimeout)
		span.SetStatus(codes.Error, "deadline exceeded")
		return failedResult(d, fmt.Errorf("detector %s: %w", d.ID(), ctx.Err()))
	}
}

func failedResult(d detector.Detector, err error) detector.Result {
	return detector.Result{
		Metadata: flags.DetectionMetadata{
			DetectorID:      d.ID(),
			DetectorVersion: d.Version(),
			Err:             err.Error(),
		},
	}
}
