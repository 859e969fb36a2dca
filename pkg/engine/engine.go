// Package engine wires the detectors, forecaster, policy filter, and
// persistence into one run pipeline.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/redflaghq/costwarden/pkg/config"
	"github.com/redflaghq/costwarden/pkg/costs"
	"github.com/redflaghq/costwarden/pkg/engine/aggregate"
	"github.com/redflaghq/costwarden/pkg/engine/awsx"
	"github.com/redflaghq/costwarden/pkg/engine/detector"
	"github.com/redflaghq/costwarden/pkg/engine/flags"
	"github.com/redflaghq/costwarden/pkg/engine/forecast"
	"github.com/redflaghq/costwarden/pkg/engine/history"
	"github.com/redflaghq/costwarden/pkg/engine/notifier"
	"github.com/redflaghq/costwarden/pkg/engine/policy"
	"github.com/redflaghq/costwarden/pkg/engine/pricing"
	"github.com/redflaghq/costwarden/pkg/engine/report"
)

// CostSource supplies the weekly spend series, newest week last.
type CostSource interface {
	WeeklySummaries(ctx context.Context, weeks int) ([]costs.Summary, error)
}

// Engine is the run coordinator. Build it with New and the With* options.
type Engine struct {
	logger *slog.Logger

	detectorCfg   config.DetectorConfig
	aggregatorCfg config.AggregatorConfig
	forecastCfg   config.ForecastConfig

	prices   pricing.Source
	metrics  detector.UtilizationMetrics
	policies *policy.Engine
	ledger   *history.Ledger
	notify   *notifier.SlackNotifier

	collector *awsx.Collector
	costSrc   CostSource

	historyWeeks int
	strict       bool
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithDetectorConfig overrides the detector defaults.
func WithDetectorConfig(cfg config.DetectorConfig) Option {
	return func(e *Engine) { e.detectorCfg = cfg }
}

// WithAggregatorConfig overrides the run deadlines.
func WithAggregatorConfig(cfg config.AggregatorConfig) Option {
	return func(e *Engine) { e.aggregatorCfg = cfg }
}

// WithForecastConfig overrides the forecaster defaults.
func WithForecastConfig(cfg config.ForecastConfig) Option {
	return func(e *Engine) { e.forecastCfg = cfg }
}

// WithPricing sets the price source used for savings estimates.
func WithPricing(src pricing.Source) Option {
	return func(e *Engine) { e.prices = src }
}

// WithMetrics sets the utilization source for the waste detector.
func WithMetrics(m detector.UtilizationMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithPolicy installs a compiled policy filter.
func WithPolicy(p *policy.Engine) Option {
	return func(e *Engine) { e.policies = p }
}

// WithLedger persists each run's cost snapshot.
func WithLedger(l *history.Ledger) Option {
	return func(e *Engine) { e.ledger = l }
}

// WithNotifier pushes run summaries to Slack.
func WithNotifier(n *notifier.SlackNotifier) Option {
	return func(e *Engine) { e.notify = n }
}

// WithCollector sets the AWS inventory collector.
func WithCollector(c *awsx.Collector) Option {
	return func(e *Engine) { e.collector = c }
}

// WithCostSource sets the weekly spend provider.
func WithCostSource(src CostSource) Option {
	return func(e *Engine) { e.costSrc = src }
}

// WithHistoryWeeks bounds the baseline window.
func WithHistoryWeeks(n int) Option {
	return func(e *Engine) { e.historyWeeks = n }
}

// WithStrictMode makes the run fail when any detector degrades instead of
// returning the partial report.
func WithStrictMode(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// New builds an engine with defaults for anything not overridden.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:        slog.New(slog.NewJSONHandler(os.Stderr, nil)),
		detectorCfg:   config.DefaultDetectorConfig(),
		aggregatorCfg: config.DefaultAggregatorConfig(),
		forecastCfg:   config.DefaultForecastConfig(),
		prices:        pricing.DefaultTable(),
		historyWeeks:  12,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the full pipeline for one deployment: gather, detect,
// forecast, filter, persist, notify. The returned document is complete even
// when individual detectors degraded; strict mode turns that degradation into
// an error.
func (e *Engine) Run(ctx context.Context, deploymentID string) (*report.Document, error) {
	tracer := otel.Tracer("costwarden/engine")
	ctx, span := tracer.Start(ctx, "engine.Run",
		trace.WithAttributes(attribute.String("deployment", deploymentID)))
	defer span.End()

	in, err := e.gather(ctx, deploymentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gather failed")
		return nil, err
	}

	doc, err := e.RunWithInput(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run failed")
		return nil, err
	}
	return doc, nil
}

// RunWithInput executes detection and reporting over an already-gathered
// snapshot. Offline analyses and tests enter here.
func (e *Engine) RunWithInput(ctx context.Context, in detector.Input) (*report.Document, error) {
	agg := aggregate.New(e.aggregatorCfg, e.logger, e.detectors()...)

	rep, err := agg.Run(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("aggregation: %w", err)
	}

	if e.strict {
		for _, meta := range rep.Detectors {
			if meta.Err != "" {
				return nil, fmt.Errorf("detector %s degraded: %s", meta.DetectorID, meta.Err)
			}
		}
	}

	if e.policies != nil {
		rep.Flags = e.policies.Apply(rep.Flags)
		flags.SortBySeverity(rep.Flags)
		rep.Summary = flags.Summarize(rep.Flags)
	}

	doc := &report.Document{
		GeneratedAt:  time.Now().UTC(),
		DeploymentID: in.DeploymentID,
		Costs:        in.Costs,
		Report:       rep,
	}

	// The current week is a known observation too; fold it into the series
	// so a cold start still yields the naive baseline.
	series := in.History
	if in.Costs != nil {
		series = append(append([]costs.Summary{}, in.History...), *in.Costs)
	}
	if len(series) > 0 {
		fc := forecast.New(e.forecastCfg)
		week := fc.NextWeek(series)
		month := fc.Monthly(series)
		doc.NextWeek = &week
		doc.NextMonth = &month
		doc.BurnVelocity = history.BurnVelocity(series)
	}

	e.persistAndNotify(ctx, in, doc)
	return doc, nil
}

// gather assembles the detector input from the configured providers, falling
// back to the ledger for history when there is no live cost source.
func (e *Engine) gather(ctx context.Context, deploymentID string) (detector.Input, error) {
	in := detector.Input{DeploymentID: deploymentID}

	if e.collector != nil {
		in.Inventory = e.collector.Collect(ctx, deploymentID, e.detectorCfg.Deploy.LookbackDays)
	}

	switch {
	case e.costSrc != nil:
		summaries, err := e.costSrc.WeeklySummaries(ctx, e.historyWeeks+1)
		if err != nil {
			return in, fmt.Errorf("fetching cost data: %w", err)
		}
		if len(summaries) > 0 {
			current := summaries[len(summaries)-1]
			in.Costs = &current
			in.History = summaries[:len(summaries)-1]
		}
	case e.ledger != nil:
		window, err := e.ledger.Window(ctx, deploymentID, e.historyWeeks)
		if err != nil {
			return in, err
		}
		in.History = window
	}

	return in, nil
}

func (e *Engine) detectors() []detector.Detector {
	return []detector.Detector{
		detector.NewAnomalyDetector(e.detectorCfg.Anomaly, e.logger),
		detector.NewWasteDetector(e.detectorCfg.Waste, e.metrics, e.prices, e.logger),
		detector.NewSecurityDetector(e.detectorCfg.Security, e.logger),
		detector.NewDeployDetector(e.detectorCfg.Deploy, e.logger),
	}
}

// persistAndNotify runs the post-report side effects. Both are best-effort;
// failures are logged, never returned.
func (e *Engine) persistAndNotify(ctx context.Context, in detector.Input, doc *report.Document) {
	if e.ledger != nil && in.Costs != nil {
		if err := e.ledger.Append(ctx, in.DeploymentID, *in.Costs); err != nil {
			e.logger.Error("History append failed", "error", err)
		}
	}
	if e.notify != nil && e.notify.Enabled() {
		if err := e.notify.Notify(ctx, in.DeploymentID, doc); err != nil {
			e.logger.Error("Slack notification failed", "error", err)
		}
	}
}
