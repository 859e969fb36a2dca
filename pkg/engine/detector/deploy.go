package detector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redflaghq/costwarden/pkg/config"
	"github.com/redflaghq/costwarden/pkg/engine/flags"
	"github.com/redflaghq/costwarden/pkg/engine/inventory"
)

// DeployDetector surfaces recent deployment health problems from the event
// stream: repeated health-check failures, rollbacks, crash loops.
type DeployDetector struct {
	Config config.DeployConfig
	Logger *slog.Logger
	Clock  func() time.Time
}

// NewDeployDetector wires the detector.
func NewDeployDetector(cfg config.DeployConfig, logger *slog.Logger) *DeployDetector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DeployDetector{Config: cfg, Logger: logger, Clock: time.Now}
}

func (d *DeployDetector) ID() string      { return "deployment-failure" }
func (d *DeployDetector) Version() string { return "1.0.2" }
func (d *DeployDetector) Enabled() bool   { return d.Config.Enabled }

func (d *DeployDetector) Detect(ctx context.Context, in Input) (Result, error) {
	if !d.Enabled() {
		return disabledResult(d), nil
	}
	start := d.Clock()

	var events []inventory.DeploymentEvent
	if in.Inventory != nil {
		events = in.Inventory.DeploymentEvents
	}

	found := runScan(d.Logger, d.ID(), "deployment-events", func() ([]flags.RedFlag, error) {
		return d.scanEvents(events), nil
	})

	return Result{Flags: found, Metadata: finishMetadata(d, start, len(events))}, nil
}

// scanEvents groups recent events per deployment and kind. A streak at or
// above CriticalFailureCount escalates to critical; anything shorter is a
// warning.
func (d *DeployDetector) scanEvents(events []inventory.DeploymentEvent) []flags.RedFlag {
	cutoff := d.Clock().AddDate(0, 0, -d.Config.LookbackDays)

	type streak struct {
		count  int
		latest time.Time
		sample string
	}
	type key struct {
		deployment string
		kind       inventory.EventKind
	}

	streaks := make(map[key]*streak)
	var order []key
	for _, ev := range events {
		if ev.Timestamp.Before(cutoff) {
			continue
		}
		k := key{deployment: ev.DeploymentID, kind: ev.Kind}
		s, ok := streaks[k]
		if !ok {
			s = &streak{}
			streaks[k] = s
			order = append(order, k)
		}
		s.count++
		if ev.Timestamp.After(s.latest) {
			s.latest = ev.Timestamp
			s.sample = ev.Message
		}
	}

	var found []flags.RedFlag
	for _, k := range order {
		s := streaks[k]

		sev := flags.SeverityWarning
		if s.count >= d.Config.CriticalFailureCount {
			sev = flags.SeverityCritical
		}

		found = append(found, flags.RedFlag{
			ID:       newFlagID(),
			Category: flags.CategoryDeploymentFailure,
			Severity: sev,
			Title:    fmt.Sprintf("%s on deployment %s", eventTitle(k.kind), k.deployment),
			Description: fmt.Sprintf("%d %s event(s) for deployment %s in the last %d days. Latest: %s",
				s.count, k.kind, k.deployment, d.Config.LookbackDays, s.sample),
			DetectedAt:   d.Clock(),
			ResourceID:   k.deployment,
			ResourceType: "deployment",
			Metadata: map[string]string{
				"event_kind":  string(k.kind),
				"event_count": fmt.Sprintf("%d", s.count),
				"latest_at":   s.latest.Format(time.RFC3339),
			},
		})
	}
	return found
}

func eventTitle(kind inventory.EventKind) string {
	switch kind {
	case inventory.EventHealthCheckFailure:
		return "Repeated health-check failures"
	case inventory.EventRollback:
		return "Deployment rollback"
	case inventory.EventCrashLoop:
		return "Crash-looping deployment"
	default:
		return "Deployment incident"
	}
}
