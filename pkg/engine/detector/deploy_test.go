package detector

import (
	"context"
	"testing"
	"time"

	"github.com/redflaghq/costwarden/pkg/config"
	"github.com/redflaghq/costwarden/pkg/engine/flags"
	"github.com/redflaghq/costwarden/pkg/engine/inventory"
)

func deployEventsAt(now time.Time, kind inventory.EventKind, ages ...time.Duration) []inventory.DeploymentEvent {
	events := make([]inventory.DeploymentEvent, len(ages))
	for i, age := range ages {
		events[i] = inventory.DeploymentEvent{
			DeploymentID: "prod-api",
			Kind:         kind,
			Message:      "probe /healthz returned 503",
			Timestamp:    now.Add(-age),
		}
	}
	return events
}

func TestDeployFailureStreakIsCritical(t *testing.T) {
	// 1. Setup: three health-check failures in the last two days.
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	d := NewDeployDetector(config.DefaultDetectorConfig().Deploy, nil)
	d.Clock = func() time.Time { return now }

	in := Input{Inventory: &inventory.Inventory{
		DeploymentEvents: deployEventsAt(now, inventory.EventHealthCheckFailure,
			2*time.Hour, 26*time.Hour, 40*time.Hour),
	}}

	// 2. Execute
	res, err := d.Detect(context.Background(), in)

	// 3. Assert
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if len(res.Flags) != 1 {
		t.Fatalf("got %d flags, want 1", len(res.Flags))
	}

	f := res.Flags[0]
	if f.Severity != flags.SeverityCritical {
		t.Errorf("severity = %s, want critical for a streak of 3", f.Severity)
	}
	if f.Category != flags.CategoryDeploymentFailure {
		t.Errorf("category = %s", f.Category)
	}
	if f.Metadata["event_count"] != "3" {
		t.Errorf("event_count = %s, want 3", f.Metadata["event_count"])
	}
}

func TestDeploySingleRollbackIsWarning(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	d := NewDeployDetector(config.DefaultDetectorConfig().Deploy, nil)
	d.Clock = func() time.Time { return now }

	in := Input{Inventory: &inventory.Inventory{
		DeploymentEvents: deployEventsAt(now, inventory.EventRollback, 6*time.Hour),
	}}

	res, _ := d.Detect(context.Background(), in)

	if len(res.Flags) != 1 || res.Flags[0].Severity != flags.SeverityWarning {
		t.Fatalf("flags = %+v, want one warning", res.Flags)
	}
}

func TestDeployOldEventsIgnored(t *testing.T) {
	// Events past the lookback window are history, not a live problem.
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	d := NewDeployDetector(config.DefaultDetectorConfig().Deploy, nil)
	d.Clock = func() time.Time { return now }

	in := Input{Inventory: &inventory.Inventory{
		DeploymentEvents: deployEventsAt(now, inventory.EventCrashLoop,
			8*24*time.Hour, 9*24*time.Hour, 10*24*time.Hour),
	}}

	res, _ := d.Detect(context.Background(), in)

	if len(res.Flags) != 0 {
		t.Errorf("stale events flagged: %+v", res.Flags)
	}
}

func TestDeployEventKindsAreSeparateStreaks(t *testing.T) {
	// Two rollbacks and two crash loops are two findings, neither critical.
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	d := NewDeployDetector(config.DefaultDetectorConfig().Deploy, nil)
	d.Clock = func() time.Time { return now }

	events := append(
		deployEventsAt(now, inventory.EventRollback, time.Hour, 2*time.Hour),
		deployEventsAt(now, inventory.EventCrashLoop, 3*time.Hour, 4*time.Hour)...)
	in := Input{Inventory: &inventory.Inventory{DeploymentEvents: events}}

	res, _ := d.Detect(context.Background(), in)

	if len(res.Flags) != 2 {
		t.Fatalf("got %d flags, want 2", len(res.Flags))
	}
	for _, f := range res.Flags {
		if f.Severity != flags.SeverityWarning {
			t.Errorf("severity = %s, want warning for a streak of 2", f.Severity)
		}
	}
}

func TestDeployNoInventory(t *testing.T) {
	d := NewDeployDetector(config.DefaultDetectorConfig().Deploy, nil)

	res, err := d.Detect(context.Background(), Input{})

	if err != nil || len(res.Flags) != 0 {
		t.Errorf("empty input misbehaved: flags=%d err=%v", len(res.Flags), err)
	}
	if res.Metadata.ResourcesScanned != 0 {
		t.Errorf("scanned = %d, want 0", res.Metadata.ResourcesScanned)
	}
}
