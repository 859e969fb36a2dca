// Package detector defines the shared detection contract and the four
// concrete detectors that feed the red-flag aggregator.
package detector

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/redflaghq/costwarden/pkg/costs"
	"github.com/redflaghq/costwarden/pkg/engine/flags"
	"github.com/redflaghq/costwarden/pkg/engine/inventory"
)

// Input bundles the snapshot a detector works on. Detectors are read-only
// with respect to it.
type Input struct {
	DeploymentID string
	Costs        *costs.Summary
	Inventory    *inventory.Inventory

	// History is ordered oldest to newest. Optional; detectors that need a
	// baseline abstain when it is too short.
	History []costs.Summary
}

// Result is one detector invocation's output.
type Result struct {
	Flags    []flags.RedFlag
	Metadata flags.DetectionMetadata
}

// Detector is a pluggable unit implementing one issue domain.
// Implementations must not fail the whole run for a single failed sub-scan:
// each logical scan degrades to zero findings via runScan.
type Detector interface {
	ID() string
	Version() string
	Enabled() bool
	Detect(ctx context.Context, in Input) (Result, error)
}

// runScan executes one logical scan and degrades a failure to "no findings".
// The error is logged against the scan name and otherwise swallowed, so a
// detector composed of several scans keeps the contributions of the ones
// that succeeded.
func runScan(logger *slog.Logger, detectorID, scan string, fn func() ([]flags.RedFlag, error)) []flags.RedFlag {
	found, err := fn()
	if err != nil {
		logger.Error("Scan degraded to empty result",
			"detector", detectorID, "scan", scan, "error", err)
		return nil
	}
	return found
}

// newFlagID returns a fresh flag identifier. IDs are unique per call, not
// stable across runs.
func newFlagID() string {
	return uuid.NewString()
}

// disabledResult is the immediate return of a disabled detector: empty
// findings, zero execution time.
func disabledResult(d Detector) Result {
	return Result{
		Metadata: flags.DetectionMetadata{
			DetectorID:      d.ID(),
			DetectorVersion: d.Version(),
		},
	}
}

// finishMetadata stamps the shared execution record.
func finishMetadata(d Detector, start time.Time, scanned int) flags.DetectionMetadata {
	return flags.DetectionMetadata{
		DetectorID:       d.ID(),
		DetectorVersion:  d.Version(),
		ExecutionTime:    time.Since(start),
		ResourcesScanned: scanned,
	}
}
