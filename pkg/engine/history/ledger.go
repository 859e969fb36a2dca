// Package history persists weekly cost snapshots as an append-only JSONL
// ledger. The ledger feeds the anomaly baseline and the forecaster.
package history

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/redflaghq/costwarden/pkg/costs"
)

// Snapshot is one persisted weekly summary.
type Snapshot struct {
	Timestamp    time.Time     `json:"timestamp"`
	DeploymentID string        `json:"deployment_id"`
	Summary      costs.Summary `json:"summary"`
}

// Backend stores snapshots. Implementations append atomically per record and
// return records oldest first.
type Backend interface {
	Append(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) ([]Snapshot, error)
}

// Ledger is the read/write surface over a Backend.
type Ledger struct {
	backend Backend
	logger  *slog.Logger
}

// NewLedger wraps a backend.
func NewLedger(backend Backend, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Ledger{backend: backend, logger: logger}
}

// Append records one snapshot.
func (l *Ledger) Append(ctx context.Context, deploymentID string, summary costs.Summary) error {
	snap := Snapshot{Timestamp: time.Now().UTC(), DeploymentID: deploymentID, Summary: summary}
	if err := l.backend.Append(ctx, snap); err != nil {
		return fmt.Errorf("appending cost snapshot: %w", err)
	}
	l.logger.Debug("Cost snapshot persisted",
		"deployment", deploymentID, "total", summary.TotalCurrentWeek)
	return nil
}

// Window returns up to n of the most recent summaries for a deployment,
// oldest first. n <= 0 means the whole ledger.
func (l *Ledger) Window(ctx context.Context, deploymentID string, n int) ([]costs.Summary, error) {
	snaps, err := l.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading cost history: %w", err)
	}

	var matched []Snapshot
	for _, s := range snaps {
		if deploymentID == "" || s.DeploymentID == deploymentID {
			matched = append(matched, s)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})

	if n > 0 && len(matched) > n {
		matched = matched[len(matched)-n:]
	}

	out := make([]costs.Summary, len(matched))
	for i, s := range matched {
		out[i] = s.Summary
	}
	return out, nil
}

// BurnVelocity estimates the week-over-week change in total spend across a
// window: the difference between the last and first weekly totals divided by
// the number of intervals. Zero when the window has fewer than two weeks.
func BurnVelocity(window []costs.Summary) float64 {
	totals := costs.WeeklyTotals(window)
	if len(totals) < 2 {
		return 0
	}
	return (totals[len(totals)-1] - totals[0]) / float64(len(totals)-1)
}

// LocalBackend appends to a JSONL file on disk.
type LocalBackend struct {
	path string
}

// NewLocalBackend creates the parent directory if needed.
func NewLocalBackend(path string) (*LocalBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}
	return &LocalBackend{path: path}, nil
}

func (b *LocalBackend) Append(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

func (b *LocalBackend) Load(ctx context.Context) ([]Snapshot, error) {
	f, err := os.Open(b.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return decodeJSONL(f)
}

// decodeJSONL tolerates individually corrupt lines; a bad record is skipped,
// not fatal to the whole ledger.
func decodeJSONL(r io.Reader) ([]Snapshot, error) {
	var snaps []Snapshot
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var snap Snapshot
		if err := json.Unmarshal(line, &snap); err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, scanner.Err()
}
