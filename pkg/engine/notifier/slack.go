// Package notifier pushes run summaries to Slack via an incoming webhook.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/redflaghq/costwarden/pkg/engine/flags"
	"github.com/redflaghq/costwarden/pkg/engine/report"
)

// SlackNotifier posts block-kit messages to a webhook URL.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
}

// NewSlackNotifier wires the notifier. An empty URL disables it.
func NewSlackNotifier(webhookURL string, logger *slog.Logger) *SlackNotifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Enabled reports whether a webhook is configured.
func (n *SlackNotifier) Enabled() bool { return n.webhookURL != "" }

type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Notify posts the run summary. Only critical flags are itemized; the rest is
// counted.
func (n *SlackNotifier) Notify(ctx context.Context, deploymentID string, doc *report.Document) error {
	if !n.Enabled() {
		return nil
	}

	msg := slackMessage{Blocks: buildBlocks(deploymentID, doc)}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, body)
	}

	n.logger.Debug("Slack notification sent", "deployment", deploymentID)
	return nil
}

func buildBlocks(deploymentID string, doc *report.Document) []slackBlock {
	s := doc.Report.Summary

	summary := fmt.Sprintf("*%d* findings  |  :red_circle: %d critical  :warning: %d warning  :information_source: %d info\nPotential monthly savings: *$%.2f*",
		s.Total,
		s.BySeverity[flags.SeverityCritical],
		s.BySeverity[flags.SeverityWarning],
		s.BySeverity[flags.SeverityInfo],
		s.TotalPotentialSavings)
	if doc.NextMonth != nil {
		summary += fmt.Sprintf("\nNext month: *$%.2f* (trend %s)",
			doc.NextMonth.Predicted, doc.NextMonth.TrendDirection)
	}

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: fmt.Sprintf("CostWarden: %s", deploymentID)},
		},
		{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: summary},
		},
	}

	shown := 0
	for _, f := range doc.Report.Flags {
		if f.Severity != flags.SeverityCritical {
			continue
		}
		if shown == 10 {
			blocks = append(blocks, slackBlock{
				Type: "section",
				Text: &slackText{Type: "mrkdwn", Text: "_...and more critical findings. See the full report._"},
			})
			break
		}
		line := fmt.Sprintf("*%s*\n%s", f.Title, f.Description)
		if f.EstimatedSavings != nil {
			line += fmt.Sprintf("\nEstimated savings: $%.2f/month", *f.EstimatedSavings)
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: line},
		})
		shown++
	}

	return blocks
}
