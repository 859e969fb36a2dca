package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/redflaghq/costwarden/pkg/engine"
	"github.com/redflaghq/costwarden/pkg/engine/awsx"
	"github.com/redflaghq/costwarden/pkg/engine/history"
	"github.com/redflaghq/costwarden/pkg/engine/notifier"
	"github.com/redflaghq/costwarden/pkg/engine/policy"
	"github.com/redflaghq/costwarden/pkg/engine/pricing"
	"github.com/redflaghq/costwarden/pkg/engine/report"
	"github.com/redflaghq/costwarden/pkg/logging"
	"github.com/redflaghq/costwarden/pkg/telemetry"
	"github.com/redflaghq/costwarden/pkg/version"
)

var (
	deploymentID string
	historyWeeks int
	policyFile   string
	outputPath   string
	outputFormat string
	deployLogs   string
	strictMode   bool
	livePricing  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the full detection pipeline against AWS",
	Long: `Collect the resource inventory and weekly spend for a deployment, run
every detector, and write the aggregated report.

Example:
  costwarden analyze --deployment prod-api --weeks 12 --output report.json`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&deploymentID, "deployment", "default", "deployment identifier")
	analyzeCmd.Flags().IntVar(&historyWeeks, "weeks", 12, "weeks of cost history for the baseline")
	analyzeCmd.Flags().StringVar(&policyFile, "policy", "", "YAML policy rules file")
	analyzeCmd.Flags().StringVarP(&outputPath, "output", "o", "", "report file (default stdout)")
	analyzeCmd.Flags().StringVar(&outputFormat, "format", "json", "report format: json or csv")
	analyzeCmd.Flags().StringVar(&deployLogs, "deploy-log-group", "", "CloudWatch Logs group with deployment events")
	analyzeCmd.Flags().BoolVar(&strictMode, "strict", false, "fail when any detector degrades")
	analyzeCmd.Flags().BoolVar(&livePricing, "live-pricing", false, "query the AWS Pricing API instead of the built-in table")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := logging.New(viper.GetString("log_level"))

	shutdown, err := telemetry.Init(ctx, version.Current, viper.GetString("otel_endpoint"))
	if err != nil {
		logger.Warn("Telemetry disabled", "error", err)
	} else {
		defer shutdown(ctx)
	}

	sess, err := awsx.NewSession(ctx, viper.GetString("region"))
	if err != nil {
		return err
	}
	logger.Info("AWS session established", "region", sess.Region)

	var prices pricing.Source = pricing.DefaultTable()
	if livePricing {
		client, err := pricing.NewClient(ctx, logger, cacheDir())
		if err != nil {
			logger.Warn("Live pricing unavailable, using built-in table", "error", err)
		} else {
			prices = pricing.Layered{client, pricing.DefaultTable()}
		}
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithCollector(awsx.NewCollector(sess, deployLogs, logger)),
		engine.WithCostSource(awsx.NewCostProvider(sess)),
		engine.WithMetrics(awsx.NewMetricsProvider(sess)),
		engine.WithPricing(prices),
		engine.WithHistoryWeeks(historyWeeks),
		engine.WithStrictMode(strictMode),
	}

	if policyFile != "" {
		pol, err := policy.LoadFile(policyFile, logger)
		if err != nil {
			return err
		}
		opts = append(opts, engine.WithPolicy(pol))
	}

	backend, err := history.NewLocalBackend(filepath.Join(cacheDir(), "history.jsonl"))
	if err != nil {
		return err
	}
	opts = append(opts, engine.WithLedger(history.NewLedger(backend, logger)))

	if webhook := viper.GetString("slack_webhook"); webhook != "" {
		opts = append(opts, engine.WithNotifier(notifier.NewSlackNotifier(webhook, logger)))
	}

	doc, err := engine.New(opts...).Run(ctx, deploymentID)
	if err != nil {
		return err
	}
	return writeDocument(doc, outputPath, outputFormat)
}

func writeDocument(doc *report.Document, path, format string) error {
	out := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	switch format {
	case "json":
		return report.WriteJSON(out, doc)
	case "csv":
		return report.WriteCSV(out, doc)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func cacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return filepath.Join(home, ".costwarden")
}
