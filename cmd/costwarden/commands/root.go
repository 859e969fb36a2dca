// Package commands implements the costwarden CLI.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/redflaghq/costwarden/pkg/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "costwarden",
	Short: "Cost anomaly detection and red-flag aggregation",
	Long: `CostWarden watches a deployment's weekly spend, resource utilization,
security posture, and deployment health, and aggregates everything it finds
into a single severity-ordered report with savings estimates.`,
	Version: version.Current,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.costwarden.yaml)")
	rootCmd.PersistentFlags().String("region", "", "AWS region (default from environment)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("slack-webhook", "", "Slack webhook URL for run summaries")
	rootCmd.PersistentFlags().String("otel-endpoint", "", "OTLP trace endpoint")

	// Config keys use underscores; flags use dashes.
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		viper.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(exportCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigName(".costwarden")
			viper.SetConfigType("yaml")
		}
	}

	viper.SetEnvPrefix("COSTWARDEN")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
