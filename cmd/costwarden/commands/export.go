package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/redflaghq/costwarden/pkg/engine/report"
)

var (
	exportInput  string
	exportOutput string
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Re-render a saved report in another format",
	Long: `Convert a previously saved JSON report without re-running detection.

Example:
  costwarden export --input report.json --format csv -o report.csv`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportInput, "input", "i", "", "saved JSON report (required)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "destination file (default stdout)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "target format: json or csv")
	exportCmd.MarkFlagRequired("input")
}

func runExport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(exportInput)
	if err != nil {
		return err
	}

	var doc report.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", exportInput, err)
	}
	if doc.Report == nil {
		return fmt.Errorf("%s does not contain a report", exportInput)
	}

	return writeDocument(&doc, exportOutput, exportFormat)
}
