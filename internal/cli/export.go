package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/codespectre/internal/reporter"
	"github.com/ppiankov/codespectre/internal/storage"
)

var (
	exportFormat string
	exportOutput string
	exportLastN  int
)

var exportCmd = &cobra.Command{
	Use:   "export <repo>",
	Short: "Export stored audit findings",
	Long: `Export the findings of stored runs of a repository.

Supported formats:
  csv    One row per finding, for spreadsheets and compliance tools
  json   Structured JSON for programmatic consumption
  sarif  SARIF 2.1.0 for GitHub Advanced Security and code scanning

Example:
  codespectre export repo --format sarif -o results.sarif
  codespectre export repo --format csv --last 5 -o findings.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "sarif",
		"output format: csv, json, or sarif")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "",
		"write output to file (default: stdout)")
	exportCmd.Flags().IntVarP(&exportLastN, "last", "n", 1,
		"number of recent runs to include")
}

func runExport(cmd *cobra.Command, args []string) error {
	switch exportFormat {
	case "csv", "json", "sarif":
	default:
		return &ValidationError{Message: fmt.Sprintf("unsupported format: %s (use csv, json, or sarif)", exportFormat)}
	}
	if exportLastN <= 0 {
		return &ValidationError{Message: "--last must be positive"}
	}

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}

	repo := args[0]
	runs, err := store.GetLastNRuns(repo, exportLastN)
	if errors.Is(err, storage.ErrNoRuns) || (err == nil && len(runs) == 0) {
		fmt.Fprintf(cmd.OutOrStdout(), "No stored runs for %s. Run 'codespectre audit' first.\n", repo)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load runs: %w", err)
	}

	logger.Debug("exporting runs", zap.String("repo", repo), zap.Int("runs", len(runs)))

	var w io.Writer = cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	switch exportFormat {
	case "csv":
		return reporter.WriteCSV(w, reporter.BuildExport(runs, time.Now().UTC()))
	case "json":
		return reporter.WriteExportJSON(w, reporter.BuildExport(runs, time.Now().UTC()))
	default:
		return reporter.WriteSARIF(w, runs, buildVersion)
	}
}
