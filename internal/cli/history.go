package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/codespectre/internal/aggregator"
	"github.com/ppiankov/codespectre/internal/models"
	"github.com/ppiankov/codespectre/internal/storage"
)

var (
	historyFormat string
	historyLastN  int
)

var historyCmd = &cobra.Command{
	Use:   "history [repo]",
	Short: "Show stored audit runs and their trend",
	Long: `History lists the stored runs of a repository, oldest first, with finding
counts per severity and health, followed by the trend across them and a
comparison of the two most recent runs.

Without a repository argument the stored repositories are listed.

Example:
  codespectre history
  codespectre history repo --last 20
  codespectre history repo --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "text",
		"output format: text or json")
	historyCmd.Flags().IntVarP(&historyLastN, "last", "n", 10,
		"number of recent runs to show")
}

// historyEntry is one row of the history listing.
type historyEntry struct {
	Timestamp    time.Time              `json:"timestamp"`
	Files        int                    `json:"files"`
	Findings     int                    `json:"findings"`
	BySeverity   models.SeveritySummary `json:"by_severity"`
	FailedCells  int                    `json:"failed_cells"`
	HealthScore  string                 `json:"health_score"`
	ScorePercent float64                `json:"score_percent"`
	FullScan     bool                   `json:"full_scan"`
}

// historyResult is the JSON shape of the history command.
type historyResult struct {
	Repository string               `json:"repository"`
	Runs       []historyEntry       `json:"runs"`
	Trend      *models.TrendSummary `json:"trend,omitempty"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyFormat != "text" && historyFormat != "json" {
		return &ValidationError{Message: fmt.Sprintf("invalid format: %s (must be text or json)", historyFormat)}
	}

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		repos, err := store.ListRepositories()
		if err != nil {
			return fmt.Errorf("list repositories: %w", err)
		}
		return writeRepositories(out, repos)
	}

	repo := args[0]
	runs, err := store.GetLastNRuns(repo, historyLastN)
	if errors.Is(err, storage.ErrNoRuns) || (err == nil && len(runs) == 0) {
		fmt.Fprintf(out, "No stored runs for %s. Run 'codespectre audit' first.\n", repo)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load runs: %w", err)
	}

	result := buildHistory(repo, runs)

	if historyFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	writeHistoryText(out, result)
	if len(runs) >= 2 {
		fmt.Fprintln(out)
		fmt.Fprint(out, aggregator.NewTrendAnalyzer().GenerateComparisonReport(runs[len(runs)-1], runs[len(runs)-2]))
	}
	return nil
}

func buildHistory(repo string, runs []*models.AuditRun) historyResult {
	result := historyResult{
		Repository: repo,
		Runs:       make([]historyEntry, 0, len(runs)),
		Trend:      aggregator.NewTrendAnalyzer().AnalyzeLastNRuns(runs),
	}
	for _, run := range runs {
		result.Runs = append(result.Runs, historyEntry{
			Timestamp:    run.Timestamp,
			Files:        run.Rollup.TotalFiles,
			Findings:     run.Rollup.TotalFindings,
			BySeverity:   run.Rollup.BySeverity,
			FailedCells:  run.Rollup.FailedCells,
			HealthScore:  run.Rollup.HealthScore,
			ScorePercent: run.Rollup.ScorePercent,
			FullScan:     run.FullScan,
		})
	}
	return result
}

func writeHistoryText(w io.Writer, result historyResult) {
	fmt.Fprintf(w, "History: %s (%d run(s))\n\n", result.Repository, len(result.Runs))
	fmt.Fprintf(w, "  %-19s  %5s  %8s  %4s %4s %4s %4s %4s  %6s  %s\n",
		"TIMESTAMP", "FILES", "FINDINGS", "C", "H", "M", "L", "I", "FAILED", "HEALTH")

	for _, e := range result.Runs {
		fmt.Fprintf(w, "  %-19s  %5d  %8d  %4d %4d %4d %4d %4d  %6d  %s (%.0f%%)\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.Files, e.Findings,
			e.BySeverity.Count(models.SeverityCritical),
			e.BySeverity.Count(models.SeverityHigh),
			e.BySeverity.Count(models.SeverityMedium),
			e.BySeverity.Count(models.SeverityLow),
			e.BySeverity.Count(models.SeverityInfo),
			e.FailedCells, e.HealthScore, e.ScorePercent)
	}

	trend := result.Trend
	if trend == nil || trend.RunsAnalyzed < 2 {
		return
	}

	fmt.Fprintf(w, "\nTrend (%s): %v\n", trend.TimeRange, trend.FindingSparkline)

	tools := make([]string, 0, len(trend.ByTool))
	for tool := range trend.ByTool {
		tools = append(tools, tool)
	}
	sort.Strings(tools)
	for _, tool := range tools {
		tt := trend.ByTool[tool]
		fmt.Fprintf(w, "  %-10s %d → %d (%+d)\n", tool, tt.PreviousFindings, tt.CurrentFindings, tt.Change)
	}
}

func writeRepositories(w io.Writer, repos []string) error {
	if len(repos) == 0 {
		_, err := fmt.Fprintln(w, "No stored runs. Run 'codespectre audit' first.")
		return err
	}
	fmt.Fprintln(w, "Stored repositories:")
	for _, repo := range repos {
		fmt.Fprintf(w, "  %s\n", repo)
	}
	return nil
}
