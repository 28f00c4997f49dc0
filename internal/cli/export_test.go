package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/codespectre/internal/config"
	"github.com/ppiankov/codespectre/internal/models"
	"github.com/ppiankov/codespectre/internal/storage"
)

func storedRun(repo string, ts time.Time, findings ...models.Finding) *models.AuditRun {
	return &models.AuditRun{
		Timestamp: ts,
		Context: models.AnalysisContext{
			Repository: models.RepositorySnapshot{Name: repo},
			Analysis: models.AnalysisResult{Files: []models.FileAnalysis{{
				FilePath: "app/run.py",
				Language: "python",
				PerTool:  []models.ToolOutcome{{Tool: "bandit", Findings: findings}},
			}}},
		},
		Rollup: models.Rollup{
			TotalFiles:    1,
			TotalFindings: len(findings),
			BySeverity:    models.SeveritySummary{models.SeverityHigh: len(findings)},
			ByTool:        map[string]int{"bandit": len(findings)},
			HealthScore:   "severe",
		},
		Recommendations: []models.Recommendation{},
	}
}

var shellFinding = models.Finding{
	Severity: models.SeverityHigh,
	Message:  "subprocess call with shell=True identified",
	Location: models.Location{Line: 3},
	RuleID:   "B602",
}

// withStoredRuns points the global config at a store holding runs.
func withStoredRuns(t *testing.T, runs ...*models.AuditRun) {
	t.Helper()
	c := config.DefaultConfig()
	c.StorageDir = t.TempDir()
	withTestConfig(t, c)

	store := storage.NewLocal(c.StorageDir)
	for _, run := range runs {
		if err := store.SaveRun(run); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}
}

func withExportFlags(t *testing.T, format, output string, last int) {
	t.Helper()
	oldFormat, oldOutput, oldLast := exportFormat, exportOutput, exportLastN
	exportFormat, exportOutput, exportLastN = format, output, last
	t.Cleanup(func() { exportFormat, exportOutput, exportLastN = oldFormat, oldOutput, oldLast })
}

func TestExportSARIF(t *testing.T) {
	withStoredRuns(t, storedRun("demo", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), shellFinding))
	withExportFlags(t, "sarif", "", 1)

	out, err := runCommand(t, func(cmd *cobra.Command) error { return runExport(cmd, []string{"demo"}) })
	if err != nil {
		t.Fatalf("runExport: %v", err)
	}
	for _, want := range []string{`"2.1.0"`, `"bandit/B602"`, `"codespectre"`, "app/run.py"} {
		if !strings.Contains(out, want) {
			t.Errorf("sarif output missing %s", want)
		}
	}
}

func TestExportCSVToFile(t *testing.T) {
	withStoredRuns(t,
		storedRun("demo", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), shellFinding),
		storedRun("demo", time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), shellFinding, shellFinding),
	)
	path := filepath.Join(t.TempDir(), "findings.csv")
	withExportFlags(t, "csv", path, 5)

	out, err := runCommand(t, func(cmd *cobra.Command) error { return runExport(cmd, []string{"demo"}) })
	if err != nil {
		t.Fatalf("runExport: %v", err)
	}
	if out != "" {
		t.Errorf("nothing should be printed when writing to a file, got %q", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if !strings.HasPrefix(lines[0], "run_timestamp,repository,file,tool,rule_id,severity,line,message") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if len(lines) != 4 {
		t.Errorf("expected header plus 3 rows, got %d lines", len(lines))
	}
}

func TestExportJSON(t *testing.T) {
	withStoredRuns(t, storedRun("demo", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), shellFinding))
	withExportFlags(t, "json", "", 1)

	out, err := runCommand(t, func(cmd *cobra.Command) error { return runExport(cmd, []string{"demo"}) })
	if err != nil {
		t.Fatalf("runExport: %v", err)
	}
	if !strings.Contains(out, "B602") || !strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("unexpected json export:\n%s", out)
	}
}

func TestExportNoRuns(t *testing.T) {
	withStoredRuns(t)
	withExportFlags(t, "sarif", "", 1)

	out, err := runCommand(t, func(cmd *cobra.Command) error { return runExport(cmd, []string{"absent"}) })
	if err != nil {
		t.Fatalf("runExport: %v", err)
	}
	if !strings.Contains(out, "No stored runs for absent") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestExportRejectsBadFlags(t *testing.T) {
	withStoredRuns(t)

	tests := []struct {
		format string
		last   int
	}{
		{"xml", 1},
		{"csv", 0},
	}
	for _, tt := range tests {
		withExportFlags(t, tt.format, "", tt.last)
		_, err := runCommand(t, func(cmd *cobra.Command) error { return runExport(cmd, []string{"demo"}) })
		if HandleError(err) != ExitInvalidInput {
			t.Errorf("format=%s last=%d: expected exit %d, got %v", tt.format, tt.last, ExitInvalidInput, err)
		}
	}
}
