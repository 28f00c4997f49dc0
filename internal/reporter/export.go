package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/ppiankov/codespectre/internal/models"
)

// ExportRecord is a single row in the findings export.
type ExportRecord struct {
	RunTimestamp string `json:"run_timestamp"`
	Repository   string `json:"repository"`
	File         string `json:"file"`
	Tool         string `json:"tool"`
	RuleID       string `json:"rule_id"`
	Severity     string `json:"severity"`
	Line         int    `json:"line"`
	Message      string `json:"message"`
	HealthScore  string `json:"health_score"`
	ScorePercent string `json:"score_percent"`
}

// Export is the full export payload.
type Export struct {
	ExportedAt   string         `json:"exported_at"`
	RunCount     int            `json:"run_count"`
	FindingCount int            `json:"finding_count"`
	FailedCells  int            `json:"failed_cells"`
	Records      []ExportRecord `json:"records"`
}

// BuildExport flattens runs into rows, most severe first.
func BuildExport(runs []*models.AuditRun, now time.Time) *Export {
	records := []ExportRecord{}
	failed := 0

	for _, run := range runs {
		ts := run.Timestamp.Format(time.RFC3339)
		health := run.Rollup.HealthScore
		score := fmt.Sprintf("%.1f", run.Rollup.ScorePercent)
		failed += run.Rollup.FailedCells

		for _, ff := range run.Context.Analysis.Flatten() {
			records = append(records, ExportRecord{
				RunTimestamp: ts,
				Repository:   run.Context.Repository.Name,
				File:         ff.File,
				Tool:         ff.Tool,
				RuleID:       ff.Finding.RuleID,
				Severity:     string(ff.Finding.Severity.Normalize()),
				Line:         ff.Finding.Location.Line,
				Message:      inline(ff.Finding.Message),
				HealthScore:  health,
				ScorePercent: score,
			})
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		si := models.Severity(records[i].Severity).Rank()
		sj := models.Severity(records[j].Severity).Rank()
		if si != sj {
			return si > sj
		}
		if records[i].Tool != records[j].Tool {
			return records[i].Tool < records[j].Tool
		}
		if records[i].File != records[j].File {
			return records[i].File < records[j].File
		}
		return records[i].Line < records[j].Line
	})

	return &Export{
		ExportedAt:   now.UTC().Format(time.RFC3339),
		RunCount:     len(runs),
		FindingCount: len(records),
		FailedCells:  failed,
		Records:      records,
	}
}

// WriteCSV writes export as CSV with a header row.
func WriteCSV(w io.Writer, export *Export) error {
	writer := csv.NewWriter(w)

	header := []string{
		"run_timestamp", "repository", "file", "tool", "rule_id",
		"severity", "line", "message", "health_score", "score_percent",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range export.Records {
		row := []string{
			r.RunTimestamp, r.Repository, r.File, r.Tool, r.RuleID,
			r.Severity, strconv.Itoa(r.Line), r.Message, r.HealthScore, r.ScorePercent,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteExportJSON writes export as indented JSON.
func WriteExportJSON(w io.Writer, export *Export) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(export)
}
