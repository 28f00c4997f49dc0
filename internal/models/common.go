package models

import "time"

// Rollup provides aggregate statistics across all files and tools.
type Rollup struct {
	TotalFiles       int             `json:"total_files"`
	TotalFindings    int             `json:"total_findings"`
	BySeverity       SeveritySummary `json:"by_severity"`
	ByTool           map[string]int  `json:"by_tool"`
	ByLanguage       map[string]int  `json:"by_language"`
	FailedCells      int             `json:"failed_cells"`
	FailedByTool     map[string]int  `json:"failed_by_tool"`
	CleanFiles       int             `json:"clean_files"`
	HealthScore      string          `json:"health_score"`  // excellent, good, warning, critical, severe
	ScorePercent     float64         `json:"score_percent"` // 0-100
	ToolsInvoked     []string        `json:"tools_invoked"`
	FilesWithFailure int             `json:"files_with_failure"`
}

// Trend represents change between the current and the previous run.
type Trend struct {
	Direction        string    `json:"direction"`      // "improving", "degrading", "stable"
	ChangePercent    float64   `json:"change_percent"` // negative = improvement
	PreviousFindings int       `json:"previous_findings"`
	CurrentFindings  int       `json:"current_findings"`
	ComparedWith     time.Time `json:"compared_with"`
	NewFindings      int       `json:"new_findings"`
	ResolvedFindings int       `json:"resolved_findings"`
}

// TrendSummary provides historical trend analysis over stored runs.
type TrendSummary struct {
	TimeRange        string                `json:"time_range"` // e.g., "Last 7 days"
	RunsAnalyzed     int                   `json:"runs_analyzed"`
	FindingSparkline []int                 `json:"finding_sparkline"`
	ByTool           map[string]*ToolTrend `json:"by_tool"`
}

// ToolTrend represents the trend for a single tool.
type ToolTrend struct {
	Name             string  `json:"name"`
	CurrentFindings  int     `json:"current_findings"`
	PreviousFindings int     `json:"previous_findings"`
	Change           int     `json:"change"`         // positive = more findings
	ChangePercent    float64 `json:"change_percent"` // positive = more findings
}

// Recommendation represents an actionable item to fix.
type Recommendation struct {
	Severity Severity `json:"severity"`
	Tool     string   `json:"tool"`
	RuleID   string   `json:"rule_id,omitempty"`
	Action   string   `json:"action"`
	Impact   string   `json:"impact"`
	Count    int      `json:"count"`
	Files    int      `json:"files"`
}

// ReportDescriptor points at the persisted report files.
type ReportDescriptor struct {
	FilePath    string    `json:"file_path"`
	PDFPath     string    `json:"pdf_path,omitempty"`
	JSONPath    string    `json:"json_path,omitempty"`
	SARIFPath   string    `json:"sarif_path,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// AuditRun is the persisted record of one audit.
type AuditRun struct {
	Timestamp       time.Time         `json:"timestamp"`
	Context         AnalysisContext   `json:"context"`
	Rollup          Rollup            `json:"rollup"`
	Summary         string            `json:"summary"`
	Recommendations []Recommendation  `json:"recommendations"`
	Trend           *Trend            `json:"trend,omitempty"`
	ToolVersions    map[string]string `json:"tool_versions,omitempty"`
	FullScan        bool              `json:"full_scan"`
	Report          *ReportDescriptor `json:"report,omitempty"`
}

// CalculateHealthScore determines overall health from affected vs total files.
// score = (totalFiles - affectedFiles) / totalFiles * 100, clamped 0-100.
// An empty repository has nothing wrong with it and scores 100.
func CalculateHealthScore(affectedFiles, totalFiles int) (string, float64) {
	if totalFiles == 0 {
		return "excellent", 100.0
	}

	score := float64(totalFiles-affectedFiles) / float64(totalFiles) * 100.0

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	var health string
	switch {
	case score >= 95:
		health = "excellent"
	case score >= 85:
		health = "good"
	case score >= 70:
		health = "warning"
	case score >= 50:
		health = "critical"
	default:
		health = "severe"
	}

	return health, score
}
