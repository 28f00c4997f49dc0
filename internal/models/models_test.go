package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{"critical", SeverityCritical, false},
		{"HIGH", SeverityHigh, false},
		{" Medium ", SeverityMedium, false},
		{"low", SeverityLow, false},
		{"info", SeverityInfo, false},
		{"severe", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSeverity(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeverityNormalize(t *testing.T) {
	assert.Equal(t, SeverityMedium, Severity("bogus").Normalize())
	assert.Equal(t, SeverityMedium, Severity("").Normalize())
	assert.Equal(t, SeverityLow, SeverityLow.Normalize())
	assert.Equal(t, "Medium", Severity("").Title())
	assert.Equal(t, "Critical", SeverityCritical.Title())
}

func TestSeverityOrdering(t *testing.T) {
	for i := 1; i < len(Severities); i++ {
		assert.Greater(t, Severities[i-1].Rank(), Severities[i].Rank())
	}
	assert.True(t, SeverityHigh.AtLeast(SeverityMedium))
	assert.True(t, SeverityHigh.AtLeast(SeverityHigh))
	assert.False(t, SeverityLow.AtLeast(SeverityMedium))
}

func TestSeveritySummary(t *testing.T) {
	s := SeveritySummary{
		SeverityCritical: 1,
		SeverityHigh:     2,
		SeverityLow:      4,
	}
	assert.Equal(t, 7, s.Total())
	assert.Equal(t, 3, s.AtOrAbove(SeverityHigh))
	assert.Equal(t, 3, s.AtOrAbove(SeverityMedium))
	assert.Equal(t, 0, s.Count(SeverityInfo))
}

func TestCalculateHealthScore(t *testing.T) {
	tests := []struct {
		affected, total int
		wantHealth      string
		wantScore       float64
	}{
		{0, 0, "excellent", 100},
		{0, 20, "excellent", 100},
		{2, 20, "good", 90},
		{5, 20, "warning", 75},
		{8, 20, "critical", 60},
		{15, 20, "severe", 25},
		{30, 20, "severe", 0},
	}

	for _, tt := range tests {
		health, score := CalculateHealthScore(tt.affected, tt.total)
		assert.Equal(t, tt.wantHealth, health, "affected=%d total=%d", tt.affected, tt.total)
		assert.InDelta(t, tt.wantScore, score, 0.001)
	}
}

func sampleContext() *AnalysisContext {
	return &AnalysisContext{
		Repository: RepositorySnapshot{Name: "demo", URL: "https://github.com/acme/demo", DefaultBranch: "main"},
		Analysis: AnalysisResult{Files: []FileAnalysis{
			{
				FilePath: "app/main.py",
				Language: "python",
				PerTool: []ToolOutcome{
					{Tool: "bandit", Findings: []Finding{{
						Severity: SeverityHigh, Message: "subprocess call with shell=True",
						Location: Location{Line: 4, Column: IntPtr(1)}, RuleID: "B602", Confidence: "HIGH",
					}}},
					{Tool: "pylint", Error: &ErrorResult{Kind: ErrorTimeout, Message: "timed out", ExitCode: -1}},
				},
			},
			{FilePath: "ci.yml", Language: "yaml", PerTool: []ToolOutcome{{Tool: "yamllint", Findings: []Finding{}}}},
		}},
	}
}

func TestPayloadIsLossless(t *testing.T) {
	payload := sampleContext().Payload()

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded struct {
		Repository struct {
			Name string `json:"name"`
		} `json:"repository"`
		Files []struct {
			FilePath string                     `json:"file_path"`
			Results  map[string]json.RawMessage `json:"results"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "demo", decoded.Repository.Name)
	require.Len(t, decoded.Files, 2)
	assert.Equal(t, "app/main.py", decoded.Files[0].FilePath)

	var findings []map[string]any
	require.NoError(t, json.Unmarshal(decoded.Files[0].Results["bandit"], &findings))
	require.Len(t, findings, 1)
	assert.Equal(t, "HIGH", findings[0]["severity"])
	assert.Equal(t, "B602", findings[0]["rule_id"])

	var failed map[string]map[string]any
	require.NoError(t, json.Unmarshal(decoded.Files[0].Results["pylint"], &failed))
	assert.Equal(t, "timeout", failed["error"]["kind"])

	assert.JSONEq(t, `[]`, string(decoded.Files[1].Results["yamllint"]))
}

func TestFlattenAndFingerprint(t *testing.T) {
	ctx := sampleContext()
	flat := ctx.Analysis.Flatten()
	require.Len(t, flat, 1)
	assert.Equal(t, "bandit", flat[0].Tool)
	assert.Equal(t, "app/main.py|bandit|B602|subprocess call with shell=True", flat[0].Fingerprint())

	fa := ctx.Analysis.Files[0]
	assert.True(t, fa.HasFailures())
	assert.Equal(t, 1, fa.FindingCount())
	out, ok := fa.Outcome("pylint")
	require.True(t, ok)
	assert.True(t, out.Failed())
	_, ok = fa.Outcome("eslint")
	assert.False(t, ok)
}
