package reporter

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/ppiankov/codespectre/internal/models"
)

const sarifSchema = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"

// SARIF 2.1.0, only the fields code scanning needs.

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string             `json:"id"`
	ShortDescription sarifMessage       `json:"shortDescription"`
	DefaultConfig    sarifDefaultConfig `json:"defaultConfiguration"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysical `json:"physicalLocation"`
}

type sarifPhysical struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
	Region           *sarifRegion  `json:"region,omitempty"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn,omitempty"`
	EndLine     int `json:"endLine,omitempty"`
}

// WriteSARIF writes the findings of runs as a single SARIF run.
func WriteSARIF(w io.Writer, runs []*models.AuditRun, version string) error {
	rulesMap := map[string]sarifRule{}
	results := []sarifResult{}

	for _, run := range runs {
		for _, ff := range run.Context.Analysis.Flatten() {
			ruleID := sarifRuleID(ff)
			level := sarifLevel(ff.Finding.Severity)
			if existing, ok := rulesMap[ruleID]; !ok || levelRank(level) > levelRank(existing.DefaultConfig.Level) {
				rulesMap[ruleID] = sarifRule{
					ID:               ruleID,
					ShortDescription: sarifMessage{Text: ff.Tool + " " + ruleOrDefault(ff.Finding.RuleID)},
					DefaultConfig:    sarifDefaultConfig{Level: level},
				}
			}

			results = append(results, sarifResult{
				RuleID:  ruleID,
				Level:   level,
				Message: sarifMessage{Text: inline(ff.Finding.Message)},
				Locations: []sarifLocation{{
					PhysicalLocation: sarifPhysical{
						ArtifactLocation: sarifArtifact{URI: ff.File},
						Region:           sarifRegionFor(ff.Finding.Location),
					},
				}},
			})
		}
	}

	rules := make([]sarifRule, 0, len(rulesMap))
	for _, r := range rulesMap {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })

	log := sarifLog{
		Schema:  sarifSchema,
		Version: "2.1.0",
		Runs: []sarifRun{{
			Tool: sarifTool{
				Driver: sarifDriver{
					Name:    "codespectre",
					Version: version,
					Rules:   rules,
				},
			},
			Results: results,
		}},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(log)
}

func sarifRuleID(ff models.FlatFinding) string {
	return ff.Tool + "/" + ruleOrDefault(ff.Finding.RuleID)
}

func ruleOrDefault(rule string) string {
	if rule == "" {
		return "finding"
	}
	return rule
}

func sarifRegionFor(loc models.Location) *sarifRegion {
	if loc.Line <= 0 {
		return nil
	}
	region := &sarifRegion{StartLine: loc.Line}
	if loc.Column != nil && *loc.Column > 0 {
		region.StartColumn = *loc.Column
	}
	if loc.EndLine >= loc.Line {
		region.EndLine = loc.EndLine
	}
	return region
}

func sarifLevel(sev models.Severity) string {
	switch sev.Normalize() {
	case models.SeverityCritical, models.SeverityHigh:
		return "error"
	case models.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

func levelRank(level string) int {
	switch level {
	case "error":
		return 2
	case "warning":
		return 1
	default:
		return 0
	}
}
