package aggregator

import (
	"fmt"
	"sort"

	"github.com/ppiankov/codespectre/internal/adapters"
	"github.com/ppiankov/codespectre/internal/models"
)

// findingGroup represents findings sharing tool, rule and severity.
type findingGroup struct {
	tool     string
	ruleID   string
	severity models.Severity
	count    int
	files    map[string]bool
}

// failureGroup represents failed cells sharing tool and error kind.
type failureGroup struct {
	tool  string
	kind  models.ErrorKind
	count int
}

// RecommendationGenerator creates actionable recommendations from an analysis.
type RecommendationGenerator struct{}

// NewRecommendationGenerator creates a new recommendation generator.
func NewRecommendationGenerator() *RecommendationGenerator {
	return &RecommendationGenerator{}
}

// GenerateRecommendations groups findings by (tool, rule, severity) and
// failed cells by (tool, error kind), most urgent first.
func (r *RecommendationGenerator) GenerateRecommendations(result models.AnalysisResult) []models.Recommendation {
	groups := make(map[string]*findingGroup)
	failures := make(map[string]*failureGroup)

	for _, fa := range result.Files {
		for _, o := range fa.PerTool {
			if o.Error != nil {
				key := o.Tool + ":" + string(o.Error.Kind)
				if g, ok := failures[key]; ok {
					g.count++
				} else {
					failures[key] = &failureGroup{tool: o.Tool, kind: o.Error.Kind, count: 1}
				}
				continue
			}
			for _, f := range o.Findings {
				sev := f.Severity.Normalize()
				key := fmt.Sprintf("%s:%s:%s", o.Tool, f.RuleID, sev)
				g, ok := groups[key]
				if !ok {
					g = &findingGroup{tool: o.Tool, ruleID: f.RuleID, severity: sev, files: make(map[string]bool)}
					groups[key] = g
				}
				g.count++
				g.files[fa.FilePath] = true
			}
		}
	}

	recommendations := []models.Recommendation{}
	for _, g := range groups {
		recommendations = append(recommendations, models.Recommendation{
			Severity: g.severity,
			Tool:     g.tool,
			RuleID:   g.ruleID,
			Action:   r.generateAction(g),
			Impact:   r.generateImpact(g.tool, g.severity),
			Count:    g.count,
			Files:    len(g.files),
		})
	}
	for _, g := range failures {
		recommendations = append(recommendations, models.Recommendation{
			Severity: models.SeverityMedium,
			Tool:     g.tool,
			Action:   r.failureAction(g),
			Impact:   "Files were not analyzed by this tool; findings may be missing from the report",
			Count:    g.count,
			Files:    g.count,
		})
	}

	sort.Slice(recommendations, func(i, j int) bool {
		a, b := recommendations[i], recommendations[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Tool != b.Tool {
			return a.Tool < b.Tool
		}
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		return a.Action < b.Action
	})

	return recommendations
}

// generateAction creates actionable text for a finding group.
func (r *RecommendationGenerator) generateAction(g *findingGroup) string {
	rule := g.ruleID
	if rule == "" {
		rule = "unnamed rule"
	}
	return fmt.Sprintf("Fix %d %s finding(s) for %s reported by %s in %d file(s)",
		g.count, r.getCategory(g.tool), rule, g.tool, len(g.files))
}

func (r *RecommendationGenerator) failureAction(g *failureGroup) string {
	switch g.kind {
	case models.ErrorNotFound:
		return fmt.Sprintf("Install %s so %d file(s) can be analyzed", g.tool, g.count)
	case models.ErrorTimeout:
		return fmt.Sprintf("Investigate %d %s timeout(s) or raise its timeout", g.count, g.tool)
	case models.ErrorParse:
		return fmt.Sprintf("Check %s version: %d output(s) could not be parsed", g.tool, g.count)
	default:
		return fmt.Sprintf("Investigate %d failed %s run(s)", g.count, g.tool)
	}
}

// generateImpact describes the potential impact based on severity and tool.
func (r *RecommendationGenerator) generateImpact(tool string, severity models.Severity) string {
	security := tool == adapters.Bandit

	switch severity {
	case models.SeverityCritical:
		if security {
			return "Exploitable weakness; fix before the next release"
		}
		return "Code cannot be analyzed or run correctly"
	case models.SeverityHigh:
		if security {
			return "Likely security vulnerability"
		}
		return "Probable bug or runtime error"
	case models.SeverityMedium:
		if security {
			return "Potential security weakness depending on context"
		}
		return "Code smell that may hide defects"
	case models.SeverityLow:
		return "Style or maintainability cleanup"
	default:
		return "Informational; review as needed"
	}
}

// getCategory returns a human-readable category for the tool.
func (r *RecommendationGenerator) getCategory(tool string) string {
	switch tool {
	case adapters.Bandit:
		return "security"
	case adapters.Pylint, adapters.Flake8:
		return "Python quality"
	case adapters.ESLint:
		return "JavaScript lint"
	case adapters.Yamllint:
		return "YAML lint"
	default:
		return "analysis"
	}
}

// GetTopRecommendations returns the top N most critical recommendations.
func (r *RecommendationGenerator) GetTopRecommendations(recommendations []models.Recommendation, n int) []models.Recommendation {
	if n >= len(recommendations) {
		return recommendations
	}
	return recommendations[:n]
}

// GroupBySeverity groups recommendations by severity level.
func (r *RecommendationGenerator) GroupBySeverity(recommendations []models.Recommendation) map[models.Severity][]models.Recommendation {
	grouped := make(map[models.Severity][]models.Recommendation)
	for _, rec := range recommendations {
		grouped[rec.Severity] = append(grouped[rec.Severity], rec)
	}
	return grouped
}
