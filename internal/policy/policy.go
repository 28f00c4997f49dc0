// Package policy enforces yaml-defined thresholds on an audit run.
package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/codespectre/internal/models"
)

// FileNames are searched, in order, by FindPolicyFile.
var FileNames = []string{".codespectre-policy.yaml", ".codespectre-policy.yml"}

// Policy defines enforcement rules for audit results.
type Policy struct {
	Version string `yaml:"version"`
	Rules   Rules  `yaml:"rules"`
}

// Rules contains all configurable policy rules. Nil limits are not checked.
type Rules struct {
	MaxFindings      *int     `yaml:"max_findings,omitempty"`
	MaxCritical      *int     `yaml:"max_critical,omitempty"`
	MaxHigh          *int     `yaml:"max_high,omitempty"`
	MaxMedium        *int     `yaml:"max_medium,omitempty"`
	MinHealthPercent *float64 `yaml:"min_health_percent,omitempty"`
	MaxFailedCells   *int     `yaml:"max_failed_cells,omitempty"`
	// ForbidRules entries are "RULE" or "tool/RULE".
	ForbidRules  []string `yaml:"forbid_rules,omitempty"`
	RequireTools []string `yaml:"require_tools,omitempty"`
}

// Violation is a single policy failure.
type Violation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Result holds the outcome of a policy check.
type Result struct {
	Pass       bool        `json:"pass"`
	Violations []Violation `json:"violations"`
}

// LoadFromFile reads a policy file. A missing file yields a nil policy.
func LoadFromFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read policy: %w", err)
	}

	var p Policy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse policy: %w", err)
	}

	return &p, nil
}

// FindPolicyFile searches dir and its parents for a policy file.
func FindPolicyFile(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		for _, name := range FileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// Evaluate checks an audit run against the policy rules.
func (p *Policy) Evaluate(run *models.AuditRun) *Result {
	if p == nil {
		return &Result{Pass: true}
	}

	var violations []Violation
	add := func(rule, format string, args ...any) {
		violations = append(violations, Violation{Rule: rule, Message: fmt.Sprintf(format, args...)})
	}
	rollup := run.Rollup

	if p.Rules.MaxFindings != nil && rollup.TotalFindings > *p.Rules.MaxFindings {
		add("max_findings", "total findings %d exceeds limit %d", rollup.TotalFindings, *p.Rules.MaxFindings)
	}

	limits := []struct {
		rule  string
		limit *int
		sev   models.Severity
	}{
		{"max_critical", p.Rules.MaxCritical, models.SeverityCritical},
		{"max_high", p.Rules.MaxHigh, models.SeverityHigh},
		{"max_medium", p.Rules.MaxMedium, models.SeverityMedium},
	}
	for _, l := range limits {
		if l.limit == nil {
			continue
		}
		if count := rollup.BySeverity.Count(l.sev); count > *l.limit {
			add(l.rule, "%s findings %d exceeds limit %d", strings.ToLower(string(l.sev)), count, *l.limit)
		}
	}

	if p.Rules.MinHealthPercent != nil && rollup.ScorePercent < *p.Rules.MinHealthPercent {
		add("min_health_percent", "health %.1f%% below minimum %.1f%%", rollup.ScorePercent, *p.Rules.MinHealthPercent)
	}

	if p.Rules.MaxFailedCells != nil && rollup.FailedCells > *p.Rules.MaxFailedCells {
		add("max_failed_cells", "failed tool runs %d exceeds limit %d", rollup.FailedCells, *p.Rules.MaxFailedCells)
	}

	if len(p.Rules.ForbidRules) > 0 {
		counts := forbiddenCounts(run.Context.Analysis.Flatten(), p.Rules.ForbidRules)
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			add("forbid_rules", "forbidden rule %q has %d findings", k, counts[k])
		}
	}

	for _, tool := range p.Rules.RequireTools {
		if !slices.Contains(rollup.ToolsInvoked, tool) {
			add("require_tools", "required tool %q did not run", tool)
		}
	}

	return &Result{
		Pass:       len(violations) == 0,
		Violations: violations,
	}
}

// forbiddenCounts counts findings matching each forbidden entry.
func forbiddenCounts(findings []models.FlatFinding, forbidden []string) map[string]int {
	counts := make(map[string]int)
	for _, entry := range forbidden {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		tool, rule, scoped := strings.Cut(entry, "/")
		if !scoped {
			rule = entry
		}
		for _, ff := range findings {
			if ff.Finding.RuleID != rule {
				continue
			}
			if scoped && ff.Tool != tool {
				continue
			}
			counts[entry]++
		}
	}
	return counts
}
