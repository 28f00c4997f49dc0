package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/ppiankov/codespectre/internal/config"
	"github.com/ppiankov/codespectre/internal/models"
)

// severityValue is a pflag.Value accepting a canonical severity name.
type severityValue struct {
	severity models.Severity
}

var _ pflag.Value = (*severityValue)(nil)

func (v *severityValue) String() string {
	return strings.ToLower(string(v.severity))
}

func (v *severityValue) Set(s string) error {
	sev, err := models.ParseSeverity(s)
	if err != nil {
		return err
	}
	v.severity = sev
	return nil
}

func (v *severityValue) Type() string {
	return "severity"
}

// auditFlags are shared by audit and scan.
type auditFlags struct {
	full    bool
	branch  string
	noPDF   bool
	noLLM   bool
	noStore bool
	formats []string
	failOn  severityValue
	policy  string
}

func (f *auditFlags) register(flags *pflag.FlagSet, withBranch bool) {
	flags.BoolVar(&f.full, "full", false,
		"also run the full_tools set (default adds flake8 for .py)")
	if withBranch {
		flags.StringVar(&f.branch, "branch", "",
			"branch or tag to clone (default: remote HEAD)")
	}
	flags.BoolVar(&f.noPDF, "no-pdf", false,
		"skip PDF export even when pdf is enabled in config")
	flags.BoolVar(&f.noLLM, "no-llm", false,
		"skip the LLM summary")
	flags.BoolVar(&f.noStore, "no-store", false,
		"do not save the run to history")
	flags.StringSliceVar(&f.formats, "format", nil,
		"report formats: markdown, json, sarif (default from config)")
	flags.Var(&f.failOn, "fail-on",
		"exit 1 when any finding is at or above this severity (critical, high, medium, low, info)")
	flags.StringVar(&f.policy, "policy", "",
		"policy file (default: .codespectre-policy.yaml in the repository or working directory)")
}

// reportFormats returns the flag formats when given, else the config ones.
func (f *auditFlags) reportFormats(c *config.Config) ([]string, error) {
	if len(f.formats) == 0 {
		return c.Formats, nil
	}
	out := make([]string, 0, len(f.formats))
	for _, format := range f.formats {
		format = strings.ToLower(strings.TrimSpace(format))
		switch format {
		case config.FormatMarkdown, config.FormatJSON, config.FormatSARIF:
			out = append(out, format)
		default:
			return nil, &ValidationError{Message: fmt.Sprintf("invalid format: %s (must be markdown, json, or sarif)", format)}
		}
	}
	return out, nil
}
