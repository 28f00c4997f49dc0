package discovery

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/mod/semver"

	"github.com/ppiankov/codespectre/internal/adapters"
	"github.com/ppiankov/codespectre/internal/runner"
)

// versionTimeout bounds a single `--version` probe.
const versionTimeout = 10 * time.Second

// LookPathFunc matches the signature of exec.LookPath.
type LookPathFunc func(file string) (string, error)

// ToolDiscovery describes what was found for a single tool.
type ToolDiscovery struct {
	Tool        string   `json:"tool"`
	Binary      string   `json:"binary"`
	BinaryPath  string   `json:"binary_path,omitempty"`
	Available   bool     `json:"available"`
	Version     string   `json:"version,omitempty"`
	MinVersion  string   `json:"min_version,omitempty"`
	VersionOK   bool     `json:"version_ok"`
	InstallHint string   `json:"install_hint,omitempty"`
	Extensions  []string `json:"extensions,omitempty"`
}

// ToolPlan is the complete result of a tool probe.
type ToolPlan struct {
	Tools       []ToolDiscovery `json:"tools"`
	TotalFound  int             `json:"total_found"`
	TotalUsable int             `json:"total_usable"`
}

// Missing returns the tools that are not installed.
func (p *ToolPlan) Missing() []ToolDiscovery {
	var missing []ToolDiscovery
	for _, t := range p.Tools {
		if !t.Available {
			missing = append(missing, t)
		}
	}
	return missing
}

// ToolDiscoverer probes the local environment for analysis tools.
// Injectable deps make it fully testable.
type ToolDiscoverer struct {
	lookPath LookPathFunc
	execFn   runner.ExecFunc
	logger   *zap.Logger
}

// NewToolDiscoverer creates a ToolDiscoverer. A nil execFn skips version probes.
func NewToolDiscoverer(lookPath LookPathFunc, execFn runner.ExecFunc, logger *zap.Logger) *ToolDiscoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolDiscoverer{lookPath: lookPath, execFn: execFn, logger: logger}
}

// Discover checks every adapter in set: whether its binary is on PATH, which
// version it reports and which extensions in table use it.
func (d *ToolDiscoverer) Discover(ctx context.Context, set *adapters.Set, table Table) *ToolPlan {
	plan := &ToolPlan{}

	for _, name := range set.Names() {
		a, _ := set.Get(name)
		inv := a.Invocation()
		td := ToolDiscovery{
			Tool:        name,
			Binary:      inv.Binary,
			MinVersion:  inv.MinVersion,
			InstallHint: inv.InstallHint,
		}
		for _, ext := range table.Extensions() {
			for _, tool := range table[ext] {
				if tool == name {
					td.Extensions = append(td.Extensions, ext)
				}
			}
		}

		if path, err := d.lookPath(inv.Binary); err == nil {
			td.Available = true
			td.BinaryPath = path
			plan.TotalFound++
		}

		if td.Available {
			td.Version = d.probe(ctx, inv)
			td.VersionOK = MeetsMinimum(ExtractVersion(td.Version), inv.MinVersion)
			if td.VersionOK {
				plan.TotalUsable++
			}
		}

		plan.Tools = append(plan.Tools, td)
	}

	sort.Slice(plan.Tools, func(i, j int) bool { return plan.Tools[i].Tool < plan.Tools[j].Tool })
	return plan
}

// Versions returns the first line of `--version` output for each tool.
// Tools that cannot be probed report "unknown".
func (d *ToolDiscoverer) Versions(ctx context.Context, set *adapters.Set, tools []string) map[string]string {
	versions := make(map[string]string, len(tools))
	for _, name := range tools {
		a, ok := set.Get(name)
		if !ok {
			continue
		}
		v := d.probe(ctx, a.Invocation())
		if v == "" {
			v = "unknown"
		}
		versions[name] = v
	}
	return versions
}

func (d *ToolDiscoverer) probe(ctx context.Context, inv adapters.Invocation) string {
	if d.execFn == nil || len(inv.VersionArgs) == 0 {
		return ""
	}

	probeCtx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	out, err := d.execFn(probeCtx, "", inv.Binary, inv.VersionArgs...)
	if err != nil {
		d.logger.Debug("version probe failed", zap.String("binary", inv.Binary), zap.Error(err))
		return ""
	}
	text := strings.TrimSpace(string(out.Stdout))
	if text == "" {
		text = strings.TrimSpace(string(out.Stderr))
	}
	first, _, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(first)
}

var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// ExtractVersion pulls the first dotted version number out of tool output,
// e.g. "pylint 3.0.3" -> "3.0.3".
func ExtractVersion(output string) string {
	return versionPattern.FindString(output)
}

// MeetsMinimum reports whether version is at least min. An empty min
// accepts anything; an unparsable version fails.
func MeetsMinimum(version, min string) bool {
	if min == "" {
		return true
	}
	v, m := canonical(version), canonical(min)
	if !semver.IsValid(v) || !semver.IsValid(m) {
		return false
	}
	return semver.Compare(v, m) >= 0
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}
