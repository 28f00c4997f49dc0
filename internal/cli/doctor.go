package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/codespectre/internal/adapters"
	"github.com/ppiankov/codespectre/internal/config"
	"github.com/ppiankov/codespectre/internal/discovery"
)

const probeTimeout = 5 * time.Second

var doctorFormat string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check environment readiness and diagnose common problems",
	Long: `Doctor validates your codespectre setup end-to-end:

  1. Config file: found and readable?
  2. git: installed (needed by audit)?
  3. pandoc: installed (needed for PDF reports)?
  4. Analysis tools: installed and at their minimum version?
  5. LLM endpoint: configured and reachable?
  6. Output and storage directories: writable?

Fix the issues it reports, then run 'codespectre audit' with confidence.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().StringVar(&doctorFormat, "format", "text",
		"output format: text or json")
}

type doctorCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "ok", "warn", "fail"
	Detail string `json:"detail,omitempty"`
}

type doctorResult struct {
	Checks  []doctorCheck `json:"checks"`
	Summary string        `json:"summary"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	if doctorFormat != "text" && doctorFormat != "json" {
		return &ValidationError{Message: fmt.Sprintf("invalid format: %s (must be text or json)", doctorFormat)}
	}

	ctx := cmd.Context()
	var checks []doctorCheck

	checks = append(checks, checkConfig())
	checks = append(checks, checkBinary(ctx, "git", cfg.GitBinary, true))
	if cfg.PDF {
		checks = append(checks, checkBinary(ctx, "pandoc", cfg.PandocBinary, false))
	} else {
		checks = append(checks, doctorCheck{Name: "pandoc", Status: "ok", Detail: "not needed (pdf disabled)"})
	}

	toolChecks, err := checkTools(ctx, cfg)
	if err != nil {
		return err
	}
	checks = append(checks, toolChecks...)

	checks = append(checks, checkLLM(ctx, cfg.LLM))

	outputDir, err := cfg.GetOutputPath()
	if err != nil {
		return err
	}
	checks = append(checks, checkWritable("output", outputDir))
	storageDir, err := cfg.GetStoragePath()
	if err != nil {
		return err
	}
	checks = append(checks, checkWritable("storage", storageDir))

	result := summarizeChecks(checks)

	if doctorFormat == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	return writeDoctorText(cmd.OutOrStdout(), result)
}

func summarizeChecks(checks []doctorCheck) doctorResult {
	fails, warns := 0, 0
	for _, c := range checks {
		switch c.Status {
		case "fail":
			fails++
		case "warn":
			warns++
		}
	}

	summary := "all checks passed"
	if fails > 0 {
		summary = fmt.Sprintf("%d issue(s) found", fails)
	} else if warns > 0 {
		summary = fmt.Sprintf("ok with %d warning(s)", warns)
	}

	return doctorResult{Checks: checks, Summary: summary}
}

func writeDoctorText(w io.Writer, result doctorResult) error {
	icons := map[string]string{
		"ok":   "✓",
		"warn": "△",
		"fail": "✗",
	}

	for _, c := range result.Checks {
		icon := icons[c.Status]
		if c.Detail != "" {
			fmt.Fprintf(w, "  %s %-20s %s\n", icon, c.Name, c.Detail)
		} else {
			fmt.Fprintf(w, "  %s %s\n", icon, c.Name)
		}
	}

	_, err := fmt.Fprintf(w, "\n%s\n", result.Summary)
	return err
}

// configCandidates lists the files config.LoadFromFile searches, in order.
func configCandidates() []string {
	paths := []string{"codespectre.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, "codespectre.yaml"))
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "codespectre", "codespectre.yaml"))
	}
	return paths
}

func checkConfig() doctorCheck {
	if configFile != "" {
		return doctorCheck{Name: "config", Status: "ok", Detail: configFile}
	}

	for _, path := range configCandidates() {
		if _, err := os.Stat(path); err == nil {
			return doctorCheck{Name: "config", Status: "ok", Detail: path}
		}
	}

	return doctorCheck{
		Name:   "config",
		Status: "warn",
		Detail: "no config file found (using defaults). Run: codespectre config > codespectre.yaml",
	}
}

// checkBinary reports whether binary is on PATH and what version it prints.
// A missing required binary fails; an optional one only warns.
func checkBinary(ctx context.Context, name, binary string, required bool) doctorCheck {
	path, err := lookPath(binary)
	if err != nil {
		status := "warn"
		if required {
			status = "fail"
		}
		return doctorCheck{Name: name, Status: status, Detail: fmt.Sprintf("%s not found in PATH", binary)}
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	detail := path
	if res, err := execFn(probeCtx, "", binary, "--version"); err == nil {
		first, _, _ := strings.Cut(strings.TrimSpace(string(res.Stdout)), "\n")
		if first != "" {
			detail = fmt.Sprintf("%s (%s)", first, path)
		}
	}
	return doctorCheck{Name: name, Status: "ok", Detail: detail}
}

func checkTools(ctx context.Context, c *config.Config) ([]doctorCheck, error) {
	set, err := adapters.NewSet(c.Overrides(), logger)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	table := c.Table(true)
	plan := discovery.NewToolDiscoverer(lookPath, execFn, logger).Discover(ctx, set, table)

	var checks []doctorCheck
	for _, td := range plan.Tools {
		if len(td.Extensions) == 0 {
			continue
		}
		check := doctorCheck{Name: td.Tool}
		switch {
		case !td.Available:
			check.Status = "warn"
			check.Detail = fmt.Sprintf("not installed. Run: %s", td.InstallHint)
		case !td.VersionOK:
			check.Status = "warn"
			check.Detail = fmt.Sprintf("%s is below minimum %s", orUnknown(td.Version), td.MinVersion)
		default:
			check.Status = "ok"
			check.Detail = fmt.Sprintf("%s (%s)", td.Version, joinMax(td.Extensions, 3))
		}
		checks = append(checks, check)
	}

	if plan.TotalUsable == 0 {
		checks = append(checks, doctorCheck{
			Name:   "tools",
			Status: "fail",
			Detail: "no usable analysis tools found, every cell would fail with not_found",
		})
	}

	return checks, nil
}

func checkLLM(ctx context.Context, llm config.LLMConfig) doctorCheck {
	if llm.Endpoint == "" {
		return doctorCheck{
			Name:   "llm",
			Status: "warn",
			Detail: "no llm.endpoint configured; reports will have no summary",
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	url := strings.TrimRight(llm.Endpoint, "/") + "/v1/models"
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		return doctorCheck{Name: "llm", Status: "fail", Detail: fmt.Sprintf("invalid endpoint (%v)", err)}
	}
	if llm.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+llm.APIKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return doctorCheck{Name: "llm", Status: "fail", Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return doctorCheck{Name: "llm", Status: "fail", Detail: fmt.Sprintf("unhealthy (HTTP %d)", resp.StatusCode)}
	}

	return doctorCheck{Name: "llm", Status: "ok", Detail: fmt.Sprintf("%s (model %s)", llm.Endpoint, llm.Model)}
}

func checkWritable(name, dir string) doctorCheck {
	info, err := os.Stat(dir)
	if err != nil {
		return doctorCheck{
			Name:   name,
			Status: "ok",
			Detail: fmt.Sprintf("%s (will be created on first audit)", dir),
		}
	}

	if !info.IsDir() {
		return doctorCheck{
			Name:   name,
			Status: "fail",
			Detail: fmt.Sprintf("%s exists but is not a directory", dir),
		}
	}

	tmpFile := filepath.Join(dir, ".doctor-check")
	if err := os.WriteFile(tmpFile, []byte("ok"), 0600); err != nil {
		return doctorCheck{
			Name:   name,
			Status: "fail",
			Detail: fmt.Sprintf("%s not writable: %v", dir, err),
		}
	}
	_ = os.Remove(tmpFile)

	return doctorCheck{Name: name, Status: "ok", Detail: dir}
}

// joinMax joins up to n strings with ", ".
func joinMax(s []string, n int) string {
	if len(s) <= n {
		return strings.Join(s, ", ")
	}
	return fmt.Sprintf("%s +%d more", strings.Join(s[:n], ", "), len(s)-n)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown version"
	}
	return s
}
