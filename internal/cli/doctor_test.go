package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/ppiankov/codespectre/internal/config"
	"github.com/ppiankov/codespectre/internal/discovery"
	"github.com/ppiankov/codespectre/internal/runner"
)

// withProcesses replaces the package process hooks for the test.
func withProcesses(t *testing.T, lp discovery.LookPathFunc, fn runner.ExecFunc) {
	t.Helper()
	oldLook, oldExec := lookPath, execFn
	lookPath, execFn = lp, fn
	t.Cleanup(func() { lookPath, execFn = oldLook, oldExec })
}

func versionExec(version string) runner.ExecFunc {
	return func(ctx context.Context, dir, name string, args ...string) (runner.ExecResult, error) {
		return runner.ExecResult{Stdout: []byte(name + " " + version + "\nextra line\n")}, nil
	}
}

func missingLookPath(file string) (string, error) {
	return "", errors.New("not found")
}

// --- joinMax tests ---

func TestJoinMax(t *testing.T) {
	tests := []struct {
		in   []string
		n    int
		want string
	}{
		{[]string{"a", "b"}, 3, "a, b"},
		{[]string{"a", "b", "c"}, 3, "a, b, c"},
		{[]string{"a", "b", "c", "d", "e"}, 2, "a, b +3 more"},
		{[]string{}, 3, ""},
		{[]string{"only"}, 3, "only"},
	}
	for _, tt := range tests {
		if got := joinMax(tt.in, tt.n); got != tt.want {
			t.Errorf("joinMax(%v, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

// --- summary and text output ---

func TestSummarizeChecks(t *testing.T) {
	tests := []struct {
		statuses []string
		want     string
	}{
		{[]string{"ok", "ok"}, "all checks passed"},
		{[]string{"ok", "warn", "warn"}, "ok with 2 warning(s)"},
		{[]string{"warn", "fail"}, "1 issue(s) found"},
	}
	for _, tt := range tests {
		var checks []doctorCheck
		for _, s := range tt.statuses {
			checks = append(checks, doctorCheck{Name: "x", Status: s})
		}
		if got := summarizeChecks(checks).Summary; got != tt.want {
			t.Errorf("summary for %v = %q, want %q", tt.statuses, got, tt.want)
		}
	}
}

func TestWriteDoctorText(t *testing.T) {
	result := doctorResult{
		Checks: []doctorCheck{
			{Name: "config", Status: "ok", Detail: "codespectre.yaml"},
			{Name: "pandoc", Status: "warn", Detail: "pandoc not found in PATH"},
			{Name: "git", Status: "fail"},
		},
		Summary: "1 issue(s) found",
	}

	var buf bytes.Buffer
	if err := writeDoctorText(&buf, result); err != nil {
		t.Fatalf("writeDoctorText: %v", err)
	}
	output := buf.String()

	for _, want := range []string{"✓", "△", "✗", "codespectre.yaml", "  ✗ git\n", "1 issue(s) found"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

// --- individual checks ---

func TestCheckBinary(t *testing.T) {
	withProcesses(t, missingLookPath, versionExec("2.44.0"))

	if c := checkBinary(context.Background(), "git", "git", true); c.Status != "fail" {
		t.Errorf("missing required binary: status = %q, want fail", c.Status)
	}
	if c := checkBinary(context.Background(), "pandoc", "pandoc", false); c.Status != "warn" {
		t.Errorf("missing optional binary: status = %q, want warn", c.Status)
	}

	withProcesses(t, fakeLookPath, versionExec("2.44.0"))
	c := checkBinary(context.Background(), "git", "git", true)
	if c.Status != "ok" {
		t.Errorf("status = %q, want ok", c.Status)
	}
	if c.Detail != "git 2.44.0 (/usr/bin/git)" {
		t.Errorf("detail = %q", c.Detail)
	}
}

func TestCheckToolsReady(t *testing.T) {
	withProcesses(t, fakeLookPath, versionExec("9.9.9"))

	checks, err := checkTools(context.Background(), config.DefaultConfig())
	if err != nil {
		t.Fatalf("checkTools: %v", err)
	}

	names := map[string]string{}
	for _, c := range checks {
		names[c.Name] = c.Status
	}
	for _, tool := range []string{"bandit", "pylint", "eslint", "yamllint", "flake8"} {
		if names[tool] != "ok" {
			t.Errorf("%s status = %q, want ok", tool, names[tool])
		}
	}
	if _, ok := names["tools"]; ok {
		t.Error("unexpected aggregate tools failure")
	}
}

func TestCheckToolsBelowMinimum(t *testing.T) {
	withProcesses(t, fakeLookPath, versionExec("0.1.0"))

	checks, err := checkTools(context.Background(), config.DefaultConfig())
	if err != nil {
		t.Fatalf("checkTools: %v", err)
	}
	for _, c := range checks {
		if c.Name == "tools" {
			if c.Status != "fail" {
				t.Errorf("aggregate status = %q, want fail", c.Status)
			}
			continue
		}
		if c.Status != "warn" || !strings.Contains(c.Detail, "below minimum") {
			t.Errorf("%s: got %q %q", c.Name, c.Status, c.Detail)
		}
	}
}

func TestCheckToolsMissing(t *testing.T) {
	withProcesses(t, missingLookPath, versionExec("9.9.9"))

	checks, err := checkTools(context.Background(), config.DefaultConfig())
	if err != nil {
		t.Fatalf("checkTools: %v", err)
	}
	last := checks[len(checks)-1]
	if last.Name != "tools" || last.Status != "fail" {
		t.Errorf("expected aggregate failure last, got %+v", last)
	}
	for _, c := range checks[:len(checks)-1] {
		if !strings.Contains(c.Detail, "not installed. Run: ") {
			t.Errorf("%s detail = %q, want install hint", c.Name, c.Detail)
		}
	}
}

func TestCheckLLM(t *testing.T) {
	if c := checkLLM(context.Background(), config.LLMConfig{}); c.Status != "warn" {
		t.Errorf("no endpoint: status = %q, want warn", c.Status)
	}

	var gotAuth, gotPath string
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer ok.Close()

	c := checkLLM(context.Background(), config.LLMConfig{Endpoint: ok.URL + "/", Model: "m", APIKey: "secret"})
	if c.Status != "ok" {
		t.Errorf("healthy endpoint: status = %q (%s)", c.Status, c.Detail)
	}
	if gotPath != "/v1/models" || gotAuth != "Bearer secret" {
		t.Errorf("request path=%q auth=%q", gotPath, gotAuth)
	}

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	if c := checkLLM(context.Background(), config.LLMConfig{Endpoint: broken.URL}); c.Status != "fail" {
		t.Errorf("502 endpoint: status = %q, want fail", c.Status)
	}

	closedURL := broken.URL
	broken.Close()
	if c := checkLLM(context.Background(), config.LLMConfig{Endpoint: closedURL}); c.Status != "fail" {
		t.Errorf("unreachable endpoint: status = %q, want fail", c.Status)
	}
}

func TestCheckWritable(t *testing.T) {
	dir := t.TempDir()

	if c := checkWritable("output", dir); c.Status != "ok" || c.Detail != dir {
		t.Errorf("existing dir: %+v", c)
	}
	if _, err := os.Stat(filepath.Join(dir, ".doctor-check")); !os.IsNotExist(err) {
		t.Error("probe file should be removed")
	}

	missing := filepath.Join(dir, "absent")
	if c := checkWritable("output", missing); c.Status != "ok" || !strings.Contains(c.Detail, "will be created") {
		t.Errorf("missing dir: %+v", c)
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if c := checkWritable("output", file); c.Status != "fail" {
		t.Errorf("file instead of dir: %+v", c)
	}
}

func TestRunDoctorJSON(t *testing.T) {
	withProcesses(t, fakeLookPath, versionExec("9.9.9"))
	c := config.DefaultConfig()
	c.OutputDir = t.TempDir()
	c.StorageDir = t.TempDir()
	withTestConfig(t, c)

	old := doctorFormat
	doctorFormat = "json"
	t.Cleanup(func() { doctorFormat = old })

	out, err := runCommand(t, func(cmd *cobra.Command) error {
		cmd.SetContext(context.Background())
		return runDoctor(cmd, nil)
	})
	if err != nil {
		t.Fatalf("runDoctor: %v", err)
	}
	for _, want := range []string{`"name": "git"`, `"name": "bandit"`, `"name": "llm"`, `"summary"`} {
		if !strings.Contains(out, want) {
			t.Errorf("json output missing %s", want)
		}
	}
}
