package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codespectre.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, "# empty\n"))
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.ToolTimeout != 60*time.Second {
		t.Errorf("ToolTimeout = %s, want 60s", cfg.ToolTimeout)
	}
	if !reflect.DeepEqual(cfg.Tools["py"], []string{"bandit", "pylint"}) {
		t.Errorf("tools.py = %v", cfg.Tools["py"])
	}
	if !reflect.DeepEqual(cfg.Tools["yml"], []string{"yamllint"}) {
		t.Errorf("tools.yml = %v", cfg.Tools["yml"])
	}
	if cfg.OutputDir != "outputs/reports" {
		t.Errorf("OutputDir = %s", cfg.OutputDir)
	}
	if !cfg.PDF || !cfg.Store {
		t.Errorf("expected pdf and store enabled by default")
	}
	if cfg.LLM.Endpoint != "" || cfg.LLM.MaxTokens != 2048 {
		t.Errorf("LLM defaults = %+v", cfg.LLM)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "console" {
		t.Errorf("log defaults = %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadSampleConfig(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, GenerateSampleConfig()))
	if err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
	if !reflect.DeepEqual(cfg.FullTools["py"], []string{"flake8"}) {
		t.Errorf("full_tools.py = %v", cfg.FullTools["py"])
	}
	if cfg.LLM.Timeout != 2*time.Minute {
		t.Errorf("llm.timeout = %s", cfg.LLM.Timeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
tools:
  PY: [bandit]
  .mjs: [eslint]
tool_timeout: 15s
tool_overrides:
  pylint:
    binary: python3
    args: ["-m", "pylint", "--output-format=json", "{file}"]
    timeout: 2m
formats: [markdown, sarif]
llm:
  endpoint: http://localhost:8080
  temperature: 0.2
`)
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if !reflect.DeepEqual(cfg.Tools["py"], []string{"bandit"}) {
		t.Errorf("tools.py = %v", cfg.Tools["py"])
	}
	if !reflect.DeepEqual(cfg.Tools["mjs"], []string{"eslint"}) {
		t.Errorf("tools.mjs = %v", cfg.Tools["mjs"])
	}
	if cfg.ToolTimeout != 15*time.Second {
		t.Errorf("ToolTimeout = %s", cfg.ToolTimeout)
	}

	o := cfg.Overrides()["pylint"]
	if o.Binary != "python3" || o.Timeout != 2*time.Minute || len(o.Args) != 4 {
		t.Errorf("pylint override = %+v", o)
	}
	if !cfg.HasFormat(FormatSARIF) || cfg.HasFormat(FormatJSON) {
		t.Errorf("formats = %v", cfg.Formats)
	}
	if cfg.LLM.Endpoint != "http://localhost:8080" || cfg.LLM.Temperature != 0.2 {
		t.Errorf("llm = %+v", cfg.LLM)
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "ghp_from_env")
	t.Setenv("CODESPECTRE_OUTPUT_DIR", "/tmp/reports")
	t.Setenv("CODESPECTRE_LLM_MODEL", "mistral")

	cfg, err := LoadFromFile(writeConfig(t, "log_level: debug\n"))
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.GitHubToken != "ghp_from_env" {
		t.Errorf("GitHubToken = %q", cfg.GitHubToken)
	}
	if cfg.OutputDir != "/tmp/reports" {
		t.Errorf("OutputDir = %q", cfg.OutputDir)
	}
	if cfg.LLM.Model != "mistral" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown tool", func(c *Config) { c.Tools["rb"] = []string{"rubocop"} }, "unknown tool"},
		{"unknown full tool", func(c *Config) { c.FullTools["py"] = []string{"mypy"} }, "unknown tool"},
		{"empty table", func(c *Config) { c.Tools = map[string][]string{"py": {}} }, "no extensions"},
		{"zero timeout", func(c *Config) { c.ToolTimeout = 0 }, "tool_timeout"},
		{"override unknown tool", func(c *Config) { c.ToolOverrides["semgrep"] = ToolOverride{} }, "tool_overrides"},
		{"bad format", func(c *Config) { c.Formats = []string{"html"} }, "invalid format"},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }, "output_dir"},
		{"empty storage dir", func(c *Config) { c.StorageDir = "" }, "storage_dir"},
		{"bad group size", func(c *Config) { c.MaxFindingsPerGroup = 0 }, "max_findings_per_group"},
		{"bad temperature", func(c *Config) { c.LLM.Endpoint = "http://x"; c.LLM.Temperature = 3 }, "temperature"},
		{"temperature ignored without endpoint", func(c *Config) { c.LLM.Temperature = 3 }, ""},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestTable(t *testing.T) {
	cfg := DefaultConfig()

	base := cfg.Table(false)
	if !reflect.DeepEqual(base["py"], []string{"bandit", "pylint"}) {
		t.Errorf("base py = %v", base["py"])
	}

	full := cfg.Table(true)
	if !reflect.DeepEqual(full["py"], []string{"bandit", "pylint", "flake8"}) {
		t.Errorf("full py = %v", full["py"])
	}
	if len(cfg.Tools["py"]) != 2 {
		t.Errorf("Table mutated config: %v", cfg.Tools["py"])
	}
}

func TestGetStoragePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDir = "~/.codespectre"

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := cfg.GetStoragePath()
	if err != nil {
		t.Fatalf("GetStoragePath: %v", err)
	}
	if got != filepath.Join(home, ".codespectre") {
		t.Errorf("GetStoragePath = %s", got)
	}

	cfg.StorageDir = "x"
	got, err = cfg.GetStoragePath()
	if err != nil || !filepath.IsAbs(got) {
		t.Errorf("relative path not made absolute: %s (%v)", got, err)
	}
}
