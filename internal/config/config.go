package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/ppiankov/codespectre/internal/adapters"
	"github.com/ppiankov/codespectre/internal/discovery"
	"github.com/ppiankov/codespectre/internal/logging"
	"github.com/ppiankov/codespectre/internal/runner"
)

// Report formats written next to the markdown report.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatSARIF    = "sarif"
)

// Config holds all configuration for codespectre.
type Config struct {
	// Extension -> tools table, and the tools added by --full
	Tools     map[string][]string `mapstructure:"tools"`
	FullTools map[string][]string `mapstructure:"full_tools"`

	// Per-tool execution timeout, and per-tool invocation overrides
	ToolTimeout   time.Duration           `mapstructure:"tool_timeout"`
	ToolOverrides map[string]ToolOverride `mapstructure:"tool_overrides"`

	// Directory names never descended into
	SkipDirs []string `mapstructure:"skip_dirs"`

	// Report output
	OutputDir           string   `mapstructure:"output_dir"`
	Formats             []string `mapstructure:"formats"`
	PDF                 bool     `mapstructure:"pdf"`
	PandocBinary        string   `mapstructure:"pandoc_binary"`
	MaxFindingsPerGroup int      `mapstructure:"max_findings_per_group"`

	// Run history
	StorageDir string `mapstructure:"storage_dir"`
	Store      bool   `mapstructure:"store"`

	// Policy file (empty = search for .codespectre-policy.yaml)
	PolicyFile string `mapstructure:"policy_file"`

	// Repository acquisition (token from config, CODESPECTRE_GITHUB_TOKEN or GITHUB_TOKEN)
	GitBinary   string `mapstructure:"git_binary"`
	GitHubToken string `mapstructure:"github_token"`

	// Language model summary
	LLM LLMConfig `mapstructure:"llm"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ToolOverride replaces parts of a tool's default invocation.
type ToolOverride struct {
	Binary  string        `mapstructure:"binary"`
	Args    []string      `mapstructure:"args"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LLMConfig configures the OpenAI-compatible chat completions endpoint.
type LLMConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	TopP        float64       `mapstructure:"top_p"`
	PromptDir   string        `mapstructure:"prompt_dir"`
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Tools:               discovery.DefaultTable(),
		FullTools:           discovery.DefaultFullTable(),
		ToolTimeout:         runner.DefaultTimeout,
		ToolOverrides:       map[string]ToolOverride{},
		SkipDirs:            append([]string(nil), discovery.DefaultSkipDirs...),
		OutputDir:           "outputs/reports",
		Formats:             []string{FormatMarkdown},
		PDF:                 true,
		PandocBinary:        "pandoc",
		MaxFindingsPerGroup: 10,
		StorageDir:          ".codespectre",
		Store:               true,
		GitBinary:           "git",
		LLM: LLMConfig{
			Model:       "local-model",
			Timeout:     2 * time.Minute,
			MaxTokens:   2048,
			Temperature: 0.7,
			TopP:        0.9,
			PromptDir:   "prompts",
		},
		LogLevel:  "info",
		LogFormat: logging.FormatConsole,
	}
}

// Load loads configuration with the following precedence (lowest to highest):
// 1. Default values
// 2. Config file (./codespectre.yaml, ~/codespectre.yaml, $XDG_CONFIG_HOME/codespectre/)
// 3. Environment variables (CODESPECTRE_*, plus GITHUB_TOKEN and OPENAI_API_KEY)
// 4. CLI flags (handled by caller)
func Load() (*Config, error) {
	return LoadFromFile("")
}

// LoadFromFile loads configuration from a specific file path.
// If path is empty, it searches for config in standard locations.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("tools", defaults.Tools)
	v.SetDefault("full_tools", defaults.FullTools)
	v.SetDefault("tool_timeout", defaults.ToolTimeout)
	v.SetDefault("skip_dirs", defaults.SkipDirs)
	v.SetDefault("output_dir", defaults.OutputDir)
	v.SetDefault("formats", defaults.Formats)
	v.SetDefault("pdf", defaults.PDF)
	v.SetDefault("pandoc_binary", defaults.PandocBinary)
	v.SetDefault("max_findings_per_group", defaults.MaxFindingsPerGroup)
	v.SetDefault("storage_dir", defaults.StorageDir)
	v.SetDefault("store", defaults.Store)
	v.SetDefault("policy_file", "")
	v.SetDefault("git_binary", defaults.GitBinary)
	v.SetDefault("github_token", "")
	v.SetDefault("llm.endpoint", "")
	v.SetDefault("llm.model", defaults.LLM.Model)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.timeout", defaults.LLM.Timeout)
	v.SetDefault("llm.max_tokens", defaults.LLM.MaxTokens)
	v.SetDefault("llm.temperature", defaults.LLM.Temperature)
	v.SetDefault("llm.top_p", defaults.LLM.TopP)
	v.SetDefault("llm.prompt_dir", defaults.LLM.PromptDir)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_format", defaults.LogFormat)

	v.SetConfigName("codespectre")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			v.AddConfigPath(filepath.Join(xdgConfig, "codespectre"))
		}
	}

	v.SetEnvPrefix("CODESPECTRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("github_token", "CODESPECTRE_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("llm.api_key", "CODESPECTRE_LLM_API_KEY", "OPENAI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// normalize lowercases extensions and drops leading dots.
func (c *Config) normalize() {
	c.Tools = normalizeTable(c.Tools)
	c.FullTools = normalizeTable(c.FullTools)
	for i, f := range c.Formats {
		c.Formats[i] = strings.ToLower(strings.TrimSpace(f))
	}
}

func normalizeTable(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for ext, tools := range in {
		out[strings.ToLower(strings.TrimPrefix(ext, "."))] = tools
	}
	return out
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len(discovery.Table(c.Tools).Extensions()) == 0 {
		return fmt.Errorf("tools table has no extensions with tools")
	}
	for _, table := range []map[string][]string{c.Tools, c.FullTools} {
		for ext, tools := range table {
			for _, tool := range tools {
				if !adapters.IsSupported(tool) {
					return fmt.Errorf("unknown tool %q for extension %q (supported: %s)",
						tool, ext, strings.Join(adapters.Names(), ", "))
				}
			}
		}
	}

	if c.ToolTimeout <= 0 {
		return fmt.Errorf("tool_timeout must be positive")
	}
	for tool, o := range c.ToolOverrides {
		if !adapters.IsSupported(tool) {
			return fmt.Errorf("tool_overrides: unknown tool %q", tool)
		}
		if o.Timeout < 0 {
			return fmt.Errorf("tool_overrides.%s.timeout cannot be negative", tool)
		}
	}

	validFormats := map[string]bool{FormatMarkdown: true, FormatJSON: true, FormatSARIF: true}
	for _, f := range c.Formats {
		if !validFormats[f] {
			return fmt.Errorf("invalid format: %s (must be markdown, json, or sarif)", f)
		}
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}
	if c.StorageDir == "" {
		return fmt.Errorf("storage_dir cannot be empty")
	}
	if c.MaxFindingsPerGroup <= 0 {
		return fmt.Errorf("max_findings_per_group must be positive")
	}

	if c.LLM.Endpoint != "" {
		if c.LLM.Timeout <= 0 {
			return fmt.Errorf("llm.timeout must be positive")
		}
		if c.LLM.MaxTokens <= 0 {
			return fmt.Errorf("llm.max_tokens must be positive")
		}
		if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
			return fmt.Errorf("llm.temperature must be between 0 and 2")
		}
		if c.LLM.TopP < 0 || c.LLM.TopP > 1 {
			return fmt.Errorf("llm.top_p must be between 0 and 1")
		}
	}

	if !logging.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}
	if !logging.ValidFormat(c.LogFormat) {
		return fmt.Errorf("invalid log_format: %s (must be console or json)", c.LogFormat)
	}

	return nil
}

// Table returns the extension table, with the full-scan tools merged in
// when full is set.
func (c *Config) Table(full bool) discovery.Table {
	table := discovery.Table(c.Tools).Merge(nil)
	if full {
		table = table.Merge(discovery.Table(c.FullTools))
	}
	return table
}

// Overrides converts tool_overrides for adapters.NewSet.
func (c *Config) Overrides() map[string]adapters.Override {
	out := make(map[string]adapters.Override, len(c.ToolOverrides))
	for tool, o := range c.ToolOverrides {
		out[tool] = adapters.Override{Binary: o.Binary, Args: o.Args, Timeout: o.Timeout}
	}
	return out
}

// HasFormat reports whether format is among the configured report formats.
func (c *Config) HasFormat(format string) bool {
	for _, f := range c.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// GetStoragePath returns the absolute path to the storage directory.
func (c *Config) GetStoragePath() (string, error) {
	return expandPath(c.StorageDir)
}

// GetOutputPath returns the absolute path to the report directory.
func (c *Config) GetOutputPath() (string, error) {
	return expandPath(c.OutputDir)
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return absPath, nil
}

// GenerateSampleConfig generates a sample configuration file content.
func GenerateSampleConfig() string {
	return `# codespectre configuration
# Save this file as ./codespectre.yaml, ~/codespectre.yaml
# or $XDG_CONFIG_HOME/codespectre/codespectre.yaml

# Tools run per file extension
tools:
  py: [bandit, pylint]
  js: [eslint]
  yaml: [yamllint]
  yml: [yamllint]

# Extra tools added by --full
full_tools:
  py: [flake8]

# Per-tool execution timeout
tool_timeout: 60s

# Per-tool invocation overrides ({file} marks the analyzed file)
# tool_overrides:
#   pylint:
#     binary: python3
#     args: ["-m", "pylint", "--output-format=json", "{file}"]
#     timeout: 2m

# Directory names never scanned
skip_dirs: [.git, node_modules, .venv, venv, __pycache__, .tox, vendor]

# Where reports are written, and which formats besides markdown
output_dir: outputs/reports
formats: [markdown]
pdf: true
pandoc_binary: pandoc
max_findings_per_group: 10

# Run history for trends
storage_dir: .codespectre
store: true

# GitHub token for private repositories
# (also read from CODESPECTRE_GITHUB_TOKEN or GITHUB_TOKEN)
# github_token: ghp_your_token_here

# OpenAI-compatible chat completions endpoint for the executive summary.
# Leave endpoint empty to skip the summary.
llm:
  endpoint: ""
  model: local-model
  timeout: 2m
  max_tokens: 2048
  temperature: 0.7
  top_p: 0.9
  prompt_dir: prompts

log_level: info
log_format: console
`
}
