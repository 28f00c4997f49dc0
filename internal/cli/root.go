package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/codespectre/internal/config"
	"github.com/ppiankov/codespectre/internal/logging"
)

const (
	ExitOK           = 0 // Success
	ExitPolicyFail   = 1 // Policy violated or --fail-on threshold reached
	ExitInvalidInput = 2 // Bad arguments, config or policy file
	ExitRuntimeError = 3 // Clone, I/O or other runtime failure
)

var (
	// Global config instance
	cfg *config.Config

	// Logger built from config; replaced in PersistentPreRunE
	logger = zap.NewNop()

	// buildVersion is set by SetVersion from main
	buildVersion = "dev"

	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "codespectre",
	Short: "codespectre - static analysis audit for source repositories",
	Long: `codespectre clones a repository, runs per-language static analysis tools
on every file, normalizes their findings to one severity scale and writes a
markdown (and optionally PDF, JSON and SARIF) audit report with an LLM summary.

Quick start:
  codespectre doctor
  codespectre audit https://github.com/org/repo.git
  codespectre scan ./my-project --fail-on high

Other commands:
  codespectre tools
  codespectre history repo
  codespectre browse repo
  codespectre export repo --format sarif`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return &ValidationError{Message: fmt.Sprintf("failed to load config: %v", err)}
		}

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.LogFormat)
		if err != nil {
			return &ValidationError{Message: err.Error()}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command and exits with the code HandleError picks.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	if code := HandleError(err); code != ExitOK {
		os.Exit(code)
	}
}

// SetVersion records the build version shown by the version command and
// written into SARIF exports.
func SetVersion(v string) {
	buildVersion = v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default: ./codespectre.yaml, ~/codespectre.yaml or $XDG_CONFIG_HOME/codespectre/codespectre.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"debug logging")

	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "codespectre %s\n", buildVersion)
	},
}

// configCmd prints a commented sample configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print a sample configuration file",
	Long: `Print a sample codespectre.yaml with every key and its default.

Example:
  codespectre config > codespectre.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), config.GenerateSampleConfig())
	},
}

// HandleError determines the appropriate exit code for an error
func HandleError(err error) int {
	if err == nil {
		return ExitOK
	}

	var validationErr *ValidationError
	var thresholdErr *ThresholdExceededError
	switch {
	case errors.As(err, &validationErr):
		return ExitInvalidInput
	case errors.As(err, &thresholdErr):
		return ExitPolicyFail
	default:
		return ExitRuntimeError
	}
}

// ValidationError represents bad user input
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ThresholdExceededError reports a failed quality gate: a policy
// violation, or findings at or above the --fail-on severity.
type ThresholdExceededError struct {
	IssueCount int
	// Severity is set for --fail-on; empty means policy violations
	Severity string
}

func (e *ThresholdExceededError) Error() string {
	if e.Severity != "" {
		return fmt.Sprintf("%d finding(s) at or above %s", e.IssueCount, e.Severity)
	}
	return fmt.Sprintf("%d policy violation(s)", e.IssueCount)
}
