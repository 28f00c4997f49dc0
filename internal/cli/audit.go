package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/codespectre/internal/repository"
)

var (
	auditOpts auditFlags
	scanOpts  auditFlags
)

var auditCmd = &cobra.Command{
	Use:   "audit <repo-url>",
	Short: "Clone a repository and audit it",
	Long: `Audit performs a full audit cycle on a remote repository:

  1. Clone      shallow clone into a temporary directory
  2. Analyze    run the configured tools on every matching file
  3. Summarize  ask the configured LLM endpoint for a summary
  4. Report     write markdown (and PDF, JSON, SARIF) under output_dir
  5. Store      save the run for history and trends

The clone is removed when the audit ends, whatever the outcome.

Exit codes:
  0  Audit finished and every gate passed
  1  Policy violated or --fail-on threshold reached
  2  Invalid input (URL, flags, config or policy file)
  3  Runtime failure (clone, report write)

Example:
  codespectre audit https://github.com/org/repo.git
  codespectre audit git@github.com:org/repo.git --full --fail-on high
  codespectre audit https://github.com/org/repo --no-llm --format markdown,sarif`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]
		if !repository.IsRemote(target) {
			return &ValidationError{Message: fmt.Sprintf("%q is not a repository URL; use 'codespectre scan' for local directories", target)}
		}
		if err := repository.ValidateURL(target); err != nil {
			return &ValidationError{Message: err.Error()}
		}
		return runAudit(cmd, target, &auditOpts)
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Audit a local directory in place",
	Long: `Scan runs the audit pipeline on a local directory (default: the current
directory). The directory is never modified or deleted.

Example:
  codespectre scan
  codespectre scan ./service --fail-on critical --no-pdf`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := "."
		if len(args) == 1 {
			target = args[0]
		}
		info, err := os.Stat(target)
		if err != nil {
			return &ValidationError{Message: fmt.Sprintf("cannot scan %s: %v", target, err)}
		}
		if !info.IsDir() {
			return &ValidationError{Message: fmt.Sprintf("cannot scan %s: not a directory", target)}
		}
		return runAudit(cmd, target, &scanOpts)
	},
}

func init() {
	auditOpts.register(auditCmd.Flags(), true)
	scanOpts.register(scanCmd.Flags(), false)
}

func runAudit(cmd *cobra.Command, target string, f *auditFlags) error {
	formats, err := f.reportFormats(cfg)
	if err != nil {
		return err
	}

	sum, err := newSummarizer(cfg, !f.noLLM, logger)
	if err != nil {
		return err
	}
	defer sum.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policyFile := f.policy
	if policyFile == "" {
		policyFile = cfg.PolicyFile
	}

	_, err = RunPipeline(ctx, cfg, PipelineConfig{
		Target:     target,
		Branch:     f.branch,
		Full:       f.full,
		PDF:        cfg.PDF && !f.noPDF,
		Store:      cfg.Store && !f.noStore,
		Formats:    formats,
		FailOn:     f.failOn.severity,
		PolicyFile: policyFile,
		Summarizer: sum,
		Out:        cmd.OutOrStdout(),
		Exec:       execFn,
		LookPath:   lookPath,
	}, logger)
	return err
}
