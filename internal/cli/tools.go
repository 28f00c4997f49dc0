package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/codespectre/internal/adapters"
	"github.com/ppiankov/codespectre/internal/discovery"
)

var (
	toolsFormat string
	toolsFull   bool
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Show the extension table and which analysis tools are installed",
	Long: `Tools prints the extension -> tools table from config and probes PATH for
each tool binary and its version. No files are analyzed.

Use --full to include the full_tools set added by 'audit --full'.`,
	RunE: runTools,
}

func init() {
	toolsCmd.Flags().StringVar(&toolsFormat, "format", "text",
		"output format: text or json")
	toolsCmd.Flags().BoolVar(&toolsFull, "full", false,
		"include the full_tools set")
}

type toolsResult struct {
	Table map[string][]string `json:"table"`
	Plan  *discovery.ToolPlan `json:"plan"`
}

func runTools(cmd *cobra.Command, args []string) error {
	set, err := adapters.NewSet(cfg.Overrides(), logger)
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}

	table := cfg.Table(toolsFull)
	plan := discovery.NewToolDiscoverer(lookPath, execFn, logger).Discover(cmd.Context(), set, table)

	switch toolsFormat {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(toolsResult{Table: table, Plan: plan})
	case "text":
		printToolsText(cmd.OutOrStdout(), table, plan)
		return nil
	default:
		return &ValidationError{Message: fmt.Sprintf("invalid format: %s (must be text or json)", toolsFormat)}
	}
}

func printToolsText(w io.Writer, table discovery.Table, plan *discovery.ToolPlan) {
	fmt.Fprintln(w, "Extension table:")
	for _, ext := range table.Extensions() {
		fmt.Fprintf(w, "  .%-8s %s\n", ext, strings.Join(table[ext], ", "))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Found %d of %d tool(s), %d usable\n\n", plan.TotalFound, len(plan.Tools), plan.TotalUsable)

	for _, td := range plan.Tools {
		status := "✗ not found"
		if td.Available && td.VersionOK {
			status = "✓ ready"
		} else if td.Available {
			status = fmt.Sprintf("△ below minimum %s", td.MinVersion)
		}
		if len(td.Extensions) == 0 {
			status += " (unused)"
		}

		fmt.Fprintf(w, "  %-10s  %s\n", td.Tool, status)

		if td.Available {
			fmt.Fprintf(w, "              path: %s\n", td.BinaryPath)
			if td.Version != "" {
				fmt.Fprintf(w, "              version: %s\n", td.Version)
			}
		} else if td.InstallHint != "" {
			fmt.Fprintf(w, "              install: %s\n", td.InstallHint)
		}
	}

	if plan.TotalUsable == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "No usable tools found. Install the tools above, then run 'codespectre doctor'.")
	}
}
