package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ppiankov/codespectre/internal/aggregator"
	"github.com/ppiankov/codespectre/internal/reporter"
	"github.com/ppiankov/codespectre/internal/storage"
	"github.com/ppiankov/codespectre/internal/tui"
)

// browseTrendRuns is how many stored runs feed the header sparkline.
const browseTrendRuns = 10

var browseText bool

var browseCmd = &cobra.Command{
	Use:   "browse [repo]",
	Short: "Browse the findings of the latest stored run interactively",
	Long: `Browse opens a terminal UI over the findings of the latest stored run of a
repository: filter by tool or severity, search, sort and copy findings.

Without a terminal (or with --text) the run summary is printed instead.
The repository may be omitted when only one is stored.

Keys:
  /  search      t  filter by tool   v  cycle severity
  s  cycle sort  c  copy finding     esc clear filters   q quit`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().BoolVar(&browseText, "text", false,
		"print the text summary instead of starting the UI")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	store, err := openStorage(cfg)
	if err != nil {
		return err
	}

	repo, err := resolveRepository(store, args)
	if err != nil {
		return err
	}
	if repo == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No stored runs. Run 'codespectre audit' first.")
		return nil
	}

	runs, err := store.GetLastNRuns(repo, browseTrendRuns)
	if errors.Is(err, storage.ErrNoRuns) || (err == nil && len(runs) == 0) {
		fmt.Fprintf(cmd.OutOrStdout(), "No stored runs for %s. Run 'codespectre audit' first.\n", repo)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load runs: %w", err)
	}

	latest := runs[len(runs)-1]

	if browseText || !term.IsTerminal(int(os.Stdout.Fd())) {
		return reporter.NewTextReporter(cmd.OutOrStdout()).Generate(latest)
	}

	return tui.Run(latest, aggregator.NewTrendAnalyzer().AnalyzeLastNRuns(runs))
}

// resolveRepository returns the named repository, or the only stored one.
// An empty result means nothing is stored.
func resolveRepository(store storage.Storage, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	repos, err := store.ListRepositories()
	if err != nil {
		return "", fmt.Errorf("list repositories: %w", err)
	}
	switch len(repos) {
	case 0:
		return "", nil
	case 1:
		return repos[0], nil
	default:
		return "", &ValidationError{Message: fmt.Sprintf("several repositories are stored (%s); name one", strings.Join(repos, ", "))}
	}
}
