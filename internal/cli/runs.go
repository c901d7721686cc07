package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/chronolog/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
	Delete   string
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List or delete runs saved in a snapshot database",
		Long: `List the runs saved in a snapshot database, oldest first.

Examples:
  chronolog runs --db ./runs.db
  chronolog runs --db ./runs.db --format json
  chronolog runs --db ./runs.db --delete 0190a1b2-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "snapshot database")
	cmd.Flags().StringVar(&opts.Delete, "delete", "", "delete the run with this ID")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := commandContext(cmd)

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return formatter.Fail(err)
	}
	defer st.Close()

	if opts.Delete != "" {
		err := st.DeleteRun(ctx, opts.Delete)
		if errors.Is(err, sql.ErrNoRows) {
			return formatter.Fail(WrapExitError(ExitCommandError, fmt.Sprintf("run %s not found", opts.Delete), err))
		}
		if err != nil {
			return formatter.Fail(WrapExitError(ExitCommandError, "failed to delete run", fmt.Errorf("%w: %w", errWriteFailed, err)))
		}
		if opts.Format == "json" {
			return formatter.SuccessRun(opts.Delete, map[string]string{"deleted": opts.Delete})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", opts.Delete)
		return nil
	}

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return formatter.Fail(WrapExitError(ExitCommandError, "failed to list runs", err))
	}
	formatter.VerboseLog("Found %d run(s) in %s", len(runs), opts.Database)

	if opts.Format == "json" {
		if runs == nil {
			runs = []store.RunInfo{}
		}
		return formatter.Success(runs)
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tRUN\tMAX_T\tPASSES\tFACTS\tDERIVATIONS\tDIGEST")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.Seq, r.ID, r.MaxTimesteps, r.Passes, r.FactCount, r.DerivationCount, shortDigest(r.Digest))
	}
	return tw.Flush()
}

// shortDigest trims a sha256 hex digest for table output.
func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
