package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/chronolog/internal/engine"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	SourceFlags
	At int
}

// QueryResult is the JSON payload of the query command.
type QueryResult struct {
	RunID   string         `json:"run_id"`
	Pattern string         `json:"pattern"`
	Matches []engine.Match `json:"matches"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <pattern>",
		Short: "Match an atom pattern against an interpretation",
		Long: `Match an atom pattern against the facts of an interpretation.

Capitalized arguments are variables; every match prints its timestep, the
matched fact and the variable bindings. The interpretation comes from a
program reasoned on the spot (--program) or a run saved with reason --db.

Examples:
  chronolog query "atRisk(X)" -p supply.chl --max-t 5
  chronolog query "supplies(s0, Y)" --db ./runs.db --at 0
  chronolog query "atRisk(X)" --db ./runs.db --run 0190a1b2-... --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	opts.SourceFlags.register(cmd)
	cmd.Flags().IntVar(&opts.At, "at", -1, "match only at this timestep (-1 = all)")

	return cmd
}

func runQuery(opts *QueryOptions, pattern string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	q, err := engine.ParseQuery(pattern)
	if err != nil {
		return formatter.Fail(WrapExitError(ExitFailure, "invalid pattern", err))
	}

	in, err := opts.load(commandContext(cmd), newLogger(opts.RootOptions, cmd.ErrOrStderr()))
	if err != nil {
		return formatter.Fail(err)
	}

	if opts.At >= 0 {
		q = q.AtTime(opts.At)
	}
	matches, err := q.Execute(in)
	if err != nil {
		return formatter.Fail(WrapExitError(ExitCommandError, "query failed", err))
	}
	formatter.VerboseLog("Query %s matched %d fact(s) in run %s", pattern, len(matches), in.RunID())

	if opts.Format == "json" {
		if matches == nil {
			matches = []engine.Match{}
		}
		return formatter.SuccessRun(in.RunID(), QueryResult{
			RunID:   in.RunID(),
			Pattern: pattern,
			Matches: matches,
		})
	}

	w := cmd.OutOrStdout()
	if len(matches) == 0 {
		fmt.Fprintln(w, "No matches.")
		return nil
	}
	for _, m := range matches {
		fmt.Fprintf(w, "t=%d %s %s\n", m.Time, m.Fact.Key(), m.Bindings)
	}
	return nil
}
