package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/chronolog/internal/compiler"
	"github.com/roach88/chronolog/internal/engine"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	SourceFlags
	At     int
	Leaves bool
}

// ExplainResult is the JSON payload of the explain command.
type ExplainResult struct {
	RunID  string                   `json:"run_id"`
	Tree   *engine.DerivationTree   `json:"tree,omitempty"`
	Leaves []*engine.DerivationTree `json:"leaves,omitempty"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <fact>",
		Short: "Show why a fact holds at a timestep",
		Long: `Print the derivation tree of a ground fact at a timestep.

Every inner node names the rule that first derived it; leaves are the base
facts the derivation rests on. A fact that does not hold at the timestep
exits with status 1.

Examples:
  chronolog explain "atRisk(s2)" --at 2 -p supply.chl --max-t 5
  chronolog explain "atRisk(s2)" --at 2 --db ./runs.db --leaves`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}

	opts.SourceFlags.register(cmd)
	cmd.Flags().IntVar(&opts.At, "at", 0, "timestep to explain the fact at")
	cmd.Flags().BoolVar(&opts.Leaves, "leaves", false, "list only the base facts the derivation rests on")
	_ = cmd.MarkFlagRequired("at")

	return cmd
}

func runExplain(opts *ExplainOptions, factText string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	fact, err := compiler.ParseAtom(factText)
	if err != nil {
		return formatter.Fail(WrapExitError(ExitFailure, "invalid fact", err))
	}
	if !fact.IsGround() {
		return formatter.Fail(NewExitError(ExitFailure, fmt.Sprintf("fact %s is not ground", fact.Key())))
	}

	in, err := opts.load(commandContext(cmd), newLogger(opts.RootOptions, cmd.ErrOrStderr()))
	if err != nil {
		return formatter.Fail(err)
	}
	if opts.At < 0 || opts.At > in.MaxTimesteps() {
		return formatter.Fail(NewExitError(ExitCommandError, fmt.Sprintf("--at %d outside 0..%d", opts.At, in.MaxTimesteps())))
	}

	tree := in.Explain(fact, opts.At)
	if tree == nil {
		return formatter.Fail(WrapExitError(ExitFailure,
			fmt.Sprintf("%s does not hold at t=%d", fact.Key(), opts.At), errNotHolds))
	}

	var leaves []*engine.DerivationTree
	if opts.Leaves {
		leaves = tree.Leaves()
	}

	if opts.Format == "json" {
		result := ExplainResult{RunID: in.RunID(), Tree: tree, Leaves: leaves}
		if opts.Leaves {
			result.Tree = nil
		}
		return formatter.SuccessRun(in.RunID(), result)
	}

	w := cmd.OutOrStdout()
	if !opts.Leaves {
		fmt.Fprint(w, tree.Render())
		return nil
	}
	for _, leaf := range leaves {
		fmt.Fprint(w, leaf.Render())
	}
	return nil
}
