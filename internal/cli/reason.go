package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/chronolog/internal/engine"
	"github.com/roach88/chronolog/internal/ir"
	"github.com/roach88/chronolog/internal/metrics"
	"github.com/roach88/chronolog/internal/store"
)

// ReasonOptions holds flags for the reason command.
type ReasonOptions struct {
	*RootOptions
	ReasonFlags
	Database string
	At       int
	Metrics  bool

	// IDGenerator allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator engine.IDGenerator
}

// ReasonResult is the JSON payload of the reason command.
type ReasonResult struct {
	RunID    string      `json:"run_id"`
	Digest   string      `json:"digest"`
	Saved    bool        `json:"saved"`
	Snapshot ir.Snapshot `json:"snapshot"`
	Metrics  string      `json:"metrics,omitempty"`
}

// NewReasonCommand creates the reason command.
func NewReasonCommand(rootOpts *RootOptions) *cobra.Command {
	return newReasonCommand(&ReasonOptions{RootOptions: rootOpts})
}

func newReasonCommand(opts *ReasonOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reason <program>",
		Short: "Reason a program over a time horizon",
		Long: `Reason a program (rules plus base facts) over timesteps 0..max-t and
print the facts true at each timestep.

With --db the interpretation is saved as a snapshot; saving the same run
twice is a no-op. With --metrics the engine's Prometheus collectors are
printed after the run.

Examples:
  chronolog reason supply.chl --max-t 5
  chronolog reason supply.yaml --max-t 20 --workers 8 --db ./runs.db
  chronolog reason supply.cue --max-t 3 --at 2 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReason(opts, args[0], cmd)
		},
	}

	opts.ReasonFlags.register(cmd)
	cmd.Flags().StringVar(&opts.Database, "db", "", "snapshot database to save the run to")
	cmd.Flags().IntVar(&opts.At, "at", -1, "print only this timestep (-1 = all)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print engine metrics after the run")

	return cmd
}

func runReason(opts *ReasonOptions, programPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := commandContext(cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	if opts.At < -1 || opts.At > opts.MaxT {
		return formatter.Fail(NewExitError(ExitCommandError, fmt.Sprintf("--at %d outside 0..%d", opts.At, opts.MaxT)))
	}

	extra := []engine.EngineOption{engine.WithLogger(logger)}
	if opts.IDGenerator != nil {
		extra = append(extra, engine.WithIDGenerator(opts.IDGenerator))
	}

	var reg *prometheus.Registry
	if opts.Metrics {
		reg = prometheus.NewRegistry()
		m, err := metrics.New(reg)
		if err != nil {
			return formatter.Fail(WrapExitError(ExitCommandError, "failed to register metrics", err))
		}
		extra = append(extra, engine.WithMetrics(m))
	}

	formatter.VerboseLog("Reasoning %s up to t=%d", programPath, opts.MaxT)
	in, err := reasonProgram(ctx, programPath, &opts.ReasonFlags, extra...)
	if err != nil {
		return formatter.Fail(err)
	}

	snap := in.Snapshot()
	digest, err := in.Digest()
	if err != nil {
		return formatter.Fail(WrapExitError(ExitCommandError, "failed to compute digest", err))
	}

	saved := false
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(WrapExitError(ExitCommandError, "failed to open database", err))
		}
		_, inserted, err := st.SaveSnapshot(ctx, snap)
		closeErr := st.Close()
		if err != nil {
			return formatter.Fail(WrapExitError(ExitCommandError, "failed to save snapshot", fmt.Errorf("%w: %w", errWriteFailed, err)))
		}
		if closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
		saved = inserted
		formatter.VerboseLog("Snapshot %s saved to %s (new: %v)", snap.RunID, opts.Database, inserted)
	}

	var metricsText string
	if reg != nil {
		metricsText, err = renderMetrics(reg)
		if err != nil {
			return formatter.Fail(WrapExitError(ExitCommandError, "failed to gather metrics", err))
		}
	}

	if opts.At >= 0 {
		snap = snapshotAt(snap, opts.At)
	}

	if opts.Format == "json" {
		return formatter.SuccessRun(snap.RunID, ReasonResult{
			RunID:    snap.RunID,
			Digest:   digest,
			Saved:    saved,
			Snapshot: snap,
			Metrics:  metricsText,
		})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s: %d passes, digest %s\n", snap.RunID, snap.Passes, digest)
	writeFrames(w, in, opts.At)
	if saved {
		fmt.Fprintf(w, "Saved to %s\n", opts.Database)
	}
	if metricsText != "" {
		fmt.Fprintln(w)
		fmt.Fprint(w, metricsText)
	}
	return nil
}

// snapshotAt keeps only frame t and the derivations at t.
func snapshotAt(snap ir.Snapshot, t int) ir.Snapshot {
	out := snap
	frames := make([][]ir.Atom, len(snap.Frames))
	for i := range frames {
		frames[i] = []ir.Atom{}
	}
	frames[t] = snap.Frames[t]
	out.Frames = frames

	out.Derivations = []ir.DerivationRecord{}
	for _, d := range snap.Derivations {
		if d.Time == t {
			out.Derivations = append(out.Derivations, d)
		}
	}
	return out
}

// writeFrames prints the facts true at each timestep, or at one.
func writeFrames(w io.Writer, in *engine.Interpretation, at int) {
	from, to := 0, in.MaxTimesteps()
	if at >= 0 {
		from, to = at, at
	}
	for t := from; t <= to; t++ {
		facts := in.FactsAt(t)
		keys := make([]string, len(facts))
		for i, a := range facts {
			keys[i] = a.Key()
		}
		fmt.Fprintf(w, "t=%d: %s\n", t, strings.Join(keys, " "))
	}
}

// renderMetrics formats every gathered family in the Prometheus text
// exposition format.
func renderMetrics(reg *prometheus.Registry) (string, error) {
	families, err := reg.Gather()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&b, mf); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}
