package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/chronolog/internal/compiler"
	"github.com/roach88/chronolog/internal/engine"
	"github.com/roach88/chronolog/internal/store"
)

// Error codes for CLI failures that do not come from the compiler or the
// engine, which carry their own codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E005" // Path or run not found
	ErrCodeLoadFailed  = "E004" // Program file could not be loaded
	ErrCodeWriteFailed = "E007" // File or database write error
	ErrCodeNotHolds    = "E008" // Fact does not hold at the requested timestep
)

// Sentinels wrapped into command errors so describeError can pick a code.
var (
	errLoadFailed  = errors.New("load failed")
	errWriteFailed = errors.New("write failed")
	errNotHolds    = errors.New("fact does not hold")
)

// describeError maps an error to its CLI error code and optional details.
func describeError(err error) (string, any) {
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		return string(re.Code), re.Details
	}
	var ve compiler.ValidationError
	if errors.As(err, &ve) {
		return ve.Code, nil
	}
	switch {
	case errors.Is(err, errNotHolds):
		return ErrCodeNotHolds, nil
	case errors.Is(err, errLoadFailed):
		return ErrCodeLoadFailed, nil
	case errors.Is(err, errWriteFailed):
		return ErrCodeWriteFailed, nil
	case errors.Is(err, os.ErrNotExist), errors.Is(err, sql.ErrNoRows):
		return ErrCodeNotFound, nil
	}
	return ErrCodeGeneric, nil
}

// ReasonFlags are the engine settings shared by every command that reasons.
type ReasonFlags struct {
	MaxT      int
	Workers   int
	Threshold int
	MaxPasses int
}

func (f *ReasonFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.MaxT, "max-t", 10, "last timestep to reason about")
	cmd.Flags().IntVar(&f.Workers, "workers", 0, "worker pool size (0 = GOMAXPROCS, 1 = sequential)")
	cmd.Flags().IntVar(&f.Threshold, "threshold", engine.DefaultParallelThreshold, "smallest number of triggered rules dispatched to the pool")
	cmd.Flags().IntVar(&f.MaxPasses, "max-passes", 0, "explicit pass ceiling (0 = derived)")
}

func (f *ReasonFlags) options() []engine.EngineOption {
	var opts []engine.EngineOption
	if f.Workers > 0 {
		opts = append(opts, engine.WithWorkers(f.Workers))
	}
	if f.Threshold > 0 {
		opts = append(opts, engine.WithParallelThreshold(f.Threshold))
	}
	if f.MaxPasses > 0 {
		opts = append(opts, engine.WithMaxPasses(f.MaxPasses))
	}
	return opts
}

// newLogger builds the stderr text logger. Verbose enables debug output.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadProgram reads and compiles a program file, collecting every entry
// error. A non-nil error means the file itself could not be read.
func loadProgram(path string) (*compiler.Compiled, []error, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil, WrapExitError(ExitCommandError, "program not found", err)
		}
		return nil, nil, WrapExitError(ExitCommandError, "failed to access program", err)
	}

	program, err := compiler.LoadProgram(path)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load program", fmt.Errorf("%w: %w", errLoadFailed, err))
	}

	compiled, errs := program.Compile(compiler.LoadModeCollectAll)
	return compiled, errs, nil
}

// reasonProgram compiles a program into a fresh engine and reasons it.
func reasonProgram(ctx context.Context, path string, flags *ReasonFlags, extra ...engine.EngineOption) (*engine.Interpretation, error) {
	compiled, errs, err := loadProgram(path)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, WrapExitError(ExitFailure, "invalid program", errors.Join(errs...))
	}

	e := engine.New(append(flags.options(), extra...)...)
	if err := compiled.Apply(e); err != nil {
		return nil, WrapExitError(ExitFailure, "invalid program", err)
	}

	in, err := e.Reason(ctx, flags.MaxT)
	if err != nil {
		if engine.IsConfigError(err) {
			return nil, WrapExitError(ExitFailure, "invalid reasoning request", err)
		}
		return nil, WrapExitError(ExitCommandError, "reasoning failed", err)
	}
	return in, nil
}

// SourceFlags select where query and explain read an interpretation from:
// a program reasoned on the spot, or a run saved in a snapshot database.
type SourceFlags struct {
	ReasonFlags
	Program  string
	Database string
	RunID    string
}

func (f *SourceFlags) register(cmd *cobra.Command) {
	f.ReasonFlags.register(cmd)
	cmd.Flags().StringVarP(&f.Program, "program", "p", "", "program file to reason (.yaml, .yml, .cue, .chl)")
	cmd.Flags().StringVar(&f.Database, "db", "", "snapshot database to read a saved run from")
	cmd.Flags().StringVar(&f.RunID, "run", "", "run ID in --db (default: latest run)")
	cmd.MarkFlagsMutuallyExclusive("program", "db")
	cmd.MarkFlagsOneRequired("program", "db")
}

// load returns the interpretation named by the flags.
func (f *SourceFlags) load(ctx context.Context, logger *slog.Logger) (*engine.Interpretation, error) {
	if f.Program != "" {
		return reasonProgram(ctx, f.Program, &f.ReasonFlags, engine.WithLogger(logger))
	}

	st, err := openExistingStore(f.Database)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	runID := f.RunID
	if runID == "" {
		latest, err := st.LatestRun(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("no runs in %s", f.Database), err)
		}
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read latest run", err)
		}
		runID = latest.ID
	}
	logger.Debug("loading snapshot", "db", f.Database, "run_id", runID)

	snap, err := st.LoadSnapshot(ctx, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("run %s not found", runID), err)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load snapshot", err)
	}
	in, err := engine.FromSnapshot(snap)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid snapshot", err)
	}
	return in, nil
}

// openExistingStore opens a snapshot database that must already exist.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute (tests calling RunE directly).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
