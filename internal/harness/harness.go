package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/chronolog/internal/compiler"
	"github.com/roach88/chronolog/internal/engine"
	"github.com/roach88/chronolog/internal/store"
	"github.com/roach88/chronolog/internal/testutil"
)

// Harness is the test execution engine.
// It reasons a scenario at each worker count with a fixed run ID and checks
// that every run, and the snapshot store round trip, agree.
type Harness struct {
	store    *store.Store
	compiled *compiler.Compiled
	runID    string
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load and compile the program
// 3. Reason once per worker count and compare digests
// 4. Save the first interpretation, load it back and compare digests
// 5. Evaluate assertions against the first interpretation
//
// A returned error means the scenario could not be executed; a failed
// assertion or a digest mismatch is reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	compiled, err := compileScenario(scenario)
	if err != nil {
		return nil, err
	}

	runID := scenario.RunID
	if runID == "" {
		runID = DefaultRunID
	}

	h := &Harness{
		store:    st,
		compiled: compiled,
		runID:    runID,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	workers := scenario.Workers
	if len(workers) == 0 {
		workers = []int{1}
	}

	result := NewResult()
	for _, w := range workers {
		interp, err := h.reason(ctx, scenario.MaxT, w)
		if err != nil {
			return nil, fmt.Errorf("workers=%d: %w", w, err)
		}
		digest, err := interp.Digest()
		if err != nil {
			return nil, fmt.Errorf("workers=%d: digest: %w", w, err)
		}
		result.Runs = append(result.Runs, WorkerRun{Workers: w, Digest: digest, Passes: interp.Passes()})

		if result.Interpretation == nil {
			result.Interpretation = interp
			result.Digest = digest
			continue
		}
		if digest != result.Digest {
			result.AddError("workers=%d: digest %s differs from workers=%d digest %s",
				w, digest, workers[0], result.Digest)
		}
	}

	if err := h.checkRoundTrip(ctx, result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result.Interpretation, scenario.Assertions) {
		result.AddError("%s", msg)
	}

	return result, nil
}

// compileScenario merges the program file and the inline entries.
func compileScenario(scenario *Scenario) (*compiler.Compiled, error) {
	program := &compiler.Program{}
	if scenario.Program != "" {
		p, err := compiler.LoadProgram(scenario.Program)
		if err != nil {
			return nil, fmt.Errorf("failed to load program: %w", err)
		}
		program = p
	}
	program.Rules = append(program.Rules, scenario.Rules...)
	program.Facts = append(program.Facts, scenario.Facts...)

	compiled, errs := program.Compile(compiler.LoadModeCollectAll)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to compile program: %w", errors.Join(errs...))
	}
	return compiled, nil
}

// reason runs a fresh engine at the given worker count. With more than one
// worker every timestep goes to the pool.
func (h *Harness) reason(ctx context.Context, maxT, workers int) (*engine.Interpretation, error) {
	opts := []engine.EngineOption{
		engine.WithWorkers(workers),
		engine.WithIDGenerator(testutil.NewFixedIDGenerator(h.runID)),
		engine.WithLogger(h.logger),
	}
	if workers > 1 {
		opts = append(opts, engine.WithParallelThreshold(1))
	}

	e := engine.New(opts...)
	if err := h.compiled.Apply(e); err != nil {
		return nil, err
	}
	return e.Reason(ctx, maxT)
}

// checkRoundTrip stores the reference interpretation and verifies the
// loaded copy has the same digest.
func (h *Harness) checkRoundTrip(ctx context.Context, result *Result) error {
	snap := result.Interpretation.Snapshot()
	if _, _, err := h.store.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	loaded, err := h.store.LoadSnapshot(ctx, snap.RunID)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	interp, err := engine.FromSnapshot(loaded)
	if err != nil {
		return fmt.Errorf("failed to rebuild snapshot: %w", err)
	}
	digest, err := interp.Digest()
	if err != nil {
		return fmt.Errorf("digest: %w", err)
	}
	if digest != result.Digest {
		result.AddError("store round trip: digest %s differs from %s", digest, result.Digest)
	}

	h.logger.Info("scenario reasoned",
		"run_id", h.runID,
		"runs", len(result.Runs),
		"digest", result.Digest,
	)
	return nil
}
