package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/chronolog/internal/compiler"
	"github.com/roach88/chronolog/internal/ir"
	"github.com/roach88/chronolog/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine creates an engine with a fixed run ID and a silent logger.
func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	base := []EngineOption{
		WithIDGenerator(testutil.NewFixedIDGenerator("test-run")),
		WithLogger(discardLogger()),
	}
	return New(append(base, opts...)...)
}

func mustRule(t *testing.T, e *Engine, text, name string) {
	t.Helper()
	require.NoError(t, e.AddRule(text, name))
}

func mustFact(t *testing.T, e *Engine, text, id string) {
	t.Helper()
	require.NoError(t, e.AddFactText(text, id))
}

func mustReason(t *testing.T, e *Engine, maxTimesteps int) *Interpretation {
	t.Helper()
	interp, err := e.Reason(context.Background(), maxTimesteps)
	require.NoError(t, err)
	return interp
}

func atom(t *testing.T, text string) ir.Atom {
	t.Helper()
	a, err := compiler.ParseAtom(text)
	require.NoError(t, err)
	return a
}

// holdsAt lists the timesteps at which a fact holds.
func holdsAt(in *Interpretation, a ir.Atom) []int {
	var out []int
	for t := 0; t <= in.MaxTimesteps(); t++ {
		if in.Holds(a, t) {
			out = append(out, t)
		}
	}
	return out
}
