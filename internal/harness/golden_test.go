package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronolog/internal/compiler"
	"github.com/roach88/chronolog/internal/ir"
)

func TestRunWithGolden_TestdataScenarios(t *testing.T) {
	// Golden files were generated with:
	//   go test ./internal/harness -run TestRunWithGolden -update
	for _, name := range []string{"supply_chain", "maintenance"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestAssertGolden_IgnoresRunID(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/supply_chain.yaml")
	require.NoError(t, err)
	scenario.RunID = "another-run"

	result, err := Run(scenario)
	require.NoError(t, err)

	AssertGolden(t, "supply_chain", result)
}

func TestRunWithGolden_CompileError(t *testing.T) {
	scenario := &Scenario{
		Name:        "broken",
		Description: "Rule without body",
		Rules:       []compiler.RuleEntry{{Name: "empty", Rule: "p(a) <-"}},
		Assertions:  []Assertion{{Type: AssertHolds, Fact: "p(a)"}},
	}

	result, err := RunWithGolden(t, scenario)
	require.Error(t, err)
	assert.Nil(t, result)
}

func TestRenderSnapshot(t *testing.T) {
	snap := ir.Snapshot{
		RunID:        "ignored",
		MaxTimesteps: 1,
		Passes:       2,
		Static:       []ir.Atom{ir.NewAtom("edge", "a", "b")},
		Frames: [][]ir.Atom{
			{ir.NewAtom("start", "a")},
			{ir.NewAtom("at", "b"), ir.NewAtom("ping")},
		},
		Base: []ir.BaseFact{
			{Atom: ir.NewAtom("edge", "a", "b"), ID: "e1"},
			{Atom: ir.NewAtom("ping")},
			{Atom: ir.NewAtom("start", "a"), ID: "s1"},
		},
		Derivations: []ir.DerivationRecord{
			{
				Fact: ir.NewAtom("at", "b"),
				Time: 1,
				Rule: "move",
				Premises: []ir.Premise{
					{Atom: ir.NewAtom("start", "a"), Time: 0},
					{Atom: ir.NewAtom("edge", "a", "b"), Time: 0},
				},
			},
		},
	}

	want := "scenario: render\n" +
		"max_t: 1\n" +
		"passes: 2\n" +
		"static:\n" +
		"  edge(a,b) [base e1]\n" +
		"t=0:\n" +
		"  start(a) [base s1]\n" +
		"t=1:\n" +
		"  at(b) by move from start(a)@0, edge(a,b)@0\n" +
		"  ping() [base]\n"
	assert.Equal(t, want, string(RenderSnapshot("render", snap)))
}

func TestRenderSnapshot_Empty(t *testing.T) {
	snap := ir.Snapshot{MaxTimesteps: 0, Passes: 1, Frames: [][]ir.Atom{{}}}

	want := "scenario: empty\nmax_t: 0\npasses: 1\nstatic:\nt=0:\n"
	assert.Equal(t, want, string(RenderSnapshot("empty", snap)))
}
