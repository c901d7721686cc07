package harness

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/chronolog/internal/ir"
)

// RenderSnapshot formats an interpretation snapshot as stable text for
// golden comparison. The run ID is left out so the output depends only on
// the program and the horizon.
//
//	scenario: supply_chain
//	max_t: 1
//	passes: 2
//	static:
//	  supplies(s0,s1) [base edge-0]
//	t=0:
//	  atRisk(s0) by direct from disrupted(s0)@0
//	  disrupted(s0) [base seed-0]
//	t=1:
//	  atRisk(s1) by upstream from supplies(s0,s1)@0, atRisk(s0)@0
func RenderSnapshot(name string, snap ir.Snapshot) []byte {
	baseIDs := make(map[string]string, len(snap.Base))
	for _, b := range snap.Base {
		baseIDs[b.Atom.Key()] = b.ID
	}
	derived := make(map[string]ir.DerivationRecord, len(snap.Derivations))
	for _, d := range snap.Derivations {
		derived[derivedKey(d.Fact, d.Time)] = d
	}

	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)
	fmt.Fprintf(&b, "max_t: %d\n", snap.MaxTimesteps)
	fmt.Fprintf(&b, "passes: %d\n", snap.Passes)

	b.WriteString("static:\n")
	for _, a := range snap.Static {
		writeBase(&b, a, baseIDs)
	}

	for t, frame := range snap.Frames {
		fmt.Fprintf(&b, "t=%d:\n", t)
		for _, a := range frame {
			rec, ok := derived[derivedKey(a, t)]
			if !ok {
				writeBase(&b, a, baseIDs)
				continue
			}
			fmt.Fprintf(&b, "  %s by %s", a.Key(), rec.Rule)
			for i, p := range rec.Premises {
				if i == 0 {
					b.WriteString(" from ")
				} else {
					b.WriteString(", ")
				}
				b.WriteString(p.Atom.Key())
				b.WriteByte('@')
				b.WriteString(strconv.Itoa(p.Time))
			}
			b.WriteByte('\n')
		}
	}
	return []byte(b.String())
}

func writeBase(b *strings.Builder, a ir.Atom, baseIDs map[string]string) {
	fmt.Fprintf(b, "  %s [base", a.Key())
	if id := baseIDs[a.Key()]; id != "" {
		b.WriteByte(' ')
		b.WriteString(id)
	}
	b.WriteString("]\n")
}

func derivedKey(a ir.Atom, t int) string {
	return a.Key() + "@" + strconv.Itoa(t)
}

// RunWithGolden executes a scenario and compares the rendered
// interpretation against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the output doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's interpretation against a golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, RenderSnapshot(scenarioName, result.Interpretation.Snapshot()))
}
