package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/chronolog/internal/compiler"
	"github.com/roach88/chronolog/internal/engine"
	"github.com/roach88/chronolog/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Context  []string // Facts or derivation lines for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Context) > 0 {
		fmt.Fprintf(&buf, "\nContext:\n")
		for _, line := range e.Context {
			fmt.Fprintf(&buf, "  %s\n", line)
		}
	}

	return buf.String()
}

// timesteps returns the requested timesteps, or all of them when none are
// given. Timesteps outside the horizon are an error.
func timesteps(in *engine.Interpretation, at []int) ([]int, error) {
	if len(at) == 0 {
		all := make([]int, in.MaxTimesteps()+1)
		for t := range all {
			all[t] = t
		}
		return all, nil
	}
	for _, t := range at {
		if t < 0 || t > in.MaxTimesteps() {
			return nil, fmt.Errorf("timestep %d outside 0..%d", t, in.MaxTimesteps())
		}
	}
	return at, nil
}

// factContext lists the facts of one predicate at t.
func factContext(in *engine.Interpretation, predicate string, t int) []string {
	var out []string
	for _, a := range in.FactsAt(t) {
		if a.Predicate == predicate {
			out = append(out, fmt.Sprintf("t=%d %s", t, a.Key()))
		}
	}
	return out
}

// assertHolds checks that a fact is true at every requested timestep.
func assertHolds(in *engine.Interpretation, fact ir.Atom, assertion Assertion) error {
	times, err := timesteps(in, assertion.At)
	if err != nil {
		return fmt.Errorf("holds %s: %w", assertion.Fact, err)
	}

	var missing []int
	for _, t := range times {
		if !in.Holds(fact, t) {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	return &AssertionError{
		Type:     AssertHolds,
		Expected: fmt.Sprintf("%s holds at %v", fact.Key(), times),
		Actual:   fmt.Sprintf("missing at %v", missing),
		Context:  factContext(in, fact.Predicate, missing[0]),
	}
}

// assertAbsent checks that a fact is false at every requested timestep.
func assertAbsent(in *engine.Interpretation, fact ir.Atom, assertion Assertion) error {
	times, err := timesteps(in, assertion.At)
	if err != nil {
		return fmt.Errorf("absent %s: %w", assertion.Fact, err)
	}

	var present []int
	for _, t := range times {
		if in.Holds(fact, t) {
			present = append(present, t)
		}
	}
	if len(present) == 0 {
		return nil
	}

	var context []string
	if tree := in.Explain(fact, present[0]); tree != nil {
		context = strings.Split(strings.TrimRight(tree.Render(), "\n"), "\n")
	}
	return &AssertionError{
		Type:     AssertAbsent,
		Expected: fmt.Sprintf("%s absent at %v", fact.Key(), times),
		Actual:   fmt.Sprintf("present at %v", present),
		Context:  context,
	}
}

// assertCount checks the number of facts of a predicate at one timestep or
// at each timestep from 0.
func assertCount(in *engine.Interpretation, assertion Assertion) error {
	if len(assertion.Counts) > 0 {
		if len(assertion.Counts) > in.MaxTimesteps()+1 {
			return fmt.Errorf("count %s: %d counts for %d timesteps",
				assertion.Predicate, len(assertion.Counts), in.MaxTimesteps()+1)
		}
		actual := make([]int, len(assertion.Counts))
		for t := range actual {
			actual[t] = in.CountAt(assertion.Predicate, t)
		}
		if slices.Equal(actual, assertion.Counts) {
			return nil
		}
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("%s counts %v", assertion.Predicate, assertion.Counts),
			Actual:   fmt.Sprintf("%v", actual),
		}
	}

	if assertion.Time == nil || assertion.Count == nil {
		return fmt.Errorf("count %s: time and count are required", assertion.Predicate)
	}
	t := *assertion.Time
	if _, err := timesteps(in, []int{t}); err != nil {
		return fmt.Errorf("count %s: %w", assertion.Predicate, err)
	}
	actual := in.CountAt(assertion.Predicate, t)
	if actual == *assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertCount,
		Expected: fmt.Sprintf("%d %s facts at t=%d", *assertion.Count, assertion.Predicate, t),
		Actual:   fmt.Sprintf("%d", actual),
		Context:  factContext(in, assertion.Predicate, t),
	}
}

// assertFirstAt checks the first timestep a fact holds at.
func assertFirstAt(in *engine.Interpretation, fact ir.Atom, assertion Assertion) error {
	first, ok := in.FirstAt(fact)
	if ok && first == *assertion.Time {
		return nil
	}

	actual := "never holds"
	if ok {
		actual = fmt.Sprintf("first holds at %d", first)
	}
	return &AssertionError{
		Type:     AssertFirstAt,
		Expected: fmt.Sprintf("%s first holds at %d", fact.Key(), *assertion.Time),
		Actual:   actual,
	}
}

// assertExplainable checks that a fact has a derivation tree at a
// timestep whose leaves are base facts, optionally derived by a given rule.
func assertExplainable(in *engine.Interpretation, fact ir.Atom, assertion Assertion) error {
	t := *assertion.Time
	tree := in.Explain(fact, t)
	if tree == nil {
		return &AssertionError{
			Type:     AssertExplainable,
			Expected: fmt.Sprintf("%s explainable at %d", fact.Key(), t),
			Actual:   "does not hold",
			Context:  factContext(in, fact.Predicate, t),
		}
	}

	lines := strings.Split(strings.TrimRight(tree.Render(), "\n"), "\n")
	for _, leaf := range tree.Leaves() {
		if !in.Holds(leaf.Fact, leaf.Time) {
			return &AssertionError{
				Type:     AssertExplainable,
				Expected: fmt.Sprintf("%s rests on facts that hold", fact.Key()),
				Actual:   fmt.Sprintf("premise %s does not hold at %d", leaf.Fact.Key(), leaf.Time),
				Context:  lines,
			}
		}
	}

	if assertion.Rule == "" || tree.Rule == assertion.Rule {
		return nil
	}
	actual := "base fact"
	if !tree.IsBase() {
		actual = fmt.Sprintf("derived by %s", tree.Rule)
	}
	return &AssertionError{
		Type:     AssertExplainable,
		Expected: fmt.Sprintf("%s at %d derived by %s", fact.Key(), t, assertion.Rule),
		Actual:   actual,
		Context:  lines,
	}
}

// EvaluateAssertions checks all assertions against an interpretation.
// Returns a list of error messages (empty if all pass).
//
// Supported assertion types:
//   - holds: fact true at the listed timesteps (all when none are listed)
//   - absent: fact false at the listed timesteps (all when none are listed)
//   - count: number of facts of a predicate at a timestep
//   - first_at: first timestep a fact holds at
//   - explainable: fact has a derivation tree, optionally by a given rule
func EvaluateAssertions(in *engine.Interpretation, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertHolds, AssertAbsent, AssertFirstAt, AssertExplainable:
			fact, perr := compiler.ParseAtom(assertion.Fact)
			if perr != nil {
				err = fmt.Errorf("assertion[%d]: %w", i, perr)
				break
			}
			if (assertion.Type == AssertFirstAt || assertion.Type == AssertExplainable) && assertion.Time == nil {
				err = fmt.Errorf("assertion[%d]: time is required for %s", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertHolds:
				err = assertHolds(in, fact, assertion)
			case AssertAbsent:
				err = assertAbsent(in, fact, assertion)
			case AssertFirstAt:
				err = assertFirstAt(in, fact, assertion)
			case AssertExplainable:
				err = assertExplainable(in, fact, assertion)
			}
		case AssertCount:
			err = assertCount(in, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
