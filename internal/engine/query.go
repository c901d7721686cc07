package engine

import (
	"fmt"
	"slices"

	"github.com/roach88/chronolog/internal/compiler"
	"github.com/roach88/chronolog/internal/ir"
)

// Match is one answer to a Query.
type Match struct {
	Time     int             `json:"time"`
	Fact     ir.Atom         `json:"fact"`
	Bindings ir.Substitution `json:"bindings"`
}

// Query is a read-only pattern match against an Interpretation, using the
// same unifier as rule bodies.
//
// Example:
//
//	matches, err := engine.NewQuery(ir.NewAtom("atRisk", "X")).AtTime(3).Execute(interp)
type Query struct {
	pattern ir.Atom
	time    int
	timed   bool
}

// NewQuery creates a query for pattern over every timestep.
func NewQuery(pattern ir.Atom) *Query {
	return &Query{pattern: pattern}
}

// ParseQuery creates a query from atom text, e.g. "atRisk(X)".
func ParseQuery(text string) (*Query, error) {
	a, err := compiler.ParseAtom(text)
	if err != nil {
		return nil, err
	}
	return NewQuery(a), nil
}

// AtTime restricts the query to timestep t.
func (q *Query) AtTime(t int) *Query {
	out := *q
	out.time = t
	out.timed = true
	return &out
}

// Execute returns the matches ordered by time, then fact.
func (q *Query) Execute(in *Interpretation) ([]Match, error) {
	if in == nil {
		return nil, fmt.Errorf("query: nil interpretation")
	}
	if q.pattern.Predicate == "" {
		return nil, fmt.Errorf("query: empty predicate")
	}

	from, to := 0, in.maxTimesteps
	if q.timed {
		if q.time < 0 || q.time > in.maxTimesteps {
			return nil, fmt.Errorf("query: timestep %d outside 0..%d", q.time, in.maxTimesteps)
		}
		from, to = q.time, q.time
	}

	var out []Match
	lit := ir.Pos(q.pattern)
	for t := from; t <= to; t++ {
		substs, facts := matchLiteral(lit, ir.Substitution{}, in.store.view(t))
		start := len(out)
		for i, s := range substs {
			out = append(out, Match{Time: t, Fact: facts[i], Bindings: s})
		}
		slices.SortFunc(out[start:], func(a, b Match) int {
			return ir.CompareAtoms(a.Fact, b.Fact)
		})
	}
	return out, nil
}
