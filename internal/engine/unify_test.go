package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronolog/internal/ir"
)

func testView(static []ir.Atom, dynamic []ir.Atom) view {
	s := newFactIndex()
	for _, a := range static {
		s.add(a)
	}
	d := newFactIndex()
	for _, a := range dynamic {
		d.add(a)
	}
	return view{static: s, dynamic: d}
}

func TestUnifyAtom(t *testing.T) {
	tests := []struct {
		name    string
		pattern ir.Atom
		fact    ir.Atom
		in      ir.Substitution
		want    ir.Substitution
		ok      bool
	}{
		{"binds variables", ir.NewAtom("edge", "X", "Y"), ir.NewAtom("edge", "a", "b"), ir.Substitution{}, ir.Substitution{"X": "a", "Y": "b"}, true},
		{"constant matches", ir.NewAtom("edge", "a", "Y"), ir.NewAtom("edge", "a", "b"), ir.Substitution{}, ir.Substitution{"Y": "b"}, true},
		{"constant mismatch", ir.NewAtom("edge", "c", "Y"), ir.NewAtom("edge", "a", "b"), ir.Substitution{}, nil, false},
		{"repeated variable equal", ir.NewAtom("same", "X", "X"), ir.NewAtom("same", "a", "a"), ir.Substitution{}, ir.Substitution{"X": "a"}, true},
		{"repeated variable differs", ir.NewAtom("same", "X", "X"), ir.NewAtom("same", "a", "b"), ir.Substitution{}, nil, false},
		{"bound variable agrees", ir.NewAtom("edge", "X", "Y"), ir.NewAtom("edge", "a", "b"), ir.Substitution{"X": "a"}, ir.Substitution{"X": "a", "Y": "b"}, true},
		{"bound variable conflicts", ir.NewAtom("edge", "X", "Y"), ir.NewAtom("edge", "a", "b"), ir.Substitution{"X": "z"}, nil, false},
		{"arity mismatch", ir.NewAtom("edge", "X"), ir.NewAtom("edge", "a", "b"), ir.Substitution{}, nil, false},
		{"predicate mismatch", ir.NewAtom("node", "X"), ir.NewAtom("edge", "a"), ir.Substitution{}, nil, false},
		{"zero arity", ir.NewAtom("raining"), ir.NewAtom("raining"), ir.Substitution{}, ir.Substitution{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := unifyAtom(tt.pattern, tt.fact, tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestUnifyAtomDoesNotMutateInput(t *testing.T) {
	in := ir.Substitution{"X": "a"}
	_, ok := unifyAtom(ir.NewAtom("edge", "X", "Y"), ir.NewAtom("edge", "a", "b"), in)
	require.True(t, ok)
	assert.Equal(t, ir.Substitution{"X": "a"}, in)
}

func TestCandidatesNarrowByBoundArgument(t *testing.T) {
	idx := newFactIndex()
	for _, a := range []ir.Atom{
		ir.NewAtom("edge", "a", "b"),
		ir.NewAtom("edge", "a", "c"),
		ir.NewAtom("edge", "a", "d"),
		ir.NewAtom("edge", "b", "c"),
		ir.NewAtom("edge", "c", "d"),
		ir.NewAtom("edge", "x"),
	} {
		idx.add(a)
	}

	assert.Len(t, idx.candidates(ir.NewAtom("edge", "X", "Y"), ir.Substitution{}), 5)
	assert.Len(t, idx.candidates(ir.NewAtom("edge", "X", "Y"), ir.Substitution{"Y": "c"}), 2)
	assert.Len(t, idx.candidates(ir.NewAtom("edge", "b", "Y"), ir.Substitution{}), 1)
	assert.Len(t, idx.candidates(ir.NewAtom("edge", "X"), ir.Substitution{}), 1, "arity is part of the index key")
	assert.Empty(t, idx.candidates(ir.NewAtom("edge", "q", "Y"), ir.Substitution{}))
	assert.Empty(t, idx.candidates(ir.NewAtom("node", "X"), ir.Substitution{}))
}

func TestFactIndexAddIsIdempotent(t *testing.T) {
	idx := newFactIndex()
	assert.True(t, idx.add(ir.NewAtom("p", "a")))
	assert.False(t, idx.add(ir.NewAtom("p", "a")))
	assert.Equal(t, 1, idx.len())
	assert.Len(t, idx.byPred["p/1"], 1)
}

func TestFactStoreStaticDynamicSeparation(t *testing.T) {
	s := newFactStore(3)
	p := ir.NewAtom("p", "a")
	q := ir.NewAtom("q", "a")

	assert.True(t, s.addStatic(p))
	assert.False(t, s.addDynamic(p, 1), "static fact is never copied into a frame")
	assert.True(t, s.addDynamic(q, 1))
	assert.False(t, s.addDynamic(q, 1))
	assert.False(t, s.addDynamic(q, 4), "beyond the horizon")

	for ts := 0; ts <= 3; ts++ {
		assert.True(t, s.holds(p, ts))
		assert.Equal(t, ts == 1, s.holds(q, ts))
	}
	assert.Equal(t, 0, s.dynamic[1].countPredicate("p"))
}

func TestMatchBodyJoin(t *testing.T) {
	v := testView(
		[]ir.Atom{
			ir.NewAtom("edge", "a", "b"),
			ir.NewAtom("edge", "b", "c"),
			ir.NewAtom("edge", "c", "d"),
		},
		[]ir.Atom{ir.NewAtom("start", "a"), ir.NewAtom("start", "c")},
	)

	body := []ir.Literal{
		ir.Pos(ir.NewAtom("start", "X")),
		ir.Pos(ir.NewAtom("edge", "X", "Y")),
		ir.Pos(ir.NewAtom("edge", "Y", "Z")),
	}
	matches := matchBody(body, v)
	require.Len(t, matches, 1)
	assert.Equal(t, ir.Substitution{"X": "a", "Y": "b", "Z": "c"}, matches[0].subst)
	assert.Equal(t, []ir.Atom{
		ir.NewAtom("start", "a"),
		ir.NewAtom("edge", "a", "b"),
		ir.NewAtom("edge", "b", "c"),
	}, matches[0].premises)
}

func TestMatchBodyShortCircuits(t *testing.T) {
	v := testView([]ir.Atom{ir.NewAtom("edge", "a", "b")}, nil)
	body := []ir.Literal{
		ir.Pos(ir.NewAtom("missing", "X")),
		ir.Pos(ir.NewAtom("edge", "X", "Y")),
	}
	assert.Empty(t, matchBody(body, v))
}

func TestMatchBodyNegation(t *testing.T) {
	v := testView(
		[]ir.Atom{ir.NewAtom("p", "a"), ir.NewAtom("p", "b"), ir.NewAtom("blocked", "b")},
		nil,
	)
	body := []ir.Literal{
		ir.Pos(ir.NewAtom("p", "X")),
		ir.Not(ir.NewAtom("blocked", "X")),
	}

	matches := matchBody(body, v)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].subst["X"])
	assert.Equal(t, []ir.Atom{ir.NewAtom("p", "a")}, matches[0].premises, "negated literals are not premises")
}

func TestMatchLiteralNegationWithUnboundVariable(t *testing.T) {
	v := testView([]ir.Atom{ir.NewAtom("blocked", "b", "z")}, nil)

	// blocked(X, W) with W unbound: any blocked(b, _) counts as a match.
	substs, _ := matchLiteral(ir.Not(ir.NewAtom("blocked", "X", "W")), ir.Substitution{"X": "b"}, v)
	assert.Empty(t, substs)

	substs, _ = matchLiteral(ir.Not(ir.NewAtom("blocked", "X", "W")), ir.Substitution{"X": "a"}, v)
	assert.Len(t, substs, 1)
}

func TestMatchBranchesDoNotShareBackingArrays(t *testing.T) {
	v := testView(
		[]ir.Atom{
			ir.NewAtom("a", "1"),
			ir.NewAtom("b", "1", "x"),
			ir.NewAtom("b", "1", "y"),
			ir.NewAtom("c", "x"),
			ir.NewAtom("c", "y"),
		},
		nil,
	)
	body := []ir.Literal{
		ir.Pos(ir.NewAtom("a", "N")),
		ir.Pos(ir.NewAtom("b", "N", "V")),
		ir.Pos(ir.NewAtom("c", "V")),
	}

	matches := matchBody(body, v)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.Equal(t, m.subst["V"], m.premises[1].Args[1])
		assert.Equal(t, m.subst["V"], m.premises[2].Args[0])
	}
}
