package ir

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsVariable(t *testing.T) {
	assert.True(t, IsVariable("X"))
	assert.True(t, IsVariable("Supplier"))
	assert.True(t, IsVariable("Élan"), "non-ASCII upper case")
	assert.False(t, IsVariable("x"))
	assert.False(t, IsVariable("acme"))
	assert.False(t, IsVariable("42"))
	assert.False(t, IsVariable(""))
}

func TestAtomKeyAndEquality(t *testing.T) {
	a := NewAtom(" edge ", "a", " b")
	b := NewAtom("edge", "a", "b")

	assert.True(t, a.Equal(b))
	assert.Equal(t, "edge(a,b)", a.Key())
	assert.Equal(t, "edge/2", a.IndexKey())
	assert.False(t, a.Equal(NewAtom("edge", "b", "a")))
	assert.False(t, a.Equal(NewAtom("edge", "a")))
}

func TestAtomVariables(t *testing.T) {
	a := NewAtom("same", "X", "c", "X", "Y")
	assert.Equal(t, []string{"X", "Y"}, a.Variables())
	assert.False(t, a.IsGround())
	assert.True(t, NewAtom("p", "a").IsGround())
}

func TestCompareAtoms(t *testing.T) {
	atoms := []Atom{
		NewAtom("p", "b"),
		NewAtom("edge", "a", "c"),
		NewAtom("p", "a"),
		NewAtom("edge", "a", "b"),
		NewAtom("p", "a", "a"),
	}
	slices.SortFunc(atoms, CompareAtoms)

	keys := make([]string, len(atoms))
	for i, a := range atoms {
		keys[i] = a.Key()
	}
	assert.Equal(t, []string{"edge(a,b)", "edge(a,c)", "p(a)", "p(b)", "p(a,a)"}, keys)
}

func TestRuleString(t *testing.T) {
	w := MustIntervalSet(Interval{1, 5})
	r := Rule{
		Name:       "r",
		Head:       NewAtom("safe", "X"),
		HeadWindow: &w,
		Delay:      2,
		Body:       []Literal{Pos(NewAtom("p", "X")), Not(NewAtom("blocked", "X"))},
	}
	assert.Equal(t, "safe(X) : [1,5] <-2 p(X), not blocked(X)", r.String())
	assert.Equal(t, []string{"p/1", "blocked/1"}, r.BodyPredicates())
}

func TestRuleTargets(t *testing.T) {
	w := MustIntervalSet(Interval{2, 3})
	r := Rule{Delay: 1, HeadWindow: &w}

	assert.Nil(t, r.Targets(0, 10), "t+1=1 is outside the window")
	assert.Equal(t, []int{2}, r.Targets(1, 10))
	assert.Nil(t, r.Targets(2, 2), "beyond the horizon")

	open := Rule{Delay: 0}
	assert.Equal(t, []int{4}, open.Targets(4, 4))

	huge := Rule{Delay: math.MaxInt}
	assert.Nil(t, huge.Targets(2, 5), "t+Delay overflows int")
	assert.Nil(t, huge.Targets(0, math.MaxInt-1))
}

func TestSubstitution(t *testing.T) {
	s := Substitution{}
	s1, ok := s.Bind("X", "a")
	require.True(t, ok)
	assert.Empty(t, s, "Bind must not modify the receiver")

	_, ok = s1.Bind("X", "b")
	assert.False(t, ok, "conflicting binding")

	same, ok := s1.Bind("X", "a")
	assert.True(t, ok)
	assert.Equal(t, s1, same)

	merged, ok := s1.Merge(Substitution{"Y": "b"})
	require.True(t, ok)
	assert.Equal(t, Substitution{"X": "a", "Y": "b"}, merged)

	_, ok = s1.Merge(Substitution{"X": "c"})
	assert.False(t, ok)

	grounded := merged.Apply(NewAtom("path", "X", "Y", "Z", "k"))
	assert.Equal(t, "path(a,b,Z,k)", grounded.Key())
	assert.Equal(t, "{X=a, Y=b}", merged.String())
}
