package engine

import (
	"slices"

	"github.com/roach88/chronolog/internal/ir"
)

// argKey addresses the secondary index: facts of one predicate/arity with a
// given constant at a given argument position.
type argKey struct {
	pred  string
	pos   int
	value string
}

// factIndex is a set of ground atoms indexed by predicate/arity and by
// argument position. Not safe for concurrent writes; during a pass it is
// only read.
type factIndex struct {
	atoms  map[string]ir.Atom
	byPred map[string][]ir.Atom
	byArg  map[argKey][]ir.Atom
}

func newFactIndex() *factIndex {
	return &factIndex{
		atoms:  make(map[string]ir.Atom),
		byPred: make(map[string][]ir.Atom),
		byArg:  make(map[argKey][]ir.Atom),
	}
}

// add inserts a ground atom. Returns false if it was already present.
func (x *factIndex) add(a ir.Atom) bool {
	key := a.Key()
	if _, ok := x.atoms[key]; ok {
		return false
	}
	x.atoms[key] = a
	pred := a.IndexKey()
	x.byPred[pred] = append(x.byPred[pred], a)
	for i, arg := range a.Args {
		k := argKey{pred: pred, pos: i, value: arg}
		x.byArg[k] = append(x.byArg[k], a)
	}
	return true
}

func (x *factIndex) has(a ir.Atom) bool {
	_, ok := x.atoms[a.Key()]
	return ok
}

func (x *factIndex) len() int {
	return len(x.atoms)
}

// candidates returns the facts that can match pattern under s. The list is
// narrowed by the most selective argument that is a constant or a bound
// variable; with no bound argument the full predicate/arity list is used.
func (x *factIndex) candidates(pattern ir.Atom, s ir.Substitution) []ir.Atom {
	pred := pattern.IndexKey()
	best := x.byPred[pred]
	if len(best) == 0 {
		return nil
	}
	for i, arg := range pattern.Args {
		value, ok := s.Resolve(arg)
		if !ok {
			continue
		}
		list := x.byArg[argKey{pred: pred, pos: i, value: value}]
		if len(list) < len(best) {
			best = list
			if len(best) == 0 {
				return nil
			}
		}
	}
	return best
}

// sorted returns every atom ordered by ir.CompareAtoms.
func (x *factIndex) sorted() []ir.Atom {
	out := make([]ir.Atom, 0, len(x.atoms))
	for _, a := range x.atoms {
		out = append(out, a)
	}
	slices.SortFunc(out, ir.CompareAtoms)
	return out
}

// countPredicate returns the number of facts with the given predicate name,
// across all arities.
func (x *factIndex) countPredicate(predicate string) int {
	n := 0
	for _, a := range x.atoms {
		if a.Predicate == predicate {
			n++
		}
	}
	return n
}

// FactStore holds the facts of one Reason call: a static partition that
// holds at every timestep and one dynamic partition per timestep.
//
// INVARIANT: a ground atom is never in both the static partition and a
// dynamic partition. Facts visible at t are the union of static and dynamic[t].
type FactStore struct {
	static  *factIndex
	dynamic []*factIndex
}

// newFactStore creates an empty store for timesteps 0..maxTimesteps.
func newFactStore(maxTimesteps int) *FactStore {
	s := &FactStore{
		static:  newFactIndex(),
		dynamic: make([]*factIndex, maxTimesteps+1),
	}
	for t := range s.dynamic {
		s.dynamic[t] = newFactIndex()
	}
	return s
}

// horizon returns the last timestep.
func (s *FactStore) horizon() int {
	return len(s.dynamic) - 1
}

// addStatic inserts a static fact. Static facts are loaded before any
// dynamic fact, so no dynamic partition can hold the atom yet.
func (s *FactStore) addStatic(a ir.Atom) bool {
	return s.static.add(a)
}

// addDynamic inserts a fact at t. A no-op if the fact is static, already
// present, or t lies outside the horizon.
func (s *FactStore) addDynamic(a ir.Atom, t int) bool {
	if t < 0 || t > s.horizon() || s.static.has(a) {
		return false
	}
	return s.dynamic[t].add(a)
}

// holds reports whether a ground atom is visible at t.
func (s *FactStore) holds(a ir.Atom, t int) bool {
	if s.static.has(a) {
		return true
	}
	return t >= 0 && t <= s.horizon() && s.dynamic[t].has(a)
}

// view returns the read view used for evaluation at t.
func (s *FactStore) view(t int) view {
	return view{static: s.static, dynamic: s.dynamic[t]}
}
