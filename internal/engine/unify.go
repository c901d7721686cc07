package engine

import (
	"github.com/roach88/chronolog/internal/ir"
)

// view is the set of facts visible at one timestep: the union of static and dynamic[t].
// During a pass it is the pre-pass snapshot; pending insertions are never
// visible through it.
type view struct {
	static  *factIndex
	dynamic *factIndex
}

// holds reports whether a ground atom is visible.
func (v view) holds(a ir.Atom) bool {
	return v.static.has(a) || v.dynamic.has(a)
}

// match is one solution of a rule body: the bindings and the positive body
// facts that produced them, in body order.
type match struct {
	subst    ir.Substitution
	premises []ir.Atom
}

// unifyAtom matches a pattern against a ground fact, extending s.
//
// Constants must be equal position by position. A variable already bound
// (in s or earlier in the same atom) must see the same constant, so
// same(X,X) only matches facts with equal arguments.
func unifyAtom(pattern, fact ir.Atom, s ir.Substitution) (ir.Substitution, bool) {
	if pattern.Predicate != fact.Predicate || len(pattern.Args) != len(fact.Args) {
		return nil, false
	}
	out := s
	for i, arg := range pattern.Args {
		if !ir.IsVariable(arg) {
			if arg != fact.Args[i] {
				return nil, false
			}
			continue
		}
		var ok bool
		out, ok = out.Bind(arg, fact.Args[i])
		if !ok {
			return nil, false
		}
	}
	return out, true
}

// matchLiteral returns the extensions of s under which lit holds in v.
//
// A positive literal yields one extension per matching fact, paired with
// that fact. A negated literal yields s unchanged, with no fact, when
// nothing matches its atom under s (negation-as-failure over the current
// bindings), and nothing otherwise.
func matchLiteral(lit ir.Literal, s ir.Substitution, v view) ([]ir.Substitution, []ir.Atom) {
	if lit.Negated {
		if anyMatch(lit.Atom, s, v) {
			return nil, nil
		}
		return []ir.Substitution{s}, nil
	}

	var substs []ir.Substitution
	var facts []ir.Atom
	for _, idx := range [...]*factIndex{v.static, v.dynamic} {
		for _, fact := range idx.candidates(lit.Atom, s) {
			if ext, ok := unifyAtom(lit.Atom, fact, s); ok {
				substs = append(substs, ext)
				facts = append(facts, fact)
			}
		}
	}
	return substs, facts
}

// anyMatch reports whether some visible fact matches pattern under s.
func anyMatch(pattern ir.Atom, s ir.Substitution, v view) bool {
	ground := s.Apply(pattern)
	if ground.IsGround() {
		return v.holds(ground)
	}
	for _, idx := range [...]*factIndex{v.static, v.dynamic} {
		for _, fact := range idx.candidates(pattern, s) {
			if _, ok := unifyAtom(pattern, fact, s); ok {
				return true
			}
		}
	}
	return false
}

// matchBody joins the body literals left to right. Each step extends only
// the consistent substitutions of the previous step, and the join stops as
// soon as a step leaves nothing.
func matchBody(body []ir.Literal, v view) []match {
	current := []match{{subst: ir.Substitution{}}}
	for _, lit := range body {
		var next []match
		for _, m := range current {
			substs, facts := matchLiteral(lit, m.subst, v)
			for i, ext := range substs {
				premises := m.premises
				if i < len(facts) {
					// Full slice expression: branches must not share a backing array.
					premises = append(premises[:len(premises):len(premises)], facts[i])
				}
				next = append(next, match{subst: ext, premises: premises})
			}
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}
