package engine

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/chronolog/internal/ir"
)

// compiledRule is a rule with its declaration index and the predicate/arity
// keys that trigger it in later passes.
type compiledRule struct {
	index int
	rule  ir.Rule
	keys  []string
}

func compileRules(rules []ir.Rule) []*compiledRule {
	out := make([]*compiledRule, len(rules))
	for i, r := range rules {
		out[i] = &compiledRule{index: i, rule: r, keys: r.BodyPredicates()}
	}
	return out
}

type pendingFact struct {
	atom ir.Atom
	best derivation
}

// pendingFrame collects the facts derived for one timestep during a pass.
// They become visible only when the pass commits.
type pendingFrame struct {
	mu    sync.Mutex
	facts map[string]pendingFact
}

func newPendingFrame() *pendingFrame {
	return &pendingFrame{facts: make(map[string]pendingFact)}
}

// insert adds a fact if absent. When the fact is already pending, the
// candidate derivation replaces the held one only if it orders before it.
// Returns true if the fact was new to the frame.
func (p *pendingFrame) insert(a ir.Atom, d derivation) bool {
	key := a.Key()

	p.mu.Lock()
	defer p.mu.Unlock()

	if cur, ok := p.facts[key]; ok {
		if d.before(cur.best) {
			cur.best = d
			p.facts[key] = cur
		}
		return false
	}
	p.facts[key] = pendingFact{atom: a, best: d}
	return true
}

// drain empties the frame and returns its facts ordered by atom.
func (p *pendingFrame) drain() []pendingFact {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]pendingFact, 0, len(p.facts))
	for _, f := range p.facts {
		out = append(out, f)
	}
	p.facts = make(map[string]pendingFact)
	slices.SortFunc(out, func(a, b pendingFact) int {
		return ir.CompareAtoms(a.atom, b.atom)
	})
	return out
}

// evaluator applies one rule at one timestep.
//
// It reads the committed store (the pass snapshot) and writes only to the
// pending frames, so any number of evaluations may run concurrently within
// a pass.
type evaluator struct {
	store   *FactStore
	pending []*pendingFrame

	// hook runs before each evaluation. Tests use it to inject failures.
	hook func(rule string, t int)
}

func newEvaluator(store *FactStore) *evaluator {
	pending := make([]*pendingFrame, store.horizon()+1)
	for t := range pending {
		pending[t] = newPendingFrame()
	}
	return &evaluator{store: store, pending: pending}
}

// evaluate runs the rule body over the facts visible at t, grounds the head
// for every solution and inserts it at each target timestep where it does
// not already hold. Returns the number of pairs new to the pending frames.
func (ev *evaluator) evaluate(cr *compiledRule, t int) (int, error) {
	if ev.hook != nil {
		ev.hook(cr.rule.Name, t)
	}

	targets := cr.rule.Targets(t, ev.store.horizon())
	if len(targets) == 0 {
		return 0, nil
	}

	inserted := 0
	for _, m := range matchBody(cr.rule.Body, ev.store.view(t)) {
		head := m.subst.Apply(cr.rule.Head)
		if !head.IsGround() {
			return inserted, fmt.Errorf("head %s is not ground under %s", head, m.subst)
		}
		for _, tt := range targets {
			if ev.store.holds(head, tt) {
				continue
			}
			d := derivation{ruleIndex: cr.index, rule: cr.rule.Name, premises: premisesAt(m.premises, t)}
			if ev.pending[tt].insert(head, d) {
				inserted++
			}
		}
	}
	return inserted, nil
}

// safeEvaluate is evaluate with panics converted to errors.
func (ev *evaluator) safeEvaluate(cr *compiledRule, t int) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return ev.evaluate(cr, t)
}

func premisesAt(atoms []ir.Atom, t int) []ir.Premise {
	out := make([]ir.Premise, len(atoms))
	for i, a := range atoms {
		out[i] = ir.Premise{Atom: a, Time: t}
	}
	return out
}
