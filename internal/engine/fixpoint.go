package engine

import (
	"context"
	"log/slog"
	"slices"

	"github.com/roach88/chronolog/internal/ir"
	"github.com/roach88/chronolog/internal/metrics"
)

// PassStats describes one finished fixpoint pass.
type PassStats struct {
	// Pass is the 1-based pass number.
	Pass int

	// Evaluations is the number of (rule, timestep) evaluations run.
	Evaluations int

	// Committed is the number of new (fact, timestep) pairs.
	Committed int

	// FrameSizes holds the number of dynamic facts per timestep after the
	// commit.
	FrameSizes []int
}

// fixpoint is the state of one Reason call.
//
// States: RUNNING -> QUIESCENT. Each pass evaluates the triggered rules at
// every timestep against the committed store, then commits the pending
// frames at the pass barrier. The facts committed by a pass are the delta
// that triggers the next one. A pass that commits nothing is quiescence.
type fixpoint struct {
	runID   string
	store   *FactStore
	rules   []*compiledRule
	byKey   map[string][]*compiledRule
	eval    *evaluator
	disp    *dispatcher
	prov    *ProvenanceTracker
	quota   *passQuota
	logger  *slog.Logger
	metrics *metrics.Metrics
	hook    func(PassStats)
}

func newFixpoint(runID string, store *FactStore, rules []*compiledRule) *fixpoint {
	byKey := make(map[string][]*compiledRule)
	for _, cr := range rules {
		for _, k := range cr.keys {
			byKey[k] = append(byKey[k], cr)
		}
	}
	return &fixpoint{
		runID: runID,
		store: store,
		rules: rules,
		byKey: byKey,
		eval:  newEvaluator(store),
		prov:  NewProvenanceTracker(),
	}
}

// run drives passes until quiescence. The context is checked between passes
// only, so a cancelled run never exposes a half-applied pass.
// Returns the number of passes, including the quiescent one.
func (f *fixpoint) run(ctx context.Context) (int, error) {
	var delta []map[string]bool // nil before the first pass
	for {
		if err := ctx.Err(); err != nil {
			return f.quota.Current(), err
		}
		if err := f.quota.Check(f.runID); err != nil {
			return f.quota.Current(), err
		}
		pass := f.quota.Current()

		evaluations := 0
		for t := 0; t <= f.store.horizon(); t++ {
			rules := f.triggered(delta, t)
			if len(rules) == 0 {
				continue
			}
			evaluations += len(rules)
			if _, err := f.disp.run(f.eval, rules, t, f.runID); err != nil {
				return pass, err
			}
		}

		committed, next := f.commit()
		stats := PassStats{
			Pass:        pass,
			Evaluations: evaluations,
			Committed:   committed,
			FrameSizes:  f.frameSizes(),
		}
		f.metrics.Pass(committed)
		f.logger.Debug("fixpoint pass",
			"run_id", f.runID,
			"pass", pass,
			"evaluations", evaluations,
			"committed", committed,
		)
		if f.hook != nil {
			f.hook(stats)
		}

		if committed == 0 {
			return pass, nil
		}
		delta = next
	}
}

// triggered returns the rules to evaluate at t, in declaration order.
// The first pass evaluates every rule. Later passes evaluate a rule when the
// delta at t contains any of its body predicates, positive or negated.
func (f *fixpoint) triggered(delta []map[string]bool, t int) []*compiledRule {
	if delta == nil {
		return f.rules
	}
	if len(delta[t]) == 0 {
		return nil
	}

	seen := make(map[int]bool)
	var out []*compiledRule
	for k := range delta[t] {
		for _, cr := range f.byKey[k] {
			if !seen[cr.index] {
				seen[cr.index] = true
				out = append(out, cr)
			}
		}
	}
	slices.SortFunc(out, func(a, b *compiledRule) int {
		return a.index - b.index
	})
	return out
}

// commit moves every pending fact into the store, records its provenance
// and returns the number of committed pairs and the new delta keyed by
// predicate/arity per timestep.
func (f *fixpoint) commit() (int, []map[string]bool) {
	committed := 0
	delta := make([]map[string]bool, f.store.horizon()+1)
	for tt, frame := range f.eval.pending {
		for _, pf := range frame.drain() {
			if !f.store.addDynamic(pf.atom, tt) {
				continue
			}
			f.prov.Record(ir.DerivationRecord{
				Fact:     pf.atom,
				Time:     tt,
				Rule:     pf.best.rule,
				Premises: pf.best.premises,
			})
			if delta[tt] == nil {
				delta[tt] = make(map[string]bool)
			}
			delta[tt][pf.atom.IndexKey()] = true
			committed++
		}
	}
	return committed, delta
}

func (f *fixpoint) frameSizes() []int {
	sizes := make([]int, len(f.store.dynamic))
	for t, frame := range f.store.dynamic {
		sizes[t] = frame.len()
	}
	return sizes
}
