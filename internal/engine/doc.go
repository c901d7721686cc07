// Package engine implements the chronolog temporal reasoner.
//
// The engine derives facts from time-stamped base facts and Horn-clause
// rules with delays and head windows, over discrete timesteps
// 0..maxTimesteps.
//
// ARCHITECTURE:
//
// Semi-Naive Fixpoint:
// Reason repeats passes until a pass derives nothing (quiescence).
// 1. Pass 1 evaluates every rule at every timestep
// 2. Later passes evaluate a rule at t only when the facts committed at t
// by the previous pass (the delta) include one of its body predicates
// 3. Derived facts go to a pending layer and are committed at the pass
// barrier, where they become the next delta
//
// Fact Store:
// A static partition holds facts true at every timestep; one dynamic
// partition per timestep holds the rest. Both are indexed by
// predicate/arity and by argument position, and the unifier narrows
// candidates by the most selective bound argument.
//
// Parallel Dispatch:
// Within one timestep the triggered rules run on a bounded errgroup pool.
// Every evaluation reads the same pass snapshot and inserts with
// insert-if-absent, so the result does not depend on scheduling. A pool
// failure re-runs the timestep sequentially.
//
// CRITICAL PATTERNS:
//
// Determinism:
// Pending facts are committed in ir.CompareAtoms order and competing
// derivations of one fact in one pass resolve to the lowest rule
// declaration index, then the lowest premise key. Interpretation, provenance
// and pass count are identical for any worker count.
//
// Termination:
// The fixpoint is iterative and bounded by a pass ceiling derived from
// maxTimesteps and the rule count. Exceeding it returns a RuntimeError
// instead of looping.
package engine
