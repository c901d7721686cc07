package engine

import (
	"fmt"
	"slices"

	"github.com/roach88/chronolog/internal/ir"
)

// Interpretation is the frozen result of a Reason call: the facts true at
// each timestep 0..MaxTimesteps plus the derivation record of every derived
// fact.
//
// An Interpretation is read-only and safe for concurrent use.
type Interpretation struct {
	runID        string
	maxTimesteps int
	passes       int
	store        *FactStore
	prov         *ProvenanceTracker
	base         []ir.BaseFact
	baseIDs      map[string]string
}

func newInterpretation(runID string, maxTimesteps, passes int, store *FactStore, prov *ProvenanceTracker, base []ir.BaseFact) *Interpretation {
	baseIDs := make(map[string]string, len(base))
	for _, b := range base {
		baseIDs[b.Atom.Key()] = b.ID
	}
	return &Interpretation{
		runID:        runID,
		maxTimesteps: maxTimesteps,
		passes:       passes,
		store:        store,
		prov:         prov,
		base:         base,
		baseIDs:      baseIDs,
	}
}

// RunID returns the identifier of the Reason call that produced it.
func (in *Interpretation) RunID() string {
	return in.runID
}

// MaxTimesteps returns the last timestep.
func (in *Interpretation) MaxTimesteps() int {
	return in.maxTimesteps
}

// Passes returns the number of fixpoint passes, including the quiescent one.
func (in *Interpretation) Passes() int {
	return in.passes
}

// FactsAt returns the facts true at t (static and dynamic), ordered by
// ir.CompareAtoms. Returns nil when t is outside 0..MaxTimesteps.
func (in *Interpretation) FactsAt(t int) []ir.Atom {
	if t < 0 || t > in.maxTimesteps {
		return nil
	}
	out := append(in.store.static.sorted(), in.store.dynamic[t].sorted()...)
	sortAtoms(out)
	return out
}

// StaticFacts returns the facts true at every timestep.
func (in *Interpretation) StaticFacts() []ir.Atom {
	return in.store.static.sorted()
}

// Holds reports whether a ground atom is true at t.
func (in *Interpretation) Holds(a ir.Atom, t int) bool {
	if t < 0 || t > in.maxTimesteps {
		return false
	}
	return in.store.holds(a, t)
}

// CountAt returns the number of facts with the given predicate name true
// at t, across all arities.
func (in *Interpretation) CountAt(predicate string, t int) int {
	if t < 0 || t > in.maxTimesteps {
		return 0
	}
	return in.store.static.countPredicate(predicate) + in.store.dynamic[t].countPredicate(predicate)
}

// FirstAt returns the first timestep at which a ground atom holds.
func (in *Interpretation) FirstAt(a ir.Atom) (int, bool) {
	for t := 0; t <= in.maxTimesteps; t++ {
		if in.store.holds(a, t) {
			return t, true
		}
	}
	return 0, false
}

// Derivation returns the derivation record of a derived fact at t.
// Base facts have none.
func (in *Interpretation) Derivation(a ir.Atom, t int) (ir.DerivationRecord, bool) {
	return in.prov.Lookup(a, t)
}

// Derivations returns every derivation record, ordered by time then fact.
func (in *Interpretation) Derivations() []ir.DerivationRecord {
	return in.prov.Records()
}

// Explain returns the derivation tree of a fact at t, or nil if the fact
// does not hold at t. The leaves of the tree are caller-added facts.
func (in *Interpretation) Explain(a ir.Atom, t int) *DerivationTree {
	if !in.Holds(a, t) {
		return nil
	}
	return explain(a, t, in.prov, in.baseIDs)
}

// Snapshot returns the serializable form of the interpretation.
func (in *Interpretation) Snapshot() ir.Snapshot {
	frames := make([][]ir.Atom, in.maxTimesteps+1)
	for t := range frames {
		frames[t] = in.store.dynamic[t].sorted()
	}
	derivations := in.prov.Records()
	if derivations == nil {
		derivations = []ir.DerivationRecord{}
	}
	return ir.Snapshot{
		RunID:        in.runID,
		MaxTimesteps: in.maxTimesteps,
		Passes:       in.passes,
		Static:       in.store.static.sorted(),
		Frames:       frames,
		Base:         append([]ir.BaseFact{}, in.base...),
		Derivations:  derivations,
	}
}

// Digest returns the content hash of the interpretation. Equal
// interpretations have equal digests whatever evaluator, worker count or
// run produced them.
func (in *Interpretation) Digest() (string, error) {
	return ir.SnapshotDigest(in.Snapshot())
}

// FromSnapshot rebuilds an Interpretation from its serialized form, e.g.
// one loaded from the snapshot store or produced by another evaluator.
func FromSnapshot(s ir.Snapshot) (*Interpretation, error) {
	if s.MaxTimesteps < 0 {
		return nil, fmt.Errorf("snapshot: negative max timesteps %d", s.MaxTimesteps)
	}
	if len(s.Frames) != s.MaxTimesteps+1 {
		return nil, fmt.Errorf("snapshot: %d frames for max timesteps %d", len(s.Frames), s.MaxTimesteps)
	}

	store := newFactStore(s.MaxTimesteps)
	for _, a := range s.Static {
		if !a.IsGround() {
			return nil, fmt.Errorf("snapshot: static fact %s is not ground", a)
		}
		store.addStatic(a)
	}
	for t, frame := range s.Frames {
		for _, a := range frame {
			if !a.IsGround() {
				return nil, fmt.Errorf("snapshot: fact %s at t=%d is not ground", a, t)
			}
			if !store.addDynamic(a, t) {
				return nil, fmt.Errorf("snapshot: fact %s at t=%d is duplicated or static", a, t)
			}
		}
	}

	prov := NewProvenanceTracker()
	for _, rec := range s.Derivations {
		if !store.holds(rec.Fact, rec.Time) {
			return nil, fmt.Errorf("snapshot: derivation of %s at t=%d for a fact that does not hold", rec.Fact, rec.Time)
		}
		if !prov.Record(rec) {
			return nil, fmt.Errorf("snapshot: duplicate derivation of %s at t=%d", rec.Fact, rec.Time)
		}
	}

	base := append([]ir.BaseFact{}, s.Base...)
	sortBase(base)
	return newInterpretation(s.RunID, s.MaxTimesteps, s.Passes, store, prov, base), nil
}

func sortAtoms(atoms []ir.Atom) {
	slices.SortFunc(atoms, ir.CompareAtoms)
}

func sortBase(base []ir.BaseFact) {
	slices.SortFunc(base, func(a, b ir.BaseFact) int {
		return ir.CompareAtoms(a.Atom, b.Atom)
	})
}
