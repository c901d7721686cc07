package engine

import (
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/chronolog/internal/ir"
)

// ProvenanceTracker keeps the derivation record of every derived
// (fact, timestep) pair.
//
// Records are created once, on first derivation, and never overwritten:
// facts are monotone and never retracted. Competing derivations of the same
// pair within one pass are resolved before they reach the tracker (see
// derivation.before), so the stored record does not depend on scheduling.
//
// Thread-safety: all methods are safe for concurrent use.
type ProvenanceTracker struct {
	mu      sync.Mutex
	records map[int]map[string]ir.DerivationRecord // map[timestep]map[fact_key]record
}

// NewProvenanceTracker creates an empty tracker.
func NewProvenanceTracker() *ProvenanceTracker {
	return &ProvenanceTracker{
		records: make(map[int]map[string]ir.DerivationRecord),
	}
}

// Record stores rec unless a record for (rec.Fact, rec.Time) exists.
// Returns true if the record was stored.
func (p *ProvenanceTracker) Record(rec ir.DerivationRecord) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.records[rec.Time] == nil {
		p.records[rec.Time] = make(map[string]ir.DerivationRecord)
	}
	key := rec.Fact.Key()
	if _, exists := p.records[rec.Time][key]; exists {
		return false
	}
	p.records[rec.Time][key] = rec
	return true
}

// Lookup returns the record for a fact at t.
func (p *ProvenanceTracker) Lookup(a ir.Atom, t int) (ir.DerivationRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[t][a.Key()]
	return rec, ok
}

// Len returns the number of records.
func (p *ProvenanceTracker) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, byFact := range p.records {
		n += len(byFact)
	}
	return n
}

// Records returns every record ordered by time, then fact.
func (p *ProvenanceTracker) Records() []ir.DerivationRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []ir.DerivationRecord
	for _, byFact := range p.records {
		for _, rec := range byFact {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b ir.DerivationRecord) int {
		if a.Time != b.Time {
			return a.Time - b.Time
		}
		return ir.CompareAtoms(a.Fact, b.Fact)
	})
	return out
}

// derivation is a candidate record for one (fact, timestep) pair produced
// during a pass.
type derivation struct {
	ruleIndex int
	rule      string
	premises  []ir.Premise
}

// before orders competing candidates: lowest rule declaration index first,
// then the lowest premise key.
func (d derivation) before(o derivation) bool {
	if d.ruleIndex != o.ruleIndex {
		return d.ruleIndex < o.ruleIndex
	}
	return premiseKey(d.premises) < premiseKey(o.premises)
}

func premiseKey(premises []ir.Premise) string {
	var b strings.Builder
	for i, p := range premises {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(p.Atom.Key())
	}
	return b.String()
}

// DerivationTree explains why a fact holds at a timestep.
//
// Inner nodes carry the rule that first derived the fact; leaves are
// caller-added base facts and carry the caller's ID. Shared premises are
// shared nodes, so the tree is a DAG in memory.
type DerivationTree struct {
	Fact     ir.Atom           `json:"fact"`
	Time     int               `json:"time"`
	Rule     string            `json:"rule,omitempty"`
	BaseID   string            `json:"base_id,omitempty"`
	Premises []*DerivationTree `json:"premises,omitempty"`
}

// IsBase reports whether the node is a caller-added fact.
func (d *DerivationTree) IsBase() bool {
	return d.Rule == ""
}

// Leaves returns the distinct base facts the derivation rests on, in
// depth-first order.
func (d *DerivationTree) Leaves() []*DerivationTree {
	var out []*DerivationTree
	seen := make(map[*DerivationTree]bool)
	stack := []*DerivationTree{d}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		if n.IsBase() {
			out = append(out, n)
			continue
		}
		for i := len(n.Premises) - 1; i >= 0; i-- {
			stack = append(stack, n.Premises[i])
		}
	}
	return out
}

// Render formats the tree as indented text. A subtree reached a second
// time is printed once and referenced afterwards.
//
//	atRisk(s2) @1 by cascade
//	  supplies(s1,s2) @0 [base edge-1]
//	  atRisk(s1) @0 by direct
//	    disrupted(s1) @0 [base seed-1]
func (d *DerivationTree) Render() string {
	type frame struct {
		node  *DerivationTree
		depth int
	}

	var b strings.Builder
	seen := make(map[*DerivationTree]bool)
	stack := []frame{{node: d}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		b.WriteString(strings.Repeat("  ", f.depth))
		b.WriteString(f.node.Fact.Key())
		b.WriteString(" @")
		b.WriteString(strconv.Itoa(f.node.Time))
		switch {
		case f.node.IsBase():
			b.WriteString(" [base")
			if f.node.BaseID != "" {
				b.WriteByte(' ')
				b.WriteString(f.node.BaseID)
			}
			b.WriteByte(']')
		case seen[f.node]:
			b.WriteString(" by ")
			b.WriteString(f.node.Rule)
			b.WriteString(" (see above)")
		default:
			b.WriteString(" by ")
			b.WriteString(f.node.Rule)
			seen[f.node] = true
			for i := len(f.node.Premises) - 1; i >= 0; i-- {
				stack = append(stack, frame{node: f.node.Premises[i], depth: f.depth + 1})
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

type explainKey struct {
	fact string
	time int
}

// explain builds the derivation tree of a fact at t. Premises are resolved
// with an explicit work list and memoized per (fact, timestep), so deep
// chains do not grow the call stack and shared premises are built once.
func explain(a ir.Atom, t int, prov *ProvenanceTracker, baseIDs map[string]string) *DerivationTree {
	nodes := make(map[explainKey]*DerivationTree)
	records := make(map[explainKey]ir.DerivationRecord)

	root := explainKey{fact: a.Key(), time: t}
	nodes[root] = &DerivationTree{Fact: a, Time: t}
	work := []explainKey{root}
	for len(work) > 0 {
		k := work[len(work)-1]
		work = work[:len(work)-1]
		n := nodes[k]

		rec, derived := prov.Lookup(n.Fact, n.Time)
		if !derived {
			n.BaseID = baseIDs[k.fact]
			continue
		}
		n.Rule = rec.Rule
		records[k] = rec
		for _, p := range rec.Premises {
			pk := explainKey{fact: p.Atom.Key(), time: p.Time}
			if _, ok := nodes[pk]; ok {
				continue
			}
			nodes[pk] = &DerivationTree{Fact: p.Atom, Time: p.Time}
			work = append(work, pk)
		}
	}

	for k, rec := range records {
		n := nodes[k]
		n.Premises = make([]*DerivationTree, len(rec.Premises))
		for i, p := range rec.Premises {
			n.Premises[i] = nodes[explainKey{fact: p.Atom.Key(), time: p.Time}]
		}
	}
	return nodes[root]
}
