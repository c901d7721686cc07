package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/chronolog/internal/ir"
)

// DependencyWarning reports a recursive group of predicates.
//
// Recursion is legal and common (transitive closure). It is reported at
// "info" level. Recursion through a negated literal is reported at
// "warning" level: negation is evaluated as single-pass negation-as-failure
// against the pass snapshot, so such programs have no stratified meaning.
type DependencyWarning struct {
	Predicates []string `json:"predicates"` // SCC members, sorted
	Rules      []string `json:"rules"`      // rules whose head is in the SCC
	Negated    bool     `json:"negated"`    // some edge inside the SCC is negated
	Message    string   `json:"message"`
	Level      string   `json:"level"` // "warning" or "info"
}

// predGraph maps head predicate -> body predicates it depends on.
type predGraph struct {
	edges   map[string][]string
	negated map[[2]string]bool
	rulesBy map[string][]string
}

// AnalyzeDependencies builds the predicate dependency graph of a rule set
// and reports each recursive strongly connected component.
//
// The algorithm:
//  1. Add an edge head -> body predicate for every literal of every rule
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop
//
// A non-recursive program returns an empty list. Output is sorted so it is
// stable across runs.
func AnalyzeDependencies(rules []ir.Rule) []DependencyWarning {
	if len(rules) == 0 {
		return []DependencyWarning{}
	}

	g := buildPredGraph(rules)
	var warnings []DependencyWarning
	for _, scc := range tarjanSCC(g.edges) {
		if len(scc) == 1 && !slices.Contains(g.edges[scc[0]], scc[0]) {
			continue
		}
		warnings = append(warnings, g.sccWarning(scc))
	}

	slices.SortFunc(warnings, func(a, b DependencyWarning) int {
		return strings.Compare(a.Predicates[0], b.Predicates[0])
	})
	if warnings == nil {
		return []DependencyWarning{}
	}
	return warnings
}

func buildPredGraph(rules []ir.Rule) predGraph {
	g := predGraph{
		edges:   make(map[string][]string),
		negated: make(map[[2]string]bool),
		rulesBy: make(map[string][]string),
	}
	for _, r := range rules {
		head := r.Head.IndexKey()
		g.rulesBy[head] = append(g.rulesBy[head], r.Name)
		if _, ok := g.edges[head]; !ok {
			g.edges[head] = []string{}
		}
		for _, lit := range r.Body {
			body := lit.Atom.IndexKey()
			if !slices.Contains(g.edges[head], body) {
				g.edges[head] = append(g.edges[head], body)
			}
			if _, ok := g.edges[body]; !ok {
				g.edges[body] = []string{}
			}
			if lit.Negated {
				g.negated[[2]string{head, body}] = true
			}
		}
	}
	return g
}

func (g predGraph) sccWarning(scc []string) DependencyWarning {
	slices.Sort(scc)
	members := make(map[string]bool, len(scc))
	for _, p := range scc {
		members[p] = true
	}

	var rules []string
	negated := false
	for _, p := range scc {
		rules = append(rules, g.rulesBy[p]...)
		for _, q := range g.edges[p] {
			if members[q] && g.negated[[2]string{p, q}] {
				negated = true
			}
		}
	}
	slices.Sort(rules)

	w := DependencyWarning{
		Predicates: scc,
		Rules:      rules,
		Negated:    negated,
		Level:      "info",
		Message:    fmt.Sprintf("recursive predicates: %s", strings.Join(scc, ", ")),
	}
	if negated {
		w.Level = "warning"
		w.Message = fmt.Sprintf("negation through recursion: %s (evaluated as single-pass negation-as-failure)", strings.Join(scc, ", "))
	}
	return w
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so the result is deterministic.
func tarjanSCC(graph map[string][]string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}
