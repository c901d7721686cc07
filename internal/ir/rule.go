package ir

import (
	"strconv"
	"strings"
)

// Rule is a Horn clause with a delay and an optional head window.
//
// When the body is satisfied at timestep t, the grounded head holds at
// t+Delay, provided t+Delay lies inside HeadWindow (when set).
type Rule struct {
	Name       string       `json:"name"`
	Head       Atom         `json:"head"`
	HeadWindow *IntervalSet `json:"head_window,omitempty"`
	Delay      int          `json:"delay"`
	Body       []Literal    `json:"body"`
}

// BodyPredicates returns the distinct predicate/arity keys of the body,
// positive and negated, in body order.
func (r Rule) BodyPredicates() []string {
	var keys []string
	seen := make(map[string]bool, len(r.Body))
	for _, lit := range r.Body {
		k := lit.Atom.IndexKey()
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

// Targets returns the timesteps the head is asserted at when the body holds
// at t, bounded by limit.
func (r Rule) Targets(t, limit int) []int {
	// Compare before adding: t+Delay can overflow for very large delays.
	if r.Delay > limit-t {
		return nil
	}
	tt := t + r.Delay
	if r.HeadWindow != nil && !r.HeadWindow.Contains(tt) {
		return nil
	}
	return []int{tt}
}

// String renders the rule in rule text syntax:
//
//	head(X) : [1,5] <-2 a(X), not b(X)
func (r Rule) String() string {
	var b strings.Builder
	b.WriteString(r.Head.Key())
	if r.HeadWindow != nil {
		b.WriteString(" : ")
		b.WriteString(r.HeadWindow.String())
	}
	b.WriteString(" <-")
	if r.Delay > 0 {
		b.WriteString(strconv.Itoa(r.Delay))
	}
	b.WriteByte(' ')
	for i, lit := range r.Body {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(lit.String())
	}
	return b.String()
}
