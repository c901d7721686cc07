package engine

// DefaultPassCeilingFactor scales the derived pass ceiling.
const DefaultPassCeilingFactor = 64

// passQuota counts fixpoint passes and enforces the pass ceiling.
//
// Safe rule sets always quiesce: derivations are deduplicated and bounded by
// maxTimesteps, and every non-final pass commits at least one new pair. The
// ceiling turns a runaway rule set into a diagnostic instead of a hang.
type passQuota struct {
	max     int
	current int
}

// passCeiling derives the ceiling from the horizon and rule count unless an
// explicit maximum is set.
func passCeiling(maxTimesteps, rules, factor, explicit int) int {
	if explicit > 0 {
		return explicit
	}
	if factor <= 0 {
		factor = DefaultPassCeilingFactor
	}
	return (maxTimesteps + 1) * (rules + 1) * factor
}

func newPassQuota(limit int) *passQuota {
	return &passQuota{max: limit}
}

// Check increments the pass counter and validates it against the ceiling.
func (q *passQuota) Check(runID string) error {
	q.current++
	if q.current > q.max {
		return NewPassCeilingError(runID, q.current, q.max)
	}
	return nil
}

// Current returns the number of passes started.
func (q *passQuota) Current() int {
	return q.current
}
