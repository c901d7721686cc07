package ir

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Interval is a closed range of timesteps [Start, End].
type Interval struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Valid reports whether the interval is well formed.
func (iv Interval) Valid() bool {
	return iv.Start >= 0 && iv.Start <= iv.End
}

// Contains reports whether t lies inside the interval.
func (iv Interval) Contains(t int) bool {
	return t >= iv.Start && t <= iv.End
}

// String renders the interval as "[start,end]".
func (iv Interval) String() string {
	return fmt.Sprintf("[%d,%d]", iv.Start, iv.End)
}

// IntervalSet is a sorted set of disjoint, non-adjacent intervals.
//
// The zero value is the empty set. Use NewIntervalSet to build one from
// arbitrary (possibly overlapping) ranges.
type IntervalSet struct {
	ranges []Interval
}

// NewIntervalSet normalizes the given ranges: sorts them and coalesces
// overlapping or adjacent ranges. Invalid ranges are rejected.
func NewIntervalSet(ranges ...Interval) (IntervalSet, error) {
	for _, r := range ranges {
		if !r.Valid() {
			return IntervalSet{}, fmt.Errorf("invalid interval %s", r)
		}
	}
	return IntervalSet{ranges: coalesce(ranges)}, nil
}

// MustIntervalSet is like NewIntervalSet but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustIntervalSet(ranges ...Interval) IntervalSet {
	s, err := NewIntervalSet(ranges...)
	if err != nil {
		panic(err)
	}
	return s
}

func coalesce(ranges []Interval) []Interval {
	if len(ranges) == 0 {
		return nil
	}
	sorted := slices.Clone(ranges)
	slices.SortFunc(sorted, func(a, b Interval) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.End, b.End)
	})

	out := []Interval{sorted[0]}
	for _, r := range sorted[1:] {
		last := &out[len(out)-1]
		// End+1 would wrap at MaxInt; Start is never negative.
		if r.Start-1 <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// Empty reports whether the set has no timesteps.
func (s IntervalSet) Empty() bool {
	return len(s.ranges) == 0
}

// Ranges returns a copy of the normalized ranges.
func (s IntervalSet) Ranges() []Interval {
	return slices.Clone(s.ranges)
}

// Contains reports whether t is in the set. Binary search over the ranges.
func (s IntervalSet) Contains(t int) bool {
	_, found := slices.BinarySearchFunc(s.ranges, t, func(r Interval, t int) int {
		switch {
		case r.End < t:
			return -1
		case r.Start > t:
			return 1
		default:
			return 0
		}
	})
	return found
}

// Union returns the set of timesteps in either set.
func (s IntervalSet) Union(o IntervalSet) IntervalSet {
	all := make([]Interval, 0, len(s.ranges)+len(o.ranges))
	all = append(all, s.ranges...)
	all = append(all, o.ranges...)
	return IntervalSet{ranges: coalesce(all)}
}

// Intersect returns the set of timesteps in both sets.
func (s IntervalSet) Intersect(o IntervalSet) IntervalSet {
	var out []Interval
	i, j := 0, 0
	for i < len(s.ranges) && j < len(o.ranges) {
		a, b := s.ranges[i], o.ranges[j]
		lo := max(a.Start, b.Start)
		hi := min(a.End, b.End)
		if lo <= hi {
			out = append(out, Interval{Start: lo, End: hi})
		}
		if a.End < b.End {
			i++
		} else {
			j++
		}
	}
	return IntervalSet{ranges: out}
}

// Timesteps lists every timestep in the set up to and including limit.
func (s IntervalSet) Timesteps(limit int) []int {
	var out []int
	for _, r := range s.ranges {
		if r.Start > limit {
			break
		}
		for t := r.Start; t <= min(r.End, limit); t++ {
			out = append(out, t)
		}
	}
	return out
}

// String renders the set as "[a,b],[c,d]".
func (s IntervalSet) String() string {
	parts := make([]string, len(s.ranges))
	for i, r := range s.ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

// MarshalJSON encodes the set as an array of intervals.
func (s IntervalSet) MarshalJSON() ([]byte, error) {
	if s.ranges == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.ranges)
}

// UnmarshalJSON decodes an array of intervals and normalizes it.
func (s *IntervalSet) UnmarshalJSON(data []byte) error {
	var ranges []Interval
	if err := json.Unmarshal(data, &ranges); err != nil {
		return err
	}
	set, err := NewIntervalSet(ranges...)
	if err != nil {
		return err
	}
	*s = set
	return nil
}
