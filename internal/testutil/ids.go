// Package testutil provides deterministic helpers for tests.
package testutil

import (
	"fmt"
	"sync"
)

// FixedIDGenerator returns the same run ID every time.
//
// This enables golden snapshot comparison: the same scenario with the same
// FixedIDGenerator produces byte-identical snapshots.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator that always returns id.
// If id is empty, Generate() returns "test-run-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed run ID.
//
// Implements engine.IDGenerator interface.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}

// SequenceIDGenerator returns "<prefix>-1", "<prefix>-2", ... in order.
//
// Unlike FixedIDGenerator, every Reason call gets a distinct ID, which tests
// of the snapshot store need. Reset restarts the sequence so a scenario can
// be replayed with identical IDs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequenceIDGenerator struct {
	mu     sync.Mutex
	prefix string
	seq    int
}

// NewSequenceIDGenerator creates a generator starting at 1.
func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	if prefix == "" {
		prefix = "run"
	}
	return &SequenceIDGenerator{prefix: prefix}
}

// Generate returns the next ID in the sequence.
func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Reset restarts the sequence at 1.
func (g *SequenceIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
