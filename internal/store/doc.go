// Package store provides SQLite-backed durable storage for finished
// interpretations.
//
// The store keeps one snapshot per Reason call:
//   - Runs: run ID, digest, horizon, pass count and versions
//   - Base facts: caller-added facts with their opaque IDs
//   - Facts: static facts (timestep -1) and the frame of every timestep
//   - Derivations: the first derivation of every derived (fact, timestep)
//
// # Critical Patterns
//
// Content-addressed fact identity
//   - fact_id is ir.FactID (SHA-256 over canonical JSON with domain separation)
//   - (run_id, timestep, fact_id) is unique, so a frame holds a fact once
//
// Logical ordering
//   - runs are ordered by seq (save order), NEVER timestamps
//   - rows carry their position in the snapshot (ord) and every query
//     orders by it, so LoadSnapshot returns exactly what was saved
//
// Integrity
//   - SaveSnapshot stores ir.SnapshotDigest and LoadSnapshot recomputes it
//   - saving a run ID twice is a no-op; the first snapshot wins
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
