package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainFact     = "chronolog/fact/v1"
	DomainSnapshot = "chronolog/snapshot/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func atomValue(a Atom) map[string]any {
	return map[string]any{
		"predicate": a.Predicate,
		"args":      a.Args,
	}
}

// FactID computes a content-addressed ID for a ground atom.
// Used when the caller does not tag a fact with its own ID.
func FactID(a Atom) (string, error) {
	canonical, err := MarshalCanonical(atomValue(a))
	if err != nil {
		return "", fmt.Errorf("FactID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainFact, canonical), nil
}

// SnapshotDigest hashes the logical content of a snapshot: the static facts,
// every frame and every derivation record. RunID and Passes are excluded so
// two evaluators producing the same interpretation produce the same digest.
func SnapshotDigest(s Snapshot) (string, error) {
	static := make([]any, len(s.Static))
	for i, a := range s.Static {
		static[i] = atomValue(a)
	}

	frames := make([]any, len(s.Frames))
	for t, frame := range s.Frames {
		atoms := make([]any, len(frame))
		for i, a := range frame {
			atoms[i] = atomValue(a)
		}
		frames[t] = atoms
	}

	derivations := make([]any, len(s.Derivations))
	for i, d := range s.Derivations {
		premises := make([]any, len(d.Premises))
		for j, p := range d.Premises {
			premises[j] = map[string]any{
				"atom": atomValue(p.Atom),
				"time": p.Time,
			}
		}
		derivations[i] = map[string]any{
			"fact":     atomValue(d.Fact),
			"time":     d.Time,
			"rule":     d.Rule,
			"premises": premises,
		}
	}

	canonical, err := MarshalCanonical(map[string]any{
		"max_timesteps": s.MaxTimesteps,
		"static":        static,
		"frames":        frames,
		"derivations":   derivations,
	})
	if err != nil {
		return "", fmt.Errorf("SnapshotDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// MustFactID is like FactID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFactID(a Atom) string {
	id, err := FactID(a)
	if err != nil {
		panic(err)
	}
	return id
}
