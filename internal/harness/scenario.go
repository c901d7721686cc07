package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/chronolog/internal/compiler"
)

// Scenario defines a reasoning test scenario.
// A scenario names a program, a horizon and the worker counts to reason at,
// then asserts on the resulting interpretation.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is an optional program file (.yaml, .yml, .cue or .chl).
	// LoadScenario resolves it relative to the scenario file.
	Program string `yaml:"program,omitempty"`

	// Rules and Facts are inline program entries, added after Program.
	Rules []compiler.RuleEntry `yaml:"rules,omitempty"`
	Facts []compiler.FactEntry `yaml:"facts,omitempty"`

	// MaxT is the last timestep to reason about.
	MaxT int `yaml:"max_t"`

	// Workers lists the worker counts to reason at. Every count must produce
	// the same interpretation. Defaults to [1].
	Workers []int `yaml:"workers,omitempty"`

	// RunID is an optional fixed run ID.
	// If empty, defaults to "test-run-default" for deterministic golden output.
	RunID string `yaml:"run_id,omitempty"`

	// Assertions validate the interpretation.
	// Supported types: holds, absent, count, first_at, explainable
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates the interpretation.
type Assertion struct {
	// Type specifies the assertion type:
	// - "holds": fact is true at every timestep in At
	// - "absent": fact is false at every timestep in At
	// - "count": predicate has Count facts at Time, or Counts[t] at each t
	// - "first_at": fact first holds at Time
	// - "explainable": fact at Time has a derivation resting on base facts,
	//   optionally first derived by Rule
	Type string `yaml:"type"`

	// Fact is a ground atom, e.g. "atRisk(s1)".
	Fact string `yaml:"fact,omitempty"`

	// At lists timesteps (holds, absent). Empty means every timestep.
	At []int `yaml:"at,omitempty"`

	// Time is a single timestep (count, first_at, explainable).
	Time *int `yaml:"time,omitempty"`

	// Predicate is a predicate name (count).
	Predicate string `yaml:"predicate,omitempty"`

	// Count is the expected number of facts at Time (count).
	Count *int `yaml:"count,omitempty"`

	// Counts is the expected number of facts at each timestep from 0 (count).
	Counts []int `yaml:"counts,omitempty"`

	// Rule is the expected deriving rule (explainable).
	Rule string `yaml:"rule,omitempty"`
}

// Assertion type constants.
const (
	AssertHolds       = "holds"
	AssertAbsent      = "absent"
	AssertCount       = "count"
	AssertFirstAt     = "first_at"
	AssertExplainable = "explainable"
)

// DefaultRunID is the run ID used when a scenario does not set one.
const DefaultRunID = "test-run-default"

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative Program path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Program != "" && !filepath.IsAbs(scenario.Program) {
		scenario.Program = filepath.Join(filepath.Dir(path), scenario.Program)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return scenario, nil
}

// ParseScenario decodes scenario YAML without validating it.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields so typos like "assertion:" fail loudly
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Program == "" && len(s.Rules) == 0 && len(s.Facts) == 0 {
		return fmt.Errorf("program or inline rules/facts are required")
	}

	if s.Program != "" {
		if _, err := os.Stat(s.Program); os.IsNotExist(err) {
			return fmt.Errorf("program file not found: %s", s.Program)
		}
	}

	if s.MaxT < 0 {
		return fmt.Errorf("max_t must be non-negative, got %d", s.MaxT)
	}

	for i, w := range s.Workers {
		if w < 1 {
			return fmt.Errorf("workers[%d]: must be at least 1, got %d", i, w)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertHolds, AssertAbsent:
		if err := validateFact(index, a); err != nil {
			return err
		}
	case AssertCount:
		if a.Predicate == "" {
			return fmt.Errorf("assertions[%d]: predicate is required for count", index)
		}
		switch {
		case len(a.Counts) > 0:
			if a.Time != nil || a.Count != nil {
				return fmt.Errorf("assertions[%d]: counts excludes time and count", index)
			}
		case a.Time == nil || a.Count == nil:
			return fmt.Errorf("assertions[%d]: time and count (or counts) are required for count", index)
		case *a.Count < 0:
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertFirstAt, AssertExplainable:
		if err := validateFact(index, a); err != nil {
			return err
		}
		if a.Time == nil {
			return fmt.Errorf("assertions[%d]: time is required for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func validateFact(index int, a *Assertion) error {
	if a.Fact == "" {
		return fmt.Errorf("assertions[%d]: fact is required for %s", index, a.Type)
	}
	atom, err := compiler.ParseAtom(a.Fact)
	if err != nil {
		return fmt.Errorf("assertions[%d]: %w", index, err)
	}
	if !atom.IsGround() {
		return fmt.Errorf("assertions[%d]: fact %s must be ground", index, a.Fact)
	}
	return nil
}
