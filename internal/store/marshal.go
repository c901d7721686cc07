package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/chronolog/internal/ir"
)

// marshalArgs converts atom arguments to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so equal atoms are stored byte-identically.
func marshalArgs(args []string) (string, error) {
	if args == nil {
		args = []string{}
	}
	data, err := ir.MarshalCanonical(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs parses canonical JSON TEXT to atom arguments.
// Always returns a non-nil slice, matching ir.NewAtom.
func unmarshalArgs(data string) ([]string, error) {
	args := []string{}
	if data == "" || data == "[]" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(data), &args); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return args, nil
}

// marshalPremises converts derivation premises to canonical JSON TEXT.
func marshalPremises(premises []ir.Premise) (string, error) {
	values := make([]any, len(premises))
	for i, p := range premises {
		args := p.Atom.Args
		if args == nil {
			args = []string{}
		}
		values[i] = map[string]any{
			"atom": map[string]any{
				"predicate": p.Atom.Predicate,
				"args":      args,
			},
			"time": p.Time,
		}
	}
	data, err := ir.MarshalCanonical(values)
	if err != nil {
		return "", fmt.Errorf("marshal premises: %w", err)
	}
	return string(data), nil
}

// unmarshalPremises parses canonical JSON TEXT to premises.
func unmarshalPremises(data string) ([]ir.Premise, error) {
	premises := []ir.Premise{}
	if data == "" || data == "[]" {
		return premises, nil
	}
	if err := json.Unmarshal([]byte(data), &premises); err != nil {
		return nil, fmt.Errorf("unmarshal premises: %w", err)
	}
	for i := range premises {
		if premises[i].Atom.Args == nil {
			premises[i].Atom.Args = []string{}
		}
	}
	return premises, nil
}

// atomRow is the stored form of an atom: its content-addressed ID plus the
// predicate and canonical argument text.
type atomRow struct {
	id        string
	predicate string
	args      string
}

func newAtomRow(a ir.Atom) (atomRow, error) {
	id, err := ir.FactID(a)
	if err != nil {
		return atomRow{}, err
	}
	args, err := marshalArgs(a.Args)
	if err != nil {
		return atomRow{}, err
	}
	return atomRow{id: id, predicate: a.Predicate, args: args}, nil
}

func (r atomRow) atom() (ir.Atom, error) {
	args, err := unmarshalArgs(r.args)
	if err != nil {
		return ir.Atom{}, err
	}
	return ir.Atom{Predicate: r.predicate, Args: args}, nil
}
