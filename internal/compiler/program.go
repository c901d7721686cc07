package compiler

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/chronolog/internal/ir"
)

// Program is the file form of a rule set plus its base facts.
//
// YAML:
//
//	rules:
//	  - name: direct
//	    rule: "atRisk(X) <- disrupted(X)"
//	facts:
//	  - fact: "disrupted(s1) : [0,0]"
//	    id: seed-1
//
// CUE uses the same field names.
type Program struct {
	Rules []RuleEntry `yaml:"rules" json:"rules"`
	Facts []FactEntry `yaml:"facts" json:"facts"`
}

// RuleEntry is one rule in text form.
type RuleEntry struct {
	Name string `yaml:"name" json:"name"`
	Rule string `yaml:"rule" json:"rule"`
}

// FactEntry is one fact in text form with an optional provenance tag.
type FactEntry struct {
	Fact string `yaml:"fact" json:"fact"`
	ID   string `yaml:"id,omitempty" json:"id,omitempty"`
}

// Compiled holds the typed form of a Program.
type Compiled struct {
	Rules []ir.Rule
	Facts []ir.TimedFact
}

// Sink receives compiled rules and facts. Implemented by engine.Engine.
type Sink interface {
	AddRuleIR(rule ir.Rule) error
	AddTimedFact(fact ir.TimedFact) error
}

// LoadMode controls how errors are handled while compiling a program.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Compile parses every entry. Errors carry the 1-based entry position in
// Line: rules are numbered first, then facts.
func (p *Program) Compile(mode LoadMode) (*Compiled, []error) {
	out := &Compiled{}
	var errs []error

	seen := make(map[string]bool, len(p.Rules))
	for i, entry := range p.Rules {
		name := entry.Name
		if name == "" {
			name = fmt.Sprintf("rule%d", i+1)
		}
		if seen[name] {
			errs = append(errs, ValidationError{
				Field:   "rule " + name,
				Message: "duplicate rule name",
				Code:    ErrDuplicateRule,
				Line:    i + 1,
			})
		} else {
			seen[name] = true
			rule, err := ParseRule(entry.Rule, name)
			if err != nil {
				errs = append(errs, withLine(err, i+1))
			} else {
				out.Rules = append(out.Rules, rule)
			}
		}
		if mode == LoadModeFailFast && len(errs) > 0 {
			return nil, errs
		}
	}

	for i, entry := range p.Facts {
		fact, err := ParseFact(entry.Fact)
		if err != nil {
			errs = append(errs, withLine(err, len(p.Rules)+i+1))
			if mode == LoadModeFailFast {
				return nil, errs
			}
			continue
		}
		fact.ID = entry.ID
		out.Facts = append(out.Facts, fact)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// Apply feeds compiled rules and facts into a sink, stopping at the first
// rejected entry.
func (c *Compiled) Apply(sink Sink) error {
	for _, r := range c.Rules {
		if err := sink.AddRuleIR(r); err != nil {
			return fmt.Errorf("add rule %s: %w", r.Name, err)
		}
	}
	for _, f := range c.Facts {
		if err := sink.AddTimedFact(f); err != nil {
			return fmt.Errorf("add fact %s: %w", f.Atom.Key(), err)
		}
	}
	return nil
}

func withLine(err error, line int) error {
	switch e := err.(type) {
	case ValidationError:
		e.Line = line
		return e
	case ValidationErrors:
		out := make(ValidationErrors, len(e))
		for i, ve := range e {
			ve.Line = line
			out[i] = ve
		}
		return out
	default:
		return fmt.Errorf("line %d: %w", line, err)
	}
}

// LoadProgram reads a program file. The format follows the extension:
// .yaml/.yml for YAML, .cue for CUE, .chl for plain rule text.
func LoadProgram(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAMLProgram(data)
	case ".cue":
		return ParseCUEProgram(data, path)
	case ".chl":
		return ParseTextProgram(data), nil
	default:
		return nil, fmt.Errorf("unsupported program format %q (want .yaml, .yml, .cue or .chl)", filepath.Ext(path))
	}
}

// ParseYAMLProgram decodes a YAML program. Unknown fields are rejected.
func ParseYAMLProgram(data []byte) (*Program, error) {
	var p Program
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse YAML program: %w", err)
	}
	return &p, nil
}

// ParseTextProgram reads one statement per line. A line containing "<-" is
// a rule, anything else is a fact. Lines starting with '#' or '%' are
// comments. A rule may be named with a leading "name =":
//
//	% supply chain
//	cascade = atRisk(X) <-1 supplies(Y, X), atRisk(Y)
//	disrupted(s1) : [0,0]
//
// Statements are only split into entries here; parsing happens in Compile
// so errors carry their entry position.
func ParseTextProgram(data []byte) *Program {
	p := &Program{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' || line[0] == '%' {
			continue
		}
		if indexTopLevel(line, "<-") < 0 {
			p.Facts = append(p.Facts, FactEntry{Fact: line})
			continue
		}
		entry := RuleEntry{Rule: line}
		if name, rest, ok := strings.Cut(line, "="); ok && isRuleName(strings.TrimSpace(name)) {
			entry.Name = strings.TrimSpace(name)
			entry.Rule = strings.TrimSpace(rest)
		}
		p.Rules = append(p.Rules, entry)
	}
	return p
}

func isRuleName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			return false
		}
	}
	return true
}

// ParseCUEProgram compiles CUE source and extracts the program from it.
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
func ParseCUEProgram(data []byte, filename string) (*Program, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	return CompileProgram(v)
}

// CompileProgram reads "rules" and "facts" lists from a CUE value.
// Both lists are optional.
func CompileProgram(v cue.Value) (*Program, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	p := &Program{}

	rules, err := listElems(v, "rules")
	if err != nil {
		return nil, err
	}
	for _, elem := range rules {
		name, err := optionalString(elem, "name")
		if err != nil {
			return nil, err
		}
		text, err := requiredString(elem, "rule")
		if err != nil {
			return nil, err
		}
		p.Rules = append(p.Rules, RuleEntry{Name: name, Rule: text})
	}

	facts, err := listElems(v, "facts")
	if err != nil {
		return nil, err
	}
	for _, elem := range facts {
		text, err := requiredString(elem, "fact")
		if err != nil {
			return nil, err
		}
		id, err := optionalString(elem, "id")
		if err != nil {
			return nil, err
		}
		p.Facts = append(p.Facts, FactEntry{Fact: text, ID: id})
	}

	return p, nil
}

func listElems(v cue.Value, field string) ([]cue.Value, error) {
	lv := v.LookupPath(cue.ParsePath(field))
	if !lv.Exists() {
		return nil, nil
	}
	iter, err := lv.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list", Pos: lv.Pos()}
	}
	var out []cue.Value
	for iter.Next() {
		out = append(out, iter.Value())
	}
	return out, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// CompileError represents a CUE compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
