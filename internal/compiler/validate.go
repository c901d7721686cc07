package compiler

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/chronolog/internal/ir"
)

// Validation error codes (E200-E299)
const (
	// Text errors (E200-E203)
	ErrSyntax            = "E200" // malformed rule or fact text
	ErrInvalidPredicate  = "E201" // predicate name is empty or not lower-case leading
	ErrEmptyArgument     = "E202" // empty argument between commas
	ErrMalformedInterval = "E203" // start > end, negative start, or unparsable range

	// Rule errors (E210-E219)
	ErrNegativeDelay      = "E210" // delay must be >= 0
	ErrEmptyBody          = "E211" // rule needs at least one body literal
	ErrUnsafeHeadVariable = "E212" // head variable not bound by a positive body literal
	ErrUnsafeNegation     = "E213" // negated variable not bound by an earlier positive literal
	ErrDuplicateRule      = "E214" // rule name already registered
	ErrEmptyHeadWindow    = "E215" // head window contains no timestep

	// Fact errors (E220-E229)
	ErrNonGroundFact = "E220" // facts must not contain variables

	// Run errors (E230-E239)
	ErrNegativeHorizon = "E230" // maxTimesteps must be >= 0
)

// ValidationError represents a configuration error in a rule or fact.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	if errors.As(err, &ve) {
		return true
	}
	var vp *ValidationError
	return errors.As(err, &vp)
}

// ValidationErrors joins several validation errors into one error value.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (errs ValidationErrors) Error() string {
	switch len(errs) {
	case 0:
		return "no validation errors"
	case 1:
		return errs[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more)", errs[0].Error(), len(errs)-1)
	}
}

// As lets errors.As find the first ValidationError.
func (errs ValidationErrors) As(target any) bool {
	if len(errs) == 0 {
		return false
	}
	switch t := target.(type) {
	case *ValidationError:
		*t = errs[0]
		return true
	case **ValidationError:
		first := errs[0]
		*t = &first
		return true
	}
	return false
}

// ErrorOrNil returns nil for an empty list.
func (errs ValidationErrors) ErrorOrNil() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ValidateRule checks a rule's safety conditions.
// Returns all errors found (does not fail-fast).
func ValidateRule(rule ir.Rule) []ValidationError {
	var errs []ValidationError
	field := "rule"
	if rule.Name != "" {
		field = "rule " + rule.Name
	}

	errs = append(errs, validateAtomShape(rule.Head, field+" head")...)

	if rule.Delay < 0 {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("delay must be non-negative, got %d", rule.Delay),
			Code:    ErrNegativeDelay,
		})
	}

	if rule.HeadWindow != nil && rule.HeadWindow.Empty() {
		errs = append(errs, ValidationError{
			Field:   field + " head window",
			Message: "head window contains no timestep",
			Code:    ErrEmptyHeadWindow,
		})
	}

	if len(rule.Body) == 0 {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: "rule body must contain at least one literal",
			Code:    ErrEmptyBody,
		})
		return errs
	}

	// bound tracks variables bound by positive literals seen so far.
	bound := make(map[string]bool)
	for i, lit := range rule.Body {
		litField := fmt.Sprintf("%s body[%d]", field, i)
		errs = append(errs, validateAtomShape(lit.Atom, litField)...)

		if !lit.Negated {
			for _, v := range lit.Atom.Variables() {
				bound[v] = true
			}
			continue
		}
		for _, v := range lit.Atom.Variables() {
			if !bound[v] {
				errs = append(errs, ValidationError{
					Field:   litField,
					Message: fmt.Sprintf("variable %s in negated literal %s is not bound by an earlier positive literal", v, lit.Atom.Key()),
					Code:    ErrUnsafeNegation,
				})
			}
		}
	}

	for _, v := range rule.Head.Variables() {
		if !bound[v] {
			errs = append(errs, ValidationError{
				Field:   field + " head",
				Message: fmt.Sprintf("head variable %s does not occur in any positive body literal", v),
				Code:    ErrUnsafeHeadVariable,
			})
		}
	}

	return errs
}

// ValidateFact checks that a fact is a well-formed ground atom.
func ValidateFact(fact ir.TimedFact) []ValidationError {
	field := "fact " + fact.Atom.Key()
	errs := validateAtomShape(fact.Atom, field)
	for _, v := range fact.Atom.Variables() {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("facts must be ground, found variable %s", v),
			Code:    ErrNonGroundFact,
		})
	}
	for _, iv := range fact.Intervals.Ranges() {
		if !iv.Valid() {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("malformed interval %s", iv),
				Code:    ErrMalformedInterval,
			})
		}
	}
	return errs
}

// ValidateIntervals checks caller-supplied ranges before they are normalized.
func ValidateIntervals(field string, ranges []ir.Interval) []ValidationError {
	var errs []ValidationError
	for _, iv := range ranges {
		if !iv.Valid() {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("malformed interval %s: start must be >= 0 and <= end", iv),
				Code:    ErrMalformedInterval,
			})
		}
	}
	return errs
}

func validateAtomShape(a ir.Atom, field string) []ValidationError {
	var errs []ValidationError
	if !isValidPredicate(a.Predicate) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid predicate %q: must be non-empty and start with a lower-case letter", a.Predicate),
			Code:    ErrInvalidPredicate,
		})
	}
	for i, arg := range a.Args {
		if arg == "" {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("argument %d of %s is empty", i, a.Predicate),
				Code:    ErrEmptyArgument,
			})
		}
	}
	return errs
}

func isValidPredicate(p string) bool {
	r, _ := utf8.DecodeRuneInString(p)
	return r != utf8.RuneError && unicode.IsLower(r)
}
