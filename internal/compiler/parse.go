package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/roach88/chronolog/internal/ir"
)

// ParseRule parses rule text into a validated rule.
//
// Syntax:
//
//	head(args) [: [start,end]] <-delay body_lit, body_lit, ...
//
// where body_lit is pred(args) or "not pred(args)" and delay is a
// non-negative integer defaulting to 0. A trailing '.' is ignored.
//
// Example:
//
//	atRisk(X) : [0,10] <-1 supplies(Y,X), atRisk(Y), not hedged(X)
func ParseRule(text, name string) (ir.Rule, error) {
	field := "rule"
	if name != "" {
		field = "rule " + name
	}

	src := trimStatement(text)
	arrow := indexTopLevel(src, "<-")
	if arrow < 0 {
		return ir.Rule{}, syntaxError(field, "missing '<-' between head and body in %q", text)
	}

	rule := ir.Rule{Name: name}

	headText, windowText, hasWindow := splitAnnotation(src[:arrow])
	head, err := parseAtom(headText, field+" head")
	if err != nil {
		return ir.Rule{}, err
	}
	rule.Head = head

	if hasWindow {
		ranges, err := parseIntervalList(windowText, field+" head window")
		if err != nil {
			return ir.Rule{}, err
		}
		window, err := ir.NewIntervalSet(ranges...)
		if err != nil {
			return ir.Rule{}, ValidationError{Field: field + " head window", Message: err.Error(), Code: ErrMalformedInterval}
		}
		rule.HeadWindow = &window
	}

	delay, bodyText, err := parseDelay(src[arrow+2:], field)
	if err != nil {
		return ir.Rule{}, err
	}
	rule.Delay = delay

	if strings.TrimSpace(bodyText) != "" {
		for i, litText := range splitTopLevel(bodyText, ',') {
			lit, err := parseLiteral(litText, fmt.Sprintf("%s body[%d]", field, i))
			if err != nil {
				return ir.Rule{}, err
			}
			rule.Body = append(rule.Body, lit)
		}
	}

	if errs := ValidateRule(rule); len(errs) > 0 {
		return ir.Rule{}, ValidationErrors(errs)
	}
	return rule, nil
}

// MustParseRule is like ParseRule but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParseRule(text, name string) ir.Rule {
	r, err := ParseRule(text, name)
	if err != nil {
		panic(err)
	}
	return r
}

// ParseFact parses fact text: a ground atom optionally followed by
// ": [s,e], [s,e] ...". Without intervals the fact is static.
func ParseFact(text string) (ir.TimedFact, error) {
	src := trimStatement(text)
	atomText, ivText, hasIntervals := splitAnnotation(src)

	atom, err := parseAtom(atomText, "fact")
	if err != nil {
		return ir.TimedFact{}, err
	}
	fact := ir.TimedFact{Atom: atom}

	if hasIntervals {
		field := "fact " + atom.Key()
		ranges, err := parseIntervalList(ivText, field)
		if err != nil {
			return ir.TimedFact{}, err
		}
		set, err := ir.NewIntervalSet(ranges...)
		if err != nil {
			return ir.TimedFact{}, ValidationError{Field: field, Message: err.Error(), Code: ErrMalformedInterval}
		}
		fact.Intervals = set
	}

	if errs := ValidateFact(fact); len(errs) > 0 {
		return ir.TimedFact{}, ValidationErrors(errs)
	}
	return fact, nil
}

// ParseAtom parses a single atom, which may contain variables.
// Used for query patterns and explain targets.
func ParseAtom(text string) (ir.Atom, error) {
	return parseAtom(trimStatement(text), "atom")
}

func parseLiteral(text, field string) (ir.Literal, error) {
	s := strings.TrimSpace(text)
	if rest, ok := cutKeyword(s, "not"); ok {
		a, err := parseAtom(rest, field)
		if err != nil {
			return ir.Literal{}, err
		}
		return ir.Not(a), nil
	}
	a, err := parseAtom(s, field)
	if err != nil {
		return ir.Literal{}, err
	}
	return ir.Pos(a), nil
}

// cutKeyword strips a leading keyword followed by white space.
func cutKeyword(s, kw string) (string, bool) {
	if len(s) <= len(kw) || !strings.HasPrefix(s, kw) {
		return s, false
	}
	if !unicode.IsSpace(rune(s[len(kw)])) {
		return s, false
	}
	return strings.TrimSpace(s[len(kw):]), true
}

func parseAtom(text, field string) (ir.Atom, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return ir.Atom{}, syntaxError(field, "empty atom")
	}

	open := strings.IndexByte(s, '(')
	if open < 0 {
		if strings.ContainsAny(s, ")[],: \t") {
			return ir.Atom{}, syntaxError(field, "malformed atom %q", s)
		}
		a := ir.NewAtom(s)
		return a, firstError(validateAtomShape(a, field))
	}
	if !strings.HasSuffix(s, ")") {
		return ir.Atom{}, syntaxError(field, "atom %q is missing ')'", s)
	}

	name := strings.TrimSpace(s[:open])
	inner := s[open+1 : len(s)-1]
	if strings.ContainsAny(name, "()[],: \t") || strings.ContainsAny(inner, "()[]:") {
		return ir.Atom{}, syntaxError(field, "malformed atom %q", s)
	}

	var args []string
	if strings.TrimSpace(inner) != "" {
		for _, arg := range strings.Split(inner, ",") {
			arg = strings.TrimSpace(arg)
			if strings.ContainsFunc(arg, unicode.IsSpace) {
				return ir.Atom{}, syntaxError(field, "argument %q in %q contains white space", arg, s)
			}
			args = append(args, arg)
		}
	}

	a := ir.NewAtom(name, args...)
	return a, firstError(validateAtomShape(a, field))
}

// parseDelay reads the optional integer right after "<-".
func parseDelay(s, field string) (int, string, error) {
	rest := strings.TrimLeft(s, " \t")
	i := 0
	negative := false
	if i < len(rest) && rest[i] == '-' {
		negative = true
		i++
	}
	start := i
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i == start {
		if negative {
			return 0, "", syntaxError(field, "expected delay after '<-'")
		}
		return 0, rest, nil
	}

	n, err := strconv.Atoi(rest[start:i])
	if err != nil {
		return 0, "", syntaxError(field, "invalid delay %q: %v", rest[:i], err)
	}
	if negative {
		return 0, "", ValidationError{
			Field:   field,
			Message: fmt.Sprintf("delay must be non-negative, got -%d", n),
			Code:    ErrNegativeDelay,
		}
	}
	return n, rest[i:], nil
}

// parseIntervalList parses "[s,e], [s,e] ...".
func parseIntervalList(text, field string) ([]ir.Interval, error) {
	var ranges []ir.Interval
	for _, part := range splitTopLevel(text, ',') {
		part = strings.TrimSpace(part)
		if len(part) < 2 || part[0] != '[' || part[len(part)-1] != ']' {
			return nil, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("malformed interval %q: expected [start,end]", part),
				Code:    ErrMalformedInterval,
			}
		}
		bounds := strings.Split(part[1:len(part)-1], ",")
		if len(bounds) != 2 {
			return nil, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("malformed interval %q: expected two bounds", part),
				Code:    ErrMalformedInterval,
			}
		}
		start, err1 := strconv.Atoi(strings.TrimSpace(bounds[0]))
		end, err2 := strconv.Atoi(strings.TrimSpace(bounds[1]))
		if err1 != nil || err2 != nil {
			return nil, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("malformed interval %q: bounds must be integers", part),
				Code:    ErrMalformedInterval,
			}
		}
		ranges = append(ranges, ir.Interval{Start: start, End: end})
	}
	if len(ranges) == 0 {
		return nil, ValidationError{Field: field, Message: "empty interval list", Code: ErrMalformedInterval}
	}
	if errs := ValidateIntervals(field, ranges); len(errs) > 0 {
		return nil, errs[0]
	}
	return ranges, nil
}

// splitAnnotation splits "atom : annotation" at the first top-level colon.
func splitAnnotation(s string) (string, string, bool) {
	i := indexTopLevel(s, ":")
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

// indexTopLevel finds sep outside parentheses and brackets.
func indexTopLevel(s, sep string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		default:
			if depth == 0 && strings.HasPrefix(s[i:], sep) {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits on sep outside parentheses and brackets.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, last := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, s[last:])
}

func trimStatement(s string) string {
	return strings.TrimSuffix(strings.TrimSpace(s), ".")
}

func syntaxError(field, format string, args ...any) ValidationError {
	return ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: ErrSyntax}
}

func firstError(errs []ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}
