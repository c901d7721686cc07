package ir

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Atom is a predicate applied to ordered arguments.
//
// Equality is positional. An argument whose first rune is upper case is a
// variable; everything else is a constant.
type Atom struct {
	Predicate string   `json:"predicate" yaml:"predicate"`
	Args      []string `json:"args" yaml:"args"`
}

// NewAtom builds an atom with NFC-normalized tokens.
func NewAtom(predicate string, args ...string) Atom {
	normalized := make([]string, len(args))
	for i, a := range args {
		normalized[i] = NormalizeToken(a)
	}
	return Atom{Predicate: NormalizeToken(predicate), Args: normalized}
}

// NormalizeToken trims surrounding space and applies NFC normalization.
func NormalizeToken(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// IsVariable reports whether a token names a variable.
func IsVariable(token string) bool {
	r, _ := utf8.DecodeRuneInString(token)
	return r != utf8.RuneError && unicode.IsUpper(r)
}

// Arity returns the number of arguments.
func (a Atom) Arity() int {
	return len(a.Args)
}

// IndexKey identifies the predicate/arity bucket the atom belongs to.
func (a Atom) IndexKey() string {
	return a.Predicate + "/" + strconv.Itoa(len(a.Args))
}

// IsGround reports whether the atom has no variables.
func (a Atom) IsGround() bool {
	for _, arg := range a.Args {
		if IsVariable(arg) {
			return false
		}
	}
	return true
}

// Variables returns the distinct variables in first-occurrence order.
func (a Atom) Variables() []string {
	var vars []string
	seen := make(map[string]bool)
	for _, arg := range a.Args {
		if IsVariable(arg) && !seen[arg] {
			seen[arg] = true
			vars = append(vars, arg)
		}
	}
	return vars
}

// Equal reports positional equality.
func (a Atom) Equal(b Atom) bool {
	if a.Predicate != b.Predicate || len(a.Args) != len(b.Args) {
		return false
	}
	for i := range a.Args {
		if a.Args[i] != b.Args[i] {
			return false
		}
	}
	return true
}

// Key returns the canonical text form used as a map key.
// Two atoms have the same key exactly when they are Equal.
func (a Atom) Key() string {
	var b strings.Builder
	b.Grow(len(a.Predicate) + 2 + 8*len(a.Args))
	b.WriteString(a.Predicate)
	b.WriteByte('(')
	for i, arg := range a.Args {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(arg)
	}
	b.WriteByte(')')
	return b.String()
}

// String implements fmt.Stringer.
func (a Atom) String() string {
	return a.Key()
}

// CompareAtoms orders atoms by predicate, arity, then arguments.
// Used wherever output must be deterministic.
func CompareAtoms(a, b Atom) int {
	if c := strings.Compare(a.Predicate, b.Predicate); c != 0 {
		return c
	}
	if len(a.Args) != len(b.Args) {
		if len(a.Args) < len(b.Args) {
			return -1
		}
		return 1
	}
	for i := range a.Args {
		if c := strings.Compare(a.Args[i], b.Args[i]); c != 0 {
			return c
		}
	}
	return 0
}

// Literal is a body condition: an atom with a polarity.
type Literal struct {
	Atom    Atom `json:"atom" yaml:"atom"`
	Negated bool `json:"negated,omitempty" yaml:"negated,omitempty"`
}

// Pos builds a positive literal.
func Pos(a Atom) Literal {
	return Literal{Atom: a}
}

// Not builds a negated literal.
func Not(a Atom) Literal {
	return Literal{Atom: a, Negated: true}
}

// String renders the literal in rule text syntax.
func (l Literal) String() string {
	if l.Negated {
		return "not " + l.Atom.Key()
	}
	return l.Atom.Key()
}
