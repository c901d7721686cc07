package ir

import (
	"slices"
	"strings"
)

// Substitution maps variables to constants.
//
// Substitutions are treated as values: Bind and Merge return new maps and
// never modify the receiver, so a substitution can be shared across join
// branches.
type Substitution map[string]string

// Bind extends the substitution with variable=value.
// Returns false if the variable is already bound to a different value.
func (s Substitution) Bind(variable, value string) (Substitution, bool) {
	if cur, ok := s[variable]; ok {
		return s, cur == value
	}
	out := make(Substitution, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	out[variable] = value
	return out, true
}

// Merge unions two substitutions.
// Returns false if a shared variable is bound to different values.
func (s Substitution) Merge(o Substitution) (Substitution, bool) {
	out := make(Substitution, len(s)+len(o))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range o {
		if cur, ok := out[k]; ok && cur != v {
			return nil, false
		}
		out[k] = v
	}
	return out, true
}

// Resolve returns the constant for a token: the bound value for a bound
// variable, the token itself for a constant.
func (s Substitution) Resolve(token string) (string, bool) {
	if !IsVariable(token) {
		return token, true
	}
	v, ok := s[token]
	return v, ok
}

// Apply grounds as many arguments of the atom as the substitution allows.
func (s Substitution) Apply(a Atom) Atom {
	args := make([]string, len(a.Args))
	for i, arg := range a.Args {
		if v, ok := s.Resolve(arg); ok {
			args[i] = v
		} else {
			args[i] = arg
		}
	}
	return Atom{Predicate: a.Predicate, Args: args}
}

// String renders the bindings sorted by variable, e.g. "{X=a, Y=b}".
func (s Substitution) String() string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(s[k])
	}
	b.WriteByte('}')
	return b.String()
}
