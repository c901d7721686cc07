package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronolog/internal/ir"
)

func TestParseRuleSimple(t *testing.T) {
	r, err := ParseRule("atRisk(X) <- disrupted(X)", "direct")
	require.NoError(t, err)

	assert.Equal(t, "direct", r.Name)
	assert.Equal(t, ir.NewAtom("atRisk", "X"), r.Head)
	assert.Nil(t, r.HeadWindow)
	assert.Equal(t, 0, r.Delay)
	require.Len(t, r.Body, 1)
	assert.Equal(t, ir.Pos(ir.NewAtom("disrupted", "X")), r.Body[0])
}

func TestParseRuleFull(t *testing.T) {
	r, err := ParseRule("atRisk(X) : [0,10] <-1 supplies(Y,X), atRisk(Y), not hedged(X).", "cascade")
	require.NoError(t, err)

	require.NotNil(t, r.HeadWindow)
	assert.Equal(t, "[0,10]", r.HeadWindow.String())
	assert.Equal(t, 1, r.Delay)
	require.Len(t, r.Body, 3)
	assert.Equal(t, ir.Pos(ir.NewAtom("supplies", "Y", "X")), r.Body[0])
	assert.Equal(t, ir.Pos(ir.NewAtom("atRisk", "Y")), r.Body[1])
	assert.Equal(t, ir.Not(ir.NewAtom("hedged", "X")), r.Body[2])

	// String round-trips through the parser.
	again, err := ParseRule(r.String(), "cascade")
	require.NoError(t, err)
	assert.Equal(t, r, again)
}

func TestParseRuleDelayWithSpace(t *testing.T) {
	r, err := ParseRule("p(X) <- 3 q(X)", "")
	require.NoError(t, err)
	assert.Equal(t, 3, r.Delay)
	assert.Equal(t, "q(X)", r.Body[0].Atom.Key())
}

func TestParseRuleMultiRangeWindow(t *testing.T) {
	r, err := ParseRule("alarm(X) : [0,2], [5,6] <- sensor(X)", "")
	require.NoError(t, err)
	require.NotNil(t, r.HeadWindow)
	assert.True(t, r.HeadWindow.Contains(1))
	assert.False(t, r.HeadWindow.Contains(3))
	assert.True(t, r.HeadWindow.Contains(6))
}

func TestParseRuleNotPrefixIsPredicate(t *testing.T) {
	// "notable" is a predicate, not a negation.
	r, err := ParseRule("p(X) <- notable(X)", "")
	require.NoError(t, err)
	assert.False(t, r.Body[0].Negated)
	assert.Equal(t, "notable", r.Body[0].Atom.Predicate)
}

func TestParseRuleErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		code string
	}{
		{"missing arrow", "p(X) q(X)", ErrSyntax},
		{"missing paren", "p(X <- q(X)", ErrSyntax},
		{"space in argument", "p(X) <- q(a b)", ErrSyntax},
		{"negative delay", "p(X) <--1 q(X)", ErrNegativeDelay},
		{"empty body", "p(a) <-", ErrEmptyBody},
		{"unsafe head", "p(X, Z) <- q(X)", ErrUnsafeHeadVariable},
		{"unsafe negation", "p(X) <- q(X), not r(Y)", ErrUnsafeNegation},
		{"negation before binding", "p(X) <- not r(X), q(X)", ErrUnsafeNegation},
		{"head bound only by negation", "p(X) <- q(a), not r(X)", ErrUnsafeNegation},
		{"upper-case predicate", "P(X) <- q(X)", ErrInvalidPredicate},
		{"empty argument", "p(X) <- q(X,)", ErrEmptyArgument},
		{"bad window", "p(X) : [5,1] <- q(X)", ErrMalformedInterval},
		{"window not bracketed", "p(X) : 5 <- q(X)", ErrMalformedInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRule(tt.text, "r")
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var ve ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.code, ve.Code, "error: %v", err)
		})
	}
}

func TestParseRuleCollectsAllErrors(t *testing.T) {
	_, err := ParseRule("p(X, Z) <- q(X), not r(Y)", "r")
	require.Error(t, err)

	var errs ValidationErrors
	require.True(t, errors.As(err, &errs))
	codes := make([]string, len(errs))
	for i, e := range errs {
		codes[i] = e.Code
	}
	assert.ElementsMatch(t, []string{ErrUnsafeNegation, ErrUnsafeHeadVariable}, codes)
	assert.Contains(t, err.Error(), "(and 1 more)")
}

func TestMustParseRulePanics(t *testing.T) {
	assert.Panics(t, func() { MustParseRule("nonsense", "") })
	assert.NotPanics(t, func() { MustParseRule("p(X) <- q(X)", "") })
}

func TestParseFact(t *testing.T) {
	t.Run("static", func(t *testing.T) {
		f, err := ParseFact("supplies(s1, s2)")
		require.NoError(t, err)
		assert.Equal(t, ir.NewAtom("supplies", "s1", "s2"), f.Atom)
		assert.True(t, f.Static())
	})

	t.Run("intervals are coalesced", func(t *testing.T) {
		f, err := ParseFact("disrupted(s1) : [0,2], [3,4], [8,9].")
		require.NoError(t, err)
		assert.Equal(t, "[0,4],[8,9]", f.Intervals.String())
	})

	t.Run("zero arity", func(t *testing.T) {
		f, err := ParseFact("raining : [1,1]")
		require.NoError(t, err)
		assert.Equal(t, 0, f.Atom.Arity())
		assert.True(t, f.Intervals.Contains(1))
	})

	t.Run("non ground", func(t *testing.T) {
		_, err := ParseFact("disrupted(X)")
		var ve ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, ErrNonGroundFact, ve.Code)
	})

	t.Run("negative start", func(t *testing.T) {
		_, err := ParseFact("p(a) : [-1,2]")
		var ve ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, ErrMalformedInterval, ve.Code)
	})

	t.Run("non integer bound", func(t *testing.T) {
		_, err := ParseFact("p(a) : [x,2]")
		var ve ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, ErrMalformedInterval, ve.Code)
	})
}

func TestParseAtomAllowsVariables(t *testing.T) {
	a, err := ParseAtom("atRisk(X)")
	require.NoError(t, err)
	assert.False(t, a.IsGround())
	assert.Equal(t, []string{"X"}, a.Variables())

	_, err = ParseAtom("")
	assert.Error(t, err)
}

func TestParseNormalizesTokens(t *testing.T) {
	composed, err := ParseAtom("city(caf\u00e9)")
	require.NoError(t, err)
	decomposed, err := ParseAtom("city(cafe\u0301)")
	require.NoError(t, err)
	assert.True(t, composed.Equal(decomposed))
}
