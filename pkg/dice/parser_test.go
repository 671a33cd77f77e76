package dice_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/rollkit/pkg/dice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(terms []dice.Term) []dice.Kind {
	out := make([]dice.Kind, len(terms))
	for i, t := range terms {
		out[i] = t.Kind()
	}
	return out
}

func TestParse_Shapes(t *testing.T) {
	tests := []struct {
		formula string
		kinds   []dice.Kind
	}{
		{"4d6kh3 + 2", []dice.Kind{dice.KindDice, dice.KindOperator, dice.KindNumeric}},
		{"-2d4", []dice.Kind{dice.KindOperator, dice.KindDice}},
		{"(1+2)*3", []dice.Kind{dice.KindParenthetical, dice.KindOperator, dice.KindNumeric}},
		{"{2d20, 1d12}kh1[adv] - 1", []dice.Kind{dice.KindPool, dice.KindOperator, dice.KindNumeric}},
		{"2 - -3", []dice.Kind{dice.KindNumeric, dice.KindOperator, dice.KindOperator, dice.KindNumeric}},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			terms, err := dice.Parse(tt.formula)
			require.NoError(t, err)
			assert.Equal(t, tt.kinds, kinds(terms))
		})
	}
}

func TestParse_DiceTerm(t *testing.T) {
	terms, err := dice.Parse("4d6kh3r1[str]")
	require.NoError(t, err)
	require.Len(t, terms, 1)

	d := terms[0].(*dice.DiceTerm)
	assert.Equal(t, 4, d.Number)
	assert.Equal(t, 6, d.Faces)
	assert.Equal(t, []string{"kh3", "r1"}, d.Modifiers)
	assert.Equal(t, "str", d.Options().Flavor)
	assert.False(t, d.Evaluated())

	calls := d.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "keep", calls[0].Name)
	assert.Equal(t, "reroll", calls[1].Name)
}

func TestParse_ImplicitCountAndPercentile(t *testing.T) {
	terms, err := dice.Parse("d%")
	require.NoError(t, err)
	d := terms[0].(*dice.DiceTerm)
	assert.Equal(t, 1, d.Number)
	assert.Equal(t, 100, d.Faces)
}

func TestParse_PoolAndParenthetical(t *testing.T) {
	terms, err := dice.Parse("{2d20, 1d12 + 1}kh1[adv] + (1d4 * 2)")
	require.NoError(t, err)

	pool := terms[0].(*dice.PoolTerm)
	assert.Equal(t, []string{"2d20", "1d12 + 1"}, pool.Terms)
	assert.Equal(t, []string{"kh1"}, pool.Modifiers)
	assert.Equal(t, "adv", pool.Options().Flavor)
	require.Len(t, pool.Rolls, 2)
	assert.Equal(t, "1d12 + 1", pool.Rolls[1].Formula())
	assert.True(t, pool.IsIntermediate())

	paren := terms[2].(*dice.ParentheticalTerm)
	assert.Equal(t, "1d4 * 2", paren.Term)
	assert.Equal(t, "(1d4 * 2)", paren.Formula())
	assert.True(t, paren.IsIntermediate())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		formula string
		offset  int
	}{
		{"", 0},
		{"   ", 3},
		{"4d6 +", 5},
		{"4d6 + )", 6},
		{"2 ** 3", 3},
		{"{1d6", 4},
		{"{}", 1},
		{"(1d6", 4},
		{"1d6[open", 3},
		{"abc", 0},
		{"1d6 2", 4},
		{"{1d6; 1d8}", 4},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			terms, err := dice.Parse(tt.formula)
			require.Error(t, err)
			assert.Nil(t, terms)
			assert.ErrorIs(t, err, dice.ErrParse)

			var pe *dice.ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.offset, pe.Offset)
		})
	}
}

func TestParse_InvalidDiceSpec(t *testing.T) {
	_, err := dice.Parse("1d0")
	assert.ErrorIs(t, err, dice.ErrInvalidDiceSpec)

	_, _, err = dice.NewDiceTerm(-1, 6, nil, dice.Options{}, nil)
	assert.ErrorIs(t, err, dice.ErrInvalidDiceSpec)

	// zero dice is a valid, empty term
	_, err = dice.Parse("0d6")
	assert.NoError(t, err)
}

func TestParse_TooManyDice(t *testing.T) {
	_, err := dice.New("2000000000d6")
	require.Error(t, err)
	assert.ErrorIs(t, err, dice.ErrTooManyDice)

	var te *dice.TooManyDiceError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 2000000000, te.Count)
	assert.Equal(t, dice.DefaultMaxDice, te.Limit)

	_, err = dice.New("{1d6, 20001d6}kh")
	assert.ErrorIs(t, err, dice.ErrTooManyDice)

	_, err = dice.New("5d6", dice.WithMaxDice(4))
	assert.ErrorIs(t, err, dice.ErrTooManyDice)

	_, err = dice.New("4d6", dice.WithMaxDice(4))
	assert.NoError(t, err)
}

func TestParse_FormulaTooLong(t *testing.T) {
	formula := strings.Repeat("1+", dice.MaxFormulaLength/2) + "1"
	_, err := dice.New(formula)
	assert.ErrorIs(t, err, dice.ErrParse)

	_, err = dice.New(formula[2:])
	assert.NoError(t, err)
}

func TestParse_ModifierArguments(t *testing.T) {
	for _, formula := range []string{"4d6r>", "3d6ms", "2d6x<=", "{1d20,1d20}cs", "{1d6,1d8}cf", "4d6kh99999999999999999999"} {
		t.Run(formula, func(t *testing.T) {
			r, err := dice.New(formula)
			assert.Nil(t, r)
			assert.ErrorIs(t, err, dice.ErrModifier)
		})
	}

	// lenient mode only forgives unknown modifiers
	_, err := dice.New("3d6ms", dice.WithLenientModifiers(true))
	assert.ErrorIs(t, err, dice.ErrModifier)
}

func TestParse_ChainedModifiers(t *testing.T) {
	tests := []struct {
		formula   string
		modifiers []string
		calls     []string
	}{
		{"4d6xkh3", []string{"x", "kh3"}, []string{"explode", "keep"}},
		{"4d6rrkh3", []string{"rr", "kh3"}, []string{"reroll", "keep"}},
		{"10d6xcs>=5", []string{"x", "cs>=5"}, []string{"explode", "countSuccess"}},
		{"4d6rxo", []string{"r", "xo"}, []string{"reroll", "explode"}},
		{"4d6xmin2", []string{"x", "min2"}, []string{"explode", "minimum"}},
		{"4d6kh3", []string{"kh3"}, []string{"keep"}},
		{"4d6dh", []string{"dh"}, []string{"drop"}},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			terms, err := dice.Parse(tt.formula)
			require.NoError(t, err)
			d := terms[0].(*dice.DiceTerm)
			assert.Equal(t, tt.modifiers, d.Modifiers)

			var names []string
			for _, c := range d.Calls() {
				names = append(names, c.Name)
			}
			assert.Equal(t, tt.calls, names)
			assert.Equal(t, tt.formula, d.Formula())
		})
	}

	pool, err := dice.Parse("{1d6,1d8,1d10}kh2cs>=4")
	require.NoError(t, err)
	assert.Equal(t, []string{"kh2", "cs>=4"}, pool[0].(*dice.PoolTerm).Modifiers)
}

func TestParse_ChainedUnknownModifier(t *testing.T) {
	_, err := dice.New("4d6xqq")
	var ue *dice.UnmatchedModifierError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "qq", ue.Modifier)

	r, err := dice.New("4d6xqq", dice.WithLenientModifiers(true))
	require.NoError(t, err)
	require.Len(t, r.Warnings(), 1)
	assert.Equal(t, "qq", r.Warnings()[0].Modifier)
}

func TestParse_UnmatchedModifier(t *testing.T) {
	_, err := dice.New("4d6qq")
	require.Error(t, err)
	assert.ErrorIs(t, err, dice.ErrUnmatchedModifier)

	var ue *dice.UnmatchedModifierError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "qq", ue.Modifier)
	assert.Equal(t, "4d6qq", ue.Term)
	assert.Equal(t, dice.KindDice, ue.Kind)

	_, err = dice.New("{1d6,1d8}r1")
	assert.ErrorIs(t, err, dice.ErrUnmatchedModifier, "reroll is not a pool modifier")
}

func TestParse_LenientUnmatchedModifier(t *testing.T) {
	r, err := dice.New("{4d6qq, 1d4}kh", dice.WithLenientModifiers(true))
	require.NoError(t, err)

	warnings := r.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "qq", warnings[0].Modifier)
	assert.Equal(t, "4d6qq", warnings[0].Term)
}

func TestSplitModifiers(t *testing.T) {
	assert.Equal(t, []string{"r<=2", "kh3", "cs>=5", "df"}, dice.SplitModifiers("r<=2kh3cs>=5df"))
	assert.Equal(t, []string{"xo>5", "min2"}, dice.SplitModifiers("xo>5min2"))
	assert.Nil(t, dice.SplitModifiers(""))
	assert.Equal(t, []string{"xkh3"}, dice.SplitModifiers("xkh3"))
}

func TestRegistry_Split(t *testing.T) {
	reg := dice.DefaultRegistry()
	tests := []struct {
		kind dice.Kind
		raw  string
		want []string
	}{
		{dice.KindDice, "xkh3", []string{"x", "kh3"}},
		{dice.KindDice, "rrkh3", []string{"rr", "kh3"}},
		{dice.KindDice, "xcs>=5", []string{"x", "cs>=5"}},
		{dice.KindDice, "r<=2kh3cs>=5df", []string{"r<=2", "kh3", "cs>=5", "df"}},
		{dice.KindDice, "xo>5", []string{"xo>5"}},
		{dice.KindDice, "even", []string{"even"}},
		{dice.KindDice, "xqq", []string{"x", "qq"}},
		{dice.KindPool, "khcs>=3", []string{"kh", "cs>=3"}},
		{dice.KindPool, "r1", []string{"r1"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, reg.Split(tt.kind, tt.raw))
		})
	}
}

func TestRoll_NormalizedFormula(t *testing.T) {
	r, err := dice.New("d6+ 2[bonus]")
	require.NoError(t, err)
	assert.Equal(t, "d6+ 2[bonus]", r.Formula())
	assert.Equal(t, "1d6 + 2[bonus]", r.NormalizedFormula())

	r, err = dice.New("-1d4*{1d6,1d8}kh")
	require.NoError(t, err)
	assert.Equal(t, "-1d4 * {1d6,1d8}kh", r.NormalizedFormula())
}
