package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func types(tokens []Token) []Type {
	out := make([]Type, len(tokens))
	for i, t := range tokens {
		out[i] = t.Type
	}
	return out
}

func literals(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Literal
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		types    []Type
		literals []string
	}{
		{
			name:     "simple dice",
			input:    "4d6",
			types:    []Type{DICE, EOF},
			literals: []string{"4d6", ""},
		},
		{
			name:     "dice with modifiers and arithmetic",
			input:    "4d6kh3 + 2",
			types:    []Type{DICE, MODIFIERS, PLUS, NUMBER, EOF},
			literals: []string{"4d6", "kh3", "+", "2", ""},
		},
		{
			name:     "implicit count and percentile",
			input:    "d20 - d%",
			types:    []Type{DICE, MINUS, DICE, EOF},
			literals: []string{"d20", "-", "d%", ""},
		},
		{
			name:     "comparison modifiers",
			input:    "6d6r<=2cs>=5",
			types:    []Type{DICE, MODIFIERS, EOF},
			literals: []string{"6d6", "r<=2cs>=5", ""},
		},
		{
			name:     "pool with modifiers",
			input:    "{2d20, 1d12}kh1",
			types:    []Type{LBRACE, DICE, COMMA, DICE, RBRACE, MODIFIERS, EOF},
			literals: []string{"{", "2d20", ",", "1d12", "}", "kh1", ""},
		},
		{
			name:     "flavor",
			input:    "1d8[fire] * 2",
			types:    []Type{DICE, FLAVOR, ASTERISK, NUMBER, EOF},
			literals: []string{"1d8", "fire", "*", "2", ""},
		},
		{
			name:     "decimal and parentheses",
			input:    "(1.5 / 3)",
			types:    []Type{LPAREN, NUMBER, SLASH, NUMBER, RPAREN, EOF},
			literals: []string{"(", "1.5", "/", "3", ")", ""},
		},
		{
			name:     "upper case die letter",
			input:    "2D10",
			types:    []Type{DICE, EOF},
			literals: []string{"2D10", ""},
		},
		{
			name:     "whitespace breaks modifiers",
			input:    "2d6 kh",
			types:    []Type{DICE, ILLEGAL},
			literals: []string{"2d6", "k"},
		},
		{
			name:     "unterminated flavor",
			input:    "1d4[oops",
			types:    []Type{DICE, ILLEGAL},
			literals: []string{"1d4", "[oops"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := Tokenize(tt.input)
			assert.Equal(t, tt.types, types(tokens))
			assert.Equal(t, tt.literals, literals(tokens))
		})
	}
}

func TestTokenize_Offsets(t *testing.T) {
	tokens := Tokenize("2d6kh1 + [x]")
	require.Len(t, tokens, 5)

	assert.Equal(t, 0, tokens[0].Offset)
	assert.Equal(t, 3, tokens[0].End)
	assert.Equal(t, 3, tokens[1].Offset)
	assert.Equal(t, 6, tokens[1].End)
	assert.Equal(t, 7, tokens[2].Offset)
	assert.Equal(t, 9, tokens[3].Offset)
	assert.Equal(t, 12, tokens[3].End)
	assert.Equal(t, 12, tokens[4].Offset)
}

func TestNextToken_EOFIsSticky(t *testing.T) {
	l := New("1")
	assert.Equal(t, NUMBER, l.NextToken().Type)
	assert.Equal(t, EOF, l.NextToken().Type)
	assert.Equal(t, EOF, l.NextToken().Type)
}
