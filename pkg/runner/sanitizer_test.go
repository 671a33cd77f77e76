package runner

import (
	"strings"
	"testing"

	"github.com/aretw0/rollkit/pkg/dice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeInput_SizeLimit(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"under limit", dice.MaxFormulaLength - 1, false},
		{"at limit", dice.MaxFormulaLength, false},
		{"over limit", dice.MaxFormulaLength + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SanitizeInput(strings.Repeat("1", tt.size))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInputTooLarge)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeInput_LimitMatchesEngine(t *testing.T) {
	line := strings.Repeat("1+", dice.MaxFormulaLength/2) + "1"
	_, err := SanitizeInput(line)
	assert.ErrorIs(t, err, ErrInputTooLarge)

	_, err = dice.New(line)
	assert.ErrorIs(t, err, dice.ErrParse)

	accepted, err := SanitizeInput(line[2:])
	require.NoError(t, err)
	_, err = dice.New(accepted)
	assert.NoError(t, err)
}

func TestSanitizeInput_Cleaning(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"formula", "4d6kh3 + 2", "4d6kh3 + 2"},
		{"tab", "1d6\t+ 1", "1d6 + 1"},
		{"line breaks", "2d8\r\n", "2d8"},
		{"colour codes", "\x1b[31m1d20\x1b[0m + 5", "1d20 + 5"},
		{"null byte", "1d\x006", "1d6"},
		{"bell", "2d8\x07", "2d8"},
		{"zero width space", "1d\u200b20", "1d20"},
		{"byte order mark", "\ufeff:help", ":help"},
		{"flavor text kept", "1d8[fire] + 2", "1d8[fire] + 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeInput(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeInput_InvalidUTF8(t *testing.T) {
	_, err := SanitizeInput("1d6\xff")
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestSanitizeInput_EnvOverride(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "10")

	_, err := SanitizeInput("12345678901")
	assert.ErrorIs(t, err, ErrInputTooLarge)

	_, err = SanitizeInput("1d6 + 1")
	assert.NoError(t, err)
}
