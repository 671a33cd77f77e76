package runner

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/rollkit/pkg/dice"
)

var (
	// DefaultMaxInputSize is the longest formula the engine parses, so an
	// oversized line is refused before it reaches the roller.
	DefaultMaxInputSize = dice.MaxFormulaLength
	// EnvMaxInputSize overrides DefaultMaxInputSize.
	EnvMaxInputSize = "ROLLKIT_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// ansiEscape matches terminal colour and cursor sequences, which show up
// when a formula is pasted from coloured output.
var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)

// SanitizeInput prepares one line for the roller. Input over the size limit
// or with invalid UTF-8 is rejected. Terminal escape sequences are removed,
// tabs and line breaks become spaces, and other control or invisible format
// characters (zero-width spaces, byte order marks) are dropped before the
// line is trimmed.
func SanitizeInput(input string) (string, error) {
	limit := maxInputSize()
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	clean := strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return ' '
		case unicode.IsControl(r) || unicode.Is(unicode.Cf, r):
			return -1
		default:
			return r
		}
	}, ansiEscape.ReplaceAllString(input, ""))
	return strings.TrimSpace(clean), nil
}

func maxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
