package tui

import (
	"os"

	"golang.org/x/term"
)

const defaultWidth = 80

// IsInteractive reports whether both stdin and stdout are terminals.
// Piped sessions get plain output.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Width returns the stdout terminal width, or 80 when it cannot be read.
func Width() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}
