package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the rollkit banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"            _ _ _    _ _   ", "#fbbf24"},
		{"  _ __ ___ | | | | _(_) |_ ", "#f59e0b"},
		{" | '__/ _ \\| | | |/ / | __|", "#f97316"},
		{" | | | (_) | | |   <| | |_ ", "#ef4444"},
		{" |_|  \\___/|_|_|_|\\_\\_|\\__|", "#dc2626"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
