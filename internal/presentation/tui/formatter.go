package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/rollkit/pkg/runner"
	"github.com/muesli/termenv"
)

// Formatter colours roll entries for a terminal.
type Formatter struct {
	profile termenv.Profile
}

// NewFormatter creates a Formatter for the detected colour profile.
func NewFormatter() *Formatter {
	return NewFormatterWithProfile(termenv.ColorProfile())
}

// NewFormatterWithProfile pins the colour profile. termenv.Ascii disables
// colour entirely.
func NewFormatterWithProfile(p termenv.Profile) *Formatter {
	return &Formatter{profile: p}
}

func (f *Formatter) style(s, color string) termenv.Style {
	return f.profile.String(s).Foreground(f.profile.Color(color))
}

// Format implements runner.EntryFormatter.
func (f *Formatter) Format(e runner.Entry) string {
	if e.Error != "" {
		return f.style("✗ "+e.Error, "#ef4444").String()
	}

	var b strings.Builder
	if e.ID != "" {
		id := e.ID
		if len(id) > 8 {
			id = id[:8]
		}
		b.WriteString(f.style("["+id+"] ", "#6b7280").String())
	}
	b.WriteString(f.style(e.Formula, "#a78bfa").String())

	total := ""
	if e.Total != nil {
		total = runner.FormatTotal(*e.Total)
	}
	if e.Expression != "" && e.Expression != e.Formula && e.Expression != total {
		fmt.Fprintf(&b, " %s %s", f.style("=", "#6b7280"), e.Expression)
	}
	if total != "" {
		fmt.Fprintf(&b, " %s %s", f.style("=", "#6b7280"), f.style(total, "#fbbf24").Bold())
	}
	for _, w := range e.Warnings {
		b.WriteString("\n  " + f.style("! "+w, "#f59e0b").String())
	}
	return b.String()
}
