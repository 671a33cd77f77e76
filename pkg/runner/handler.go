package runner

import (
	"context"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Input reads one line from the user.
	// Returns io.EOF when the input is exhausted.
	Input(ctx context.Context) (string, error)

	// Output presents the outcome of a line.
	Output(ctx context.Context, entry Entry) error

	// SystemOutput presents a meta-message to the user (help, mode changes,
	// listings). This is distinct from roll output.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer turns markdown into terminal output.
type ContentRenderer func(string) (string, error)

// EntryFormatter renders an entry for a terminal.
type EntryFormatter func(Entry) string

// Entry is the outcome of one input line.
type Entry struct {
	Input      string   `json:"input"`
	ID         string   `json:"id,omitempty"`
	Channel    string   `json:"channel,omitempty"`
	Formula    string   `json:"formula,omitempty"`
	Mode       string   `json:"mode,omitempty"`
	Total      *float64 `json:"total,omitempty"`
	Expression string   `json:"expression,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Roll       any      `json:"roll,omitempty"`
	Error      string   `json:"error,omitempty"`
}
