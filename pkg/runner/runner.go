package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/rollkit/internal/logging"
	"github.com/aretw0/rollkit/pkg/dice"
	"github.com/aretw0/rollkit/pkg/domain"
	"github.com/aretw0/rollkit/pkg/ledger"
	"github.com/aretw0/rollkit/pkg/ports"
)

// ErrNoLedger is returned by commands that need recorded rolls when the
// runner has no ledger.
var ErrNoLedger = errors.New("no ledger configured")

// ErrUnknownCommand is returned for colon commands the runner does not know.
var ErrUnknownCommand = errors.New("unknown command")

const helpText = `## Commands

| Input | Effect |
|---|---|
| ` + "`4d6kh3 + 2`" + ` | roll a formula |
| ` + "`@name`" + ` | roll a macro |
| ` + "`:mode random|min|max`" + ` | change the evaluation mode |
| ` + "`:channel [name]`" + ` | record rolls on a channel |
| ` + "`:history`" + ` | list the channel's rolls |
| ` + "`:replay <id>`" + ` | restore and verify a recorded roll |
| ` + "`:macros`" + ` | list macros |
| ` + "`:quit`" + ` | leave |
`

// Runner handles the read-evaluate-print loop using the provided IO.
// It keeps the current mode and channel between lines.
type Runner struct {
	Roller  ports.Roller
	Ledger  *ledger.Ledger
	Macros  ports.MacroLibrary
	Handler IOHandler
	Logger  *slog.Logger

	mode    dice.Mode
	channel string
	// history holds the session's entries when no ledger records them.
	history []Entry
}

// NewRunner creates a Runner. Without WithInputHandler it reads Stdin and
// writes Stdout as text.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	if r.Logger == nil {
		r.Logger = logging.NewNop()
	}
	return r
}

// Mode returns the current evaluation mode.
func (r *Runner) Mode() dice.Mode { return r.mode }

// Channel returns the current channel, empty when rolls are not recorded.
func (r *Runner) Channel() string { return r.channel }

// Run reads lines until the input ends, :quit is entered or ctx is
// cancelled. Errors on a single line are reported through the handler and do
// not stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.Roller == nil {
		return errors.New("runner: no roller configured")
	}
	for {
		line, err := r.Handler.Input(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		quit, err := r.Exec(ctx, line)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

// Exec evaluates a single line. The returned error is an output failure;
// evaluation errors are written as an Entry.
func (r *Runner) Exec(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, ":") {
		return r.command(ctx, line)
	}

	entry := r.roll(ctx, line)
	if entry.Error == "" && (r.Ledger == nil || r.channel == "") {
		r.history = append(r.history, entry)
	}
	if err := r.Handler.Output(ctx, entry); err != nil {
		return false, fmt.Errorf("output error: %w", err)
	}
	return false, nil
}

func (r *Runner) roll(ctx context.Context, line string) Entry {
	entry := Entry{Input: line, Mode: r.mode.String()}
	formula := line

	if name, ok := strings.CutPrefix(line, "@"); ok {
		if r.Macros == nil {
			entry.Error = fmt.Sprintf("%s: no macro library configured", domain.ErrMacroNotFound)
			return entry
		}
		m, err := r.Macros.Get(ctx, strings.TrimSpace(name))
		if err != nil {
			entry.Error = err.Error()
			return entry
		}
		formula = m.Formula
	}

	var (
		rec  *domain.RollRecord
		roll *dice.Roll
		err  error
	)
	if r.Ledger != nil && r.channel != "" {
		rec, roll, err = r.Ledger.Roll(ctx, r.channel, formula, r.mode, nil)
	} else {
		roll, err = r.Roller.Roll(ctx, formula, r.mode)
	}
	if err != nil {
		r.Logger.Debug("line failed", "input", line, "err", err)
		entry.Formula = formula
		entry.Error = err.Error()
		return entry
	}

	fill(&entry, roll)
	if rec != nil {
		entry.ID = rec.ID
		entry.Channel = rec.Channel
	}
	return entry
}

func fill(entry *Entry, roll *dice.Roll) {
	entry.Formula = roll.Formula()
	entry.Expression = roll.Expression()
	if total, err := roll.Total(); err == nil {
		entry.Total = &total
	}
	for _, w := range roll.Warnings() {
		entry.Warnings = append(entry.Warnings, w.Error())
	}
	if data, err := roll.ToJSON(); err == nil {
		entry.Roll = json.RawMessage(data)
	}
}

func (r *Runner) command(ctx context.Context, line string) (bool, error) {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch strings.ToLower(name) {
	case "q", "quit", "exit":
		return true, nil
	case "h", "help":
		err = r.Handler.SystemOutput(ctx, helpText)
	case "mode":
		err = r.setMode(ctx, line, arg)
	case "channel":
		r.channel = arg
		if arg == "" {
			err = r.Handler.SystemOutput(ctx, "Rolls are no longer recorded.")
		} else if r.Ledger == nil {
			err = r.Handler.SystemOutput(ctx, fmt.Sprintf("Channel set to **%s**, but no ledger is configured: rolls are not recorded.", arg))
		} else {
			err = r.Handler.SystemOutput(ctx, fmt.Sprintf("Recording on channel **%s**.", arg))
		}
	case "history":
		err = r.showHistory(ctx, line)
	case "replay":
		err = r.replay(ctx, line, arg)
	case "macros":
		err = r.listMacros(ctx, line)
	default:
		err = r.Handler.Output(ctx, Entry{Input: line, Error: fmt.Sprintf("%s: %s", ErrUnknownCommand, name)})
	}
	if err != nil {
		return false, fmt.Errorf("output error: %w", err)
	}
	return false, nil
}

func (r *Runner) setMode(ctx context.Context, line, arg string) error {
	if arg == "" {
		return r.Handler.SystemOutput(ctx, fmt.Sprintf("Mode is **%s**.", r.mode))
	}
	mode, err := dice.ParseMode(arg)
	if err != nil {
		return r.Handler.Output(ctx, Entry{Input: line, Error: err.Error()})
	}
	r.mode = mode
	return r.Handler.SystemOutput(ctx, fmt.Sprintf("Mode set to **%s**.", mode))
}

func (r *Runner) showHistory(ctx context.Context, line string) error {
	if r.Ledger == nil || r.channel == "" {
		if len(r.history) == 0 {
			return r.Handler.SystemOutput(ctx, "No rolls yet.")
		}
		for _, e := range r.history {
			if err := r.Handler.Output(ctx, e); err != nil {
				return err
			}
		}
		return nil
	}

	records, err := r.Ledger.History(ctx, r.channel)
	if err != nil {
		return r.Handler.Output(ctx, Entry{Input: line, Error: err.Error()})
	}
	if len(records) == 0 {
		return r.Handler.SystemOutput(ctx, fmt.Sprintf("No rolls on channel **%s**.", r.channel))
	}
	for _, rec := range records {
		e := Entry{
			ID:      rec.ID,
			Channel: rec.Channel,
			Formula: rec.Formula,
			Mode:    rec.Mode,
			Total:   rec.Total,
		}
		if err := r.Handler.Output(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) replay(ctx context.Context, line, id string) error {
	entry := Entry{Input: line}
	switch {
	case r.Ledger == nil:
		entry.Error = ErrNoLedger.Error()
	case id == "":
		entry.Error = "usage: :replay <id>"
	default:
		rec, roll, err := r.Ledger.Replay(ctx, id)
		if rec != nil {
			entry.ID = rec.ID
			entry.Channel = rec.Channel
			entry.Mode = rec.Mode
		}
		if roll != nil {
			fill(&entry, roll)
		}
		if err != nil {
			entry.Error = err.Error()
		}
	}
	return r.Handler.Output(ctx, entry)
}

func (r *Runner) listMacros(ctx context.Context, line string) error {
	if r.Macros == nil {
		return r.Handler.SystemOutput(ctx, "No macro library configured.")
	}
	macros, err := r.Macros.List(ctx)
	if err != nil {
		return r.Handler.Output(ctx, Entry{Input: line, Error: err.Error()})
	}
	if len(macros) == 0 {
		return r.Handler.SystemOutput(ctx, "No macros.")
	}
	var b strings.Builder
	b.WriteString("## Macros\n\n")
	for _, m := range macros {
		fmt.Fprintf(&b, "- **@%s** `%s`", m.Name, m.Formula)
		if m.Description != "" {
			b.WriteString(" " + m.Description)
		}
		b.WriteString("\n")
	}
	return r.Handler.SystemOutput(ctx, b.String())
}
