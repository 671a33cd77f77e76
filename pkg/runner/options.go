package runner

import (
	"log/slog"

	"github.com/aretw0/rollkit/pkg/dice"
	"github.com/aretw0/rollkit/pkg/ledger"
	"github.com/aretw0/rollkit/pkg/ports"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithRoller configures the engine lines are evaluated with. Required.
func WithRoller(roller ports.Roller) Option {
	return func(r *Runner) {
		r.Roller = roller
	}
}

// WithLedger enables recording on channels and the :history and :replay
// commands.
func WithLedger(l *ledger.Ledger) Option {
	return func(r *Runner) {
		r.Ledger = l
	}
}

// WithMacros enables @name lines and the :macros command.
func WithMacros(lib ports.MacroLibrary) Option {
	return func(r *Runner) {
		r.Macros = lib
	}
}

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithMode sets the initial evaluation mode.
func WithMode(mode dice.Mode) Option {
	return func(r *Runner) {
		r.mode = mode
	}
}

// WithChannel sets the initial channel. Rolls are only recorded while a
// channel is set and a ledger is configured.
func WithChannel(channel string) Option {
	return func(r *Runner) {
		r.channel = channel
	}
}
