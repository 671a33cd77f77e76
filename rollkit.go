package rollkit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/rollkit/pkg/dice"
	"github.com/aretw0/rollkit/pkg/domain"
	"github.com/aretw0/rollkit/pkg/random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/aretw0/rollkit"

// Engine is the high-level entry point for the rollkit library.
// It binds a modifier registry, a random source, hooks and a logger so hosts
// can parse, roll and replay formulas with one call.
//
// An Engine is safe for concurrent use as long as its random source is.
// Every source in pkg/random is.
type Engine struct {
	registry      *dice.Registry
	source        random.Source
	lenient       bool
	maxIterations int
	maxDice       int
	hooks         domain.LifecycleHooks
	logger        *slog.Logger
	tracer        trace.Tracer
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSource sets the random source used in random mode.
func WithSource(src random.Source) Option {
	return func(e *Engine) {
		e.source = src
	}
}

// WithSeed is shorthand for WithSource(random.NewSeeded(seed)).
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.source = random.NewSeeded(seed)
	}
}

// WithRegistry replaces the default modifier registry.
func WithRegistry(reg *dice.Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithLenientModifiers accepts unmatched modifiers, reporting them through
// OnUnmatchedModifier instead of failing the parse.
func WithLenientModifiers(lenient bool) Option {
	return func(e *Engine) {
		e.lenient = lenient
	}
}

// WithMaxIterations bounds recursive rerolls and explosions.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		e.maxIterations = n
	}
}

// WithMaxDice bounds the dice a single term may draw. Formulas asking for
// more fail to parse with dice.ErrTooManyDice.
func WithMaxDice(n int) Option {
	return func(e *Engine) {
		e.maxDice = n
	}
}

// WithTracerProvider sets the OpenTelemetry provider spans are created with.
// The global provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracer = tp.Tracer(instrumentationName)
	}
}

// New initializes a new Engine.
// Without WithSource or WithSeed the engine draws from a crypto-seeded source.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.registry == nil {
		eng.registry = dice.DefaultRegistry()
	}
	if eng.maxIterations <= 0 {
		eng.maxIterations = dice.DefaultMaxIterations
	}
	if eng.maxDice <= 0 {
		eng.maxDice = dice.DefaultMaxDice
	}
	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if eng.tracer == nil {
		eng.tracer = otel.Tracer(instrumentationName)
	}
	if eng.source == nil {
		src, err := random.New()
		if err != nil {
			return nil, fmt.Errorf("failed to seed random source: %w", err)
		}
		eng.source = src
	}

	return eng, nil
}

// Registry returns the modifier registry formulas are parsed against.
// Registering on it affects every later Parse.
func (e *Engine) Registry() *dice.Registry {
	return e.registry
}

func (e *Engine) diceOptions() []dice.Option {
	return []dice.Option{
		dice.WithRegistry(e.registry),
		dice.WithLenientModifiers(e.lenient),
		dice.WithMaxIterations(e.maxIterations),
		dice.WithMaxDice(e.maxDice),
	}
}

// Parse builds an unevaluated roll.
func (e *Engine) Parse(formula string) (*dice.Roll, error) {
	r, err := dice.New(formula, e.diceOptions()...)
	if err != nil {
		e.logger.Debug("parse failed", "formula", formula, "err", err)
		return nil, err
	}
	return r, nil
}

// Roll parses and evaluates formula.
func (e *Engine) Roll(ctx context.Context, formula string, mode dice.Mode) (*dice.Roll, error) {
	ctx, span := e.tracer.Start(ctx, "rollkit.Roll", trace.WithAttributes(
		attribute.String("rollkit.formula", formula),
		attribute.String("rollkit.mode", mode.String()),
	))
	defer span.End()

	r, err := e.Parse(formula)
	if err != nil {
		e.fail(ctx, span, formula, mode, 0, err)
		return nil, err
	}
	if err := e.evaluate(ctx, span, r, mode); err != nil {
		return nil, err
	}
	return r, nil
}

// Replay restores a roll serialized with dice.Roll.ToJSON. A roll stored
// unevaluated is evaluated in mode; an evaluated one is returned as stored.
func (e *Engine) Replay(ctx context.Context, data []byte, mode dice.Mode) (*dice.Roll, error) {
	ctx, span := e.tracer.Start(ctx, "rollkit.Replay", trace.WithAttributes(
		attribute.String("rollkit.mode", mode.String()),
	))
	defer span.End()

	r, err := dice.FromJSON(data, e.diceOptions()...)
	if err != nil {
		e.fail(ctx, span, "", mode, 0, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("rollkit.formula", r.Formula()))
	span.SetAttributes(attribute.Bool("rollkit.restored_evaluated", r.Evaluated()))

	if err := e.evaluate(ctx, span, r, mode); err != nil {
		return nil, err
	}
	return r, nil
}

// Evaluate evaluates a roll built with Parse, firing the same hooks as Roll.
func (e *Engine) Evaluate(ctx context.Context, r *dice.Roll, mode dice.Mode) error {
	ctx, span := e.tracer.Start(ctx, "rollkit.Evaluate", trace.WithAttributes(
		attribute.String("rollkit.formula", r.Formula()),
		attribute.String("rollkit.mode", mode.String()),
	))
	defer span.End()
	return e.evaluate(ctx, span, r, mode)
}

func (e *Engine) evaluate(ctx context.Context, span trace.Span, r *dice.Roll, mode dice.Mode) error {
	for _, w := range r.Warnings() {
		e.logger.Warn("unmatched modifier ignored", "formula", r.Formula(), "term", w.Term, "modifier", w.Modifier)
		if e.hooks.OnUnmatchedModifier != nil {
			e.hooks.OnUnmatchedModifier(ctx, &domain.ModifierEvent{
				EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventUnmatchedModifier},
				Formula:   r.Formula(),
				Term:      w.Term,
				Modifier:  w.Modifier,
			})
		}
	}

	start := time.Now()
	if err := r.Evaluate(ctx, mode.Options(e.source)); err != nil {
		e.fail(ctx, span, r.Formula(), mode, time.Since(start), err)
		return err
	}
	elapsed := time.Since(start)

	total, err := r.Total()
	if err != nil {
		return err
	}
	dice := countDice(r)

	span.SetAttributes(
		attribute.Float64("rollkit.total", total),
		attribute.Int("rollkit.dice", dice),
	)
	e.logger.Debug("roll evaluated",
		"formula", r.Formula(),
		"mode", mode.String(),
		"total", total,
		"expression", r.Expression(),
		"duration", elapsed,
	)

	if e.hooks.OnRollEvaluated != nil {
		e.hooks.OnRollEvaluated(ctx, &domain.RollEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventRollEvaluated},
			Formula:   r.Formula(),
			Mode:      mode.String(),
			Total:     total,
			Dice:      dice,
			Duration:  elapsed,
		})
	}
	return nil
}

func (e *Engine) fail(ctx context.Context, span trace.Span, formula string, mode dice.Mode, elapsed time.Duration, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.logger.Debug("roll failed", "formula", formula, "mode", mode.String(), "err", err)

	if e.hooks.OnRollFailed != nil {
		e.hooks.OnRollFailed(ctx, &domain.RollEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventRollFailed},
			Formula:   formula,
			Mode:      mode.String(),
			Duration:  elapsed,
			Err:       err,
		})
	}
}

// countDice counts the results drawn across every dice term, rerolls and
// explosions included.
func countDice(r *dice.Roll) int {
	n := 0
	for _, d := range r.Dice() {
		n += len(d.Results)
	}
	return n
}
