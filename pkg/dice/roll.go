package dice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/rollkit/pkg/random"
)

// Mode selects how base dice are drawn.
type Mode int

const (
	ModeRandom Mode = iota
	ModeMinimize
	ModeMaximize
)

func (m Mode) String() string {
	switch m {
	case ModeMinimize:
		return "minimize"
	case ModeMaximize:
		return "maximize"
	default:
		return "random"
	}
}

// ParseMode accepts "random", "minimize" or "maximize" (also "min", "max"
// and the empty string for random).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "random":
		return ModeRandom, nil
	case "min", "minimize":
		return ModeMinimize, nil
	case "max", "maximize":
		return ModeMaximize, nil
	}
	return ModeRandom, fmt.Errorf("unknown mode %q", s)
}

// Options returns EvaluateOptions selecting m with the given source.
func (m Mode) Options(src random.Source) EvaluateOptions {
	return EvaluateOptions{
		Minimize: m == ModeMinimize,
		Maximize: m == ModeMaximize,
		Source:   src,
	}
}

// EvaluateOptions controls a single evaluation.
type EvaluateOptions struct {
	Minimize bool
	Maximize bool
	// Source defaults to a crypto-seeded random.Seeded.
	Source random.Source
}

// Mode resolves the flags to a Mode.
func (o EvaluateOptions) Mode() (Mode, error) {
	switch {
	case o.Minimize && o.Maximize:
		return ModeRandom, ErrConflictingModes
	case o.Minimize:
		return ModeMinimize, nil
	case o.Maximize:
		return ModeMaximize, nil
	default:
		return ModeRandom, nil
	}
}

type evaluation struct {
	mode          Mode
	source        random.Source
	maxIterations int
	maxDice       int
}

// Config holds parse-time settings shared by a Roll and its nested rolls.
type Config struct {
	Registry *Registry
	// Lenient turns unmatched modifiers into warnings instead of errors.
	Lenient       bool
	MaxIterations int
	// MaxDice bounds the draws of one dice term.
	MaxDice int
}

// Option configures parsing and evaluation.
type Option func(*Config)

// WithRegistry sets the modifier registry. The default is DefaultRegistry().
func WithRegistry(r *Registry) Option {
	return func(c *Config) {
		c.Registry = r
	}
}

// WithLenientModifiers reports unmatched modifiers as warnings on the Roll
// instead of failing the parse.
func WithLenientModifiers(lenient bool) Option {
	return func(c *Config) {
		c.Lenient = lenient
	}
}

// WithMaxIterations bounds recursive reroll and explode chains.
func WithMaxIterations(n int) Option {
	return func(c *Config) {
		c.MaxIterations = n
	}
}

// WithMaxDice bounds the dice one term may draw, rerolls and explosions
// included. Larger counts are rejected when the formula is parsed.
func WithMaxDice(n int) Option {
	return func(c *Config) {
		c.MaxDice = n
	}
}

func newConfig(opts []Option) *Config {
	c := &Config{}
	for _, opt := range opts {
		opt(c)
	}
	return c.withDefaults()
}

// withDefaults returns a copy of c with unset limits and registry filled in.
func (c *Config) withDefaults() *Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.Registry == nil {
		out.Registry = DefaultRegistry()
	}
	if out.MaxIterations <= 0 {
		out.MaxIterations = DefaultMaxIterations
	}
	if out.MaxDice <= 0 {
		out.MaxDice = DefaultMaxDice
	}
	return &out
}

func (c *Config) options() []Option {
	return []Option{
		WithRegistry(c.Registry),
		WithLenientModifiers(c.Lenient),
		WithMaxIterations(c.MaxIterations),
		WithMaxDice(c.MaxDice),
	}
}

// Warning is a non-fatal problem found while parsing.
type Warning struct {
	Kind     Kind   `json:"kind"`
	Term     string `json:"term"`
	Modifier string `json:"modifier"`
}

func (w Warning) Error() string {
	return (&UnmatchedModifierError{Term: w.Term, Kind: w.Kind, Modifier: w.Modifier}).Error()
}

// Roll is a parsed formula. It is not safe for concurrent use; independent
// Rolls may be evaluated concurrently.
type Roll struct {
	formula   string
	terms     []Term
	total     *float64
	evaluated bool
	warnings  []Warning
	cfg       *Config
}

// MaxFormulaLength is the longest formula New accepts, in bytes.
const MaxFormulaLength = 1024

// New parses formula into a Roll ready to evaluate.
func New(formula string, opts ...Option) (*Roll, error) {
	if len(formula) > MaxFormulaLength {
		return nil, &ParseError{
			Formula: formula[:16] + "...",
			Offset:  MaxFormulaLength,
			Reason:  fmt.Sprintf("formula longer than %d bytes", MaxFormulaLength),
		}
	}
	cfg := newConfig(opts)
	p := newParser(formula, cfg)
	terms, err := p.parse()
	if err != nil {
		return nil, err
	}
	return &Roll{formula: strings.TrimSpace(formula), terms: terms, warnings: p.warnings, cfg: cfg}, nil
}

// Parse returns the terms of formula without building a Roll.
func Parse(formula string, opts ...Option) ([]Term, error) {
	r, err := New(formula, opts...)
	if err != nil {
		return nil, err
	}
	return r.terms, nil
}

// Formula returns the source formula.
func (r *Roll) Formula() string { return r.formula }

// Terms returns the top-level terms in infix order.
func (r *Roll) Terms() []Term { return append([]Term(nil), r.terms...) }

// Evaluated reports whether Total is available.
func (r *Roll) Evaluated() bool { return r.evaluated }

// Warnings lists unmatched modifiers accepted in lenient mode, including
// those of nested rolls.
func (r *Roll) Warnings() []Warning { return append([]Warning(nil), r.warnings...) }

// Total returns the evaluated total.
func (r *Roll) Total() (float64, error) {
	if !r.evaluated || r.total == nil {
		return 0, ErrNotEvaluated
	}
	return *r.total, nil
}

// Expression renders the formula with resolved terms replaced by their totals.
func (r *Roll) Expression() string {
	parts := make([]string, len(r.terms))
	for i, t := range r.terms {
		parts[i] = t.Expression()
	}
	return joinTerms(r.terms, parts)
}

// NormalizedFormula renders the parsed terms back to formula syntax.
func (r *Roll) NormalizedFormula() string {
	parts := make([]string, len(r.terms))
	for i, t := range r.terms {
		parts[i] = t.Formula()
	}
	return joinTerms(r.terms, parts)
}

// joinTerms spaces binary operators and keeps unary signs attached.
func joinTerms(terms []Term, parts []string) string {
	var b strings.Builder
	expectOperand := true
	for i, t := range terms {
		_, isOp := t.(*OperatorTerm)
		switch {
		case isOp && !expectOperand:
			b.WriteString(" " + parts[i] + " ")
			expectOperand = true
		case isOp:
			b.WriteString(parts[i])
		default:
			b.WriteString(parts[i])
			expectOperand = false
		}
	}
	return b.String()
}

// Dice returns every dice term, including those nested in pools and
// parentheses, in evaluation order.
func (r *Roll) Dice() []*DiceTerm {
	var out []*DiceTerm
	for _, t := range r.terms {
		switch t := t.(type) {
		case *DiceTerm:
			out = append(out, t)
		case *ParentheticalTerm:
			if t.Roll != nil {
				out = append(out, t.Roll.Dice()...)
			}
		case *PoolTerm:
			for _, sub := range t.Rolls {
				out = append(out, sub.Dice()...)
			}
		}
	}
	return out
}

// Evaluate resolves every unevaluated term and folds the total. Calling it on
// an evaluated Roll does nothing. On error the Roll stays unevaluated.
func (r *Roll) Evaluate(ctx context.Context, opts EvaluateOptions) error {
	if r.evaluated {
		return nil
	}
	mode, err := opts.Mode()
	if err != nil {
		return err
	}
	src := opts.Source
	if src == nil && mode == ModeRandom {
		if src, err = random.New(); err != nil {
			return err
		}
	}
	cfg := r.config()
	return r.evaluate(ctx, &evaluation{mode: mode, source: src, maxIterations: cfg.MaxIterations, maxDice: cfg.MaxDice})
}

func (r *Roll) config() *Config {
	if r.cfg == nil {
		r.cfg = newConfig(nil)
	}
	return r.cfg
}

func (r *Roll) evaluate(ctx context.Context, ev *evaluation) error {
	if r.evaluated {
		return nil
	}
	for _, t := range r.terms {
		if t.Evaluated() {
			continue
		}
		if err := t.evaluate(ctx, ev); err != nil {
			return err
		}
	}
	v, err := fold(r.terms)
	if err != nil {
		return err
	}
	r.total = &v
	r.evaluated = true
	return nil
}

// Verify folds the evaluated terms again and checks the result against Total.
// It catches restored rolls whose recorded total was edited.
func (r *Roll) Verify() error {
	if !r.evaluated || r.total == nil {
		return ErrNotEvaluated
	}
	v, err := fold(r.terms)
	if err != nil {
		return err
	}
	if v != *r.total {
		return fmt.Errorf("%w: recorded %v, terms give %v", ErrTotalMismatch, *r.total, v)
	}
	return nil
}

// Reset clears evaluation state so the Roll can be evaluated again.
func (r *Roll) Reset() {
	for _, t := range r.terms {
		t.reset()
	}
	r.total = nil
	r.evaluated = false
}

// Reroll parses the same formula with the same configuration and evaluates
// the copy. The receiver is left untouched.
func (r *Roll) Reroll(ctx context.Context, opts EvaluateOptions) (*Roll, error) {
	next, err := New(r.formula, r.config().options()...)
	if err != nil {
		return nil, err
	}
	if err := next.Evaluate(ctx, opts); err != nil {
		return nil, err
	}
	return next, nil
}

type rollJSON struct {
	Formula   string   `json:"formula"`
	Terms     []Term   `json:"terms"`
	Total     *float64 `json:"total"`
	Evaluated bool     `json:"evaluated"`
}

func (r *Roll) MarshalJSON() ([]byte, error) {
	terms := r.terms
	if terms == nil {
		terms = []Term{}
	}
	return json.Marshal(rollJSON{Formula: r.formula, Terms: terms, Total: r.total, Evaluated: r.evaluated})
}

// ToJSON serializes the roll.
func (r *Roll) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

func precedence(op string, unary bool) int {
	switch {
	case unary:
		return 3
	case op == "*" || op == "/":
		return 2
	default:
		return 1
	}
}

type pendingOp struct {
	symbol string
	unary  bool
}

// fold reduces the infix term list with operator precedence. Unary signs bind
// tightest; binary operators are left associative.
func fold(terms []Term) (float64, error) {
	var values []float64
	var ops []pendingOp

	apply := func() error {
		op := ops[len(ops)-1]
		ops = ops[:len(ops)-1]
		if op.unary {
			if len(values) < 1 {
				return ErrNotEvaluated
			}
			if op.symbol == "-" {
				values[len(values)-1] = -values[len(values)-1]
			}
			return nil
		}
		if len(values) < 2 {
			return ErrNotEvaluated
		}
		a, b := values[len(values)-2], values[len(values)-1]
		values = values[:len(values)-2]
		var v float64
		switch op.symbol {
		case "+":
			v = a + b
		case "-":
			v = a - b
		case "*":
			v = a * b
		case "/":
			if b == 0 {
				return ErrDivisionByZero
			}
			v = a / b
		}
		values = append(values, v)
		return nil
	}

	expectOperand := true
	for _, t := range terms {
		switch t := t.(type) {
		case *OperatorTerm:
			if expectOperand {
				ops = append(ops, pendingOp{symbol: t.Operator, unary: true})
				continue
			}
			cur := precedence(t.Operator, false)
			for len(ops) > 0 && precedence(ops[len(ops)-1].symbol, ops[len(ops)-1].unary) >= cur {
				if err := apply(); err != nil {
					return 0, err
				}
			}
			ops = append(ops, pendingOp{symbol: t.Operator})
			expectOperand = true
		case Operand:
			v, err := t.Total()
			if err != nil {
				return 0, err
			}
			values = append(values, v)
			expectOperand = false
		}
	}
	for len(ops) > 0 {
		if err := apply(); err != nil {
			return 0, err
		}
	}
	if len(values) != 1 {
		return 0, ErrNotEvaluated
	}
	return values[0], nil
}
