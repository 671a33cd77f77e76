package dice

import (
	"context"
	"encoding/json"
	"strconv"
)

// Kind names a term variant. It doubles as the serialized "class".
type Kind string

const (
	KindNumeric       Kind = "NumericTerm"
	KindOperator      Kind = "OperatorTerm"
	KindParenthetical Kind = "ParentheticalTerm"
	KindDice          Kind = "DiceTerm"
	KindPool          Kind = "PoolTerm"
)

// Options carries uninterpreted per-term data.
type Options struct {
	Flavor string `json:"flavor,omitempty" mapstructure:"flavor"`
}

// Term is a node of a parsed formula. The set of implementations is closed:
// *NumericTerm, *OperatorTerm, *ParentheticalTerm, *DiceTerm and *PoolTerm.
type Term interface {
	Kind() Kind
	Options() Options
	Evaluated() bool
	// IsIntermediate reports whether the term wraps a nested roll that must be
	// resolved before arithmetic folding.
	IsIntermediate() bool
	// Formula renders the term back to formula syntax.
	Formula() string
	// Expression renders the total once evaluated, the formula otherwise.
	Expression() string

	evaluate(ctx context.Context, ev *evaluation) error
	reset()
}

// Operand is a term that contributes a value to arithmetic.
type Operand interface {
	Term
	Total() (float64, error)
}

// Result is one die face or, inside a pool, one sub-roll total.
type Result struct {
	Value     float64  `json:"value" mapstructure:"value"`
	Active    bool     `json:"active" mapstructure:"active"`
	Discarded bool     `json:"discarded,omitempty" mapstructure:"discarded"`
	Success   *bool    `json:"success,omitempty" mapstructure:"success"`
	Rerolled  bool     `json:"rerolled,omitempty" mapstructure:"rerolled"`
	Exploded  bool     `json:"exploded,omitempty" mapstructure:"exploded"`
	Count     *float64 `json:"count,omitempty" mapstructure:"count"`
}

// Contribution is what the result adds to its term total.
func (r Result) Contribution() float64 {
	switch {
	case !r.Active:
		return 0
	case r.Count != nil:
		return *r.Count
	default:
		return r.Value
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func withFlavor(s string, o Options) string {
	if o.Flavor == "" {
		return s
	}
	return s + "[" + o.Flavor + "]"
}

// NumericTerm is a constant. It is always evaluated.
type NumericTerm struct {
	Number float64
	opts   Options
}

// NewNumericTerm returns a constant term.
func NewNumericTerm(n float64, opts Options) *NumericTerm {
	return &NumericTerm{Number: n, opts: opts}
}

func (t *NumericTerm) Kind() Kind           { return KindNumeric }
func (t *NumericTerm) Options() Options     { return t.opts }
func (t *NumericTerm) Evaluated() bool      { return true }
func (t *NumericTerm) IsIntermediate() bool { return false }

func (t *NumericTerm) Formula() string {
	return withFlavor(formatNumber(t.Number), t.opts)
}

func (t *NumericTerm) Expression() string {
	return formatNumber(t.Number)
}

func (t *NumericTerm) Total() (float64, error) {
	return t.Number, nil
}

func (t *NumericTerm) evaluate(context.Context, *evaluation) error { return nil }

func (t *NumericTerm) reset() {}

func (t *NumericTerm) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Class     Kind    `json:"class"`
		Options   Options `json:"options"`
		Evaluated bool    `json:"evaluated"`
		Number    float64 `json:"number"`
	}{KindNumeric, t.opts, true, t.Number})
}

// OperatorTerm is one of + - * /. In operand position it is a unary sign.
type OperatorTerm struct {
	Operator string
	opts     Options
}

// NewOperatorTerm returns an operator term.
func NewOperatorTerm(op string) *OperatorTerm {
	return &OperatorTerm{Operator: op}
}

func (t *OperatorTerm) Kind() Kind           { return KindOperator }
func (t *OperatorTerm) Options() Options     { return t.opts }
func (t *OperatorTerm) Evaluated() bool      { return true }
func (t *OperatorTerm) IsIntermediate() bool { return false }

func (t *OperatorTerm) Formula() string {
	return t.Operator
}

func (t *OperatorTerm) Expression() string {
	return t.Operator
}

func (t *OperatorTerm) evaluate(context.Context, *evaluation) error { return nil }

func (t *OperatorTerm) reset() {}

func (t *OperatorTerm) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Class     Kind    `json:"class"`
		Options   Options `json:"options"`
		Evaluated bool    `json:"evaluated"`
		Operator  string  `json:"operator"`
	}{KindOperator, t.opts, true, t.Operator})
}

// ParentheticalTerm is a bracketed sub-expression resolved as its own Roll.
type ParentheticalTerm struct {
	// Term is the inner formula text without the parentheses.
	Term string
	Roll *Roll
	opts Options
}

func (t *ParentheticalTerm) Kind() Kind           { return KindParenthetical }
func (t *ParentheticalTerm) Options() Options     { return t.opts }
func (t *ParentheticalTerm) Evaluated() bool      { return t.Roll != nil && t.Roll.Evaluated() }
func (t *ParentheticalTerm) IsIntermediate() bool { return true }

func (t *ParentheticalTerm) Formula() string {
	return withFlavor("("+t.Term+")", t.opts)
}

func (t *ParentheticalTerm) Expression() string {
	if total, err := t.Total(); err == nil {
		return formatNumber(total)
	}
	if t.Roll != nil {
		return "(" + t.Roll.Expression() + ")"
	}
	return "(" + t.Term + ")"
}

func (t *ParentheticalTerm) Total() (float64, error) {
	if t.Roll == nil {
		return 0, ErrNotEvaluated
	}
	return t.Roll.Total()
}

func (t *ParentheticalTerm) evaluate(ctx context.Context, ev *evaluation) error {
	if t.Evaluated() {
		return ErrAlreadyEvaluated
	}
	return t.Roll.evaluate(ctx, ev)
}

func (t *ParentheticalTerm) reset() {
	if t.Roll != nil {
		t.Roll.Reset()
	}
}

func (t *ParentheticalTerm) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Class     Kind    `json:"class"`
		Options   Options `json:"options"`
		Evaluated bool    `json:"evaluated"`
		Term      string  `json:"term"`
		Roll      *Roll   `json:"roll"`
	}{KindParenthetical, t.opts, t.Evaluated(), t.Term, t.Roll})
}
