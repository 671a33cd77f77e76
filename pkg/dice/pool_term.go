package dice

import (
	"context"
	"encoding/json"
	"strings"
)

// PoolTerm is a brace-delimited set of sub-formulas, each evaluated as its own
// Roll, with modifiers applied over the sub-roll totals.
type PoolTerm struct {
	Terms     []string
	Modifiers []string
	Rolls     []*Roll
	Results   []Result
	Margin    *Margin

	opts      Options
	calls     []ModifierCall
	evaluated bool
}

func newPoolTerm(rolls []*Roll, modifiers []string, opts Options, reg *Registry) (*PoolTerm, []string, error) {
	t := &PoolTerm{Modifiers: modifiers, Rolls: rolls, opts: opts}
	for _, r := range rolls {
		t.Terms = append(t.Terms, r.Formula())
	}
	calls, unmatched, err := matchModifiers(reg, KindPool, modifiers)
	if err != nil {
		return nil, nil, err
	}
	t.calls = calls
	return t, unmatched, nil
}

func (t *PoolTerm) Kind() Kind           { return KindPool }
func (t *PoolTerm) Options() Options     { return t.opts }
func (t *PoolTerm) Evaluated() bool      { return t.evaluated }
func (t *PoolTerm) IsIntermediate() bool { return true }

func (t *PoolTerm) Formula() string {
	return withFlavor("{"+strings.Join(t.Terms, ",")+"}"+strings.Join(t.Modifiers, ""), t.opts)
}

func (t *PoolTerm) Expression() string {
	if total, err := t.Total(); err == nil {
		return formatNumber(total)
	}
	parts := make([]string, len(t.Rolls))
	for i, r := range t.Rolls {
		parts[i] = r.Expression()
	}
	return "{" + strings.Join(parts, ",") + "}" + strings.Join(t.Modifiers, "")
}

func (t *PoolTerm) Total() (float64, error) {
	if !t.evaluated {
		return 0, ErrNotEvaluated
	}
	return total(t.Results, t.Margin), nil
}

func (t *PoolTerm) evaluate(ctx context.Context, ev *evaluation) error {
	if t.evaluated {
		return ErrAlreadyEvaluated
	}
	set := &ResultSet{
		Kind:          KindPool,
		Results:       make([]Result, 0, len(t.Rolls)),
		MaxIterations: ev.maxIterations,
		mode:          ev.mode,
	}
	for _, r := range t.Rolls {
		if err := r.evaluate(ctx, ev); err != nil {
			return err
		}
		v, err := r.Total()
		if err != nil {
			return err
		}
		set.Results = append(set.Results, Result{Value: v, Active: true})
	}
	for _, call := range t.calls {
		if err := call.handler(ctx, set, call); err != nil {
			return err
		}
	}
	t.Results = set.Results
	t.Margin = set.Margin
	t.evaluated = true
	return nil
}

func (t *PoolTerm) reset() {
	for _, r := range t.Rolls {
		r.Reset()
	}
	t.Results = nil
	t.Margin = nil
	t.evaluated = false
}

func (t *PoolTerm) MarshalJSON() ([]byte, error) {
	modifiers := t.Modifiers
	if modifiers == nil {
		modifiers = []string{}
	}
	results := t.Results
	if results == nil {
		results = []Result{}
	}
	return json.Marshal(struct {
		Class     Kind     `json:"class"`
		Options   Options  `json:"options"`
		Evaluated bool     `json:"evaluated"`
		Terms     []string `json:"terms"`
		Modifiers []string `json:"modifiers"`
		Rolls     []*Roll  `json:"rolls"`
		Results   []Result `json:"results"`
		Margin    *Margin  `json:"margin,omitempty"`
	}{KindPool, t.opts, t.evaluated, t.Terms, modifiers, t.Rolls, results, t.Margin})
}
