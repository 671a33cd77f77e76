package dice

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

// DiceTerm is NdF with its modifiers.
type DiceTerm struct {
	Number    int
	Faces     int
	Modifiers []string
	Results   []Result
	Margin    *Margin

	opts      Options
	calls     []ModifierCall
	evaluated bool
}

// NewDiceTerm validates the dice specification and matches modifiers against
// the registry of cfg; a nil cfg uses the defaults. Modifiers the registry
// does not know are returned in unmatched and the caller decides whether that
// is fatal. Known modifiers with unusable arguments fail here.
func NewDiceTerm(number, faces int, modifiers []string, opts Options, cfg *Config) (t *DiceTerm, unmatched []string, err error) {
	if number < 0 || faces <= 0 {
		return nil, nil, &InvalidDiceSpecError{Number: number, Faces: faces}
	}
	cfg = cfg.withDefaults()
	if number > cfg.MaxDice {
		return nil, nil, &TooManyDiceError{Count: number, Limit: cfg.MaxDice}
	}
	t = &DiceTerm{Number: number, Faces: faces, Modifiers: modifiers, opts: opts}
	if t.calls, unmatched, err = matchModifiers(cfg.Registry, KindDice, modifiers); err != nil {
		return nil, nil, err
	}
	return t, unmatched, nil
}

func matchModifiers(reg *Registry, kind Kind, modifiers []string) ([]ModifierCall, []string, error) {
	var calls []ModifierCall
	var unmatched []string
	for _, m := range modifiers {
		call, ok := reg.Match(kind, m)
		if !ok {
			unmatched = append(unmatched, m)
			continue
		}
		if err := call.Validate(); err != nil {
			return nil, nil, err
		}
		calls = append(calls, call)
	}
	return calls, unmatched, nil
}

func (t *DiceTerm) Kind() Kind           { return KindDice }
func (t *DiceTerm) Options() Options     { return t.opts }
func (t *DiceTerm) Evaluated() bool      { return t.evaluated }
func (t *DiceTerm) IsIntermediate() bool { return false }

// Calls returns the matched modifier commands in application order.
func (t *DiceTerm) Calls() []ModifierCall {
	return append([]ModifierCall(nil), t.calls...)
}

func (t *DiceTerm) Formula() string {
	faces := strconv.Itoa(t.Faces)
	return withFlavor(strconv.Itoa(t.Number)+"d"+faces+strings.Join(t.Modifiers, ""), t.opts)
}

func (t *DiceTerm) Expression() string {
	if total, err := t.Total(); err == nil {
		return formatNumber(total)
	}
	return t.Formula()
}

// Total is the sum of active contributions, adjusted by a margin modifier.
func (t *DiceTerm) Total() (float64, error) {
	if !t.evaluated {
		return 0, ErrNotEvaluated
	}
	return total(t.Results, t.Margin), nil
}

// Values lists the values of active results.
func (t *DiceTerm) Values() []float64 {
	var out []float64
	for _, r := range t.Results {
		if r.Active {
			out = append(out, r.Value)
		}
	}
	return out
}

func total(results []Result, m *Margin) float64 {
	var sum float64
	for _, r := range results {
		sum += r.Contribution()
	}
	if m != nil {
		return m.apply(sum)
	}
	return sum
}

func (t *DiceTerm) draw(ev *evaluation) func(ctx context.Context) (float64, error) {
	return func(ctx context.Context) (float64, error) {
		switch ev.mode {
		case ModeMinimize:
			return 1, nil
		case ModeMaximize:
			return float64(t.Faces), nil
		}
		v, err := ev.source.Roll(ctx, t.Faces)
		if err != nil {
			return 0, err
		}
		return float64(v), nil
	}
}

func (t *DiceTerm) evaluate(ctx context.Context, ev *evaluation) error {
	if t.evaluated {
		return ErrAlreadyEvaluated
	}
	set := &ResultSet{
		Kind:          KindDice,
		Results:       make([]Result, 0, t.Number),
		Min:           1,
		Max:           float64(t.Faces),
		Bounded:       true,
		MaxIterations: ev.maxIterations,
		MaxDice:       ev.maxDice,
		mode:          ev.mode,
		draw:          t.draw(ev),
	}
	for i := 0; i < t.Number; i++ {
		r, err := set.Draw(ctx)
		if err != nil {
			return err
		}
		set.Results = append(set.Results, r)
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

func (t *DiceTerm) reset() {
	t.Results = nil
	t.Margin = nil
	t.evaluated = false
}

func (t *DiceTerm) MarshalJSON() ([]byte, error) {
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
		Number    int      `json:"number"`
		Faces     int      `json:"faces"`
		Modifiers []string `json:"modifiers"`
		Results   []Result `json:"results"`
		Margin    *Margin  `json:"margin,omitempty"`
	}{KindDice, t.opts, t.evaluated, t.Number, t.Faces, modifiers, results, t.Margin})
}
