package dice

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/mitchellh/mapstructure"
)

// FromJSON rebuilds a Roll from ToJSON output. Modifiers are matched again
// against the configured registry.
func FromJSON(data []byte, opts ...Option) (*Roll, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &SerializationError{Reason: "malformed JSON", Err: err}
	}
	return FromData(raw, opts...)
}

// FromData rebuilds a Roll from a generic map, as produced by decoding roll
// JSON into map[string]any.
func FromData(data map[string]any, opts ...Option) (*Roll, error) {
	if data == nil {
		return nil, &SerializationError{Reason: "no data"}
	}
	d := &decoder{cfg: newConfig(opts)}
	return d.roll("", data)
}

type decoder struct {
	cfg *Config
}

type rollData struct {
	Formula   *string          `mapstructure:"formula"`
	Terms     []map[string]any `mapstructure:"terms"`
	Total     *float64         `mapstructure:"total"`
	Evaluated bool             `mapstructure:"evaluated"`
}

type termData struct {
	Class     string  `mapstructure:"class"`
	Options   Options `mapstructure:"options"`
	Evaluated bool    `mapstructure:"evaluated"`

	Number   *float64 `mapstructure:"number"`
	Operator *string  `mapstructure:"operator"`

	Term *string        `mapstructure:"term"`
	Roll map[string]any `mapstructure:"roll"`

	Faces     *float64 `mapstructure:"faces"`
	Modifiers []string `mapstructure:"modifiers"`
	Results   []Result `mapstructure:"results"`
	Margin    *Margin  `mapstructure:"margin"`

	Terms []string         `mapstructure:"terms"`
	Rolls []map[string]any `mapstructure:"rolls"`
}

func decode(path string, in any, out any) error {
	if err := mapstructure.Decode(in, out); err != nil {
		return &SerializationError{Path: path, Reason: "decode", Err: err}
	}
	return nil
}

func missing(path, field string) error {
	return &SerializationError{Path: path, Reason: fmt.Sprintf("missing required field %q", field)}
}

// integer converts a decoded count or face number, rejecting fractions and
// values an int32 cannot hold. Range checks belong to NewDiceTerm.
func integer(path, field string, n float64) (int, error) {
	if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
		return 0, &SerializationError{Path: path, Reason: fmt.Sprintf("%s %v is not an integer", field, n)}
	}
	return int(n), nil
}

func (d *decoder) roll(path string, data map[string]any) (*Roll, error) {
	var rd rollData
	if err := decode(path, data, &rd); err != nil {
		return nil, err
	}
	if rd.Formula == nil {
		return nil, missing(path, "formula")
	}
	if rd.Evaluated && rd.Total == nil {
		return nil, missing(path, "total")
	}

	r := &Roll{formula: *rd.Formula, cfg: d.cfg}
	if len(rd.Terms) == 0 {
		// A bare formula is accepted and parsed afresh.
		parsed, err := New(*rd.Formula, d.cfg.options()...)
		if err != nil {
			return nil, &SerializationError{Path: path, Reason: "reparse formula", Err: err}
		}
		r.terms, r.warnings = parsed.terms, parsed.warnings
	}
	for i, td := range rd.Terms {
		t, err := d.term(fmt.Sprintf("%sterms[%d]", path, i), td, r)
		if err != nil {
			return nil, err
		}
		r.terms = append(r.terms, t)
	}
	if rd.Evaluated {
		total := *rd.Total
		r.total = &total
		r.evaluated = true
	}
	return r, nil
}

func (d *decoder) unmatched(path string, kind Kind, text string, modifiers []string, owner *Roll) error {
	for _, m := range modifiers {
		if !d.cfg.Lenient {
			return &SerializationError{Path: path, Reason: "modifier", Err: &UnmatchedModifierError{Term: text, Kind: kind, Modifier: m}}
		}
		owner.warnings = append(owner.warnings, Warning{Kind: kind, Term: text, Modifier: m})
	}
	return nil
}

func (d *decoder) term(path string, data map[string]any, owner *Roll) (Term, error) {
	var td termData
	if err := decode(path, data, &td); err != nil {
		return nil, err
	}

	switch Kind(td.Class) {
	case KindNumeric:
		if td.Number == nil {
			return nil, missing(path, "number")
		}
		return NewNumericTerm(*td.Number, td.Options), nil

	case KindOperator:
		if td.Operator == nil {
			return nil, missing(path, "operator")
		}
		switch *td.Operator {
		case "+", "-", "*", "/":
		default:
			return nil, &SerializationError{Path: path, Reason: fmt.Sprintf("unknown operator %q", *td.Operator)}
		}
		return &OperatorTerm{Operator: *td.Operator, opts: td.Options}, nil

	case KindParenthetical:
		if td.Term == nil {
			return nil, missing(path, "term")
		}
		t := &ParentheticalTerm{Term: *td.Term, opts: td.Options}
		var err error
		if td.Roll != nil {
			t.Roll, err = d.roll(path+".roll.", td.Roll)
		} else {
			t.Roll, err = d.roll(path+".roll.", map[string]any{"formula": *td.Term})
		}
		if err != nil {
			return nil, err
		}
		owner.warnings = append(owner.warnings, t.Roll.warnings...)
		return t, nil

	case KindDice:
		if td.Number == nil {
			return nil, missing(path, "number")
		}
		if td.Faces == nil {
			return nil, missing(path, "faces")
		}
		number, err := integer(path, "number", *td.Number)
		if err != nil {
			return nil, err
		}
		faces, err := integer(path, "faces", *td.Faces)
		if err != nil {
			return nil, err
		}
		t, unmatched, err := NewDiceTerm(number, faces, td.Modifiers, td.Options, d.cfg)
		if err != nil {
			return nil, &SerializationError{Path: path, Reason: "dice", Err: err}
		}
		if err := d.unmatched(path, KindDice, t.Formula(), unmatched, owner); err != nil {
			return nil, err
		}
		if td.Evaluated {
			if len(td.Results) < t.Number {
				return nil, &SerializationError{Path: path, Reason: fmt.Sprintf("evaluated term has %d results for %d dice", len(td.Results), t.Number)}
			}
			t.Results = td.Results
			t.Margin = td.Margin
			t.evaluated = true
		}
		return t, nil

	case KindPool:
		if td.Terms == nil {
			return nil, missing(path, "terms")
		}
		var rolls []*Roll
		for i, f := range td.Terms {
			rpath := fmt.Sprintf("%s.rolls[%d].", path, i)
			var (
				r   *Roll
				err error
			)
			if i < len(td.Rolls) {
				r, err = d.roll(rpath, td.Rolls[i])
			} else {
				r, err = d.roll(rpath, map[string]any{"formula": f})
			}
			if err != nil {
				return nil, err
			}
			owner.warnings = append(owner.warnings, r.warnings...)
			rolls = append(rolls, r)
		}
		t, unmatched, err := newPoolTerm(rolls, td.Modifiers, td.Options, d.cfg.Registry)
		if err != nil {
			return nil, &SerializationError{Path: path, Reason: "pool", Err: err}
		}
		t.Terms = append([]string(nil), td.Terms...)
		if err := d.unmatched(path, KindPool, t.Formula(), unmatched, owner); err != nil {
			return nil, err
		}
		if td.Evaluated {
			if len(td.Results) != len(rolls) {
				return nil, &SerializationError{Path: path, Reason: fmt.Sprintf("evaluated pool has %d results for %d rolls", len(td.Results), len(rolls))}
			}
			t.Results = td.Results
			t.Margin = td.Margin
			t.evaluated = true
		}
		return t, nil

	case "":
		return nil, missing(path, "class")
	default:
		return nil, &SerializationError{Path: path, Reason: fmt.Sprintf("unknown term class %q", td.Class)}
	}
}
