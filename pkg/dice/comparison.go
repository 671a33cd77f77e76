package dice

import (
	"strconv"
)

// Comparison is a modifier target such as "<=2" or "=6".
type Comparison struct {
	Operator string  `json:"operator" mapstructure:"operator"`
	Target   float64 `json:"target" mapstructure:"target"`
}

// Matches reports whether v satisfies the comparison.
func (c Comparison) Matches(v float64) bool {
	switch c.Operator {
	case "<":
		return v < c.Target
	case "<=":
		return v <= c.Target
	case ">":
		return v > c.Target
	case ">=":
		return v >= c.Target
	default:
		return v == c.Target
	}
}

func (c Comparison) String() string {
	op := c.Operator
	if op == "" {
		op = "="
	}
	return op + formatNumber(c.Target)
}

// Margin is the result of an "ms" modifier: the term total becomes the
// distance between the sum and the target.
type Margin Comparison

func (m Margin) apply(sum float64) float64 {
	if m.Operator == "<" || m.Operator == "<=" {
		return m.Target - sum
	}
	return sum - m.Target
}

// comparison builds a Comparison from an optional operator and an optional
// number captured by a modifier pattern. fallback is used when neither is
// present; a nil fallback makes the target mandatory.
func comparison(raw, op, num string, fallback *float64) (Comparison, error) {
	if num == "" {
		if op != "" || fallback == nil {
			return Comparison{}, &ModifierError{Modifier: raw, Reason: "missing comparison target"}
		}
		return Comparison{Operator: "=", Target: *fallback}, nil
	}
	target, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Comparison{}, &ModifierError{Modifier: raw, Reason: "invalid target " + strconv.Quote(num)}
	}
	if op == "" {
		op = "="
	}
	return Comparison{Operator: op, Target: target}, nil
}
