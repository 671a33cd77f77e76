package observability

import (
	"context"
	"errors"

	"github.com/aretw0/rollkit/pkg/dice"
	"github.com/aretw0/rollkit/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors fed by engine hooks.
type Metrics struct {
	Rolls      *prometheus.CounterVec
	Totals     *prometheus.HistogramVec
	Duration   prometheus.Histogram
	DiceRolled prometheus.Counter
	Unmatched  *prometheus.CounterVec
	Errors     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Rolls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rollkit_rolls_total",
				Help: "Total number of evaluated rolls",
			},
			[]string{"mode"},
		),
		Totals: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rollkit_roll_total_value",
				Help:    "Distribution of roll totals",
				Buckets: []float64{0, 1, 2, 5, 10, 15, 20, 30, 50, 100, 250},
			},
			[]string{"mode"},
		),
		Duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rollkit_roll_duration_seconds",
				Help:    "Duration of roll evaluation",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
		),
		DiceRolled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rollkit_dice_rolled_total",
				Help: "Total number of dice results drawn, rerolls and explosions included",
			},
		),
		Unmatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rollkit_unmatched_modifiers_total",
				Help: "Modifiers accepted in lenient mode that matched no handler",
			},
			[]string{"modifier"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rollkit_roll_errors_total",
				Help: "Failed rolls by error kind",
			},
			[]string{"kind"},
		),
	}

	for _, c := range []prometheus.Collector{m.Rolls, m.Totals, m.Duration, m.DiceRolled, m.Unmatched, m.Errors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRollEvaluated: func(_ context.Context, e *domain.RollEvent) {
			m.Rolls.WithLabelValues(e.Mode).Inc()
			m.Totals.WithLabelValues(e.Mode).Observe(e.Total)
			m.Duration.Observe(e.Duration.Seconds())
			m.DiceRolled.Add(float64(e.Dice))
		},
		OnRollFailed: func(_ context.Context, e *domain.RollEvent) {
			m.Errors.WithLabelValues(ErrorKind(e.Err)).Inc()
		},
		OnUnmatchedModifier: func(_ context.Context, e *domain.ModifierEvent) {
			m.Unmatched.WithLabelValues(e.Modifier).Inc()
		},
	}
}

// ErrorKind maps an engine error to a low-cardinality label.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, dice.ErrParse):
		return "parse"
	case errors.Is(err, dice.ErrInvalidDiceSpec):
		return "invalid_dice"
	case errors.Is(err, dice.ErrUnmatchedModifier):
		return "unmatched_modifier"
	case errors.Is(err, dice.ErrNonTerminatingModifier):
		return "non_terminating"
	case errors.Is(err, dice.ErrTooManyDice):
		return "too_many_dice"
	case errors.Is(err, dice.ErrModifier):
		return "modifier"
	case errors.Is(err, dice.ErrSerialization):
		return "serialization"
	case errors.Is(err, dice.ErrDivisionByZero):
		return "division_by_zero"
	case errors.Is(err, domain.ErrRollMismatch), errors.Is(err, dice.ErrTotalMismatch):
		return "mismatch"
	case errors.Is(err, domain.ErrRollNotFound), errors.Is(err, domain.ErrMacroNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
