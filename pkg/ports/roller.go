package ports

import (
	"context"

	"github.com/aretw0/rollkit/pkg/dice"
)

// Roller is the engine surface transport adapters depend on.
type Roller interface {
	// Parse builds an unevaluated roll.
	Parse(formula string) (*dice.Roll, error)

	// Roll parses and evaluates formula.
	Roll(ctx context.Context, formula string, mode dice.Mode) (*dice.Roll, error)

	// Replay restores a serialized roll, evaluating it if it was stored
	// unevaluated.
	Replay(ctx context.Context, data []byte, mode dice.Mode) (*dice.Roll, error)
}
