package ports

import (
	"context"

	"github.com/aretw0/rollkit/pkg/domain"
)

// MacroLibrary resolves named formulas.
type MacroLibrary interface {
	// Get returns the macro with the given name.
	// Returns domain.ErrMacroNotFound if no macro has that name.
	Get(ctx context.Context, name string) (*domain.Macro, error)

	// List returns every macro, sorted by name.
	List(ctx context.Context) ([]domain.Macro, error)
}
