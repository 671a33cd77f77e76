package ports

import (
	"context"

	"github.com/aretw0/rollkit/pkg/domain"
)

// RollStore defines the interface for persisting evaluated rolls.
// Records are grouped by channel (a table, a chat room, a campaign).
type RollStore interface {
	// Save persists the record under record.ID, replacing any previous value.
	Save(ctx context.Context, record *domain.RollRecord) error

	// Load retrieves a record by ID.
	// Returns domain.ErrRollNotFound if the record does not exist.
	Load(ctx context.Context, id string) (*domain.RollRecord, error)

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the records of a channel, oldest first.
	List(ctx context.Context, channel string) ([]*domain.RollRecord, error)
}
