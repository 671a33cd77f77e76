package ports

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/rollkit/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRollStoreContract runs a suite of tests to verify that a RollStore implementation
// adheres to the defined interface contract.
func RunRollStoreContract(t *testing.T, store RollStore) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000000")
	channel := "contract-" + suffix

	record := func(id string, at time.Time) *domain.RollRecord {
		total := 7.0
		return &domain.RollRecord{
			ID:        id,
			Channel:   channel,
			Formula:   "2d6",
			Mode:      "random",
			Total:     &total,
			Roll:      json.RawMessage(`{"formula":"2d6","terms":[],"total":7,"evaluated":true}`),
			Metadata:  map[string]string{"actor": "tester"},
			CreatedAt: at.UTC().Truncate(time.Millisecond),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		id := "save-" + suffix
		rec := record(id, time.Now())

		require.NoError(t, store.Save(ctx, rec), "Save should not return error")

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, rec.ID, loaded.ID)
		assert.Equal(t, rec.Channel, loaded.Channel)
		assert.Equal(t, rec.Formula, loaded.Formula)
		require.NotNil(t, loaded.Total)
		assert.Equal(t, 7.0, *loaded.Total)
		assert.JSONEq(t, string(rec.Roll), string(loaded.Roll))
		assert.Equal(t, "tester", loaded.Metadata["actor"])
		assert.True(t, rec.CreatedAt.Equal(loaded.CreatedAt))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+suffix)
		assert.ErrorIs(t, err, domain.ErrRollNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		id := "delete-" + suffix
		require.NoError(t, store.Save(ctx, record(id, time.Now())))

		require.NoError(t, store.Delete(ctx, id), "Delete should not return error")

		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrRollNotFound, "Load after Delete should return ErrRollNotFound")

		assert.NoError(t, store.Delete(ctx, id), "Deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		base := time.Now().Add(-time.Hour)
		id1 := "list-1-" + suffix
		id2 := "list-2-" + suffix
		// saved out of order on purpose
		require.NoError(t, store.Save(ctx, record(id2, base.Add(time.Minute))))
		require.NoError(t, store.Save(ctx, record(id1, base)))

		other := record("other-"+suffix, base)
		other.Channel = "elsewhere-" + suffix
		require.NoError(t, store.Save(ctx, other))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
			_ = store.Delete(ctx, other.ID)
		}()

		records, err := store.List(ctx, channel)
		require.NoError(t, err)

		var ids []string
		for _, r := range records {
			ids = append(ids, r.ID)
		}
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
		assert.NotContains(t, ids, other.ID)

		var i1, i2 int
		for i, id := range ids {
			switch id {
			case id1:
				i1 = i
			case id2:
				i2 = i
			}
		}
		assert.Less(t, i1, i2, "List should return oldest first")
	})

	t.Run("List Empty Channel", func(t *testing.T) {
		records, err := store.List(ctx, "empty-"+suffix)
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}
