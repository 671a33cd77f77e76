package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/rollkit/pkg/adapters/sqlite"
	"github.com/aretw0/rollkit/pkg/domain"
	"github.com/aretw0/rollkit/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "rolls.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	ports.RunRollStoreContract(t, openStore(t))
}

func TestSQLiteStore_InMemory(t *testing.T) {
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ports.RunRollStoreContract(t, store)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rolls.db")
	ctx := context.Background()

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	total := 12.5
	require.NoError(t, store.Save(ctx, &domain.RollRecord{
		ID:        "r1",
		Channel:   "c",
		Formula:   "1d20 + 2.5",
		Total:     &total,
		CreatedAt: time.Now(),
	}))
	require.NoError(t, store.Close())

	// migrations are idempotent
	store, err = sqlite.Open(path)
	require.NoError(t, err)
	defer store.Close()

	rec, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, rec.Total)
	assert.Equal(t, 12.5, *rec.Total)
	assert.Nil(t, rec.Metadata)
}

func TestSQLiteStore_NilTotal(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.RollRecord{ID: "pending", Channel: "c", Formula: "1d6"}))
	rec, err := store.Load(ctx, "pending")
	require.NoError(t, err)
	assert.Nil(t, rec.Total)
}

func TestSQLiteStore_Upsert(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.RollRecord{ID: "x", Channel: "a", Formula: "1d4"}))
	require.NoError(t, store.Save(ctx, &domain.RollRecord{ID: "x", Channel: "b", Formula: "1d8"}))

	rec, err := store.Load(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "b", rec.Channel)
	assert.Equal(t, "1d8", rec.Formula)

	old, err := store.List(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, old)
}

func TestSQLiteStore_RequiresPath(t *testing.T) {
	_, err := sqlite.Open("  ")
	assert.Error(t, err)
}
