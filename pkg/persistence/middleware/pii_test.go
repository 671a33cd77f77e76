package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/rollkit/pkg/adapters/memory"
	"github.com/aretw0/rollkit/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlyingStore := memory.NewStore()
	// Mask keys containing "email" or "ip"
	mw, err := middleware.NewPIIMiddleware([]string{"email", `^ip$`})
	require.NoError(t, err)
	secureStore := mw(underlyingStore)
	ctx := context.Background()

	rec := sampleRecord("pii")
	rec.Metadata["player_email"] = "ana@example.com"
	rec.Metadata["ip"] = "10.0.0.1"
	rec.Metadata["zip"] = "12345"

	require.NoError(t, secureStore.Save(ctx, rec))
	assert.Equal(t, "ana@example.com", rec.Metadata["player_email"], "Middleware modified original record in memory!")

	stored, err := underlyingStore.Load(ctx, "pii")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, stored.Metadata["player_email"])
	assert.Equal(t, middleware.Mask, stored.Metadata["ip"])
	assert.Equal(t, "12345", stored.Metadata["zip"])
	assert.Equal(t, "ana", stored.Metadata["player"])
	assert.JSONEq(t, string(rec.Roll), string(stored.Roll))
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain_OrderAndContract(t *testing.T) {
	underlyingStore := memory.NewStore()
	pii, err := middleware.NewPIIMiddleware([]string{"secret"})
	require.NoError(t, err)
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	store := middleware.Chain(underlyingStore, pii, enc)
	ctx := context.Background()

	rec := sampleRecord("chained")
	rec.Metadata["secret"] = "hunter2"
	require.NoError(t, store.Save(ctx, rec))

	loaded, err := store.Load(ctx, "chained")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.Metadata["secret"])

	raw, err := underlyingStore.Load(ctx, "chained")
	require.NoError(t, err)
	assert.Nil(t, raw.Metadata)
}
