package random_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/rollkit/pkg/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeeded_Deterministic(t *testing.T) {
	ctx := context.Background()
	a := random.NewSeeded(42)
	b := random.NewSeeded(42)

	for i := 0; i < 50; i++ {
		va, err := a.Roll(ctx, 20)
		require.NoError(t, err)
		vb, err := b.Roll(ctx, 20)
		require.NoError(t, err)
		assert.Equal(t, va, vb)
		assert.GreaterOrEqual(t, va, 1)
		assert.LessOrEqual(t, va, 20)
	}
	assert.Equal(t, int64(42), a.Seed())
}

func TestSeeded_Concurrent(t *testing.T) {
	src := random.NewSeeded(1)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				v, err := src.Roll(context.Background(), 6)
				assert.NoError(t, err)
				assert.True(t, v >= 1 && v <= 6)
			}
		}()
	}
	wg.Wait()
}

func TestSources_RejectInvalidFaces(t *testing.T) {
	sources := map[string]random.Source{
		"seeded":   random.NewSeeded(1),
		"crypto":   random.Crypto{},
		"sequence": random.NewSequence(1),
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			_, err := src.Roll(context.Background(), 0)
			assert.ErrorIs(t, err, random.ErrInvalidFaces)
		})
	}
}

func TestSources_HonourCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := random.NewSeeded(1).Roll(ctx, 6)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = random.Crypto{}.Roll(ctx, 6)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCrypto_Range(t *testing.T) {
	for i := 0; i < 100; i++ {
		v, err := random.Crypto{}.Roll(context.Background(), 4)
		require.NoError(t, err)
		assert.True(t, v >= 1 && v <= 4)
	}
}

func TestSequence(t *testing.T) {
	ctx := context.Background()
	seq := random.NewSequence(3, 6)

	v, err := seq.Roll(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.Equal(t, 1, seq.Remaining())

	_, err = seq.Roll(ctx, 4)
	assert.Error(t, err, "6 cannot come from a d4")

	_, err = seq.Roll(ctx, 6)
	assert.ErrorIs(t, err, random.ErrExhausted)
}

func TestNewSeed(t *testing.T) {
	a, err := random.NewSeed()
	require.NoError(t, err)
	b, err := random.NewSeed()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
