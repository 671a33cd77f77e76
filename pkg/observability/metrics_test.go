package observability_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/aretw0/rollkit"
	"github.com/aretw0/rollkit/pkg/dice"
	"github.com/aretw0/rollkit/pkg/domain"
	"github.com/aretw0/rollkit/pkg/observability"
	"github.com/aretw0/rollkit/pkg/random"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	eng, err := rollkit.New(
		rollkit.WithLifecycleHooks(observability.Combine(m.Hooks(), observability.LoggingHooks(logger))),
		rollkit.WithLenientModifiers(true),
		rollkit.WithSource(random.NewSequence(6, 6, 1, 3)),
	)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = eng.Roll(ctx, "2d6x", dice.ModeRandom)
	require.NoError(t, err)
	_, err = eng.Roll(ctx, "1d4", dice.ModeMaximize)
	require.NoError(t, err)
	_, err = eng.Roll(ctx, "1d6qq", dice.ModeMinimize)
	require.NoError(t, err)
	_, err = eng.Roll(ctx, "(", dice.ModeRandom)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rolls.WithLabelValues("random")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rolls.WithLabelValues("maximize")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rolls.WithLabelValues("minimize")))
	// 2d6x drew four results, the two others one each
	assert.Equal(t, 6.0, testutil.ToFloat64(m.DiceRolled))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Unmatched.WithLabelValues("qq")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("parse")))

	assert.Contains(t, logs.String(), "roll_evaluated")
	assert.Contains(t, logs.String(), "roll_failed")
	assert.Contains(t, logs.String(), "unmatched_modifier")
}

func TestMetrics_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	_, err = observability.NewMetrics(reg)
	assert.Error(t, err)
}

func TestErrorKind(t *testing.T) {
	_, err := dice.New("1d0")
	assert.Equal(t, "invalid_dice", observability.ErrorKind(err))
	_, err = dice.New("1d6qq")
	assert.Equal(t, "unmatched_modifier", observability.ErrorKind(err))
	_, err = dice.New("20000d6")
	assert.Equal(t, "too_many_dice", observability.ErrorKind(err))
	_, err = dice.New("3d6ms")
	assert.Equal(t, "modifier", observability.ErrorKind(err))
	assert.Equal(t, "canceled", observability.ErrorKind(context.Canceled))
	assert.Equal(t, "not_found", observability.ErrorKind(fmt.Errorf("load: %w", domain.ErrRollNotFound)))
	assert.Equal(t, "mismatch", observability.ErrorKind(domain.ErrRollMismatch))
	assert.Equal(t, "none", observability.ErrorKind(nil))
	assert.Equal(t, "other", observability.ErrorKind(assert.AnError))
}
