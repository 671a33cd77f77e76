package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/rollkit/pkg/domain"
)

// LoggingHooks logs every lifecycle event on logger.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRollEvaluated: func(ctx context.Context, e *domain.RollEvent) {
			logger.InfoContext(ctx, "roll_evaluated",
				"formula", e.Formula,
				"mode", e.Mode,
				"total", e.Total,
				"dice", e.Dice,
				"duration", e.Duration,
			)
		},
		OnRollFailed: func(ctx context.Context, e *domain.RollEvent) {
			logger.WarnContext(ctx, "roll_failed",
				"formula", e.Formula,
				"mode", e.Mode,
				"kind", ErrorKind(e.Err),
				"err", e.Err,
			)
		},
		OnUnmatchedModifier: func(ctx context.Context, e *domain.ModifierEvent) {
			logger.WarnContext(ctx, "unmatched_modifier",
				"formula", e.Formula,
				"term", e.Term,
				"modifier", e.Modifier,
			)
		},
	}
}

// Combine returns hooks that call each of hooks in order.
func Combine(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range hooks {
		if f := h.OnRollEvaluated; f != nil {
			prev := out.OnRollEvaluated
			out.OnRollEvaluated = func(ctx context.Context, e *domain.RollEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				f(ctx, e)
			}
		}
		if f := h.OnRollFailed; f != nil {
			prev := out.OnRollFailed
			out.OnRollFailed = func(ctx context.Context, e *domain.RollEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				f(ctx, e)
			}
		}
		if f := h.OnUnmatchedModifier; f != nil {
			prev := out.OnUnmatchedModifier
			out.OnUnmatchedModifier = func(ctx context.Context, e *domain.ModifierEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				f(ctx, e)
			}
		}
	}
	return out
}
