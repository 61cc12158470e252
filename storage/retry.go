package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Retry runs op with the config's per-attempt timeout and fixed-delay
// retries. Only idempotent operations (upserts, relationship removal and
// creation, reads) should go through Retry. Context cancellation of the
// parent stops retrying immediately and surfaces distinctly from op
// failure.
func Retry[T any](
	ctx context.Context,
	cfg *Config,
	logger *slog.Logger,
	name string,
	op func(context.Context) (T, error),
) (T, error) {
	var (
		zero    T
		lastErr error
	)

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			logger.Debug("retrying storage operation",
				slog.String("operation", name),
				slog.Int("attempt", attempt),
				slog.Any("error", lastErr),
			)

			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(cfg.RetryDelay()):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout())
		result, err := op(attemptCtx)

		cancel()

		if err == nil {
			return result, nil
		}

		// The parent being done is cancellation, not a retriable failure.
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if errors.Is(err, context.Canceled) {
			return zero, err
		}

		lastErr = err
	}

	return zero, fmt.Errorf("%s failed after %d attempt(s): %w",
		name, cfg.MaxRetries+1, lastErr)
}
