package storage_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/kgraph/storage"
)

func retryConfig() *storage.Config {
	cfg := storage.NewConfig()
	cfg.MaxRetries = 2
	cfg.RetryDelaySeconds = 0.1

	return cfg
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	attempts := 0

	got, err := storage.Retry(t.Context(), retryConfig(), slog.Default(), "store",
		func(context.Context) (string, error) {
			attempts++
			if attempts < 3 {
				return "", errors.New("transient")
			}

			return "id-1", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "id-1", got)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhausted(t *testing.T) {
	t.Parallel()

	opErr := errors.New("backend down")
	attempts := 0

	_, err := storage.Retry(t.Context(), retryConfig(), slog.Default(), "store",
		func(context.Context) (int, error) {
			attempts++

			return 0, opErr
		})

	require.ErrorIs(t, err, opErr)
	assert.Equal(t, 3, attempts) // 1 initial + 2 retries.
}

func TestRetryStopsOnCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	attempts := 0

	_, err := storage.Retry(ctx, retryConfig(), slog.Default(), "store",
		func(context.Context) (int, error) {
			attempts++

			cancel()

			return 0, errors.New("transient")
		})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
