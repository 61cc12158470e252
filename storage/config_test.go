package storage_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/kgraph/storage"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := storage.NewConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "memory", cfg.BackendType)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryDelay())
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		mutate  func(*storage.Config)
		wantErr bool
	}{
		"defaults": {
			mutate: func(*storage.Config) {},
		},
		"sqlite with endpoint": {
			mutate: func(c *storage.Config) {
				c.BackendType = "sqlite"
				c.Endpoint = "/tmp/kg.db"
			},
		},
		"sqlite without endpoint": {
			mutate: func(c *storage.Config) {
				c.BackendType = "sqlite"
			},
			wantErr: true,
		},
		"unknown backend": {
			mutate: func(c *storage.Config) {
				c.BackendType = "dynamo"
			},
			wantErr: true,
		},
		"timeout too small": {
			mutate: func(c *storage.Config) {
				c.TimeoutSeconds = 0
			},
			wantErr: true,
		},
		"timeout too large": {
			mutate: func(c *storage.Config) {
				c.TimeoutSeconds = 301
			},
			wantErr: true,
		},
		"retries too large": {
			mutate: func(c *storage.Config) {
				c.MaxRetries = 11
			},
			wantErr: true,
		},
		"retry delay too small": {
			mutate: func(c *storage.Config) {
				c.RetryDelaySeconds = 0.01
			},
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := storage.NewConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr {
				require.ErrorIs(t, err, storage.ErrConfiguration)

				return
			}

			require.NoError(t, err)
		})
	}
}
