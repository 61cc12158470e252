package storage

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Flags holds CLI flag names for storage configuration, allowing callers
// to customize flag names while keeping sensible defaults via [NewConfig].
type Flags struct {
	Backend    string
	Endpoint   string
	Timeout    string
	MaxRetries string
	RetryDelay string
	UseTLS     string
}

// Config holds storage configuration. Create instances with [NewConfig]
// and register CLI flags with [Config.RegisterFlags]; call
// [Config.Validate] before handing the config to a backend.
type Config struct {
	BackendType       string  `validate:"required,oneof=memory sqlite"`
	Endpoint          string  `validate:"required_unless=BackendType memory"`
	Username          string  `validate:"-"`
	Password          string  `validate:"-"`
	TimeoutSeconds    int     `validate:"min=1,max=300"`
	MaxRetries        int     `validate:"min=0,max=10"`
	RetryDelaySeconds float64 `validate:"min=0.1,max=10"`
	UseTLS            bool    `validate:"-"`
	Flags             Flags   `validate:"-"`
}

// NewConfig returns a Config with default values and flag names.
func NewConfig() *Config {
	return &Config{
		BackendType:       "memory",
		TimeoutSeconds:    30,
		MaxRetries:        3,
		RetryDelaySeconds: 1.0,
		Flags: Flags{
			Backend:    "storage-backend",
			Endpoint:   "storage-endpoint",
			Timeout:    "storage-timeout",
			MaxRetries: "storage-max-retries",
			RetryDelay: "storage-retry-delay",
			UseTLS:     "storage-tls",
		},
	}
}

// RegisterFlags adds storage flags to the given [*pflag.FlagSet].
func (c *Config) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.BackendType, c.Flags.Backend, c.BackendType,
		"storage backend, one of: memory, sqlite")
	flags.StringVar(&c.Endpoint, c.Flags.Endpoint, c.Endpoint,
		"storage endpoint (database path for sqlite)")
	flags.IntVar(&c.TimeoutSeconds, c.Flags.Timeout, c.TimeoutSeconds,
		"per-operation timeout in seconds (1-300)")
	flags.IntVar(&c.MaxRetries, c.Flags.MaxRetries, c.MaxRetries,
		"retries for idempotent operations (0-10)")
	flags.Float64Var(&c.RetryDelaySeconds, c.Flags.RetryDelay, c.RetryDelaySeconds,
		"delay between retries in seconds (0.1-10)")
	flags.BoolVar(&c.UseTLS, c.Flags.UseTLS, c.UseTLS,
		"use TLS for network backends")
}

// RegisterCompletions registers shell completions for storage flags on cmd.
func (c *Config) RegisterCompletions(cmd *cobra.Command) error {
	err := cmd.RegisterFlagCompletionFunc(c.Flags.Backend,
		cobra.FixedCompletions([]string{"memory", "sqlite"}, cobra.ShellCompDirectiveNoFileComp))
	if err != nil {
		return fmt.Errorf("registering %s completion: %w", c.Flags.Backend, err)
	}

	return nil
}

// Validate checks the configuration ranges.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	return nil
}

// Timeout returns the per-operation timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryDelay returns the fixed delay between retry attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds * float64(time.Second))
}
