// Package main provides the kg CLI, which validates knowledge-graph
// descriptor files, applies them to a storage backend, and exports editor
// schemas from the catalog.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"go.jacobcolvin.com/kgraph/log"
	"go.jacobcolvin.com/kgraph/profile"
	"go.jacobcolvin.com/kgraph/version"
)

// CLI exit codes.
const (
	exitOK       = 0
	exitInvalid  = 1
	exitUsage    = 2
	exitStorage  = 3
	exitInternal = 4
)

// codedError carries the process exit code for a failure up to main.
type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string { return e.err.Error() }

func (e *codedError) Unwrap() error { return e.err }

func usageErr(err error) error    { return &codedError{err: err, code: exitUsage} }
func invalidErr(err error) error  { return &codedError{err: err, code: exitInvalid} }
func storageErr(err error) error  { return &codedError{err: err, code: exitStorage} }
func internalErr(err error) error { return &codedError{err: err, code: exitInternal} }

func main() {
	os.Exit(run())
}

func run() int {
	logCfg := log.NewConfig()
	profileCfg := profile.NewConfig()
	profiler := profileCfg.NewProfiler()

	rootCmd := &cobra.Command{
		Use:   "kg",
		Short: "Manage knowledge-graph descriptors and schemas",
		Long: `kg validates YAML descriptor files against a versioned schema catalog,
applies them to a graph storage backend, and exports JSON Schemas for
editor integration.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			handler, err := logCfg.NewHandler(cmd.ErrOrStderr())
			if err != nil {
				return usageErr(err)
			}

			slog.SetDefault(slog.New(handler))

			if err := profiler.Start(); err != nil {
				return internalErr(err)
			}

			return nil
		},
	}

	logCfg.RegisterFlags(rootCmd.PersistentFlags())
	profileCfg.RegisterFlags(rootCmd.PersistentFlags())

	// Profiling flags are for maintainers, not part of the advertised surface.
	for _, name := range []string{"cpu-profile", "heap-profile", "goroutine-profile", "mem-profile-rate"} {
		_ = rootCmd.PersistentFlags().MarkHidden(name)
	}

	if err := logCfg.RegisterCompletions(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "register completions: %v\n", err)
	}

	rootCmd.AddCommand(
		newValidateCmd(),
		newApplyCmd(),
		newSchemaCmd(),
		newVersionCmd(),
	)

	// Interrupt cancels the command context so long-running commands, watch
	// in particular, unwind cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)

	if stopErr := profiler.Stop(); stopErr != nil {
		fmt.Fprintf(os.Stderr, "stop profiler: %v\n", stopErr)
	}

	if err == nil {
		return exitOK
	}

	var coded *codedError
	if errors.As(err, &coded) {
		if coded.err != nil && coded.err.Error() != "" {
			fmt.Fprintf(os.Stderr, "%v\n", coded.err)
		}

		return coded.code
	}

	// Cobra usage errors (unknown flags, bad arity) land here.
	fmt.Fprintf(os.Stderr, "%v\n", err)

	return exitUsage
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "kg "+version.Describe())
		},
	}
}
