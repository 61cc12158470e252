package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"go.jacobcolvin.com/kgraph/apply"
	"go.jacobcolvin.com/kgraph/storage"
	"go.jacobcolvin.com/kgraph/storage/memstore"
	"go.jacobcolvin.com/kgraph/storage/sqlitestore"
)

func newApplyCmd() *cobra.Command {
	var (
		schemaDir string
		format    string
		server    string
		dryRun    bool
		strict    bool
	)

	storageCfg := storage.NewConfig()

	cmd := &cobra.Command{
		Use:   "apply <file>",
		Short: "Validate a descriptor file and write it to the graph backend",
		Long: `apply runs the full validation pipeline, including reference existence
checks against the backend, then upserts every entity, materializes
external dependencies, and replaces declared relationship edges.`,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return usageErr(err)
			}

			if server != "" {
				return usageErr(errors.New(
					"--server is not supported by this build; use --storage-backend with one of: memory, sqlite"))
			}

			if err := storageCfg.Validate(); err != nil {
				return usageErr(err)
			}

			content, err := os.ReadFile(args[0]) //nolint:gosec // Descriptor path from CLI arg is expected.
			if err != nil {
				return usageErr(fmt.Errorf("read descriptor: %w", err))
			}

			return runApply(cmd, storageCfg, applyOptions{
				source:    args[0],
				content:   content,
				schemaDir: schemaDir,
				format:    format,
				dryRun:    dryRun,
				strict:    strict,
			})
		},
	}

	cmd.Flags().StringVar(&schemaDir, "schema-dir", "schemas", "schema catalog directory")
	cmd.Flags().StringVar(&format, "format", formatTable,
		fmt.Sprintf("output format, one of: %s", allFormats()))
	cmd.Flags().StringVar(&server, "server", "", "graph server URL (unsupported)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "classify changes without writing")
	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")

	storageCfg.RegisterFlags(cmd.Flags())

	_ = cmd.RegisterFlagCompletionFunc("format",
		cobra.FixedCompletions(allFormats(), cobra.ShellCompDirectiveNoFileComp))
	_ = storageCfg.RegisterCompletions(cmd)

	return cmd
}

type applyOptions struct {
	source    string
	content   []byte
	schemaDir string
	format    string
	dryRun    bool
	strict    bool
}

func runApply(cmd *cobra.Command, cfg *storage.Config, opts applyOptions) error {
	ctx := cmd.Context()
	logger := slog.Default()

	store, err := newStore(cfg, logger)
	if err != nil {
		return usageErr(err)
	}

	// Connect is retriable; transient backend failures should not fail an
	// apply outright.
	_, err = storage.Retry(ctx, cfg, logger, "connect",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, store.Connect(ctx)
		})
	if err != nil {
		return storageErr(fmt.Errorf("connect to %s backend: %w", cfg.BackendType, err))
	}
	defer store.Disconnect(context.WithoutCancel(ctx))

	health := store.HealthCheck(ctx)
	logger.Debug("storage health",
		slog.String("backend", cfg.BackendType),
		slog.String("status", string(health.Status)),
		slog.String("message", health.Message),
		slog.Duration("latency", health.ResponseTime),
	)

	catalog, err := store.LoadSchemas(ctx, opts.schemaDir)
	if err != nil {
		return internalErr(fmt.Errorf("load schema catalog: %w", err))
	}

	engine := apply.NewEngine(store, catalog,
		apply.WithLogger(logger),
		apply.WithStrict(opts.strict),
		apply.WithDryRun(opts.dryRun),
	)

	result, applyErr := engine.Apply(ctx, opts.source, opts.content)

	if !result.Validation.Valid && applyErr == nil {
		if err := renderValidation(cmd.OutOrStdout(), opts.format, opts.source, result.Validation); err != nil {
			return internalErr(err)
		}

		return invalidErr(errors.New(""))
	}

	if applyErr != nil {
		return storageErr(applyErr)
	}

	if err := renderApply(cmd.OutOrStdout(), opts.format, result); err != nil {
		return internalErr(err)
	}

	return nil
}

// newStore builds the storage backend selected by configuration.
func newStore(cfg *storage.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.BackendType {
	case "memory":
		return memstore.NewStore(memstore.WithLogger(logger)), nil
	case "sqlite":
		return sqlitestore.NewStore(cfg.Endpoint, sqlitestore.WithLogger(logger)), nil
	}

	return nil, fmt.Errorf("unknown storage backend %q", cfg.BackendType)
}
