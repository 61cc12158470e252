package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"go.jacobcolvin.com/kgraph/export"
	"go.jacobcolvin.com/kgraph/kgschema"
	"go.jacobcolvin.com/kgraph/kgschema/evolution"
)

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "schema",
		Short:         "Inspect and export the schema catalog",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.AddCommand(
		newSchemaExportCmd(),
		newSchemaListCmd(),
		newSchemaCheckCmd(),
		newSchemaDeprecationsCmd(),
		newSchemaWatchCmd(),
	)

	return cmd
}

func newSchemaExportCmd() *cobra.Command {
	var (
		schemaDir    string
		format       string
		output       string
		editorConfig string
		globs        []string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the catalog as a JSON Schema for editors",
		Long: `export projects the schema catalog into a JSON Schema (Draft 2020-12)
document for descriptor files and associates it with descriptor globs in
the editor settings file, under the yaml.schemas key.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "json-schema" {
				return usageErr(fmt.Errorf("unknown export format %q, only json-schema is supported", format))
			}

			catalog, err := kgschema.NewLoader(schemaDir).Load(cmd.Context())
			if err != nil {
				return internalErr(fmt.Errorf("load schema catalog: %w", err))
			}

			if err := export.WriteJSONSchema(catalog, output); err != nil {
				return internalErr(err)
			}

			if editorConfig != "" {
				if err := export.UpdateEditorConfig(editorConfig, output, globs); err != nil {
					return internalErr(err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d entity types)\n", output, catalog.Len())

			return nil
		},
	}

	cmd.Flags().StringVar(&schemaDir, "schema-dir", "schemas", "schema catalog directory")
	cmd.Flags().StringVar(&format, "format", "json-schema", "export format")
	cmd.Flags().StringVar(&output, "output", "descriptor.schema.json", "output file path")
	cmd.Flags().StringVar(&editorConfig, "editor-config", ".vscode/settings.json",
		"editor settings file to update, empty to skip")
	cmd.Flags().StringSliceVar(&globs, "glob", []string{"**/*.kg.yaml"},
		"descriptor file globs to associate with the schema")

	return cmd
}

func newSchemaListCmd() *cobra.Command {
	var schemaDir string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List entity types in the catalog",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := kgschema.NewLoader(schemaDir).Load(cmd.Context())
			if err != nil {
				return internalErr(fmt.Errorf("load schema catalog: %w", err))
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ENTITY TYPE\tVERSION\tEXTENDS\tFIELDS\tRELATIONSHIPS")

			for _, entityType := range catalog.EntityTypes() {
				schema, _ := catalog.Schema(entityType)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
					schema.EntityType, schema.SchemaVersion, schema.Extends,
					len(schema.Fields()), len(schema.Relationships))
			}

			if err := tw.Flush(); err != nil {
				return internalErr(err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&schemaDir, "schema-dir", "schemas", "schema catalog directory")

	return cmd
}

func newSchemaCheckCmd() *cobra.Command {
	var oldDir, newDir string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a catalog revision for breaking changes",
		Long: `check compares two catalog directories and reports changes that break
additive evolution: removed fields or relationships, type changes, new
required fields, and invalid schema version increments.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			oldCatalog, err := kgschema.NewLoader(oldDir).Load(ctx)
			if err != nil {
				return internalErr(fmt.Errorf("load old catalog: %w", err))
			}

			newCatalog, err := kgschema.NewLoader(newDir).Load(ctx)
			if err != nil {
				return internalErr(fmt.Errorf("load new catalog: %w", err))
			}

			changes := evolution.Detect(oldCatalog, newCatalog)
			violations := evolution.ValidateAdditive(changes)
			additive := len(violations) == 0
			total := len(violations)

			out := cmd.OutOrStdout()

			for _, v := range violations {
				fmt.Fprintf(out, "violation %s %s: %s\n", v.Type, v.EntityType, v.Message)
			}

			// Version increments are checked per entity type present on both
			// sides; additions carry their own fresh version.
			for _, entityType := range oldCatalog.EntityTypes() {
				oldSchema, _ := oldCatalog.Schema(entityType)

				newSchema, ok := newCatalog.Schema(entityType)
				if !ok {
					continue
				}

				if oldSchema.SchemaVersion == newSchema.SchemaVersion {
					continue
				}

				err := evolution.ValidateIncrement(oldSchema.SchemaVersion, newSchema.SchemaVersion, additive)
				if err != nil {
					total++

					fmt.Fprintf(out, "violation version_increment %s: %v\n", entityType, err)
				}
			}

			if total > 0 {
				return invalidErr(errors.New(""))
			}

			if changes.Empty() {
				fmt.Fprintln(out, "no changes")
			} else {
				fmt.Fprintln(out, "all changes are additive")
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&oldDir, "old", "", "old catalog directory")
	cmd.Flags().StringVar(&newDir, "new", "", "new catalog directory")
	_ = cmd.MarkFlagRequired("old")
	_ = cmd.MarkFlagRequired("new")

	return cmd
}

func newSchemaWatchCmd() *cobra.Command {
	var schemaDir string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload the schema catalog on file changes",
		Long: `watch loads the schema catalog and blocks, reloading it whenever a file
under the schema directory changes. A failed reload keeps the previous
catalog in place. Stop with an interrupt.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			loader := kgschema.NewLoader(schemaDir, kgschema.WithLogger(slog.Default()))

			catalog, err := loader.Load(ctx)
			if err != nil {
				return internalErr(fmt.Errorf("load schema catalog: %w", err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "watching %s (%d entity types)\n",
				schemaDir, catalog.Len())

			if err := loader.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return internalErr(err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&schemaDir, "schema-dir", "schemas", "schema catalog directory")

	return cmd
}

func newSchemaDeprecationsCmd() *cobra.Command {
	var schemaDir string

	cmd := &cobra.Command{
		Use:           "deprecations",
		Short:         "List deprecated fields and relationships",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := kgschema.NewLoader(schemaDir).Load(cmd.Context())
			if err != nil {
				return internalErr(fmt.Errorf("load schema catalog: %w", err))
			}

			entries := evolution.ActiveDeprecations(catalog)
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no active deprecations")

				return nil
			}

			due := map[string]bool{}
			for _, e := range evolution.SunsetReport(catalog, time.Now()) {
				due[e.EntityType+"/"+e.Name] = true
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ENTITY TYPE\tKIND\tNAME\tSINCE\tREMOVE AFTER\tDUE")

			for _, e := range entries {
				dueMark := ""
				if due[e.EntityType+"/"+e.Name] {
					dueMark = "yes"
				}

				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.EntityType, e.Kind, e.Name, e.Info.Since, e.Info.RemoveAfter, dueMark)
			}

			if err := tw.Flush(); err != nil {
				return internalErr(err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&schemaDir, "schema-dir", "schemas", "schema catalog directory")

	return cmd
}
