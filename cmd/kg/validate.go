package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.jacobcolvin.com/kgraph/kgschema"
	"go.jacobcolvin.com/kgraph/validate"
)

func newValidateCmd() *cobra.Command {
	var (
		schemaDir string
		format    string
		strict    bool
	)

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a descriptor file against the schema catalog",
		Long: `validate runs a descriptor file through the validation pipeline: YAML
syntax, document structure, field formats, and business rules. Reference
existence checks require a storage backend and run during apply.`,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return usageErr(err)
			}

			content, err := os.ReadFile(args[0]) //nolint:gosec // Descriptor path from CLI arg is expected.
			if err != nil {
				return usageErr(fmt.Errorf("read descriptor: %w", err))
			}

			catalog, err := kgschema.NewLoader(schemaDir).Load(cmd.Context())
			if err != nil {
				return internalErr(fmt.Errorf("load schema catalog: %w", err))
			}

			pipeline := validate.NewPipeline(catalog, validate.WithStrict(strict))
			result := pipeline.ValidateSync(content)

			if err := renderValidation(cmd.OutOrStdout(), format, args[0], result); err != nil {
				return internalErr(err)
			}

			if !result.Valid {
				return invalidErr(errors.New(""))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&schemaDir, "schema-dir", "schemas", "schema catalog directory")
	cmd.Flags().StringVar(&format, "format", formatTable,
		fmt.Sprintf("output format, one of: %s", allFormats()))
	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")

	_ = cmd.RegisterFlagCompletionFunc("format",
		cobra.FixedCompletions(allFormats(), cobra.ShellCompDirectiveNoFileComp))

	return cmd
}
