package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-yaml"

	"go.jacobcolvin.com/kgraph/apply"
	"go.jacobcolvin.com/kgraph/validate"
)

// Output formats shared by validate and apply.
const (
	formatTable   = "table"
	formatCompact = "compact"
	formatJSON    = "json"
	formatYAML    = "yaml"
)

func allFormats() []string {
	return []string{formatTable, formatCompact, formatJSON, formatYAML}
}

func checkFormat(format string) error {
	for _, f := range allFormats() {
		if format == f {
			return nil
		}
	}

	return fmt.Errorf("unknown output format %q, one of: %s", format, strings.Join(allFormats(), ", "))
}

// diagnosticDTO is the serialized form of a pipeline diagnostic.
type diagnosticDTO struct {
	Type    string `json:"type"                yaml:"type"`
	Message string `json:"message"             yaml:"message"`
	Field   string `json:"field,omitempty"     yaml:"field,omitempty"`
	Entity  string `json:"entity,omitempty"    yaml:"entity,omitempty"`
	Help    string `json:"help,omitempty"      yaml:"help,omitempty"`
	Line    int    `json:"line,omitempty"      yaml:"line,omitempty"`
	Column  int    `json:"column,omitempty"    yaml:"column,omitempty"`
}

type validationDTO struct {
	Source   string          `json:"source"             yaml:"source"`
	Errors   []diagnosticDTO `json:"errors,omitempty"   yaml:"errors,omitempty"`
	Warnings []diagnosticDTO `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Valid    bool            `json:"valid"              yaml:"valid"`
}

func toDTOs(diags []validate.Diagnostic) []diagnosticDTO {
	out := make([]diagnosticDTO, 0, len(diags))

	for _, d := range diags {
		out = append(out, diagnosticDTO{
			Type:    d.Type,
			Message: d.Message,
			Field:   d.Field,
			Entity:  d.Entity,
			Help:    d.Help,
			Line:    d.Line,
			Column:  d.Column,
		})
	}

	return out
}

func renderValidation(w io.Writer, format, source string, result validate.Result) error {
	dto := validationDTO{
		Source:   source,
		Valid:    result.Valid,
		Errors:   toDTOs(result.Errors),
		Warnings: toDTOs(result.Warnings),
	}

	switch format {
	case formatJSON:
		return writeJSON(w, dto)

	case formatYAML:
		return writeYAML(w, dto)

	case formatCompact:
		for _, d := range dto.Errors {
			fmt.Fprintf(w, "error %s %s\n", d.Type, d.Message)
		}

		for _, d := range dto.Warnings {
			fmt.Fprintf(w, "warning %s %s\n", d.Type, d.Message)
		}

		return nil

	default:
		return renderValidationTable(w, source, dto)
	}
}

func renderValidationTable(w io.Writer, source string, dto validationDTO) error {
	if dto.Valid && len(dto.Warnings) == 0 {
		fmt.Fprintf(w, "%s: valid\n", source)

		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEVERITY\tTYPE\tENTITY\tFIELD\tMESSAGE")

	for _, d := range dto.Errors {
		fmt.Fprintf(tw, "error\t%s\t%s\t%s\t%s\n", d.Type, d.Entity, d.Field, d.Message)
	}

	for _, d := range dto.Warnings {
		fmt.Fprintf(tw, "warning\t%s\t%s\t%s\t%s\n", d.Type, d.Entity, d.Field, d.Message)
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}

	fmt.Fprintf(w, "\n%s: %d error(s), %d warning(s)\n", source, len(dto.Errors), len(dto.Warnings))

	for _, d := range dto.Errors {
		if d.Help != "" {
			fmt.Fprintf(w, "  hint (%s): %s\n", d.Type, d.Help)
		}
	}

	return nil
}

type entityOutcomeDTO struct {
	EntityType string `json:"entity_type" yaml:"entity_type"`
	EntityID   string `json:"entity_id"   yaml:"entity_id"`
	Operation  string `json:"operation"   yaml:"operation"`
}

type applyDTO struct {
	CorrelationID string             `json:"correlation_id"          yaml:"correlation_id"`
	Source        string             `json:"source"                  yaml:"source"`
	Entities      []entityOutcomeDTO `json:"entities,omitempty"      yaml:"entities,omitempty"`
	WouldCreate   []string           `json:"would_create,omitempty"  yaml:"would_create,omitempty"`
	WouldUpdate   []string           `json:"would_update,omitempty"  yaml:"would_update,omitempty"`
	FailedEntity  string             `json:"failed_entity,omitempty" yaml:"failed_entity,omitempty"`
	Created       int                `json:"created"                 yaml:"created"`
	Updated       int                `json:"updated"                 yaml:"updated"`
	Dependencies  int                `json:"dependencies"            yaml:"dependencies"`
	ValidationMS  int64              `json:"validation_ms"           yaml:"validation_ms"`
	StorageMS     int64              `json:"storage_ms"              yaml:"storage_ms"`
	Success       bool               `json:"success"                 yaml:"success"`
}

func renderApply(w io.Writer, format string, result *apply.Result) error {
	dto := applyDTO{
		CorrelationID: result.CorrelationID,
		Source:        result.Source,
		FailedEntity:  result.FailedEntity,
		Created:       result.Created,
		Updated:       result.Updated,
		Dependencies:  result.DependenciesProcessed,
		ValidationMS:  result.ValidationTime.Milliseconds(),
		StorageMS:     result.StorageTime.Milliseconds(),
		Success:       result.Success,
	}

	for _, e := range result.Entities {
		dto.Entities = append(dto.Entities, entityOutcomeDTO{
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Operation:  string(e.Operation),
		})
	}

	if result.DryRun != nil {
		dto.WouldCreate = result.DryRun.WouldCreate
		dto.WouldUpdate = result.DryRun.WouldUpdate
	}

	switch format {
	case formatJSON:
		return writeJSON(w, dto)

	case formatYAML:
		return writeYAML(w, dto)

	case formatCompact:
		if result.DryRun != nil {
			fmt.Fprintf(w, "dry-run %s\n", result.DryRun.Summary)

			return nil
		}

		fmt.Fprintf(w, "applied %s: %d created, %d updated, %d dependencies\n",
			dto.Source, dto.Created, dto.Updated, dto.Dependencies)

		return nil

	default:
		return renderApplyTable(w, dto, result)
	}
}

func renderApplyTable(w io.Writer, dto applyDTO, result *apply.Result) error {
	if result.DryRun != nil {
		fmt.Fprintf(w, "%s: dry run (%s)\n", dto.Source, result.DryRun.Summary)

		for _, id := range result.DryRun.WouldCreate {
			fmt.Fprintf(w, "  create %s\n", id)
		}

		for _, id := range result.DryRun.WouldUpdate {
			fmt.Fprintf(w, "  update %s\n", id)
		}

		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OPERATION\tTYPE\tENTITY")

	for _, e := range dto.Entities {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Operation, e.EntityType, e.EntityID)
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}

	fmt.Fprintf(w, "\n%s: %d created, %d updated, %d dependencies (validation %dms, storage %dms)\n",
		dto.Source, dto.Created, dto.Updated, dto.Dependencies, dto.ValidationMS, dto.StorageMS)

	return nil
}

func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	out = append(out, '\n')

	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	return nil
}

func writeYAML(w io.Writer, v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	return nil
}
