package validate

import "fmt"

// Diagnostic type tags. Every pipeline finding carries exactly one.
const (
	TypeYAMLSyntax               = "yaml_syntax_error"
	TypeEmptyYAML                = "empty_yaml_content"
	TypeMissingRequiredField     = "missing_required_field"
	TypeUnsupportedSchemaVersion = "unsupported_schema_version"
	TypeInvalidNamespaceFormat   = "invalid_namespace_format"
	TypeInvalidEntityStructure   = "invalid_entity_structure"
	TypeUnknownEntityType        = "unknown_entity_type"
	TypeInvalidFieldType         = "invalid_field_type"
	TypeExtraForbidden           = "extra_forbidden"
	TypeEmptyRequiredArray       = "empty_required_array"
	TypeInvalidDependencyRef     = "invalid_dependency_reference"
	TypeInvalidExternalDep       = "invalid_external_dependency"
	TypeEmptyPackageName         = "empty_package_name"
	TypeEmptyVersion             = "empty_version"
	TypeUnsupportedEcosystem     = "unsupported_ecosystem"
	TypeInvalidInternalDep       = "invalid_internal_dependency"
	TypeInvalidInternalNamespace = "invalid_internal_namespace"
	TypeEmptyEntityName          = "empty_entity_name"
	TypeDuplicateEntityName      = "duplicate_entity_name"
	TypeMultipleOwnerDomains     = "multiple_owner_domains"
	TypeReferenceNotFound        = "reference_not_found"
)

// criticalTypes cause the structure layer to terminate the pipeline after
// all structure diagnostics are collected.
var criticalTypes = map[string]bool{
	TypeYAMLSyntax:               true,
	TypeMissingRequiredField:     true,
	TypeUnsupportedSchemaVersion: true,
}

// Diagnostic is one typed finding from a pipeline layer. Diagnostics are
// values carried in a [Result], never raised as errors.
type Diagnostic struct {
	Type    string
	Message string
	Field   string
	Entity  string
	Help    string
	Line    int
	Column  int
}

// String renders the diagnostic for logs and compact output.
func (d Diagnostic) String() string {
	s := d.Type + ": " + d.Message

	if d.Entity != "" {
		s = fmt.Sprintf("%s (entity %s)", s, d.Entity)
	}

	if d.Line > 0 {
		s = fmt.Sprintf("%s [line %d, col %d]", s, d.Line, d.Column)
	}

	return s
}

// Result is the outcome of a pipeline run. Model is non-nil only when
// layers 1-3 all passed.
type Result struct {
	Model    *Descriptor
	Errors   []Diagnostic
	Warnings []Diagnostic
	Valid    bool
}

func (r *Result) addError(d Diagnostic) {
	r.Errors = append(r.Errors, d)
}

func (r *Result) addWarning(d Diagnostic) {
	r.Warnings = append(r.Warnings, d)
}

// hasCritical reports whether any collected error is a critical type.
func (r *Result) hasCritical() bool {
	for _, d := range r.Errors {
		if criticalTypes[d.Type] {
			return true
		}
	}

	return false
}
