package validate

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"go.jacobcolvin.com/kgraph/depref"
	"go.jacobcolvin.com/kgraph/kgschema"
)

var (
	versionFormatRE = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

	// yamlPositionRE matches the "[line:col]" prefix goccy puts on syntax
	// error messages.
	yamlPositionRE = regexp.MustCompile(`\[(\d+):(\d+)\]`)
)

// ReferenceChecker resolves internal references against live backend
// state. The storage contract satisfies it.
type ReferenceChecker interface {
	EntityExists(ctx context.Context, entityID string) (bool, error)
}

// Pipeline runs descriptor content through the ordered validation layers:
// syntax, structure, field format, business logic, and reference
// existence. Each layer depends on the guarantees of the previous one, and
// cheap failures block expensive work.
type Pipeline struct {
	catalog *kgschema.Catalog
	factory *Factory
	checker ReferenceChecker
	logger  *slog.Logger
	strict  bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStrict promotes every warning to an error in the final result.
func WithStrict(strict bool) Option {
	return func(p *Pipeline) {
		p.strict = strict
	}
}

// WithReferenceChecker enables the reference-existence layer. Without a
// checker, [Pipeline.Validate] behaves like [Pipeline.ValidateSync].
func WithReferenceChecker(checker ReferenceChecker) Option {
	return func(p *Pipeline) {
		p.checker = checker
	}
}

// WithLogger sets the pipeline's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline creates a Pipeline over a catalog. The pipeline holds the
// catalog reference for its lifetime, so an in-flight validation never
// observes a half-swapped catalog.
func NewPipeline(catalog *kgschema.Catalog, opts ...Option) *Pipeline {
	p := &Pipeline{
		catalog: catalog,
		factory: NewFactory(catalog),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Validate runs all layers. The reference-existence layer runs only when a
// checker was configured. The returned error reports infrastructure
// failures (storage errors, cancellation), never validation findings —
// those are diagnostics in the Result.
func (p *Pipeline) Validate(ctx context.Context, content []byte) (Result, error) {
	return p.run(ctx, content, p.checker)
}

// ValidateSync runs layers 1-4 only, omitting every storage-dependent
// check. For any input it produces the same diagnostics as [Validate]
// without a checker.
func (p *Pipeline) ValidateSync(content []byte) Result {
	result, _ := p.run(context.Background(), content, nil)

	return result
}

func (p *Pipeline) run(ctx context.Context, content []byte, checker ReferenceChecker) (Result, error) {
	var result Result

	// Layer 1: syntax.
	doc, diag := parseDocument(content)
	if diag != nil {
		result.addError(*diag)

		return p.finish(result), nil
	}

	// Layer 2: structure.
	p.checkStructure(doc, &result)

	if result.hasCritical() {
		return p.finish(result), nil
	}

	// Layer 3: field format. The model materializes only when this layer
	// is clean.
	model, fieldDiags := p.checkFields(doc)
	if len(fieldDiags) > 0 {
		result.Errors = append(result.Errors, fieldDiags...)

		return p.finish(result), nil
	}

	if len(result.Errors) > 0 {
		// Non-critical structure errors (bad namespace, malformed entity
		// section) still fail the run before business checks.
		return p.finish(result), nil
	}

	result.Model = model

	// Layer 4: business logic.
	p.checkBusiness(model, &result)

	// Layer 5: reference existence.
	if checker != nil {
		if err := p.checkReferences(ctx, model, checker, &result); err != nil {
			return Result{}, err
		}
	}

	return p.finish(result), nil
}

// finish applies strict-mode promotion and computes validity.
func (p *Pipeline) finish(result Result) Result {
	if p.strict && len(result.Warnings) > 0 {
		result.Errors = append(result.Errors, result.Warnings...)
		result.Warnings = nil
	}

	result.Valid = len(result.Errors) == 0

	if !result.Valid {
		p.logger.Debug("descriptor validation failed",
			slog.Int("errors", len(result.Errors)),
			slog.Int("warnings", len(result.Warnings)),
		)
	}

	return result
}

// parseDocument is the syntax layer. It returns the decoded document with
// mapping order preserved, or a single diagnostic.
func parseDocument(content []byte) (any, *Diagnostic) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, &Diagnostic{
			Type:    TypeEmptyYAML,
			Message: "document is empty",
			Help:    "Provide a descriptor with schema_version, namespace, and entity sections.",
		}
	}

	var doc any

	err := yaml.UnmarshalWithOptions(content, &doc, yaml.UseOrderedMap())
	if err != nil {
		diag := &Diagnostic{
			Type:    TypeYAMLSyntax,
			Message: fmt.Sprintf("invalid YAML: %v", err),
			Help:    "Fix the YAML syntax near the reported position.",
		}

		if m := yamlPositionRE.FindStringSubmatch(err.Error()); m != nil {
			diag.Line, _ = strconv.Atoi(m[1])
			diag.Column, _ = strconv.Atoi(m[2])
		}

		return nil, diag
	}

	if doc == nil {
		return nil, &Diagnostic{
			Type:    TypeEmptyYAML,
			Message: "document is empty",
			Help:    "Provide a descriptor with schema_version, namespace, and entity sections.",
		}
	}

	return doc, nil
}

// checkStructure is the structure layer: top-level required fields,
// supported schema version, namespace format, and the entity mapping.
func (p *Pipeline) checkStructure(doc any, result *Result) {
	root, ok := doc.(yaml.MapSlice)
	if !ok {
		for _, field := range []string{"schema_version", "namespace", "entity"} {
			result.addError(missingField(field))
		}

		return
	}

	version, ok := mapGet(root, "schema_version")
	switch {
	case !ok:
		result.addError(missingField("schema_version"))
	default:
		v, isString := version.(string)
		if !isString || !versionFormatRE.MatchString(v) || !slices.Contains(SupportedSchemaVersions, v) {
			result.addError(Diagnostic{
				Type:    TypeUnsupportedSchemaVersion,
				Message: fmt.Sprintf("schema version %v is not supported", version),
				Field:   "schema_version",
				Help: fmt.Sprintf("Supported schema versions: %s.",
					strings.Join(SupportedSchemaVersions, ", ")),
			})
		}
	}

	namespace, ok := mapGet(root, "namespace")
	switch {
	case !ok:
		result.addError(missingField("namespace"))
	default:
		ns, isString := namespace.(string)
		if !isString || !depref.ValidNamespace(ns) {
			result.addError(Diagnostic{
				Type:    TypeInvalidNamespaceFormat,
				Message: fmt.Sprintf("namespace %v is not valid", namespace),
				Field:   "namespace",
				Help:    "Use lowercase letters, digits, hyphens, and underscores, starting with a letter.",
			})
		}
	}

	entity, ok := mapGet(root, "entity")
	switch {
	case !ok:
		result.addError(missingField("entity"))
	default:
		if _, isMap := entity.(yaml.MapSlice); !isMap {
			result.addError(Diagnostic{
				Type:    TypeInvalidEntityStructure,
				Message: "entity section must be a mapping of entity types",
				Field:   "entity",
				Help:    "Structure the entity section as entity_type: [list of entities].",
			})
		}
	}
}

func missingField(name string) Diagnostic {
	return Diagnostic{
		Type:    TypeMissingRequiredField,
		Message: fmt.Sprintf("required field %q is missing", name),
		Field:   name,
		Help:    fmt.Sprintf("Add a top-level %q key.", name),
	}
}

// checkFields is the field-format layer. It drives the factory's compiled
// validators over every entity body and, when clean, materializes the
// validated model in document order.
func (p *Pipeline) checkFields(doc any) (*Descriptor, []Diagnostic) {
	var diags []Diagnostic

	root, ok := doc.(yaml.MapSlice)
	if !ok {
		return nil, diags
	}

	model := &Descriptor{}

	if v, ok := mapGet(root, "schema_version"); ok {
		model.SchemaVersion, _ = v.(string)
	}

	if v, ok := mapGet(root, "namespace"); ok {
		model.Namespace, _ = v.(string)
	}

	entitySection, ok := mapGet(root, "entity")
	if !ok {
		return nil, diags
	}

	section, ok := entitySection.(yaml.MapSlice)
	if !ok {
		return nil, diags
	}

	for _, item := range section {
		entityType, ok := item.Key.(string)
		if !ok {
			continue
		}

		validator, known := p.factory.Validator(entityType)
		if !known {
			diags = append(diags, Diagnostic{
				Type:    TypeUnknownEntityType,
				Message: fmt.Sprintf("unknown entity type %q", entityType),
				Field:   "entity",
				Help: fmt.Sprintf("Known entity types: %s.",
					strings.Join(p.catalog.EntityTypes(), ", ")),
			})

			continue
		}

		group := EntityGroup{Type: entityType}

		entries, ok := item.Value.([]any)
		if !ok {
			diags = append(diags, Diagnostic{
				Type:    TypeInvalidEntityStructure,
				Message: fmt.Sprintf("entity type %q must hold a list of entities", entityType),
				Field:   entityType,
				Help:    "Write each entity as a single-key list item: - name: {fields}.",
			})

			continue
		}

		for i, entry := range entries {
			name, body, entryDiag := splitEntry(entityType, i, entry)
			if entryDiag != nil {
				diags = append(diags, *entryDiag)

				continue
			}

			diags = append(diags, validator.Validate(name, body)...)

			group.Entities = append(group.Entities, Entity{Name: name, Body: body})
		}

		model.Groups = append(model.Groups, group)
	}

	if len(diags) > 0 {
		return nil, diags
	}

	return model, nil
}

// splitEntry unpacks one single-key entity list item into name and body.
func splitEntry(entityType string, index int, entry any) (string, map[string]any, *Diagnostic) {
	ms, ok := entry.(yaml.MapSlice)
	if !ok || len(ms) != 1 {
		return "", nil, &Diagnostic{
			Type:    TypeInvalidEntityStructure,
			Message: fmt.Sprintf("entry %d under %q must be a single-key map of name to body", index, entityType),
			Field:   entityType,
			Help:    "Write each entity as - name: {fields}.",
		}
	}

	name, ok := ms[0].Key.(string)
	if !ok {
		return "", nil, &Diagnostic{
			Type:    TypeInvalidEntityStructure,
			Message: fmt.Sprintf("entry %d under %q has a non-string name", index, entityType),
			Field:   entityType,
			Help:    "Entity names must be strings.",
		}
	}

	body, ok := toPlain(ms[0].Value).(map[string]any)
	if !ok {
		body = map[string]any{}
	}

	return name, body, nil
}
