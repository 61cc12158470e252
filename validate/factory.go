package validate

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"go.jacobcolvin.com/kgraph/kgschema"
)

// SupportedSchemaVersions is the closed set of descriptor schema versions
// the pipeline accepts.
var SupportedSchemaVersions = []string{"1.0.0"}

// SupportedEcosystems is the set of external-dependency ecosystems that
// pass business validation. Narrower than what the URI parser accepts:
// maven parses but is gated out here.
var SupportedEcosystems = map[string]bool{
	"pypi":       true,
	"npm":        true,
	"golang.org": true,
	"github.com": true,
	"crates.io":  true,
}

// emailRE checks the domain part of an owner email.
var emailRE = regexp.MustCompile(`^[^@\s]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// checkOp is one instruction kind in a field's check program.
type checkOp int

const (
	opType checkOp = iota
	opEmail
	opURL
	opEnum
	opPattern
	opStringLength
	opArrayLength
	opArrayItems
)

// check is one immutable constraint record. The interpreter in run
// executes a field's checks in order and stops after a type failure.
type check struct {
	pattern *regexp.Regexp
	op      checkOp
}

// fieldProgram is the compiled validator for one field definition.
type fieldProgram struct {
	def    kgschema.FieldDefinition
	checks []check
}

// EntityValidator validates entity bodies of one entity type. Instances
// are compiled once per (entity_type, schema_version) by the [Factory] and
// are safe for concurrent use.
type EntityValidator struct {
	entityType  string
	programs    []fieldProgram
	required    []string
	known       map[string]bool
	allowCustom bool
}

// Factory compiles and caches per-schema entity validators.
type Factory struct {
	catalog *kgschema.Catalog
	cache   map[string]*EntityValidator
	mu      sync.Mutex
}

// NewFactory creates a Factory over a catalog.
func NewFactory(catalog *kgschema.Catalog) *Factory {
	return &Factory{
		catalog: catalog,
		cache:   make(map[string]*EntityValidator),
	}
}

// Validator returns the compiled validator for entityType, building and
// caching it on first use. The second result is false for entity types the
// catalog does not define.
func (f *Factory) Validator(entityType string) (*EntityValidator, bool) {
	schema, ok := f.catalog.Schema(entityType)
	if !ok {
		return nil, false
	}

	key := entityType + "@" + schema.SchemaVersion

	f.mu.Lock()
	defer f.mu.Unlock()

	if v, cached := f.cache[key]; cached {
		return v, true
	}

	v := compile(schema)
	f.cache[key] = v

	return v, true
}

// Clear drops all cached validators. Call after swapping in a new catalog.
func (f *Factory) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cache = make(map[string]*EntityValidator)
}

// compile builds the check programs for every declared field.
func compile(schema *kgschema.EntitySchema) *EntityValidator {
	v := &EntityValidator{
		entityType:  schema.EntityType,
		known:       map[string]bool{"relationships": true},
		allowCustom: schema.AllowCustomFields,
	}

	for _, f := range schema.Fields() {
		v.known[f.Name] = true
		v.programs = append(v.programs, compileField(f))

		if f.Required {
			v.required = append(v.required, f.Name)
		}
	}

	for _, r := range schema.Relationships {
		v.known[r.Name] = true
	}

	return v
}

func compileField(f kgschema.FieldDefinition) fieldProgram {
	prog := fieldProgram{
		def:    f,
		checks: []check{{op: opType}},
	}

	switch f.Validation {
	case "email":
		prog.checks = append(prog.checks, check{op: opEmail})
	case "url":
		prog.checks = append(prog.checks, check{op: opURL})
	case "enum":
		prog.checks = append(prog.checks, check{op: opEnum})
	}

	if f.Pattern != "" {
		if re, err := regexp.Compile(f.Pattern); err == nil {
			prog.checks = append(prog.checks, check{op: opPattern, pattern: re})
		}
	}

	if f.MinLength != nil || f.MaxLength != nil {
		prog.checks = append(prog.checks, check{op: opStringLength})
	}

	if f.Type == kgschema.TypeArray {
		if f.MinItems != nil || f.MaxItems != nil || f.Required {
			prog.checks = append(prog.checks, check{op: opArrayLength})
		}

		if f.Items != "" {
			prog.checks = append(prog.checks, check{op: opArrayItems})
		}
	}

	return prog
}

// Validate runs the compiled programs against one entity body and returns
// all diagnostics found.
func (v *EntityValidator) Validate(entityName string, body map[string]any) []Diagnostic {
	var diags []Diagnostic

	for _, name := range v.required {
		if _, present := body[name]; !present {
			diags = append(diags, Diagnostic{
				Type:    TypeMissingRequiredField,
				Message: fmt.Sprintf("required field %q is missing", name),
				Field:   name,
				Entity:  entityName,
				Help:    fmt.Sprintf("Add %q to this %s entity.", name, v.entityType),
			})
		}
	}

	for _, prog := range v.programs {
		value, present := body[prog.def.Name]
		if !present {
			continue
		}

		diags = append(diags, run(prog, entityName, value)...)
	}

	if !v.allowCustom {
		for key := range body {
			if !v.known[key] {
				diags = append(diags, Diagnostic{
					Type:    TypeExtraForbidden,
					Message: fmt.Sprintf("unknown field %q on entity type %q", key, v.entityType),
					Field:   key,
					Entity:  entityName,
					Help:    "Remove the field or add it to the entity schema.",
				})
			}
		}
	}

	return diags
}

// run interprets one field's check program over a value.
func run(prog fieldProgram, entityName string, value any) []Diagnostic {
	var diags []Diagnostic

	f := prog.def

	fail := func(typ, message, help string) {
		diags = append(diags, Diagnostic{
			Type:    typ,
			Message: message,
			Field:   f.Name,
			Entity:  entityName,
			Help:    help,
		})
	}

	for _, c := range prog.checks {
		switch c.op {
		case opType:
			if !typeMatches(f.Type, value) {
				fail(TypeInvalidFieldType,
					fmt.Sprintf("field %q must be of type %s", f.Name, f.Type),
					fmt.Sprintf("Change the value to a %s.", f.Type))

				// Later checks assume the type is right.
				return diags
			}

		case opEmail:
			if s, ok := value.(string); ok && !emailRE.MatchString(s) {
				fail(TypeInvalidFieldType,
					fmt.Sprintf("field %q must be a valid email address", f.Name),
					"Use the form user@domain.tld.")
			}

		case opURL:
			if s, ok := value.(string); ok &&
				!strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
				fail(TypeInvalidFieldType,
					fmt.Sprintf("field %q must be an http(s) URL", f.Name),
					"Use a URL starting with http:// or https://.")
			}

		case opEnum:
			if s, ok := value.(string); ok && !slices.Contains(f.AllowedValues, s) {
				fail(TypeInvalidFieldType,
					fmt.Sprintf("field %q must be one of %v", f.Name, f.AllowedValues),
					fmt.Sprintf("Pick one of the allowed values: %v.", f.AllowedValues))
			}

		case opPattern:
			if s, ok := value.(string); ok && !c.pattern.MatchString(s) {
				fail(TypeInvalidFieldType,
					fmt.Sprintf("field %q must match pattern %s", f.Name, f.Pattern),
					"Adjust the value to match the required pattern.")
			}

		case opStringLength:
			if s, ok := value.(string); ok {
				if f.MinLength != nil && len(s) < *f.MinLength {
					fail(TypeInvalidFieldType,
						fmt.Sprintf("field %q must be at least %d characters", f.Name, *f.MinLength),
						"Lengthen the value.")
				}

				if f.MaxLength != nil && len(s) > *f.MaxLength {
					fail(TypeInvalidFieldType,
						fmt.Sprintf("field %q must be at most %d characters", f.Name, *f.MaxLength),
						"Shorten the value.")
				}
			}

		case opArrayLength:
			if arr, ok := value.([]any); ok {
				if f.Required && len(arr) == 0 {
					fail(TypeEmptyRequiredArray,
						fmt.Sprintf("required array %q must not be empty", f.Name),
						"Add at least one element.")
				}

				if f.MinItems != nil && len(arr) < *f.MinItems {
					fail(TypeInvalidFieldType,
						fmt.Sprintf("field %q must have at least %d items", f.Name, *f.MinItems),
						"Add more elements.")
				}

				if f.MaxItems != nil && len(arr) > *f.MaxItems {
					fail(TypeInvalidFieldType,
						fmt.Sprintf("field %q must have at most %d items", f.Name, *f.MaxItems),
						"Remove extra elements.")
				}
			}

		case opArrayItems:
			if arr, ok := value.([]any); ok {
				for i, item := range arr {
					if !typeMatches(f.Items, item) {
						fail(TypeInvalidFieldType,
							fmt.Sprintf("element %d of %q must be of type %s", i, f.Name, f.Items),
							fmt.Sprintf("Change the element to a %s.", f.Items))
					}
				}
			}
		}
	}

	return diags
}

// typeMatches checks a decoded YAML value against a semantic field type.
func typeMatches(t kgschema.FieldType, value any) bool {
	switch t {
	case kgschema.TypeString:
		_, ok := value.(string)

		return ok

	case kgschema.TypeInteger:
		switch value.(type) {
		case int, int64, uint64:
			return true
		}

		return false

	case kgschema.TypeBoolean:
		_, ok := value.(bool)

		return ok

	case kgschema.TypeDatetime:
		switch v := value.(type) {
		case time.Time:
			return true
		case string:
			for _, layout := range []string{time.RFC3339, time.DateOnly} {
				if _, err := time.Parse(layout, v); err == nil {
					return true
				}
			}
		}

		return false

	case kgschema.TypeArray:
		_, ok := value.([]any)

		return ok

	case kgschema.TypeObject:
		_, ok := value.(map[string]any)

		return ok
	}

	return false
}
