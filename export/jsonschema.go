package export

import (
	"github.com/google/jsonschema-go/jsonschema"

	"go.jacobcolvin.com/kgraph/depref"
	"go.jacobcolvin.com/kgraph/kgschema"
)

const dialect = "https://json-schema.org/draft/2020-12/schema"

// versionPattern matches the x.y.z schema_version strings the pipeline
// accepts.
const versionPattern = `^\d+\.\d+\.\d+$`

// Generate projects a schema catalog into a JSON Schema document for
// descriptor files. Editors wired to the output get completion and inline
// validation for every entity type the catalog knows. Readonly fields are
// excluded: descriptor authors never write them.
func Generate(catalog *kgschema.Catalog) *jsonschema.Schema {
	entityProps := make(map[string]*jsonschema.Schema)

	for _, entityType := range catalog.EntityTypes() {
		schema, _ := catalog.Schema(entityType)
		entityProps[entityType] = entityList(schema)
	}

	return &jsonschema.Schema{
		Schema:      dialect,
		Title:       "Knowledge graph descriptor",
		Description: "Declarative descriptor of repositories, owners, and dependencies.",
		Type:        "object",
		Required:    []string{"namespace", "entity"},
		Properties: map[string]*jsonschema.Schema{
			"schema_version": {
				Type:        "string",
				Pattern:     versionPattern,
				Description: "Descriptor format version.",
			},
			"namespace": {
				Type:        "string",
				Pattern:     depref.NamespacePattern,
				Description: "Owning namespace; prefixes every entity id.",
			},
			"entity": {
				Type:                 "object",
				Properties:           entityProps,
				AdditionalProperties: falseSchema(),
			},
		},
		Defs: map[string]*jsonschema.Schema{
			"externalReference": {
				Type:        "string",
				Pattern:     depref.ExternalPattern,
				Description: "external://<ecosystem>/<package>/<version>",
			},
			"internalReference": {
				Type:        "string",
				Pattern:     depref.InternalPattern,
				Description: "internal://<namespace>/<entity-name>",
			},
		},
	}
}

// entityList is the schema for one entity type's list: an array of
// single-key maps from entity name to entity body.
func entityList(schema *kgschema.EntitySchema) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "array",
		Items: &jsonschema.Schema{
			Type:          "object",
			MinProperties: jsonschema.Ptr(1),
			MaxProperties: jsonschema.Ptr(1),
			PatternProperties: map[string]*jsonschema.Schema{
				"^.+$": entityBody(schema),
			},
			AdditionalProperties: falseSchema(),
		},
	}
}

func entityBody(schema *kgschema.EntitySchema) *jsonschema.Schema {
	props := make(map[string]*jsonschema.Schema)

	var required []string

	for _, f := range schema.Required {
		props[f.Name] = fieldSchema(f)
		required = append(required, f.Name)
	}

	for _, f := range schema.Optional {
		props[f.Name] = fieldSchema(f)
	}

	if len(schema.Relationships) > 0 {
		relProps := make(map[string]*jsonschema.Schema)

		for _, rel := range schema.Relationships {
			relProps[rel.Name] = referenceList(rel)
			// Legacy inline spelling directly in the body.
			props[rel.Name] = referenceList(rel)
		}

		props["relationships"] = &jsonschema.Schema{
			Type:                 "object",
			Properties:           relProps,
			AdditionalProperties: falseSchema(),
		}
	}

	body := &jsonschema.Schema{
		Type:        "object",
		Description: schema.Description,
		Required:    required,
	}

	if len(props) > 0 {
		body.Properties = props
	}

	if !schema.AllowCustomFields {
		body.AdditionalProperties = falseSchema()
	}

	return body
}

func referenceList(rel kgschema.RelationshipDefinition) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "array",
		Description: rel.Description,
		Items: &jsonschema.Schema{
			AnyOf: []*jsonschema.Schema{
				{Ref: "#/$defs/externalReference"},
				{Ref: "#/$defs/internalReference"},
			},
		},
	}
}

func fieldSchema(f kgschema.FieldDefinition) *jsonschema.Schema {
	s := &jsonschema.Schema{Description: f.Description}

	switch f.Type {
	case kgschema.TypeString:
		s.Type = "string"
		s.MinLength = f.MinLength
		s.MaxLength = f.MaxLength
		s.Pattern = f.Pattern

		switch f.Validation {
		case "email":
			s.Format = "email"
		case "url":
			s.Format = "uri"
		case "enum":
			for _, v := range f.AllowedValues {
				s.Enum = append(s.Enum, v)
			}
		}

	case kgschema.TypeInteger:
		s.Type = "integer"

	case kgschema.TypeBoolean:
		s.Type = "boolean"

	case kgschema.TypeDatetime:
		s.Type = "string"
		s.Format = "date-time"

	case kgschema.TypeArray:
		s.Type = "array"
		s.MinItems = f.MinItems
		s.MaxItems = f.MaxItems

		itemType := "string"
		if f.Items != "" {
			itemType = typeName(f.Items)
		}

		s.Items = &jsonschema.Schema{Type: itemType}

	case kgschema.TypeObject:
		s.Type = "object"
	}

	return s
}

func typeName(t kgschema.FieldType) string {
	switch t {
	case kgschema.TypeInteger:
		return "integer"
	case kgschema.TypeBoolean:
		return "boolean"
	case kgschema.TypeObject:
		return "object"
	case kgschema.TypeArray:
		return "array"
	default:
		return "string"
	}
}

// falseSchema validates nothing; it marshals to the JSON literal false.
func falseSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Not: &jsonschema.Schema{}}
}
