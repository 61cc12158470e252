package kgschema

import (
	"fmt"
	"slices"
)

// rawField is the on-disk shape of a field definition.
type rawField struct {
	Type              string   `yaml:"type"`
	Description       string   `yaml:"description"`
	Validation        string   `yaml:"validation"`
	Pattern           string   `yaml:"pattern"`
	AllowedValues     []string `yaml:"allowed_values"`
	Items             string   `yaml:"items"`
	MinLength         *int     `yaml:"min_length"`
	MaxLength         *int     `yaml:"max_length"`
	MinItems          *int     `yaml:"min_items"`
	MaxItems          *int     `yaml:"max_items"`
	Default           any      `yaml:"default"`
	Indexed           bool     `yaml:"indexed"`
	Deprecated        bool     `yaml:"deprecated"`
	DeprecatedSince   string   `yaml:"deprecated_since"`
	RemoveAfter       string   `yaml:"remove_after"`
	DeprecationReason string   `yaml:"deprecation_reason"`
}

// rawRelationship is the on-disk shape of a relationship definition.
type rawRelationship struct {
	TargetTypes       []string `yaml:"target_types"`
	Cardinality       string   `yaml:"cardinality"`
	Direction         string   `yaml:"direction"`
	Description       string   `yaml:"description"`
	Deprecated        bool     `yaml:"deprecated"`
	DeprecatedSince   string   `yaml:"deprecated_since"`
	RemoveAfter       string   `yaml:"remove_after"`
	DeprecationReason string   `yaml:"deprecation_reason"`
}

// rawEntity is the on-disk shape of an entity schema file.
type rawEntity struct {
	EntityType        string                     `yaml:"entity_type"`
	SchemaVersion     string                     `yaml:"schema_version"`
	Extends           string                     `yaml:"extends"`
	Description       string                     `yaml:"description"`
	RequiredMetadata  map[string]rawField        `yaml:"required_metadata"`
	OptionalMetadata  map[string]rawField        `yaml:"optional_metadata"`
	ReadonlyMetadata  map[string]rawField        `yaml:"readonly_metadata"`
	Relationships     map[string]rawRelationship `yaml:"relationships"`
	ValidationRules   map[string]any             `yaml:"validation_rules"`
	DgraphType        string                     `yaml:"dgraph_type"`
	DgraphPredicates  map[string]string          `yaml:"dgraph_predicates"`
	Governance        string                     `yaml:"governance"`
	DeletionPolicy    string                     `yaml:"deletion_policy"`
	AutoCreation      bool                       `yaml:"auto_creation"`
	AllowCustomFields *bool                      `yaml:"allow_custom_fields"`

	sourcePath string `yaml:"-"`
	dirName    string `yaml:"-"`
}

// rawBase is the on-disk shape of a base schema file.
type rawBase struct {
	SchemaType        string              `yaml:"schema_type"`
	SchemaVersion     string              `yaml:"schema_version"`
	Governance        string              `yaml:"governance"`
	ReadonlyMetadata  map[string]rawField `yaml:"readonly_metadata"`
	ValidationRules   map[string]any      `yaml:"validation_rules"`
	DeletionPolicy    string              `yaml:"deletion_policy"`
	AllowCustomFields *bool               `yaml:"allow_custom_fields"`
}

var fieldTypes = []FieldType{
	TypeString, TypeInteger, TypeBoolean, TypeDatetime, TypeArray, TypeObject,
}

// buildSchema resolves inheritance and converts a raw entity schema into an
// EntitySchema.
func buildSchema(raw rawEntity, bases map[string]rawBase) (*EntitySchema, error) {
	if raw.EntityType == "" {
		return nil, fmt.Errorf("%w: %s: missing entity_type", ErrSchemaFile, raw.sourcePath)
	}

	if raw.SchemaVersion == "" {
		return nil, fmt.Errorf("%w: %s: missing schema_version", ErrSchemaFile, raw.sourcePath)
	}

	readonly := raw.ReadonlyMetadata
	rules := raw.ValidationRules
	governance := raw.Governance
	deletionPolicy := raw.DeletionPolicy
	allowCustom := raw.AllowCustomFields

	if raw.Extends != "" {
		base, ok := bases[raw.Extends]
		if !ok {
			return nil, fmt.Errorf("%w: %q extends unknown base schema %q",
				ErrInheritance, raw.EntityType, raw.Extends)
		}

		readonly = mergeFieldMaps(base.ReadonlyMetadata, raw.ReadonlyMetadata)
		rules = deepMerge(base.ValidationRules, raw.ValidationRules)

		if governance == "" {
			governance = base.Governance
		}

		if deletionPolicy == "" {
			deletionPolicy = base.DeletionPolicy
		}

		if allowCustom == nil {
			allowCustom = base.AllowCustomFields
		}
	}

	schema := &EntitySchema{
		EntityType:        raw.EntityType,
		SchemaVersion:     raw.SchemaVersion,
		Extends:           raw.Extends,
		Description:       raw.Description,
		ValidationRules:   rules,
		BackingType:       raw.DgraphType,
		BackingPredicates: raw.DgraphPredicates,
		Governance:        governance,
		DeletionPolicy:    deletionPolicy,
		AutoCreation:      raw.AutoCreation,
	}

	if allowCustom != nil {
		schema.AllowCustomFields = *allowCustom
	}

	var err error

	schema.Required, err = parseFieldGroup(raw.EntityType, raw.RequiredMetadata, true)
	if err != nil {
		return nil, err
	}

	schema.Optional, err = parseFieldGroup(raw.EntityType, raw.OptionalMetadata, false)
	if err != nil {
		return nil, err
	}

	schema.Readonly, err = parseFieldGroup(raw.EntityType, readonly, false)
	if err != nil {
		return nil, err
	}

	schema.Relationships = parseRelationships(raw.Relationships)

	return schema, nil
}

// parseFieldGroup converts one metadata group into sorted FieldDefinitions.
func parseFieldGroup(entityType string, group map[string]rawField, required bool) ([]FieldDefinition, error) {
	if len(group) == 0 {
		return nil, nil
	}

	names := sortedKeys(group)
	fields := make([]FieldDefinition, 0, len(group))

	for _, name := range names {
		rf := group[name]

		ft := FieldType(rf.Type)
		if rf.Type == "" {
			ft = TypeString
		}

		if !slices.Contains(fieldTypes, ft) {
			return nil, fmt.Errorf("%w: field %q on %q has unknown type %q",
				ErrSchemaFile, name, entityType, rf.Type)
		}

		f := FieldDefinition{
			Name:          name,
			Type:          ft,
			Description:   rf.Description,
			Validation:    rf.Validation,
			Pattern:       rf.Pattern,
			AllowedValues: rf.AllowedValues,
			MinLength:     rf.MinLength,
			MaxLength:     rf.MaxLength,
			MinItems:      rf.MinItems,
			MaxItems:      rf.MaxItems,
			Default:       rf.Default,
			Required:      required,
			Indexed:       rf.Indexed,
			Deprecation: Deprecation{
				Deprecated:  rf.Deprecated,
				Since:       rf.DeprecatedSince,
				RemoveAfter: rf.RemoveAfter,
				Reason:      rf.DeprecationReason,
			},
		}

		if rf.Items != "" {
			f.Items = FieldType(rf.Items)
		}

		fields = append(fields, f)
	}

	return fields, nil
}

// parseRelationships converts the relationship map into sorted definitions.
func parseRelationships(rels map[string]rawRelationship) []RelationshipDefinition {
	if len(rels) == 0 {
		return nil
	}

	names := sortedKeys(rels)
	out := make([]RelationshipDefinition, 0, len(rels))

	for _, name := range names {
		rr := rels[name]

		cardinality := Cardinality(rr.Cardinality)
		if rr.Cardinality == "" {
			cardinality = OneToMany
		}

		direction := Direction(rr.Direction)
		if rr.Direction == "" {
			direction = Outbound
		}

		out = append(out, RelationshipDefinition{
			Name:        name,
			Description: rr.Description,
			TargetTypes: rr.TargetTypes,
			Cardinality: cardinality,
			Direction:   direction,
			Deprecation: Deprecation{
				Deprecated:  rr.Deprecated,
				Since:       rr.DeprecatedSince,
				RemoveAfter: rr.RemoveAfter,
				Reason:      rr.DeprecationReason,
			},
		})
	}

	return out
}

// mergeFieldMaps overlays entity fields on base fields; entity wins per key.
func mergeFieldMaps(base, entity map[string]rawField) map[string]rawField {
	merged := make(map[string]rawField, len(base)+len(entity))

	for k, v := range base {
		merged[k] = v
	}

	for k, v := range entity {
		merged[k] = v
	}

	return merged
}

// deepMerge overlays entity values on base values, recursing into nested
// maps; entity wins on scalar conflicts.
func deepMerge(base, entity map[string]any) map[string]any {
	if len(base) == 0 && len(entity) == 0 {
		return nil
	}

	merged := make(map[string]any, len(base)+len(entity))

	for k, v := range base {
		merged[k] = v
	}

	for k, v := range entity {
		bv, exists := merged[k]
		if !exists {
			merged[k] = v

			continue
		}

		bm, baseIsMap := bv.(map[string]any)
		em, entityIsMap := v.(map[string]any)

		if baseIsMap && entityIsMap {
			merged[k] = deepMerge(bm, em)
		} else {
			merged[k] = v
		}
	}

	return merged
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}
