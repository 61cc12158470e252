package kgschema

import (
	"slices"
	"time"
)

// FieldType is the semantic type of a field value.
type FieldType string

// Semantic field types.
const (
	TypeString   FieldType = "string"
	TypeInteger  FieldType = "integer"
	TypeBoolean  FieldType = "boolean"
	TypeDatetime FieldType = "datetime"
	TypeArray    FieldType = "array"
	TypeObject   FieldType = "object"
)

// Cardinality constrains how many edges of a relationship may exist.
type Cardinality string

// Relationship cardinalities.
const (
	OneToOne   Cardinality = "one_to_one"
	OneToMany  Cardinality = "one_to_many"
	ManyToMany Cardinality = "many_to_many"
)

// Direction is the traversal direction of a relationship.
type Direction string

// Relationship directions.
const (
	Outbound      Direction = "outbound"
	Inbound       Direction = "inbound"
	Bidirectional Direction = "bidirectional"
)

// Deprecation carries sunset metadata for a field or relationship.
type Deprecation struct {
	Since       string
	RemoveAfter string
	Reason      string
	Deprecated  bool
}

// FieldDefinition describes one field of an entity schema. Definitions are
// built by the loader and immutable afterward.
type FieldDefinition struct {
	Name          string
	Type          FieldType
	Description   string
	Validation    string // "", "email", "url", or "enum"
	Pattern       string
	AllowedValues []string
	Items         FieldType // element type for arrays, "" if unconstrained
	MinLength     *int
	MaxLength     *int
	MinItems      *int
	MaxItems      *int
	Default       any
	Deprecation   Deprecation
	Required      bool
	Indexed       bool
}

// RelationshipDefinition describes one relationship declared on an entity
// schema.
type RelationshipDefinition struct {
	Name        string
	Description string
	TargetTypes []string
	Cardinality Cardinality
	Direction   Direction
	Deprecation Deprecation
}

// AllowsTarget reports whether entityType is a permitted target.
func (r RelationshipDefinition) AllowsTarget(entityType string) bool {
	return slices.Contains(r.TargetTypes, entityType)
}

// EntitySchema is the loaded definition of one entity type.
type EntitySchema struct {
	EntityType        string
	SchemaVersion     string
	Extends           string // base schema name, "" for standalone schemas
	Description       string
	Required          []FieldDefinition
	Optional          []FieldDefinition
	Readonly          []FieldDefinition
	Relationships     []RelationshipDefinition
	ValidationRules   map[string]any
	BackingType       string
	BackingPredicates map[string]string
	Governance        string
	DeletionPolicy    string
	AutoCreation      bool
	AllowCustomFields bool
}

// Fields returns all field definitions: required, then optional, then
// readonly.
func (s *EntitySchema) Fields() []FieldDefinition {
	out := make([]FieldDefinition, 0, len(s.Required)+len(s.Optional)+len(s.Readonly))
	out = append(out, s.Required...)
	out = append(out, s.Optional...)
	out = append(out, s.Readonly...)

	return out
}

// Field returns the definition of the named field across all three groups.
func (s *EntitySchema) Field(name string) (FieldDefinition, bool) {
	for _, f := range s.Fields() {
		if f.Name == name {
			return f, true
		}
	}

	return FieldDefinition{}, false
}

// Relationship returns the named relationship definition.
func (s *EntitySchema) Relationship(name string) (RelationshipDefinition, bool) {
	for _, r := range s.Relationships {
		if r.Name == name {
			return r, true
		}
	}

	return RelationshipDefinition{}, false
}

// Catalog is the validated set of entity schemas keyed by entity type.
// Catalogs are immutable after load; a reload produces a fresh Catalog.
type Catalog struct {
	schemas     map[string]*EntitySchema
	baseDerived []string
	standalone  []string
	loadedAt    time.Time
}

// Schema returns the schema for entityType.
func (c *Catalog) Schema(entityType string) (*EntitySchema, bool) {
	s, ok := c.schemas[entityType]

	return s, ok
}

// EntityTypes returns all entity type names in sorted order.
func (c *Catalog) EntityTypes() []string {
	types := make([]string, 0, len(c.schemas))
	for t := range c.schemas {
		types = append(types, t)
	}

	slices.Sort(types)

	return types
}

// HasEntityType reports whether entityType is defined.
func (c *Catalog) HasEntityType(entityType string) bool {
	_, ok := c.schemas[entityType]

	return ok
}

// Len returns the number of entity schemas.
func (c *Catalog) Len() int {
	return len(c.schemas)
}

// BaseDerived returns the entity types that extend a base schema, sorted.
func (c *Catalog) BaseDerived() []string {
	return slices.Clone(c.baseDerived)
}

// Standalone returns the entity types without a base schema, sorted.
func (c *Catalog) Standalone() []string {
	return slices.Clone(c.standalone)
}

// LoadedAt returns the time the catalog was built.
func (c *Catalog) LoadedAt() time.Time {
	return c.loadedAt
}
