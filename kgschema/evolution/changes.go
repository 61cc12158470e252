package evolution

import "go.jacobcolvin.com/kgraph/kgschema"

// ChangeKind classifies a single difference between two catalogs.
type ChangeKind string

// Change kinds.
const (
	Added    ChangeKind = "added"
	Removed  ChangeKind = "removed"
	Modified ChangeKind = "modified"
)

// FieldChange records a difference in one field of one entity type. Old and
// New are nil for Added and Removed respectively.
type FieldChange struct {
	Old        *kgschema.FieldDefinition
	New        *kgschema.FieldDefinition
	EntityType string
	FieldName  string
	Kind       ChangeKind
}

// RelationshipChange records a difference in one relationship of one entity
// type.
type RelationshipChange struct {
	Old              *kgschema.RelationshipDefinition
	New              *kgschema.RelationshipDefinition
	EntityType       string
	RelationshipName string
	Kind             ChangeKind
}

// EntityTypeChange records an entity type present in only one catalog.
type EntityTypeChange struct {
	EntityType string
	Kind       ChangeKind
}

// ChangeSet is the full diff between two catalogs.
type ChangeSet struct {
	Fields        []FieldChange
	Relationships []RelationshipChange
	EntityTypes   []EntityTypeChange
}

// Empty reports whether the two catalogs were identical.
func (c ChangeSet) Empty() bool {
	return len(c.Fields) == 0 && len(c.Relationships) == 0 && len(c.EntityTypes) == 0
}
