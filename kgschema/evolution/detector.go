package evolution

import (
	"slices"

	"go.jacobcolvin.com/kgraph/kgschema"
)

// Detect diffs two catalogs. Entity types present in only one catalog
// appear as entity-type changes; their fields and relationships are not
// additionally reported. For entity types present in both, fields and
// relationships are compared by name.
//
// A field counts as modified when its type, required flag, or validation
// tag differs. A relationship counts as modified when its target-type set
// or cardinality differs.
func Detect(oldCatalog, newCatalog *kgschema.Catalog) ChangeSet {
	var changes ChangeSet

	for _, entityType := range oldCatalog.EntityTypes() {
		if !newCatalog.HasEntityType(entityType) {
			changes.EntityTypes = append(changes.EntityTypes, EntityTypeChange{
				EntityType: entityType,
				Kind:       Removed,
			})
		}
	}

	for _, entityType := range newCatalog.EntityTypes() {
		newSchema, _ := newCatalog.Schema(entityType)

		oldSchema, ok := oldCatalog.Schema(entityType)
		if !ok {
			changes.EntityTypes = append(changes.EntityTypes, EntityTypeChange{
				EntityType: entityType,
				Kind:       Added,
			})

			continue
		}

		diffFields(entityType, oldSchema, newSchema, &changes)
		diffRelationships(entityType, oldSchema, newSchema, &changes)
	}

	return changes
}

func diffFields(entityType string, oldSchema, newSchema *kgschema.EntitySchema, changes *ChangeSet) {
	oldFields := fieldMap(oldSchema)
	newFields := fieldMap(newSchema)

	for _, name := range sortedKeys(oldFields) {
		oldField := oldFields[name]

		newField, ok := newFields[name]
		if !ok {
			changes.Fields = append(changes.Fields, FieldChange{
				EntityType: entityType,
				FieldName:  name,
				Kind:       Removed,
				Old:        oldField,
			})

			continue
		}

		if fieldModified(oldField, newField) {
			changes.Fields = append(changes.Fields, FieldChange{
				EntityType: entityType,
				FieldName:  name,
				Kind:       Modified,
				Old:        oldField,
				New:        newField,
			})
		}
	}

	for _, name := range sortedKeys(newFields) {
		if _, ok := oldFields[name]; !ok {
			changes.Fields = append(changes.Fields, FieldChange{
				EntityType: entityType,
				FieldName:  name,
				Kind:       Added,
				New:        newFields[name],
			})
		}
	}
}

func diffRelationships(entityType string, oldSchema, newSchema *kgschema.EntitySchema, changes *ChangeSet) {
	oldRels := relationshipMap(oldSchema)
	newRels := relationshipMap(newSchema)

	for _, name := range sortedKeys(oldRels) {
		oldRel := oldRels[name]

		newRel, ok := newRels[name]
		if !ok {
			changes.Relationships = append(changes.Relationships, RelationshipChange{
				EntityType:       entityType,
				RelationshipName: name,
				Kind:             Removed,
				Old:              oldRel,
			})

			continue
		}

		if relationshipModified(oldRel, newRel) {
			changes.Relationships = append(changes.Relationships, RelationshipChange{
				EntityType:       entityType,
				RelationshipName: name,
				Kind:             Modified,
				Old:              oldRel,
				New:              newRel,
			})
		}
	}

	for _, name := range sortedKeys(newRels) {
		if _, ok := oldRels[name]; !ok {
			changes.Relationships = append(changes.Relationships, RelationshipChange{
				EntityType:       entityType,
				RelationshipName: name,
				Kind:             Added,
				New:              newRels[name],
			})
		}
	}
}

func fieldModified(oldField, newField *kgschema.FieldDefinition) bool {
	return oldField.Type != newField.Type ||
		oldField.Required != newField.Required ||
		oldField.Validation != newField.Validation
}

func relationshipModified(oldRel, newRel *kgschema.RelationshipDefinition) bool {
	if oldRel.Cardinality != newRel.Cardinality {
		return true
	}

	oldTargets := slices.Clone(oldRel.TargetTypes)
	newTargets := slices.Clone(newRel.TargetTypes)
	slices.Sort(oldTargets)
	slices.Sort(newTargets)

	return !slices.Equal(oldTargets, newTargets)
}

func fieldMap(schema *kgschema.EntitySchema) map[string]*kgschema.FieldDefinition {
	fields := schema.Fields()
	m := make(map[string]*kgschema.FieldDefinition, len(fields))

	for i := range fields {
		m[fields[i].Name] = &fields[i]
	}

	return m
}

func relationshipMap(schema *kgschema.EntitySchema) map[string]*kgschema.RelationshipDefinition {
	m := make(map[string]*kgschema.RelationshipDefinition, len(schema.Relationships))

	for i := range schema.Relationships {
		m[schema.Relationships[i].Name] = &schema.Relationships[i]
	}

	return m
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}
