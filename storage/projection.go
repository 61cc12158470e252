package storage

import (
	"go.jacobcolvin.com/kgraph/kgschema"
)

// Index kinds applied to backing predicates.
const (
	IndexExact = "exact"
	IndexInt   = "int"
	IndexBool  = "bool"
)

// PredicateDef declares one typed predicate the backend must host.
type PredicateDef struct {
	Name  string
	Type  string
	Index string
}

// TypeDef declares one backing type and the predicates its entities carry.
type TypeDef struct {
	Name       string
	EntityType string
	Predicates []string
}

// BackingSchema is the deterministic projection of a runtime catalog into
// the backend's own schema.
type BackingSchema struct {
	Predicates []PredicateDef
	Types      []TypeDef
}

// reservedPredicates precede every field predicate: the canonical id and
// type tags every entity carries, both exactly indexed.
var reservedPredicates = []PredicateDef{
	{Name: "entity_id", Type: "string", Index: IndexExact},
	{Name: "entity_type", Type: "string", Index: IndexExact},
}

// Project derives the backing schema from a catalog. Multiple entity types
// may declare the same field name; exactly one predicate definition is
// emitted per unique name, first seen wins (entity types in sorted order,
// fields in declaration order). Each entity type additionally gets a type
// declaration listing its predicate membership.
func Project(catalog *kgschema.Catalog) BackingSchema {
	backing := BackingSchema{
		Predicates: append([]PredicateDef(nil), reservedPredicates...),
	}

	seen := map[string]bool{
		"entity_id":   true,
		"entity_type": true,
	}

	for _, entityType := range catalog.EntityTypes() {
		schema, _ := catalog.Schema(entityType)

		typeDef := TypeDef{
			Name:       schema.BackingType,
			EntityType: entityType,
			Predicates: []string{"entity_id", "entity_type"},
		}

		for _, field := range schema.Fields() {
			typeDef.Predicates = append(typeDef.Predicates, field.Name)

			if seen[field.Name] {
				continue
			}

			seen[field.Name] = true

			predType, index := predicateType(field.Type)
			backing.Predicates = append(backing.Predicates, PredicateDef{
				Name:  field.Name,
				Type:  predType,
				Index: index,
			})
		}

		backing.Types = append(backing.Types, typeDef)
	}

	return backing
}

// predicateType maps a semantic field type to a backing predicate type and
// index kind. Objects are stored as JSON strings.
func predicateType(t kgschema.FieldType) (string, string) {
	switch t {
	case kgschema.TypeString:
		return "string", IndexExact
	case kgschema.TypeInteger:
		return "int", IndexInt
	case kgschema.TypeBoolean:
		return "bool", IndexBool
	case kgschema.TypeDatetime:
		return "datetime", ""
	case kgschema.TypeArray:
		return "[string]", ""
	case kgschema.TypeObject:
		return "string", ""
	}

	return "string", ""
}
