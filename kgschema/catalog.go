package kgschema

import (
	"fmt"
	"slices"
	"time"
)

// NewCatalog builds a catalog from already-constructed schemas and runs the
// same consistency checks as the loader. Useful for programmatic catalog
// construction; file-based loading goes through [Loader].
func NewCatalog(schemas ...*EntitySchema) (*Catalog, error) {
	catalog := &Catalog{
		schemas:  make(map[string]*EntitySchema, len(schemas)),
		loadedAt: time.Now().UTC(),
	}

	for _, schema := range schemas {
		catalog.schemas[schema.EntityType] = schema

		if schema.Extends != "" {
			catalog.baseDerived = append(catalog.baseDerived, schema.EntityType)
		} else {
			catalog.standalone = append(catalog.standalone, schema.EntityType)
		}
	}

	slices.Sort(catalog.baseDerived)
	slices.Sort(catalog.standalone)

	if problems := catalog.validate(); len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	return catalog, nil
}

// validate runs the cross-schema consistency checks and returns all
// problems found. An empty result means the catalog is consistent.
//
// Checks, per schema:
//   - every relationship target type exists in the catalog
//   - field names are unique across required, optional, and readonly
//   - no name is both a field and a relationship
//   - the backing type is non-empty
func (c *Catalog) validate() []string {
	var problems []string

	for _, entityType := range c.EntityTypes() {
		schema := c.schemas[entityType]

		if schema.BackingType == "" {
			problems = append(problems,
				fmt.Sprintf("entity type %q has an empty backing type", entityType))
		}

		fieldNames := make(map[string]bool)

		for _, f := range schema.Fields() {
			if fieldNames[f.Name] {
				problems = append(problems,
					fmt.Sprintf("entity type %q declares duplicate field %q", entityType, f.Name))
			}

			fieldNames[f.Name] = true
		}

		for _, rel := range schema.Relationships {
			if fieldNames[rel.Name] {
				problems = append(problems,
					fmt.Sprintf("entity type %q: naming conflict: %q is declared as both a field and a relationship",
						entityType, rel.Name))
			}

			for _, target := range rel.TargetTypes {
				if !c.HasEntityType(target) {
					problems = append(problems,
						fmt.Sprintf("relationship %q on %q targets unknown entity type %q",
							rel.Name, entityType, target))
				}
			}
		}
	}

	return problems
}
