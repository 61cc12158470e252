package evolution

import (
	"time"

	"go.jacobcolvin.com/kgraph/kgschema"
)

// DeprecationKind distinguishes what was deprecated.
type DeprecationKind string

// Deprecation kinds.
const (
	DeprecatedField        DeprecationKind = "field"
	DeprecatedRelationship DeprecationKind = "relationship"
)

// DeprecationEntry is one deprecated field or relationship in a catalog.
type DeprecationEntry struct {
	EntityType string
	Kind       DeprecationKind
	Name       string
	Info       kgschema.Deprecation
}

// removeAfterLayouts are the accepted remove_after date formats.
var removeAfterLayouts = []string{time.DateOnly, time.RFC3339}

// ActiveDeprecations lists every deprecated field and relationship in the
// catalog, ordered by entity type.
func ActiveDeprecations(catalog *kgschema.Catalog) []DeprecationEntry {
	var entries []DeprecationEntry

	for _, entityType := range catalog.EntityTypes() {
		schema, _ := catalog.Schema(entityType)

		for _, field := range schema.Fields() {
			if field.Deprecation.Deprecated {
				entries = append(entries, DeprecationEntry{
					EntityType: entityType,
					Kind:       DeprecatedField,
					Name:       field.Name,
					Info:       field.Deprecation,
				})
			}
		}

		for _, rel := range schema.Relationships {
			if rel.Deprecation.Deprecated {
				entries = append(entries, DeprecationEntry{
					EntityType: entityType,
					Kind:       DeprecatedRelationship,
					Name:       rel.Name,
					Info:       rel.Deprecation,
				})
			}
		}
	}

	return entries
}

// SunsetReport returns the deprecations whose remove_after date is at or
// before now. Entries without a parseable remove_after date are never due.
func SunsetReport(catalog *kgschema.Catalog, now time.Time) []DeprecationEntry {
	var due []DeprecationEntry

	for _, entry := range ActiveDeprecations(catalog) {
		if entry.Info.RemoveAfter == "" {
			continue
		}

		for _, layout := range removeAfterLayouts {
			deadline, err := time.Parse(layout, entry.Info.RemoveAfter)
			if err != nil {
				continue
			}

			if !deadline.After(now) {
				due = append(due, entry)
			}

			break
		}
	}

	return due
}
