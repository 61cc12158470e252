package validate

import (
	"github.com/goccy/go-yaml"
)

// Descriptor is the validated form of a descriptor document, materialized
// after the field-format layer passes.
type Descriptor struct {
	SchemaVersion string
	Namespace     string
	Groups        []EntityGroup
}

// EntityGroup is the ordered list of entities of one entity type, in
// document order.
type EntityGroup struct {
	Type     string
	Entities []Entity
}

// Entity is one named entity body from a descriptor.
type Entity struct {
	Name string
	Body map[string]any
}

// Relationships returns the entity's nested relationships section as a map
// of relationship name to target-id list. Missing or malformed sections
// yield an empty map; the field-format layer has already rejected bodies
// with the wrong shape.
func (e Entity) Relationships() map[string][]string {
	rels := make(map[string][]string)

	raw, ok := e.Body["relationships"].(map[string]any)
	if !ok {
		return rels
	}

	for name, value := range raw {
		targets, ok := value.([]any)
		if !ok {
			continue
		}

		ids := make([]string, 0, len(targets))

		for _, t := range targets {
			if s, ok := t.(string); ok {
				ids = append(ids, s)
			}
		}

		rels[name] = ids
	}

	return rels
}

// DependsOn returns every dependency reference on the entity: the legacy
// inline depends_on array plus the nested relationships.depends_on list.
func (e Entity) DependsOn() []string {
	var refs []string

	if inline, ok := e.Body["depends_on"].([]any); ok {
		for _, v := range inline {
			if s, ok := v.(string); ok {
				refs = append(refs, s)
			}
		}
	}

	refs = append(refs, e.Relationships()["depends_on"]...)

	return refs
}

// toPlain converts ordered-map decoded values into plain Go values:
// yaml.MapSlice becomes map[string]any, recursively. Order is preserved
// separately where it matters (the entity-type walk); entity bodies are
// plain maps.
func toPlain(v any) any {
	switch val := v.(type) {
	case yaml.MapSlice:
		m := make(map[string]any, len(val))

		for _, item := range val {
			key, ok := item.Key.(string)
			if !ok {
				continue
			}

			m[key] = toPlain(item.Value)
		}

		return m

	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toPlain(item)
		}

		return out

	default:
		return v
	}
}

// mapGet looks up a key in an ordered map.
func mapGet(ms yaml.MapSlice, key string) (any, bool) {
	for _, item := range ms {
		if k, ok := item.Key.(string); ok && k == key {
			return item.Value, true
		}
	}

	return nil, false
}
