package evolution

import "go.jacobcolvin.com/kgraph/kgschema"

// Project returns the entity projected onto a target schema version:
// metadata fields and relationships absent from the target schema are
// filtered out of the returned copies. Nothing is deleted from the backend;
// this is the rollback strategy for additive-only evolution, where older
// readers simply do not see newer fields.
//
// When the target schema allows custom fields, unknown metadata keys pass
// through unchanged.
func Project(
	metadata map[string]any,
	relationships map[string][]string,
	target *kgschema.EntitySchema,
) (map[string]any, map[string][]string) {
	outMeta := make(map[string]any, len(metadata))

	for key, value := range metadata {
		_, known := target.Field(key)
		if known || target.AllowCustomFields {
			outMeta[key] = value
		}
	}

	outRels := make(map[string][]string, len(relationships))

	for name, targets := range relationships {
		if _, ok := target.Relationship(name); ok {
			outRels[name] = append([]string(nil), targets...)
		}
	}

	return outMeta, outRels
}
