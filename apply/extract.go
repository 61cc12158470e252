package apply

import (
	"maps"
	"slices"

	"go.jacobcolvin.com/kgraph/storage"
	"go.jacobcolvin.com/kgraph/validate"
)

// Extract flattens a validated descriptor into ordered entity records ready
// for storage. Record order follows document order: entity types in the
// order written, entities within each type in the order written.
func Extract(descriptor validate.Descriptor, sourceName string) []storage.EntityRecord {
	var records []storage.EntityRecord

	for _, group := range descriptor.Groups {
		for _, entity := range group.Entities {
			records = append(records, extractOne(descriptor.Namespace, sourceName, group.Type, entity))
		}
	}

	return records
}

func extractOne(namespace, sourceName, entityType string, entity validate.Entity) storage.EntityRecord {
	metadata := maps.Clone(entity.Body)
	delete(metadata, "relationships")

	relationships := entity.Relationships()

	// Legacy descriptors declare depends_on inline in the body instead of
	// under relationships. Both spellings feed the same edge set.
	if refs := entity.DependsOn(); len(refs) > 0 {
		relationships["depends_on"] = dedupe(refs)
	}

	return storage.EntityRecord{
		EntityType:    entityType,
		EntityID:      namespace + "/" + entity.Name,
		Metadata:      metadata,
		Relationships: relationships,
		SystemMetadata: map[string]any{
			"namespace":   namespace,
			"source_name": sourceName,
		},
	}
}

func dedupe(refs []string) []string {
	out := make([]string, 0, len(refs))

	for _, ref := range refs {
		if !slices.Contains(out, ref) {
			out = append(out, ref)
		}
	}

	return out
}
