package apply

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.jacobcolvin.com/kgraph/depref"
	"go.jacobcolvin.com/kgraph/kgschema"
	"go.jacobcolvin.com/kgraph/storage"
)

// syncRelationships enforces replacement semantics for one entity: for every
// relationship the schema declares, the stored edge set is replaced by the
// record's target list. A declared relationship the record does not mention
// ends up with no edges.
func syncRelationships(
	ctx context.Context,
	store storage.Storage,
	schema *kgschema.EntitySchema,
	record storage.EntityRecord,
	logger *slog.Logger,
) error {
	for _, rel := range schema.Relationships {
		removed, err := store.RemoveRelationshipsByType(ctx, record.EntityType, record.EntityID, rel.Name)
		if err != nil {
			return fmt.Errorf("clear %s edges of %q: %w", rel.Name, record.EntityID, err)
		}

		targets := record.Relationships[rel.Name]

		for _, targetID := range targets {
			targetType := resolveTargetType(rel, targetID)

			if _, err := store.CreateRelationship(ctx,
				record.EntityType, record.EntityID, rel.Name, targetType, targetID); err != nil {
				return fmt.Errorf("create %s edge %q -> %q: %w", rel.Name, record.EntityID, targetID, err)
			}
		}

		if removed > 0 || len(targets) > 0 {
			logger.Debug("replaced relationship edges",
				slog.String("entity", record.EntityID),
				slog.String("relationship", rel.Name),
				slog.Int("removed", removed),
				slog.Int("created", len(targets)),
			)
		}
	}

	return nil
}

// resolveTargetType maps a target id to the entity type the edge should
// point at. External URIs carry the answer in their shape: three path
// segments name a concrete version, two name a package. Internal URIs fall
// back to the relationship's declared target types.
func resolveTargetType(rel kgschema.RelationshipDefinition, targetID string) string {
	if rest, ok := strings.CutPrefix(targetID, depref.ExternalPrefix); ok {
		if strings.Count(rest, "/") >= 2 {
			return "external_dependency_version"
		}

		return "external_dependency_package"
	}

	if depref.IsInternal(targetID) {
		if rel.AllowsTarget("repository") {
			return "repository"
		}

		if len(rel.TargetTypes) > 0 {
			return rel.TargetTypes[0]
		}
	}

	if len(rel.TargetTypes) > 0 {
		return rel.TargetTypes[0]
	}

	return "unknown"
}
