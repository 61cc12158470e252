package storage

import (
	"context"

	"go.jacobcolvin.com/kgraph/kgschema"
)

// Storage is the backend-agnostic contract the apply engine depends on.
//
// Contracts shared by all implementations:
//
//   - Connect is idempotent; Disconnect is best-effort and never fails.
//   - StoreEntity upserts keyed by (entityType, entityID): an existing
//     entity is updated in place with its original created_at preserved;
//     updated_at always moves. It never creates a second node for an
//     existing key.
//   - CreateRelationship is safe to call before either endpoint exists.
//   - HealthCheck and ExecuteQuery report failures inside their results
//     rather than returning errors.
//   - Every operation honors context cancellation.
type Storage interface {
	// Connect opens the backend. Calling Connect on an open backend is a
	// no-op.
	Connect(ctx context.Context) error

	// Disconnect closes the backend, best-effort.
	Disconnect(ctx context.Context)

	// HealthCheck probes the backend and reports status and latency.
	HealthCheck(ctx context.Context) HealthStatus

	// LoadSchemas loads the schema catalog from dir and initializes the
	// backend's own schema from its projection.
	LoadSchemas(ctx context.Context, dir string) (*kgschema.Catalog, error)

	// StoreEntity upserts an entity and returns its id.
	StoreEntity(ctx context.Context, entityType, entityID string, metadata, system map[string]any) (string, error)

	// GetEntity returns the entity, or nil when absent.
	GetEntity(ctx context.Context, entityType, entityID string) (*EntityData, error)

	// DeleteEntity removes an entity, reporting whether it existed.
	DeleteEntity(ctx context.Context, entityType, entityID string) (bool, error)

	// ListEntities returns entities of one type matching the metadata
	// filters, paginated.
	ListEntities(ctx context.Context, entityType string, filters map[string]any, limit, offset int) ([]EntityData, error)

	// EntityExists reports whether any entity has the canonical id.
	EntityExists(ctx context.Context, entityID string) (bool, error)

	// CreateRelationship adds one edge.
	CreateRelationship(ctx context.Context, srcType, srcID, relationship, tgtType, tgtID string) (bool, error)

	// RemoveRelationship removes one edge, reporting whether it existed.
	RemoveRelationship(ctx context.Context, srcType, srcID, relationship, tgtType, tgtID string) (bool, error)

	// RemoveRelationshipsByType removes every edge of one relationship
	// type from an entity and returns how many were removed.
	RemoveRelationshipsByType(ctx context.Context, srcType, srcID, relationship string) (int, error)

	// GetEntityRelationships returns the entity's outgoing edges grouped
	// by relationship type.
	GetEntityRelationships(ctx context.Context, entityType, entityID string) ([]RelationshipData, error)

	// GetSystemMetrics summarizes backend contents.
	GetSystemMetrics(ctx context.Context) (*SystemMetrics, error)

	// ExecuteQuery runs a backend-native query.
	ExecuteQuery(ctx context.Context, query string, vars map[string]string) QueryResult

	// DryRunApply classifies what applying records would do, without
	// writing.
	DryRunApply(ctx context.Context, records []EntityRecord) (*DryRunResult, error)
}
