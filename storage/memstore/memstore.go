package memstore

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"go.jacobcolvin.com/kgraph/kgschema"
	"go.jacobcolvin.com/kgraph/storage"
)

type entityKey struct {
	entityType string
	entityID   string
}

type edge struct {
	srcType string
	srcID   string
	rel     string
	tgtType string
	tgtID   string
}

// Store is the in-memory reference implementation of [storage.Storage].
// It exists for tests and local dry runs; nothing survives the process.
type Store struct {
	logger    *slog.Logger
	entities  map[entityKey]*storage.EntityData
	catalog   *kgschema.Catalog
	edges     []edge
	mu        sync.RWMutex
	connected bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		logger:   slog.Default(),
		entities: make(map[entityKey]*storage.EntityData),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Connect implements [storage.Storage]. Idempotent.
func (s *Store) Connect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connected = true

	return nil
}

// Disconnect implements [storage.Storage].
func (s *Store) Disconnect(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connected = false
}

// HealthCheck implements [storage.Storage].
func (s *Store) HealthCheck(_ context.Context) storage.HealthStatus {
	start := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	status := storage.Healthy
	message := ""

	if !s.connected {
		status = storage.Disconnected
		message = "not connected"
	}

	return storage.HealthStatus{
		Status:       status,
		Message:      message,
		ResponseTime: time.Since(start),
		Info: map[string]string{
			"backend": "memory",
		},
	}
}

// LoadSchemas implements [storage.Storage]. The backing-schema projection
// is computed for contract parity even though an in-memory map needs no
// schema.
func (s *Store) LoadSchemas(ctx context.Context, dir string) (*kgschema.Catalog, error) {
	catalog, err := kgschema.NewLoader(dir, kgschema.WithLogger(s.logger)).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrOperation, err)
	}

	backing := storage.Project(catalog)

	s.mu.Lock()
	s.catalog = catalog
	s.mu.Unlock()

	s.logger.Debug("initialized backing schema",
		slog.Int("predicates", len(backing.Predicates)),
		slog.Int("types", len(backing.Types)),
	)

	return catalog, nil
}

// Catalog returns the catalog from the last [Store.LoadSchemas], or nil.
func (s *Store) Catalog() *kgschema.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.catalog
}

// StoreEntity implements [storage.Storage]. Upsert keyed by (type, id):
// created_at is set once and preserved on update, updated_at always moves.
func (s *Store) StoreEntity(
	ctx context.Context,
	entityType, entityID string,
	metadata, system map[string]any,
) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	key := entityKey{entityType, entityID}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.entities[key]
	if ok {
		existing.Metadata = maps.Clone(metadata)
		existing.System = maps.Clone(system)
		existing.UpdatedAt = now

		return entityID, nil
	}

	s.entities[key] = &storage.EntityData{
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   maps.Clone(metadata),
		System:     maps.Clone(system),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	return entityID, nil
}

// GetEntity implements [storage.Storage].
func (s *Store) GetEntity(ctx context.Context, entityType, entityID string) (*storage.EntityData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[entityKey{entityType, entityID}]
	if !ok {
		return nil, nil
	}

	out := *e
	out.Metadata = maps.Clone(e.Metadata)
	out.System = maps.Clone(e.System)

	return &out, nil
}

// DeleteEntity implements [storage.Storage]. Edges touching the entity go
// with it.
func (s *Store) DeleteEntity(ctx context.Context, entityType, entityID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := entityKey{entityType, entityID}
	if _, ok := s.entities[key]; !ok {
		return false, nil
	}

	delete(s.entities, key)

	s.edges = slices.DeleteFunc(s.edges, func(e edge) bool {
		return (e.srcType == entityType && e.srcID == entityID) ||
			(e.tgtType == entityType && e.tgtID == entityID)
	})

	return true, nil
}

// ListEntities implements [storage.Storage]. Filters match metadata values
// by equality.
func (s *Store) ListEntities(
	ctx context.Context,
	entityType string,
	filters map[string]any,
	limit, offset int,
) ([]storage.EntityData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []storage.EntityData

	for key, e := range s.entities {
		if key.entityType != entityType {
			continue
		}

		if !matchesFilters(e.Metadata, filters) {
			continue
		}

		out := *e
		out.Metadata = maps.Clone(e.Metadata)
		out.System = maps.Clone(e.System)
		matched = append(matched, out)
	}

	slices.SortFunc(matched, func(a, b storage.EntityData) int {
		if a.EntityID < b.EntityID {
			return -1
		}

		if a.EntityID > b.EntityID {
			return 1
		}

		return 0
	})

	if offset >= len(matched) {
		return nil, nil
	}

	matched = matched[offset:]

	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	return matched, nil
}

// EntityExists implements [storage.Storage].
func (s *Store) EntityExists(ctx context.Context, entityID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for key := range s.entities {
		if key.entityID == entityID {
			return true, nil
		}
	}

	return false, nil
}

// CreateRelationship implements [storage.Storage]. Safe to call before
// either endpoint exists; an identical existing edge is left alone.
func (s *Store) CreateRelationship(
	ctx context.Context,
	srcType, srcID, relationship, tgtType, tgtID string,
) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := edge{srcType, srcID, relationship, tgtType, tgtID}
	if slices.Contains(s.edges, e) {
		return false, nil
	}

	s.edges = append(s.edges, e)

	return true, nil
}

// RemoveRelationship implements [storage.Storage].
func (s *Store) RemoveRelationship(
	ctx context.Context,
	srcType, srcID, relationship, tgtType, tgtID string,
) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.edges)
	target := edge{srcType, srcID, relationship, tgtType, tgtID}

	s.edges = slices.DeleteFunc(s.edges, func(e edge) bool {
		return e == target
	})

	return len(s.edges) < before, nil
}

// RemoveRelationshipsByType implements [storage.Storage].
func (s *Store) RemoveRelationshipsByType(
	ctx context.Context,
	srcType, srcID, relationship string,
) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.edges)

	s.edges = slices.DeleteFunc(s.edges, func(e edge) bool {
		return e.srcType == srcType && e.srcID == srcID && e.rel == relationship
	})

	return before - len(s.edges), nil
}

// GetEntityRelationships implements [storage.Storage].
func (s *Store) GetEntityRelationships(
	ctx context.Context,
	entityType, entityID string,
) ([]storage.RelationshipData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	grouped := make(map[string][]storage.TargetEntity)

	for _, e := range s.edges {
		if e.srcType != entityType || e.srcID != entityID {
			continue
		}

		grouped[e.rel] = append(grouped[e.rel], storage.TargetEntity{
			EntityType: e.tgtType,
			EntityID:   e.tgtID,
		})
	}

	names := slices.Sorted(maps.Keys(grouped))
	out := make([]storage.RelationshipData, 0, len(grouped))

	for _, name := range names {
		out = append(out, storage.RelationshipData{
			Name:           name,
			TargetEntities: grouped[name],
		})
	}

	return out, nil
}

// GetSystemMetrics implements [storage.Storage].
func (s *Store) GetSystemMetrics(ctx context.Context) (*storage.SystemMetrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	var lastUpdated time.Time

	for key, e := range s.entities {
		counts[key.entityType]++

		if e.UpdatedAt.After(lastUpdated) {
			lastUpdated = e.UpdatedAt
		}
	}

	return &storage.SystemMetrics{
		EntityCounts:       counts,
		TotalEntities:      len(s.entities),
		TotalRelationships: len(s.edges),
		LastUpdated:        lastUpdated,
		BackendInfo: map[string]string{
			"backend": "memory",
		},
	}, nil
}

// ExecuteQuery implements [storage.Storage]. The memory backend has no
// query language; the failure is reported inside the result.
func (s *Store) ExecuteQuery(_ context.Context, _ string, _ map[string]string) storage.QueryResult {
	return storage.QueryResult{
		Success: false,
		Error:   "the memory backend does not support native queries",
	}
}

// DryRunApply implements [storage.Storage].
func (s *Store) DryRunApply(ctx context.Context, records []storage.EntityRecord) (*storage.DryRunResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := &storage.DryRunResult{}

	for _, record := range records {
		if _, ok := s.entities[entityKey{record.EntityType, record.EntityID}]; ok {
			result.WouldUpdate = append(result.WouldUpdate, record.EntityID)
		} else {
			result.WouldCreate = append(result.WouldCreate, record.EntityID)
		}
	}

	result.Summary = fmt.Sprintf("%d to create, %d to update",
		len(result.WouldCreate), len(result.WouldUpdate))

	return result, nil
}

func matchesFilters(metadata, filters map[string]any) bool {
	for key, want := range filters {
		got, ok := metadata[key]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}

	return true
}
