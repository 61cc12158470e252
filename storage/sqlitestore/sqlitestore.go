package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // Registers the "sqlite" database/sql driver.

	"go.jacobcolvin.com/kgraph/kgschema"
	"go.jacobcolvin.com/kgraph/storage"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS entities (
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	metadata    TEXT NOT NULL DEFAULT '{}',
	system      TEXT NOT NULL DEFAULT '{}',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	PRIMARY KEY (entity_type, entity_id)
);
CREATE INDEX IF NOT EXISTS idx_entities_id ON entities (entity_id);

CREATE TABLE IF NOT EXISTS relationships (
	src_type     TEXT NOT NULL,
	src_id       TEXT NOT NULL,
	relationship TEXT NOT NULL,
	tgt_type     TEXT NOT NULL,
	tgt_id       TEXT NOT NULL,
	UNIQUE (src_type, src_id, relationship, tgt_type, tgt_id)
);
CREATE INDEX IF NOT EXISTS idx_relationships_src ON relationships (src_type, src_id, relationship);

CREATE TABLE IF NOT EXISTS backing_predicates (
	name  TEXT PRIMARY KEY,
	type  TEXT NOT NULL,
	idx   TEXT NOT NULL DEFAULT ''
);
`

// Store is an embedded SQLite implementation of [storage.Storage] backed by
// modernc.org/sqlite, so it needs no cgo and no external server.
type Store struct {
	logger   *slog.Logger
	db       *sql.DB
	endpoint string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a store for the given database path. ":memory:" gives a
// throwaway database. The connection is opened by [Store.Connect].
func NewStore(endpoint string, opts ...Option) *Store {
	s := &Store{
		logger:   slog.Default(),
		endpoint: endpoint,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Connect implements [storage.Storage]. It opens the database and applies
// the table schema.
func (s *Store) Connect(ctx context.Context) error {
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.endpoint)
	if err != nil {
		return fmt.Errorf("%w: open %q: %w", storage.ErrConnection, s.endpoint, err)
	}

	// A single writer avoids SQLITE_BUSY under concurrent applies.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return fmt.Errorf("%w: ping %q: %w", storage.ErrConnection, s.endpoint, err)
	}

	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		_ = db.Close()

		return fmt.Errorf("%w: initialize schema: %w", storage.ErrConnection, err)
	}

	s.db = db

	return nil
}

// Disconnect implements [storage.Storage].
func (s *Store) Disconnect(_ context.Context) {
	if s.db == nil {
		return
	}

	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing sqlite database", slog.Any("error", err))
	}

	s.db = nil
}

// HealthCheck implements [storage.Storage].
func (s *Store) HealthCheck(ctx context.Context) storage.HealthStatus {
	start := time.Now()

	status := storage.HealthStatus{
		Info: map[string]string{
			"backend":  "sqlite",
			"endpoint": s.endpoint,
		},
	}

	if s.db == nil {
		status.Status = storage.Disconnected
		status.Message = "not connected"
		status.ResponseTime = time.Since(start)

		return status
	}

	if err := s.db.PingContext(ctx); err != nil {
		status.Status = storage.Unhealthy
		status.Message = err.Error()
	} else {
		status.Status = storage.Healthy
	}

	status.ResponseTime = time.Since(start)

	return status
}

// LoadSchemas implements [storage.Storage]. The catalog's backing-schema
// projection is persisted so the predicate declarations survive restarts
// and can be inspected with plain SQL.
func (s *Store) LoadSchemas(ctx context.Context, dir string) (*kgschema.Catalog, error) {
	catalog, err := kgschema.NewLoader(dir, kgschema.WithLogger(s.logger)).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrOperation, err)
	}

	backing := storage.Project(catalog)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", storage.ErrOperation, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range backing.Predicates {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO backing_predicates (name, type, idx) VALUES (?, ?, ?)
			ON CONFLICT (name) DO UPDATE SET type = excluded.type, idx = excluded.idx`,
			p.Name, p.Type, p.Index)
		if err != nil {
			return nil, fmt.Errorf("%w: store predicate %q: %w", storage.ErrOperation, p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %w", storage.ErrOperation, err)
	}

	s.logger.Debug("persisted backing schema",
		slog.Int("predicates", len(backing.Predicates)),
		slog.Int("types", len(backing.Types)),
	)

	return catalog, nil
}

// StoreEntity implements [storage.Storage]. Upsert keyed by (type, id):
// created_at is written once, updated_at on every call.
func (s *Store) StoreEntity(
	ctx context.Context,
	entityType, entityID string,
	metadata, system map[string]any,
) (string, error) {
	metadataJSON, err := encodeJSON(metadata)
	if err != nil {
		return "", fmt.Errorf("%w: encode metadata for %q: %w", storage.ErrOperation, entityID, err)
	}

	systemJSON, err := encodeJSON(system)
	if err != nil {
		return "", fmt.Errorf("%w: encode system metadata for %q: %w", storage.ErrOperation, entityID, err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (entity_type, entity_id, metadata, system, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			metadata   = excluded.metadata,
			system     = excluded.system,
			updated_at = excluded.updated_at`,
		entityType, entityID, metadataJSON, systemJSON, now, now)
	if err != nil {
		return "", fmt.Errorf("%w: store %s %q: %w", storage.ErrOperation, entityType, entityID, err)
	}

	return entityID, nil
}

// GetEntity implements [storage.Storage].
func (s *Store) GetEntity(ctx context.Context, entityType, entityID string) (*storage.EntityData, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT metadata, system, created_at, updated_at
		FROM entities WHERE entity_type = ? AND entity_id = ?`,
		entityType, entityID)

	var metadataJSON, systemJSON, createdAt, updatedAt string

	err := row.Scan(&metadataJSON, &systemJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: get %s %q: %w", storage.ErrOperation, entityType, entityID, err)
	}

	e := &storage.EntityData{
		EntityType: entityType,
		EntityID:   entityID,
	}

	if e.Metadata, err = decodeJSON(metadataJSON); err != nil {
		return nil, fmt.Errorf("%w: decode metadata for %q: %w", storage.ErrOperation, entityID, err)
	}

	if e.System, err = decodeJSON(systemJSON); err != nil {
		return nil, fmt.Errorf("%w: decode system metadata for %q: %w", storage.ErrOperation, entityID, err)
	}

	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("%w: parse created_at for %q: %w", storage.ErrOperation, entityID, err)
	}

	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("%w: parse updated_at for %q: %w", storage.ErrOperation, entityID, err)
	}

	return e, nil
}

// DeleteEntity implements [storage.Storage].
func (s *Store) DeleteEntity(ctx context.Context, entityType, entityID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: begin: %w", storage.ErrOperation, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM entities WHERE entity_type = ? AND entity_id = ?`,
		entityType, entityID)
	if err != nil {
		return false, fmt.Errorf("%w: delete %s %q: %w", storage.ErrOperation, entityType, entityID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: delete %s %q: %w", storage.ErrOperation, entityType, entityID, err)
	}

	if affected == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM relationships
		WHERE (src_type = ? AND src_id = ?) OR (tgt_type = ? AND tgt_id = ?)`,
		entityType, entityID, entityType, entityID)
	if err != nil {
		return false, fmt.Errorf("%w: delete edges for %q: %w", storage.ErrOperation, entityID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit: %w", storage.ErrOperation, err)
	}

	return true, nil
}

// ListEntities implements [storage.Storage]. Filters are applied in-process
// against the decoded metadata, so they match values of any JSON type.
func (s *Store) ListEntities(
	ctx context.Context,
	entityType string,
	filters map[string]any,
	limit, offset int,
) ([]storage.EntityData, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, metadata, system, created_at, updated_at
		FROM entities WHERE entity_type = ? ORDER BY entity_id`,
		entityType)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", storage.ErrOperation, entityType, err)
	}
	defer func() { _ = rows.Close() }()

	var matched []storage.EntityData

	for rows.Next() {
		var (
			e                    storage.EntityData
			metadataJSON         string
			systemJSON           string
			createdAt, updatedAt string
		)

		if err := rows.Scan(&e.EntityID, &metadataJSON, &systemJSON, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("%w: list %s: %w", storage.ErrOperation, entityType, err)
		}

		e.EntityType = entityType

		if e.Metadata, err = decodeJSON(metadataJSON); err != nil {
			return nil, fmt.Errorf("%w: decode metadata for %q: %w", storage.ErrOperation, e.EntityID, err)
		}

		if !matchesFilters(e.Metadata, filters) {
			continue
		}

		if e.System, err = decodeJSON(systemJSON); err != nil {
			return nil, fmt.Errorf("%w: decode system metadata for %q: %w", storage.ErrOperation, e.EntityID, err)
		}

		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

		matched = append(matched, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", storage.ErrOperation, entityType, err)
	}

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
	var one int

	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM entities WHERE entity_id = ? LIMIT 1`, entityID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("%w: exists %q: %w", storage.ErrOperation, entityID, err)
	}

	return true, nil
}

// CreateRelationship implements [storage.Storage]. Safe before either
// endpoint exists; identical edges are not duplicated.
func (s *Store) CreateRelationship(
	ctx context.Context,
	srcType, srcID, relationship, tgtType, tgtID string,
) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO relationships (src_type, src_id, relationship, tgt_type, tgt_id)
		VALUES (?, ?, ?, ?, ?)`,
		srcType, srcID, relationship, tgtType, tgtID)
	if err != nil {
		return false, fmt.Errorf("%w: create %s edge %q -> %q: %w",
			storage.ErrOperation, relationship, srcID, tgtID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: create %s edge %q -> %q: %w",
			storage.ErrOperation, relationship, srcID, tgtID, err)
	}

	return affected > 0, nil
}

// RemoveRelationship implements [storage.Storage].
func (s *Store) RemoveRelationship(
	ctx context.Context,
	srcType, srcID, relationship, tgtType, tgtID string,
) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM relationships
		WHERE src_type = ? AND src_id = ? AND relationship = ? AND tgt_type = ? AND tgt_id = ?`,
		srcType, srcID, relationship, tgtType, tgtID)
	if err != nil {
		return false, fmt.Errorf("%w: remove %s edge %q -> %q: %w",
			storage.ErrOperation, relationship, srcID, tgtID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: remove %s edge %q -> %q: %w",
			storage.ErrOperation, relationship, srcID, tgtID, err)
	}

	return affected > 0, nil
}

// RemoveRelationshipsByType implements [storage.Storage].
func (s *Store) RemoveRelationshipsByType(
	ctx context.Context,
	srcType, srcID, relationship string,
) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM relationships
		WHERE src_type = ? AND src_id = ? AND relationship = ?`,
		srcType, srcID, relationship)
	if err != nil {
		return 0, fmt.Errorf("%w: remove %s edges from %q: %w",
			storage.ErrOperation, relationship, srcID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: remove %s edges from %q: %w",
			storage.ErrOperation, relationship, srcID, err)
	}

	return int(affected), nil
}

// GetEntityRelationships implements [storage.Storage].
func (s *Store) GetEntityRelationships(
	ctx context.Context,
	entityType, entityID string,
) ([]storage.RelationshipData, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT relationship, tgt_type, tgt_id
		FROM relationships WHERE src_type = ? AND src_id = ?
		ORDER BY relationship, tgt_id`,
		entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("%w: relationships of %q: %w", storage.ErrOperation, entityID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []storage.RelationshipData

	for rows.Next() {
		var rel string
		var target storage.TargetEntity

		if err := rows.Scan(&rel, &target.EntityType, &target.EntityID); err != nil {
			return nil, fmt.Errorf("%w: relationships of %q: %w", storage.ErrOperation, entityID, err)
		}

		if len(out) == 0 || out[len(out)-1].Name != rel {
			out = append(out, storage.RelationshipData{Name: rel})
		}

		last := &out[len(out)-1]
		last.TargetEntities = append(last.TargetEntities, target)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: relationships of %q: %w", storage.ErrOperation, entityID, err)
	}

	return out, nil
}

// GetSystemMetrics implements [storage.Storage].
func (s *Store) GetSystemMetrics(ctx context.Context) (*storage.SystemMetrics, error) {
	metrics := &storage.SystemMetrics{
		EntityCounts: make(map[string]int),
		BackendInfo: map[string]string{
			"backend":  "sqlite",
			"endpoint": s.endpoint,
		},
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_type, COUNT(*) FROM entities GROUP BY entity_type`)
	if err != nil {
		return nil, fmt.Errorf("%w: entity counts: %w", storage.ErrOperation, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var entityType string
		var count int

		if err := rows.Scan(&entityType, &count); err != nil {
			return nil, fmt.Errorf("%w: entity counts: %w", storage.ErrOperation, err)
		}

		metrics.EntityCounts[entityType] = count
		metrics.TotalEntities += count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: entity counts: %w", storage.ErrOperation, err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM relationships`).Scan(&metrics.TotalRelationships)
	if err != nil {
		return nil, fmt.Errorf("%w: relationship count: %w", storage.ErrOperation, err)
	}

	var lastUpdated sql.NullString

	err = s.db.QueryRowContext(ctx,
		`SELECT MAX(updated_at) FROM entities`).Scan(&lastUpdated)
	if err != nil {
		return nil, fmt.Errorf("%w: last update: %w", storage.ErrOperation, err)
	}

	if lastUpdated.Valid {
		metrics.LastUpdated, _ = time.Parse(time.RFC3339Nano, lastUpdated.String)
	}

	return metrics, nil
}

// ExecuteQuery implements [storage.Storage]. The query is raw SQL against
// the entities and relationships tables; failures are reported inside the
// result, never raised.
func (s *Store) ExecuteQuery(ctx context.Context, query string, variables map[string]string) storage.QueryResult {
	start := time.Now()

	args := make([]any, 0, len(variables))
	for _, v := range variables {
		args = append(args, v)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.QueryResult{
			Error:    err.Error(),
			Duration: time.Since(start),
		}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return storage.QueryResult{
			Error:    err.Error(),
			Duration: time.Since(start),
		}
	}

	var data []map[string]any

	for rows.Next() {
		values := make([]any, len(columns))
		scan := make([]any, len(columns))

		for i := range values {
			scan[i] = &values[i]
		}

		if err := rows.Scan(scan...); err != nil {
			return storage.QueryResult{
				Error:    err.Error(),
				Duration: time.Since(start),
			}
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}

		data = append(data, row)
	}

	if err := rows.Err(); err != nil {
		return storage.QueryResult{
			Error:    err.Error(),
			Duration: time.Since(start),
		}
	}

	return storage.QueryResult{
		Data:     data,
		Duration: time.Since(start),
		Success:  true,
	}
}

// DryRunApply implements [storage.Storage].
func (s *Store) DryRunApply(ctx context.Context, records []storage.EntityRecord) (*storage.DryRunResult, error) {
	result := &storage.DryRunResult{}

	for _, record := range records {
		existing, err := s.GetEntity(ctx, record.EntityType, record.EntityID)
		if err != nil {
			return nil, err
		}

		if existing != nil {
			result.WouldUpdate = append(result.WouldUpdate, record.EntityID)
		} else {
			result.WouldCreate = append(result.WouldCreate, record.EntityID)
		}
	}

	result.Summary = fmt.Sprintf("%d to create, %d to update",
		len(result.WouldCreate), len(result.WouldUpdate))

	return result, nil
}

func encodeJSON(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}

	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func decodeJSON(s string) (map[string]any, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}

	return m, nil
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
