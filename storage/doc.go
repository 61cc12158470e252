// Package storage defines the backend-agnostic graph storage contract the
// apply engine depends on, together with its configuration, retry policy,
// and the projection of a schema catalog into a backing graph schema.
//
// Implementations live in subpackages: memstore is the in-memory reference
// backend, sqlitestore an embedded SQLite backend. All share the contracts
// documented on [Storage], most importantly the upsert invariant: entities
// are keyed by (entity type, entity id), an existing key is updated in
// place with created_at preserved, and a second node is never created.
package storage
