// Package sqlitestore implements the graph storage contract on an embedded
// SQLite database via modernc.org/sqlite. Entities live in a single table
// keyed by (entity_type, entity_id) with JSON metadata columns; edges live
// in a relationships table with a uniqueness constraint that makes edge
// creation idempotent.
package sqlitestore
