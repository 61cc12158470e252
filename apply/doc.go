// Package apply turns validated descriptors into graph writes. The engine
// runs the full validation pipeline, extracts entity records, upserts them
// through a storage backend, materializes external dependencies as package
// and version entities, and replaces each declared relationship's edge set
// with the descriptor's target list.
package apply
