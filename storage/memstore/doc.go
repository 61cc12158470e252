// Package memstore provides the in-memory reference implementation of the
// graph storage contract. It backs tests and local dry runs.
package memstore
