// Package export projects a schema catalog into a JSON Schema document for
// descriptor files and keeps editor configuration pointed at it.
package export
