// Package validate runs descriptor documents through a five-layer
// validation pipeline.
//
// The layers run in order, each depending on the guarantees of the one
// before it:
//
//  1. Syntax — YAML parses, with line/column on failure.
//  2. Structure — top-level fields present, schema version supported,
//     namespace well-formed, entity section a mapping. Missing fields and
//     unsupported versions terminate the run after all structure
//     diagnostics are collected.
//  3. Field format — per-schema compiled validators over every entity
//     body. A clean layer materializes the validated [Descriptor] model.
//  4. Business logic — dependency reference grammar, entity-name
//     uniqueness, owner-domain consistency (the one warning).
//  5. Reference existence — internal references resolve against live
//     backend state, via a [ReferenceChecker]. Skipped without one, and
//     by [Pipeline.ValidateSync].
//
// Findings are [Diagnostic] values accumulated in a [Result]; errors
// returned by [Pipeline.Validate] report infrastructure failures only.
// Strict mode promotes warnings to errors.
//
// Per-schema validators are immutable check programs compiled and cached
// by a [Factory], keyed by entity type and schema version.
package validate
