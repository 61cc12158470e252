// Package depref parses and builds dependency reference URIs.
//
// Two reference schemes exist. External references name a package version
// in a public ecosystem:
//
//	external://<ecosystem>/<package>/<version>
//
// The package segment may contain slashes (e.g. github.com/spf13/cobra), so
// the version is always the final segment. Internal references name an
// entity managed in the graph:
//
//	internal://<namespace>/<entity-name>
//
// Parsing is purely syntactic. [ParseExternal] accepts every known
// ecosystem; callers that enforce a narrower supported set do so on the
// parsed result.
package depref
