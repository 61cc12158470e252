// Package kgschema loads and models the entity schema catalog.
//
// Schemas are YAML files in a versioned directory tree:
//
//	_base/<base_name>/<semver>.yaml
//	<entity_type>/<semver>.yaml
//
// For each schema the file with the highest semver name wins. Entity
// schemas may extend a base schema via the extends key: the base's readonly
// metadata and validation rules are deep-merged into the entity's (entity
// values win on conflict), and the base's governance, deletion policy, and
// allow-custom-fields settings apply where the entity leaves them unset.
//
// After every schema is built, the catalog as a whole is checked for
// consistency: relationship targets must name known entity types, field
// names must be unique per schema, no name may be both a field and a
// relationship, and every schema must declare a backing type. Any problem
// aborts the load; a catalog is either fully consistent or absent.
//
// A [Loader] publishes catalogs atomically. Callers holding a *Catalog keep
// a consistent snapshot across reloads; [Loader.Watch] reloads on directory
// changes and keeps the previous catalog when a reload fails.
package kgschema
