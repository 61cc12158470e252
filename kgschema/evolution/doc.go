// Package evolution enforces additive-only schema evolution.
//
// [Detect] diffs two catalogs into a [ChangeSet]; [ValidateAdditive] maps
// the change set to named policy violations. Removing fields,
// relationships, or entity types, changing a field's type, promoting an
// optional field to required, and shrinking a relationship's target set are
// all forbidden — schemas grow, they never shrink. Retirement happens
// through deprecation metadata ([ActiveDeprecations], [SunsetReport]) and
// version projection ([Project]) rather than deletion.
//
// [ValidateIncrement] checks that a version move matches the nature of the
// change set: patch always, minor for additive changes, major only for
// breaking ones.
package evolution
