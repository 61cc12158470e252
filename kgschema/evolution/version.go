package evolution

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Sentinel errors for version increment validation.
var (
	// ErrVersionSyntax indicates a version string is not valid semver.
	ErrVersionSyntax = errors.New("invalid version")
	// ErrVersionIncrement indicates a disallowed version move.
	ErrVersionIncrement = errors.New("invalid version increment")
)

// ValidateIncrement checks the move from oldVersion to newVersion under the
// additive-only policy:
//
//   - patch increments are always allowed
//   - minor increments are allowed for additive change sets
//   - major increments are allowed only when the change set is not
//     additive-only (breaking changes are what major versions are for)
//   - backward and zero moves are rejected
func ValidateIncrement(oldVersion, newVersion string, additiveOnly bool) error {
	oldV, err := canonical(oldVersion)
	if err != nil {
		return err
	}

	newV, err := canonical(newVersion)
	if err != nil {
		return err
	}

	if semver.Compare(newV, oldV) <= 0 {
		return fmt.Errorf("%w: %s -> %s is not an increase",
			ErrVersionIncrement, oldVersion, newVersion)
	}

	switch {
	case semver.Major(newV) != semver.Major(oldV):
		if additiveOnly {
			return fmt.Errorf("%w: %s -> %s: major increment is reserved for breaking changes",
				ErrVersionIncrement, oldVersion, newVersion)
		}

	case semver.MajorMinor(newV) != semver.MajorMinor(oldV):
		if !additiveOnly {
			return fmt.Errorf("%w: %s -> %s: non-additive changes require a major increment",
				ErrVersionIncrement, oldVersion, newVersion)
		}

	default:
		// Patch increment, always fine.
	}

	return nil
}

func canonical(version string) (string, error) {
	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}

	if !semver.IsValid(v) {
		return "", fmt.Errorf("%w: %q", ErrVersionSyntax, version)
	}

	return v, nil
}
