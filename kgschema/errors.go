package kgschema

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the loader.
var (
	// ErrLoad indicates an I/O failure reading the schema directory.
	ErrLoad = errors.New("schema load")
	// ErrParse indicates a schema file is not valid YAML.
	ErrParse = errors.New("schema parse")
	// ErrSchemaFile indicates a schema file is missing a required key.
	ErrSchemaFile = errors.New("invalid schema file")
	// ErrInheritance indicates an extends target that does not exist.
	ErrInheritance = errors.New("schema inheritance")
	// ErrValidation indicates the loaded catalog is inconsistent.
	ErrValidation = errors.New("schema validation")
)

// ValidationError aggregates all catalog consistency problems found in one
// load. It unwraps to [ErrValidation].
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %d problem(s): %s",
		ErrValidation, len(e.Problems), strings.Join(e.Problems, "; "))
}

// Unwrap implements error unwrapping to [ErrValidation].
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
