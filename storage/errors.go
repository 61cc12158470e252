package storage

import "errors"

// Sentinel errors for the storage contract. Backends wrap their native
// failures in exactly one of these.
var (
	// ErrConnection indicates the backend could not be reached or opened.
	ErrConnection = errors.New("storage connection")
	// ErrOperation indicates a write or schema operation failed.
	ErrOperation = errors.New("storage operation")
	// ErrQuery indicates a read failed.
	ErrQuery = errors.New("storage query")
	// ErrValidation indicates the backend rejected the data itself.
	ErrValidation = errors.New("storage validation")
	// ErrConfiguration indicates an invalid storage configuration.
	ErrConfiguration = errors.New("storage configuration")
)
