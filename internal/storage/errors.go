package storage

import "errors"

// Typed error kinds surfaced by every store backend. Callers classify
// failures with errors.Is and map them onto the response error codes.
var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed input that the store rejects
	// before touching the database (bad enum, bad id, empty required field).
	ErrValidation = errors.New("validation error")

	// ErrConflict is returned for unique-constraint violations: duplicate
	// dependency edges, tag rename collisions, duplicate section titles.
	ErrConflict = errors.New("conflict")

	// ErrDatabase wraps failures of the underlying database.
	ErrDatabase = errors.New("database error")
)
