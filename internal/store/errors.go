package store

import "errors"

var (
	// ErrUnknownResource is returned when a table name resolves to nothing.
	ErrUnknownResource = errors.New("store: unknown resource")
	// ErrInvalidIdentifier is returned when a raw id does not parse for the table.
	ErrInvalidIdentifier = errors.New("store: invalid identifier")
	// ErrEmptyDocument is returned when a document was expected but absent.
	ErrEmptyDocument = errors.New("store: empty document")
	// ErrNotFound is returned when the referenced record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned on unique-constraint violations.
	ErrConflict = errors.New("store: conflict")
	// ErrStorageUnavailable wraps transport failures; the caller decides about retries.
	ErrStorageUnavailable = errors.New("store: storage unavailable")
)
