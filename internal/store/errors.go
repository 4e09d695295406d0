package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g. an item with the same derived ID).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInvalidTransition is returned when a status change is requested
	// from a status that does not allow it (e.g. marking a Done item as
	// Processing). Under the single-writer model this indicates a bug in
	// the caller, not a recoverable runtime condition.
	ErrInvalidTransition = errors.New("invalid status transition")

	// Entity-specific "not found" errors

	// ErrItemNotFound indicates that the requested item does not exist in the store.
	ErrItemNotFound = fmt.Errorf("%w: item", ErrNotFound)

	// ErrRunNotFound indicates that the requested pipeline run does not exist in the store.
	ErrRunNotFound = fmt.Errorf("%w: pipeline run", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error,
// including the entity-specific variants that wrap ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
