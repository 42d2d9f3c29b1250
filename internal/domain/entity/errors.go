package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level failure conditions.
var (
	// ErrInvalidEntity indicates an entity failed validation.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrNoProviderAvailable indicates provider selection found no provider
	// eligible for a call. At the item level this is treated as a retryable
	// condition; at the batch level it is a reportable degraded state.
	ErrNoProviderAvailable = errors.New("no provider available")
)

// PersistenceError indicates a failure reading or writing the durable retry
// queue state. Losing durability silently is a correctness bug, so these
// errors are fatal to the mutating operation that triggered them and must be
// surfaced to the caller.
type PersistenceError struct {
	Op   string // "load", "save", "cleanup"
	Path string
	Err  error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("retry queue %s failed for %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}
