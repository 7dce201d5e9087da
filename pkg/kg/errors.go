package kg

import (
	"errors"
	"fmt"
)

var (
	// ErrFrozen is returned by mutation methods after Freeze was called.
	ErrFrozen = errors.New("knowledge graph is frozen")

	// ErrReservedPredicate guards the predicate that carries entity kinds.
	ErrReservedPredicate = errors.New("the type predicate is reserved for entity kinds")
)

// DuplicateEntityError reports an attempt to register an existing entity
// id under a different kind.
type DuplicateEntityError struct {
	ID       string
	Kind     string
	Existing string
}

func (e *DuplicateEntityError) Error() string {
	return fmt.Sprintf("entity %q already registered with kind %q, cannot re-register as %q", e.ID, e.Existing, e.Kind)
}

// UnknownEntityError reports a relation referencing an entity id that was
// never registered.
type UnknownEntityError struct {
	ID string
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("unknown entity %q", e.ID)
}
