package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAnchorNotFound is returned when an id is unknown to both memory and the store.
	ErrAnchorNotFound = errors.New("anchor not found")

	// ErrEdgeNoTarget is returned when an edge without a target is traversed.
	ErrEdgeNoTarget = errors.New("edge has no target")

	// ErrMissingReference is returned when lazy resolution cannot find an id,
	// or the id resolves to the wrong kind of anchor.
	ErrMissingReference = errors.New("missing reference")

	// ErrInvalidOperand is returned when an operation receives the wrong anchor kind.
	ErrInvalidOperand = errors.New("invalid operand")

	// ErrUnregisteredAbility is returned when an ability has no resolved function.
	ErrUnregisteredAbility = errors.New("unregistered ability")

	// ErrUnknownType is returned when no architype is registered under a type name.
	ErrUnknownType = errors.New("unknown architype type")

	// ErrDestroyed is returned when an operation targets a destroyed anchor.
	ErrDestroyed = errors.New("anchor destroyed")

	// ErrTransient marks a retryable store failure, such as an optimistic
	// concurrency conflict. Store adapters wrap it.
	ErrTransient = errors.New("transient store failure")

	// ErrCommitFailed is returned when a commit cannot be completed.
	ErrCommitFailed = errors.New("commit failed")
)

// MissingReferenceError describes a failed lazy resolution.
type MissingReferenceError struct {
	From ID
	Ref  ID
	Want Kind
	Got  Kind
	Err  error
}

func (e *MissingReferenceError) Error() string {
	if e.Got != "" {
		return fmt.Sprintf("%s: %s references %s as %s, found %s", ErrMissingReference, e.From, e.Ref, e.Want, e.Got)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s references %s %s: %v", ErrMissingReference, e.From, e.Want, e.Ref, e.Err)
	}
	return fmt.Sprintf("%s: %s references %s %s", ErrMissingReference, e.From, e.Want, e.Ref)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is.
func (e *MissingReferenceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMissingReference}
	}
	return []error{ErrMissingReference, e.Err}
}
