package domain

import (
	"errors"
	"fmt"
)

// NotFoundError is returned when a document, layer, or object id does not
// resolve against the cache, the store, or a document's state.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ConflictError is returned when a create collides with an existing id.
type ConflictError struct {
	Entity string
	ID     string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Entity, e.ID)
}

// ArgumentError is returned for structurally invalid requests such as an
// empty undo group or a mutation the layer forest forbids.
type ArgumentError struct {
	Msg string
}

func (e ArgumentError) Error() string { return e.Msg }

// DisposedError is returned by operations against a torn-down resource.
type DisposedError struct {
	Resource string
}

func (e DisposedError) Error() string { return e.Resource + " is disposed" }

// FailureError wraps an unexpected error (or recovered panic) so that it
// never escapes a command apply boundary unclassified.
type FailureError struct {
	Op  string
	Err error
}

func (e FailureError) Error() string { return fmt.Sprintf("%s failed: %v", e.Op, e.Err) }

func (e FailureError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

// IsArgument reports whether err is (or wraps) an ArgumentError.
func IsArgument(err error) bool {
	var target ArgumentError
	return errors.As(err, &target)
}

// IsDisposed reports whether err is (or wraps) a DisposedError.
func IsDisposed(err error) bool {
	var target DisposedError
	return errors.As(err, &target)
}

// IsFailure reports whether err is (or wraps) a FailureError.
func IsFailure(err error) bool {
	var target FailureError
	return errors.As(err, &target)
}
