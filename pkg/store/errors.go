package store

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	ErrNodeNotFound         = errors.New("node not found")
	ErrDuplicateID          = errors.New("duplicate id")
	ErrStoreClosed          = errors.New("store is closed")
	ErrCorruptSnapshot      = errors.New("corrupt snapshot")
	ErrUnknownToken         = errors.New("unknown token")
	ErrInvalidPropertyRef   = errors.New("invalid property reference")
	ErrUnsupportedValueType = errors.New("unsupported value type")
)

// StoreError provides structured error information for store operations.
type StoreError struct {
	Op      string // Operation that failed (e.g., "AddRelationship", "OpenSnapshot")
	Entity  string // Entity type (e.g., "node", "relationship", "property")
	ID      uint64 // Entity ID (if applicable)
	Cause   error  // Underlying error
	Context string // Additional context
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	switch {
	case e.Entity != "" && e.Context != "":
		return fmt.Sprintf("%s %s %d (%s): %v", e.Op, e.Entity, e.ID, e.Context, e.Cause)
	case e.Entity != "":
		return fmt.Sprintf("%s %s %d: %v", e.Op, e.Entity, e.ID, e.Cause)
	case e.Context != "":
		return fmt.Sprintf("%s (%s): %v", e.Op, e.Context, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// ErrorBuilder provides a fluent interface for building StoreErrors.
type ErrorBuilder struct {
	err StoreError
}

// NewError creates a new error builder with the given operation.
func NewError(op string) *ErrorBuilder {
	return &ErrorBuilder{err: StoreError{Op: op}}
}

// Node sets the entity to "node" with the given ID.
func (b *ErrorBuilder) Node(id uint64) *ErrorBuilder {
	b.err.Entity = "node"
	b.err.ID = id
	return b
}

// Relationship sets the entity to "relationship" with the given ID.
func (b *ErrorBuilder) Relationship(id uint64) *ErrorBuilder {
	b.err.Entity = "relationship"
	b.err.ID = id
	return b
}

// Context adds free-form context.
func (b *ErrorBuilder) Context(format string, args ...any) *ErrorBuilder {
	b.err.Context = fmt.Sprintf(format, args...)
	return b
}

// Cause sets the underlying error and returns the built error.
func (b *ErrorBuilder) Cause(err error) error {
	b.err.Cause = err
	e := b.err
	return &e
}
