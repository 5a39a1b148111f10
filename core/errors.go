// Package core holds the shared plumbing of the weekly ordering service:
// configuration, errors, logging, HTTP middleware, the authenticated principal
// and the Redis submission lock.
package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is().
// Callers wrap them with an *Error to add the failing operation and entity id.
var (
	// Ordering errors
	ErrUnlinkedStore        = errors.New("store user is not linked to a store")
	ErrNoValidItems         = errors.New("no valid order items found")
	ErrDuplicateWeeklyOrder = errors.New("this store has already submitted an order this week")
	ErrUnavailableProduct   = errors.New("order contains unavailable products")
	ErrSubmissionInProgress = errors.New("an order submission for this store is already in progress")

	// Catalog errors
	ErrNotFound               = errors.New("not found")
	ErrConflictingUniqueValue = errors.New("value already exists")
	ErrForeignKeyInUse        = errors.New("entity is still referenced")
	ErrInvalidInput           = errors.New("invalid input")

	// Identity errors
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access denied")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// Infrastructure errors
	ErrConnectionFailed = errors.New("connection failed")
)

// Error provides structured error information with context.
// It implements the error interface and supports error wrapping.
type Error struct {
	Op      string // Operation that failed (e.g., "ordering.SubmitOrder")
	Kind    string // Error kind (e.g., "order", "catalog", "config")
	ID      string // Optional ID of the entity involved
	Message string // Human-readable message, returned to API clients when set
	Err     error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error
func NewError(op, kind string, err error) *Error {
	return &Error{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// WithMessage sets the client-facing message and returns the error for chaining.
func (e *Error) WithMessage(format string, args ...interface{}) *Error {
	e.Message = fmt.Sprintf(format, args...)
	return e
}

// WithID records the id of the entity involved.
func (e *Error) WithID(id interface{}) *Error {
	e.ID = fmt.Sprint(id)
	return e
}

// PublicMessage returns the message that may be shown to an API client.
// Errors that carry no explicit message fall back to their sentinel text.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	for _, sentinel := range []error{
		ErrUnlinkedStore, ErrNoValidItems, ErrDuplicateWeeklyOrder, ErrUnavailableProduct,
		ErrSubmissionInProgress, ErrNotFound, ErrConflictingUniqueValue, ErrForeignKeyInUse,
		ErrInvalidInput, ErrUnauthenticated, ErrForbidden,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal server error"
}

// IsNotFound checks if an error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error conflicts with existing state
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflictingUniqueValue) ||
		errors.Is(err, ErrDuplicateWeeklyOrder) ||
		errors.Is(err, ErrSubmissionInProgress)
}

// IsValidation checks if an error was caused by caller input
func IsValidation(err error) bool {
	return errors.Is(err, ErrUnlinkedStore) ||
		errors.Is(err, ErrNoValidItems) ||
		errors.Is(err, ErrUnavailableProduct) ||
		errors.Is(err, ErrForeignKeyInUse) ||
		errors.Is(err, ErrInvalidInput)
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}
