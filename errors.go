// Package duckdb is a CGO-free binding to the DuckDB analytical database engine.
package duckdb

import (
	"fmt"
)

// ErrorType classifies binding errors.
type ErrorType int

const (
	// ErrGeneric is a generic error.
	ErrGeneric ErrorType = iota
	// ErrLibraryNotFound means no candidate shared library could be loaded.
	ErrLibraryNotFound
	// ErrSymbolNotFound means a required entry point is absent from the loaded library.
	ErrSymbolNotFound
	// ErrOpen is a database or connection open failure.
	ErrOpen
	// ErrPrepare is a statement preparation failure.
	ErrPrepare
	// ErrQuery is a query execution failure.
	ErrQuery
	// ErrTypeMismatch means a column was read at the wrong logical type.
	ErrTypeMismatch
	// ErrRegistration means the engine rejected a function descriptor.
	ErrRegistration
	// ErrExtension means an extension initialization routine failed.
	ErrExtension
	// ErrClosed means a handle was used after release.
	ErrClosed
)

// Error is a DuckDB-specific error type.
type Error struct {
	Type    ErrorType
	Message string
}

// Error returns the error message.
func (e *Error) Error() string {
	return fmt.Sprintf("duckdb: %s", e.Message)
}

// NewError creates a new Error.
func NewError(typ ErrorType, message string) *Error {
	return &Error{
		Type:    typ,
		Message: message,
	}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(typ ErrorType, format string, args ...any) *Error {
	return &Error{
		Type:    typ,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsError checks if an error is of a specific type.
func IsError(err error, typ ErrorType) bool {
	duckErr, ok := err.(*Error)
	if !ok {
		return false
	}
	return duckErr.Type == typ
}

// typeMismatchError names both the requested and the actual logical type.
func typeMismatchError(requested, actual Type) *Error {
	return NewErrorf(ErrTypeMismatch, "requested type %s, column is %s", requested, actual)
}
