// Package domain defines core types, interfaces, and errors for the ANCINE dashboard.
package domain

import (
	"errors"
	"fmt"
)

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// SchemaDriftError is returned when a batch does not match the schema a
// columnar file was created with.
type SchemaDriftError struct {
	Path     string
	Expected []string
	Got      []string
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("schema drift writing %s: expected columns %v, got %v", e.Path, e.Expected, e.Got)
}

// NameCollisionError is returned when two JSON fields flatten to the same
// column name, e.g. a literal "a.b" key next to {"a": {"b": ...}}.
type NameCollisionError struct {
	Column   string
	Existing string // earlier spelling when the two differ only in case
}

func (e *NameCollisionError) Error() string {
	if e.Existing != "" && e.Existing != e.Column {
		return fmt.Sprintf("flattened column name collision on %q (same as %q ignoring case)", e.Column, e.Existing)
	}
	return fmt.Sprintf("flattened column name collision on %q", e.Column)
}

// ErrNoSources is returned by the unifier when the data directory holds no
// per-source columnar files.
var ErrNoSources = errors.New("no source parquet files to unify")

// ErrOutputExists is returned when a writer would overwrite an existing artifact.
var ErrOutputExists = errors.New("output already exists")

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
