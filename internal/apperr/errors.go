// Package apperr defines the error taxonomy shared across the application.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested record or template is absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an optimistic-concurrency check fails.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyExists is returned when creating a record whose id is taken.
	ErrAlreadyExists = errors.New("already exists")
)

// ParseError reports a malformed template document. It is fatal to loading
// that one template; other templates and categories remain usable.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("template: line %d: %s", e.Line, e.Msg)
	}
	return "template: " + e.Msg
}

// DecodeError reports a malformed record metadata header. Individual field
// decode failures never produce a DecodeError; they fall back to absent.
type DecodeError struct {
	Msg string
}

func (e *DecodeError) Error() string {
	return "record: " + e.Msg
}

// InvalidWorldError reports a world directory missing required layout parts.
type InvalidWorldError struct {
	Root    string
	Missing string
}

func (e *InvalidWorldError) Error() string {
	return fmt.Sprintf("world %s: missing %s", e.Root, e.Missing)
}
