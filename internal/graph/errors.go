package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes graph construction failures.
type ErrorCode string

const (
	// ErrCodeUnknownEndpoint indicates an edge referencing a node ID that
	// is not in the node set.
	ErrCodeUnknownEndpoint ErrorCode = "UNKNOWN_ENDPOINT"

	// ErrCodeCycle indicates the edges form a loop, making topological
	// ordering impossible.
	ErrCodeCycle ErrorCode = "CYCLE_DETECTED"

	// ErrCodeDuplicateNode indicates two nodes share an ID.
	ErrCodeDuplicateNode ErrorCode = "DUPLICATE_NODE"

	// ErrCodeInvalidKind indicates an artifact declared an unknown kind.
	ErrCodeInvalidKind ErrorCode = "INVALID_KIND"
)

// Error is a fatal graph construction failure. It is always raised
// before any I/O, so a bad graph aborts the whole cycle cleanly.
type Error struct {
	Code    ErrorCode
	Message string

	// Edge is set for unknown-endpoint errors.
	Edge *Edge

	// Cycle holds the node IDs left unordered when a cycle is detected.
	Cycle []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("%s: %s (unordered: %s)", e.Code, e.Message, strings.Join(e.Cycle, ", "))
	}
	if e.Edge != nil {
		return fmt.Sprintf("%s: %s (%s -> %s)", e.Code, e.Message, e.Edge.From, e.Edge.To)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCycleError reports whether err is a cycle detection failure.
// Uses errors.As to handle wrapped errors.
func IsCycleError(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Code == ErrCodeCycle
}
