package engine

import (
	"errors"
	"fmt"
	"strings"
)

// RuntimeError represents an error detected while the cache processes a
// mutation or a notification cascade.
//
// Runtime errors include:
//   - Depth exceeded: a notification cascade revisited a key on its own path
//     or grew past the configured depth
//   - Cyclic input: a mutation's data contains itself
//   - Invalid parent: a nested mutation names an owner that does not link it
//
// DEPTH_EXCEEDED is fatal: the cache refuses further writes once it is raised.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// FlowToken identifies the mutation flow that raised the error.
	FlowToken string

	// Key is the key being processed when the error was detected.
	Key string

	// Path is the chain of keys (or field names for cyclic input) that led
	// to the error, outermost first.
	Path []string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeDepthExceeded indicates an unbounded or cyclic notification cascade.
	ErrCodeDepthExceeded RuntimeErrorCode = "DEPTH_EXCEEDED"

	// ErrCodeCyclicInput indicates mutation data that references itself.
	ErrCodeCyclicInput RuntimeErrorCode = "CYCLIC_INPUT"

	// ErrCodeInvalidParent indicates a parent key whose record does not link
	// the mutation target.
	ErrCodeInvalidParent RuntimeErrorCode = "INVALID_PARENT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if len(e.Path) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Path, " -> "))
	}
	if e.FlowToken != "" {
		fmt.Fprintf(&b, " (flow=%s)", e.FlowToken)
	}
	return b.String()
}

// IsDepthError returns true if the error is a notification depth error.
// Uses errors.As to handle wrapped errors.
func IsDepthError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDepthExceeded
	}
	return false
}

// IsCyclicInputError returns true if the error reports self-referencing input.
// Uses errors.As to handle wrapped errors.
func IsCyclicInputError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeCyclicInput
	}
	return false
}

// IsInvalidParentError returns true if the error reports a parent that does
// not reference the mutation target.
func IsInvalidParentError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInvalidParent
	}
	return false
}

// NewDepthError creates a RuntimeError for a runaway notification cascade.
func NewDepthError(flowToken, key string, path []string, maxDepth int) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeDepthExceeded,
		Message:   fmt.Sprintf("notification cascade exceeded depth %d or revisited %s", maxDepth, key),
		FlowToken: flowToken,
		Key:       key,
		Path:      append(append([]string(nil), path...), key),
	}
}

// NewCyclicInputError creates a RuntimeError for data that contains itself.
func NewCyclicInputError(flowToken, key string, path []string) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeCyclicInput,
		Message:   "mutation data references itself",
		FlowToken: flowToken,
		Key:       key,
		Path:      append([]string(nil), path...),
	}
}

// NewInvalidParentError creates a RuntimeError for a parent that is absent or
// whose record holds no link to key.
func NewInvalidParentError(flowToken, key, parent string) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeInvalidParent,
		Message:   fmt.Sprintf("parent %s does not reference %s", parent, key),
		FlowToken: flowToken,
		Key:       key,
		Path:      []string{parent, key},
	}
}
