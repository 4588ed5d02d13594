// Package errors provides structured error handling for subsample with
// error categorization, key-value context, and stack traces.
//
// Every failure the tool can surface belongs to one of a small set of
// categories that map directly onto process exit diagnostics:
//
//   - ErrorTypeConfig: invalid parameters, detected before any I/O
//   - ErrorTypePool: a requested row or column count exceeds the pool
//   - ErrorTypeResource: the open-file budget cannot fit even one unit
//   - ErrorTypeState: persisted state inconsistent with current metadata
//   - ErrorTypeIO: read/write failure
//   - ErrorTypeFormat: malformed source file
//
// # Basic Usage
//
//	// Create a new error
//	err := errors.New(errors.ErrorTypeConfig, "case column out of range")
//
//	// Add context
//	err = err.WithDetail("case_column", 12).
//	         WithDetail("column_count", 10)
//
//	// Wrap existing errors
//	if err := f.Close(); err != nil {
//	    return errors.Wrap(err, errors.ErrorTypeIO, "closing training set").
//	        WithDetail("path", path)
//	}
//
// There is no retryability concept: every error is final and surfaced
// synchronously to the caller with enough context to correct and
// re-invoke.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType categorizes an error for diagnostics and exit handling.
type ErrorType string

const (
	// ErrorTypeInternal represents internal logic errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeConfig represents invalid configuration parameters
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypePool represents a sampling pool that is too small for a request
	ErrorTypePool ErrorType = "pool"
	// ErrorTypeResource represents an insufficient open-file budget
	ErrorTypeResource ErrorType = "resource"
	// ErrorTypeState represents persisted state inconsistent with the source
	ErrorTypeState ErrorType = "state"
	// ErrorTypeIO represents file read/write failures
	ErrorTypeIO ErrorType = "io"
	// ErrorTypeFormat represents a malformed source file
	ErrorTypeFormat ErrorType = "format"
)

// Error is a structured error with a category, optional cause,
// key-value details, and the call stack captured at creation.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame is a single frame of the call stack at error creation.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a key-value detail and returns the error for chaining.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an error of the given type, capturing the call stack.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates an error of the given type with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with a category and message, preserving
// the original as the cause. If the cause is already a structured Error
// its stack is kept. Returns nil for a nil input.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existing.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType reports whether err is a structured Error of the given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the category of err, or ErrorTypeInternal for errors
// that are not structured Errors.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}

func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
