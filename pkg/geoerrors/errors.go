// Package geoerrors provides structured error handling for geovec with
// error categorization, key-value context and captured stack traces.
//
// # Basic Usage
//
//	// Create a new error
//	err := geoerrors.New(geoerrors.ErrorTypeInvalidArgument, "no floating point leaf").
//	    WithDetail("field", "geom")
//
//	// Wrap an underlying error
//	if err := client.Scan(ctx, r); err != nil {
//	    return geoerrors.Wrap(err, geoerrors.ErrorTypeConnection, "scan failed").
//	        WithDetail("table", table)
//	}
//
// # Error Types
//
// Types drive handling decisions: connection and timeout errors raised by a
// store platform are retryable, everything raised while encoding features or
// reading a columnar schema is not.
//
// Error instances are not safe for concurrent modification; finish adding
// details before sharing them across goroutines.
package geoerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error.
type ErrorType string

const (
	// ErrorTypeInternal represents internal errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeInvalidArgument represents arguments a caller should not have passed
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
	// ErrorTypeInvalidSchema represents malformed feature type definitions
	ErrorTypeInvalidSchema ErrorType = "invalid_schema"
	// ErrorTypeData represents values that do not fit their attribute type
	ErrorTypeData ErrorType = "data"
	// ErrorTypeNotFound represents missing schemas or rows
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConflict represents conflicting definitions
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeCapability represents unsupported operations or index versions
	ErrorTypeCapability ErrorType = "capability"
	// ErrorTypeConnection represents store connectivity errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeTimeout represents store timeouts
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeFile represents file and object storage errors
	ErrorTypeFile ErrorType = "file"
)

// Error represents a structured error with context.
//
// Fields:
//   - Type: categorizes the error for handling strategies
//   - Message: human-readable description
//   - Cause: the underlying error, if any
//   - Details: key-value pairs providing additional context
//   - Stack: call stack at the point of creation
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack.
type StackFrame struct {
	Function string // Fully qualified function name
	File     string // Source file path
	Line     int    // Line number in source file
}

// Error implements the error interface. Details are appended in a stable
// form so that messages identify the offending field or table.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if field, ok := e.Details["field"]; ok {
		msg = fmt.Sprintf("%s (field %v)", msg, field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error. Calls can be chained.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message, capturing the
// call stack at the point of creation.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf is New with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context. If err is already a
// structured Error its stack is kept. Returns nil if err is nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsRetryable returns true for connection and timeout errors.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeConnection, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// IsType checks if the error, or any error it wraps, is of the given type.
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}
	return false
}

// captureStack captures up to 32 frames, skipping the given number of frames.
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
