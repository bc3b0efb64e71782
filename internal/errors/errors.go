// Package errors provides API error handling for the optimization service.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// JSON-RPC 2.0 error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	// CodeNotFound and CodeConflict are in the implementation-defined range.
	CodeNotFound = -32004
	CodeConflict = -32009
)

// Error is an error with an HTTP status, a JSON-RPC code and the stack at
// which it was created.
type Error struct {
	// The underlying error, if any
	Err error
	// A human-readable message, safe to return to clients
	Message string
	// The operation that was being performed when the error occurred
	Operation string
	// Status is the HTTP status code
	Status int
	// Code is the JSON-RPC error code
	Code int
	// The stack trace
	Stack []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var builder strings.Builder

	builder.WriteString(e.Message)
	if e.Operation != "" {
		if builder.Len() > 0 {
			builder.WriteString(": ")
		}
		builder.WriteString("operation=")
		builder.WriteString(e.Operation)
	}
	if e.Err != nil {
		if builder.Len() > 0 {
			builder.WriteString(": ")
		}
		builder.WriteString(e.Err.Error())
	}
	return builder.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithOperation adds an operation to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// StackTrace returns the stack trace as a slice of strings.
func (e *Error) StackTrace() []string {
	return e.Stack
}

func newError(status, code int, err error, format string, args ...interface{}) *Error {
	return &Error{
		Err:     err,
		Message: fmt.Sprintf(format, args...),
		Status:  status,
		Code:    code,
		Stack:   getStackTrace(),
	}
}

// BadRequest reports invalid client input.
func BadRequest(format string, args ...interface{}) *Error {
	return newError(http.StatusBadRequest, CodeInvalidParams, nil, format, args...)
}

// NotFound reports a missing resource.
func NotFound(format string, args ...interface{}) *Error {
	return newError(http.StatusNotFound, CodeNotFound, nil, format, args...)
}

// Conflict reports a request that does not fit the resource state.
func Conflict(format string, args ...interface{}) *Error {
	return newError(http.StatusConflict, CodeConflict, nil, format, args...)
}

// Unavailable reports a temporarily exhausted capacity.
func Unavailable(format string, args ...interface{}) *Error {
	return newError(http.StatusServiceUnavailable, CodeInternalError, nil, format, args...)
}

// Internal wraps an unexpected failure. The message is what clients see; err
// is kept for logs.
func Internal(err error, msg string) *Error {
	return newError(http.StatusInternalServerError, CodeInternalError, err, "%s", msg)
}

// WithCode overrides the JSON-RPC code.
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

// From converts any error to an *Error; errors that are not already API
// errors become internal errors.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return Internal(err, "internal server error")
}

// getStackTrace returns the current stack trace as a slice of strings.
func getStackTrace() []string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:]) // skip runtime.Callers, getStackTrace and newError
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	stack := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") && !strings.Contains(frame.File, "internal/errors") {
			stack = append(stack, fmt.Sprintf("%s\n\t%s:%d", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}
	return stack
}
