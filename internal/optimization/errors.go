package optimization

import (
	"errors"
	"fmt"
)

var (
	// ErrInfeasible marks a candidate rejected by bounds or constraints.
	// It never leaves a search loop.
	ErrInfeasible = errors.New("candidate is infeasible")

	// ErrAbort can be wrapped by an objective or constraint error to stop the
	// run instead of counting a failed evaluation.
	ErrAbort = errors.New("optimization aborted")

	// ErrNoObjective is returned when a problem has no objective function.
	ErrNoObjective = errors.New("objective function is required")

	// ErrDimensionMismatch is returned when point and bounds disagree in size.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidConfig is wrapped by every configuration validation error.
	ErrInvalidConfig = errors.New("invalid optimizer configuration")
)

// Error represents an optimization error with context
// that can be wrapped with additional information.
type Error struct {
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the component where the error occurred.
	Component string
	// Err is the underlying error that triggered this one, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	if e.Component != "" && e.Op != "" {
		prefix = fmt.Sprintf("%s: %s", e.Component, e.Op)
	} else if e.Component != "" {
		prefix = e.Component
	} else if e.Op != "" {
		prefix = e.Op
	}

	if e.Err != nil {
		if prefix != "" {
			return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	if prefix != "" {
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent adds component context to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewError creates a new optimization error with the given message.
func NewError(message string) *Error {
	return &Error{
		Message: message,
	}
}

// WrapError wraps an existing error with additional context.
// If err is nil, WrapError returns nil.
func WrapError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: message,
		Err:     err,
	}
}

// WrapErrorf wraps an existing error with additional formatted context.
// If err is nil, WrapErrorf returns nil.
func WrapErrorf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// InvalidConfigf builds a configuration error for the named component.
func InvalidConfigf(component, format string, args ...interface{}) *Error {
	return WrapErrorf(ErrInvalidConfig, format, args...).WithComponent(component)
}

// IsOptimizationError checks if an error is of type Error.
// If the error is an optimization error, it returns the error and true.
// Otherwise, it returns nil and false.
func IsOptimizationError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// EvaluationError records a failed objective or constraint evaluation.
// Search loops count it and carry on.
type EvaluationError struct {
	// Point is a copy of the candidate that failed
	Point []float64
	Err   error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation failed at %v: %v", e.Point, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// IsEvaluationFailure reports whether err is a recoverable evaluation failure.
func IsEvaluationFailure(err error) bool {
	var ee *EvaluationError
	return errors.As(err, &ee)
}
