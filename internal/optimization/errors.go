package optimization

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig marks setup-time rejections: mismatched dimensions,
	// missing function or area, non-positive precision or worker count.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoProblem is returned by Solve before SetProblem succeeded.
	ErrNoProblem = errors.New("no problem set")

	// ErrSolving is returned when a solver is mutated or solved concurrently.
	ErrSolving = errors.New("solve in progress")
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
	switch {
	case e.Component != "" && e.Op != "":
		prefix = e.Component + ": " + e.Op
	case e.Component != "":
		prefix = e.Component
	case e.Op != "":
		prefix = e.Op
	}

	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if prefix != "" {
		return prefix + ": " + msg
	}
	return msg
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

// InvalidConfigf returns an Error wrapping ErrInvalidConfig.
func InvalidConfigf(format string, args ...interface{}) *Error {
	return WrapError(ErrInvalidConfig, fmt.Sprintf(format, args...))
}
