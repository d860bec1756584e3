// Package failure classifies process-level errors and maps them to exit codes.
package failure

import (
	"errors"
	"fmt"
)

// Exit codes returned by the genomeflow binary.
const (
	ExitSuccess     = 0
	ExitRuntime     = 1 // a stage failed or an unexpected error occurred
	ExitValidation  = 2 // invalid arguments or configuration
	ExitEnvironment = 3 // output directory, log file or similar host problem
)

// Kind identifies the class of a process-level failure.
type Kind int

const (
	KindRuntime Kind = iota
	KindValidation
	KindEnvironment
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindEnvironment:
		return "environment"
	default:
		return "runtime"
	}
}

// Error is an error carrying a Kind.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Message == "" && e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode maps the error kind to a process exit code.
func (e *Error) ExitCode() int {
	switch e.Kind {
	case KindValidation:
		return ExitValidation
	case KindEnvironment:
		return ExitEnvironment
	default:
		return ExitRuntime
	}
}

// Validationf reports invalid user input.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Environmentf reports a host-level problem.
func Environmentf(format string, args ...any) *Error {
	return &Error{Kind: KindEnvironment, Message: fmt.Sprintf(format, args...)}
}

// Validation wraps err as a validation failure.
func Validation(err error, message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Cause: err}
}

// Environment wraps err as an environment failure.
func Environment(err error, message string) *Error {
	return &Error{Kind: KindEnvironment, Message: message, Cause: err}
}

// KindOf returns the kind of the first *Error in err's chain, defaulting to KindRuntime.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindRuntime
}

// ExitCode returns the exit code for err. Nil maps to ExitSuccess.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.ExitCode()
	}
	return ExitRuntime
}
