package util

import (
	"errors"
	"fmt"
	"os"
)

// Process exit codes
const (
	// ExitOK indicates successful execution
	ExitOK = 0

	// ExitPolicyFail indicates findings above a requested threshold
	// (docker scan --fail-on)
	ExitPolicyFail = 1

	// ExitInvalidInput indicates validation errors or invalid parameters
	ExitInvalidInput = 2

	// ExitRuntimeError indicates I/O errors, API failures, or runtime issues
	ExitRuntimeError = 3
)

// InputError marks an error caused by bad flags, arguments or missing
// prerequisites the user has to fix.
type InputError struct {
	Err error
}

func (e *InputError) Error() string { return e.Err.Error() }
func (e *InputError) Unwrap() error { return e.Err }

// Invalid builds an InputError.
func Invalid(format string, args ...interface{}) error {
	return &InputError{Err: fmt.Errorf(format, args...)}
}

// PolicyError is returned when a run succeeded but its findings breach a
// user-supplied threshold.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return e.Reason }

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ie *InputError
	if errors.As(err, &ie) {
		return ExitInvalidInput
	}
	var pe *PolicyError
	if errors.As(err, &pe) {
		return ExitPolicyFail
	}
	return ExitRuntimeError
}

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError prints an error message to stderr and exits with the given code
func ExitWithError(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	Exit(code)
}
