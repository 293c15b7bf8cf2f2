// Package errs defines the error taxonomy shared across the toolchain.
package errs

import (
	"errors"
	"fmt"
)

// Exit codes reported by the CLI. Code 60 is reserved for internal
// errors so that callers can distinguish defects from bad user input.
const (
	ExitOK       = 0
	ExitSetup    = 1
	ExitCompile  = 2
	ExitInternal = 60
)

// SetupError reports a missing or misconfigured external tool. It is
// surfaced before any compilation is attempted.
type SetupError struct {
	Tool string
	Hint string
	Err  error
}

func (e *SetupError) Error() string {
	msg := fmt.Sprintf("setup: %s not usable", e.Tool)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *SetupError) Unwrap() error { return e.Err }

// CompilationError reports a failed engine stage. The old node, if any,
// is left untouched when this is returned.
type CompilationError struct {
	Stage    string
	Headline string
	Err      error
}

func (e *CompilationError) Error() string {
	if e.Headline != "" {
		return fmt.Sprintf("compilation failed at %s: %s", e.Stage, e.Headline)
	}
	return fmt.Sprintf("compilation failed at %s", e.Stage)
}

func (e *CompilationError) Unwrap() error { return e.Err }

// ConversionError reports a failed downstream stage (vectorization or
// simplification) after a successful compile.
type ConversionError struct {
	Stage    string
	Headline string
	Err      error
}

func (e *ConversionError) Error() string {
	if e.Headline != "" {
		return fmt.Sprintf("conversion failed at %s: %s", e.Stage, e.Headline)
	}
	return fmt.Sprintf("conversion failed at %s", e.Stage)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// InternalError reports an invariant violation inside the engine itself,
// e.g. a reported success without a computable bounding box. It is always
// surfaced in full.
type InternalError struct {
	Msg string
	Err error
}

func (e *InternalError) Error() string {
	if e.Err != nil {
		return "internal: " + e.Msg + ": " + e.Err.Error()
	}
	return "internal: " + e.Msg
}

func (e *InternalError) Unwrap() error { return e.Err }

// Internalf builds an InternalError from a format string.
func Internalf(format string, args ...any) *InternalError {
	return &InternalError{Msg: fmt.Sprintf(format, args...)}
}

// ExitCode maps an error to the process exit code contract.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var setup *SetupError
	if errors.As(err, &setup) {
		return ExitSetup
	}
	var comp *CompilationError
	if errors.As(err, &comp) {
		return ExitCompile
	}
	var conv *ConversionError
	if errors.As(err, &conv) {
		return ExitCompile
	}
	var internal *InternalError
	if errors.As(err, &internal) {
		return ExitInternal
	}
	return ExitSetup
}
