package engine

import (
	"errors"
	"fmt"
)

// Code categorizes engine errors.
type Code string

const (
	// CodeInvalidArgument indicates a kind, entry, or mount path that
	// fails validation, or a dependency cycle across dynamic deps.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// CodeUnserializable indicates an input with no canonical
	// serialization, so no fingerprint can be computed.
	CodeUnserializable Code = "UNSERIALIZABLE"

	// CodeNotFound indicates a kind with no registered executor.
	CodeNotFound Code = "NOT_FOUND"

	// CodeCorrupt indicates a descriptor that exists but does not parse.
	// The caller may forget the artifact and retry.
	CodeCorrupt Code = "CORRUPT"

	// CodeIO indicates a filesystem operation failure, including a failed
	// publish rename that was not a lost race.
	CodeIO Code = "IO"

	// CodeUserFnFailed indicates the user function returned an error.
	CodeUserFnFailed Code = "USER_FN_FAILED"

	// CodeDependencyFailed indicates a nested Execute for a declared
	// dependency failed.
	CodeDependencyFailed Code = "DEPENDENCY_FAILED"
)

// Execution phases recorded on errors for caller diagnostics.
const (
	phaseResolve    = "resolve"
	phaseProbe      = "probe-cache"
	phaseRecover    = "recover-deps"
	phasePrepare    = "prepare-scratch"
	phaseMount      = "mount-deps"
	phaseRunFn      = "run-fn"
	phaseDescriptor = "write-descriptor"
	phasePublish    = "publish"
)

// Error is a structured engine error carrying the kind, fingerprint, and
// phase at which execution failed.
type Error struct {
	Code        Code
	Kind        string
	Fingerprint string
	Phase       string
	Message     string
	Err         error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	switch {
	case e.Kind != "" && e.Fingerprint != "":
		return fmt.Sprintf("%s: %s (kind=%s, fingerprint=%s, phase=%s)", e.Code, msg, e.Kind, e.Fingerprint, e.Phase)
	case e.Kind != "":
		return fmt.Sprintf("%s: %s (kind=%s)", e.Code, msg, e.Kind)
	default:
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether err is an engine Error with the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code Code) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}
